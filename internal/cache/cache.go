// Package cache stores embedding vectors keyed by model and text.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Cache is a byte-oriented key/value cache with per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EmbeddingKey derives the cache key for one text embedded by one model
func EmbeddingKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return "aclarai:emb:v1:" + hex.EncodeToString(hash[:])
}

// EncodeVector packs a vector as little-endian float32s
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector reverses EncodeVector
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("decode vector: length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// GetVector reads a vector, treating undecodable entries as misses
func GetVector(c Cache, key string) ([]float32, bool) {
	b, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	v, err := DecodeVector(b)
	if err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

// SetVector stores a vector
func SetVector(c Cache, key string, v []float32, ttl time.Duration) error {
	return c.Set(key, EncodeVector(v), ttl)
}
