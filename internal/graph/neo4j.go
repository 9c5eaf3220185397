package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ppiankov/aclarai/internal/logging"
	"github.com/ppiankov/aclarai/internal/model"
)

const connectTimeout = 10 * time.Second

var schemaStatements = []string{
	`CREATE CONSTRAINT claim_id_unique IF NOT EXISTS FOR (c:Claim) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT sentence_id_unique IF NOT EXISTS FOR (s:Sentence) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT block_id_unique IF NOT EXISTS FOR (b:Block) REQUIRE b.id IS UNIQUE`,
	`CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT candidate_id_unique IF NOT EXISTS FOR (n:NounPhraseCandidate) REQUIRE n.id IS UNIQUE`,
}

// Neo4jStore is the Store backed by a Neo4j database
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logging.Logger
}

// NewNeo4jStore connects, verifies connectivity and creates constraints.
// Constraint creation is best-effort; restricted users may not be allowed to.
func NewNeo4jStore(ctx context.Context, cfg model.GraphConfig, log *logging.Logger) (*Neo4jStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: missing uri")
	}
	if log == nil {
		log = logging.NewNop()
	}
	user := cfg.Username
	if user == "" {
		user = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = connectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &Neo4jStore{driver: driver, database: cfg.Database, log: log.With("component", "neo4j")}
	s.ensureSchema(ctx)
	return s, nil
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err.Error())
			return
		}
		_, _ = res.Consume(ctx)
	}
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// Close releases the driver
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// write runs one statement in a managed write transaction and returns the
// "n" column of its single row
func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return int64FromRecord(rec, "n"), nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

const upsertClaimsQuery = `
UNWIND $rows AS r
MERGE (c:Claim {id: r.id})
ON CREATE SET c.version = 1, c.created_at = $now
ON MATCH SET c.version = coalesce(c.version, 0) + 1
SET c.text = r.text,
    c.chunk_id = r.chunk_id,
    c.confidence = r.confidence,
    c.verifiable = r.verifiable,
    c.self_contained = r.self_contained,
    c.context_complete = r.context_complete,
    c.entailed_score = r.entailed_score,
    c.coverage_score = r.coverage_score,
    c.decontextualization_score = r.decontext_score,
    c.updated_at = $now
MERGE (b:Block {id: r.block_id})
MERGE (c)-[:ORIGINATES_FROM]->(b)
RETURN count(c) AS n
`

// UpsertClaims merges Claim nodes and links them to their blocks
func (s *Neo4jStore) UpsertClaims(ctx context.Context, claims []model.ClaimInput) (int, error) {
	if len(claims) == 0 {
		return 0, nil
	}
	rows := make([]map[string]any, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, map[string]any{
			"id":               c.ID,
			"text":             c.Text,
			"block_id":         c.BlockID,
			"chunk_id":         c.ChunkID,
			"confidence":       c.Confidence,
			"verifiable":       c.Verifiable,
			"self_contained":   c.SelfContained,
			"context_complete": c.ContextComplete,
			"entailed_score":   optionalFloat(c.EntailedScore),
			"coverage_score":   optionalFloat(c.CoverageScore),
			"decontext_score":  optionalFloat(c.DecontextScore),
		})
	}
	n, err := s.write(ctx, upsertClaimsQuery, map[string]any{"rows": rows, "now": nowString()})
	if err != nil {
		return 0, fmt.Errorf("upsert claims: %w", err)
	}
	return int(n), nil
}

const upsertSentencesQuery = `
UNWIND $rows AS r
MERGE (s:Sentence {id: r.id})
ON CREATE SET s.version = 1, s.created_at = $now
ON MATCH SET s.version = coalesce(s.version, 0) + 1
SET s.text = r.text,
    s.chunk_id = r.chunk_id,
    s.ambiguous = r.ambiguous,
    s.verifiable = r.verifiable,
    s.failed_decomposition = r.failed_decomposition,
    s.rejection_reason = r.rejection_reason,
    s.updated_at = $now
MERGE (b:Block {id: r.block_id})
MERGE (s)-[:ORIGINATES_FROM]->(b)
RETURN count(s) AS n
`

// UpsertSentences merges Sentence nodes and links them to their blocks
func (s *Neo4jStore) UpsertSentences(ctx context.Context, sentences []model.SentenceInput) (int, error) {
	if len(sentences) == 0 {
		return 0, nil
	}
	rows := make([]map[string]any, 0, len(sentences))
	for _, st := range sentences {
		var reason any
		if st.RejectionNote != "" {
			reason = st.RejectionNote
		}
		rows = append(rows, map[string]any{
			"id":                   st.ID,
			"text":                 st.Text,
			"block_id":             st.BlockID,
			"chunk_id":             st.ChunkID,
			"ambiguous":            st.Ambiguous,
			"verifiable":           st.Verifiable,
			"failed_decomposition": st.FailedDecomp,
			"rejection_reason":     reason,
		})
	}
	n, err := s.write(ctx, upsertSentencesQuery, map[string]any{"rows": rows, "now": nowString()})
	if err != nil {
		return 0, fmt.Errorf("upsert sentences: %w", err)
	}
	return int(n), nil
}

// GetBlock reads one block
func (s *Neo4jStore) GetBlock(ctx context.Context, id string) (*model.Block, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (b:Block {id: $id})
RETURN b.id AS id, b.text AS text, b.hash AS hash, b.source_file AS source_file,
       coalesce(b.version, 0) AS version, coalesce(b.needs_reprocessing, false) AS needs_reprocessing,
       b.last_updated AS last_updated
`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		rec := res.Record()
		b := &model.Block{
			ID:                stringFromRecord(rec, "id"),
			Text:              stringFromRecord(rec, "text"),
			ContentHash:       stringFromRecord(rec, "hash"),
			SourceFile:        stringFromRecord(rec, "source_file"),
			Version:           int(int64FromRecord(rec, "version")),
			NeedsReprocessing: boolFromRecord(rec, "needs_reprocessing"),
		}
		if ts := stringFromRecord(rec, "last_updated"); ts != "" {
			b.LastUpdated, _ = time.Parse(time.RFC3339Nano, ts)
		}
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}
	if out == nil {
		return nil, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	return out.(*model.Block), nil
}

func blockParams(b model.Block) map[string]any {
	return map[string]any{
		"id":                 b.ID,
		"text":               b.Text,
		"hash":               b.ContentHash,
		"source_file":        b.SourceFile,
		"version":            int64(b.Version),
		"needs_reprocessing": b.NeedsReprocessing,
		"last_updated":       b.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

// CreateBlock creates a block; an existing id is a conflict
func (s *Neo4jStore) CreateBlock(ctx context.Context, b model.Block) error {
	params := blockParams(b)
	n, err := s.write(ctx, `
MERGE (b:Block {id: $id})
ON CREATE SET b.text = $text, b.hash = $hash, b.source_file = $source_file, b.version = $version,
              b.needs_reprocessing = $needs_reprocessing, b.last_updated = $last_updated, b._created = true
WITH b, coalesce(b._created, false) AS created
REMOVE b._created
RETURN CASE WHEN created THEN 1 ELSE 0 END AS n
`, params)
	if err != nil {
		return fmt.Errorf("create block %s: %w", b.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("create block %s: %w", b.ID, ErrVersionConflict)
	}
	return nil
}

// UpdateBlock writes b only while the stored version equals expectedVersion
func (s *Neo4jStore) UpdateBlock(ctx context.Context, b model.Block, expectedVersion int) error {
	params := blockParams(b)
	params["expected"] = int64(expectedVersion)
	n, err := s.write(ctx, `
OPTIONAL MATCH (b:Block {id: $id})
WHERE coalesce(b.version, 0) = $expected
FOREACH (_ IN CASE WHEN b IS NULL THEN [] ELSE [1] END |
  SET b.text = $text, b.hash = $hash, b.source_file = $source_file, b.version = $version,
      b.needs_reprocessing = $needs_reprocessing, b.last_updated = $last_updated)
RETURN count(b) AS n
`, params)
	if err != nil {
		return fmt.Errorf("update block %s: %w", b.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update block %s at version %d: %w", b.ID, expectedVersion, ErrVersionConflict)
	}
	return nil
}

const createConceptsQuery = `
UNWIND $rows AS r
MERGE (c:Concept {id: r.id})
ON CREATE SET c.created_at = $now
SET c.text = r.text,
    c.source_candidate_id = r.source_candidate_id,
    c.source_node_id = r.source_node_id,
    c.source_node_type = r.source_node_type,
    c.aclarai_id = r.aclarai_id,
    c.version = r.version,
    c.timestamp = r.timestamp
MERGE (n:NounPhraseCandidate {id: r.source_candidate_id})
SET n.status = 'promoted'
MERGE (c)-[:PROMOTED_FROM]->(n)
WITH n, r
OPTIONAL MATCH (src {id: r.source_node_id})
WHERE src:Claim OR src:Summary
FOREACH (_ IN CASE WHEN src IS NULL THEN [] ELSE [1] END | MERGE (n)-[:EXTRACTED_FROM]->(src))
RETURN count(n) AS n
`

// CreateConcepts creates all concepts in one transaction
func (s *Neo4jStore) CreateConcepts(ctx context.Context, concepts []model.ConceptInput) error {
	if len(concepts) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		rows = append(rows, map[string]any{
			"id":                  c.ID,
			"text":                c.Text,
			"source_candidate_id": c.SourceCandidateID,
			"source_node_id":      c.SourceNodeID,
			"source_node_type":    c.SourceNodeType,
			"aclarai_id":          c.AclaraiID,
			"version":             int64(c.Version),
			"timestamp":           c.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	if _, err := s.write(ctx, createConceptsQuery, map[string]any{"rows": rows, "now": nowString()}); err != nil {
		return fmt.Errorf("create concepts: %w", err)
	}
	return nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func optionalFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func stringFromRecord(rec *neo4j.Record, key string) string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func int64FromRecord(rec *neo4j.Record, key string) int64 {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func boolFromRecord(rec *neo4j.Record, key string) bool {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return false
	}
	b, _ := val.(bool)
	return b
}
