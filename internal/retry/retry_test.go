package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(tries int) Policy {
	return Policy{MaxTries: tries, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), "fetch", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("neo4j: connection refused")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentFailsFast(t *testing.T) {
	calls := 0
	sentinel := errors.New("syntax error in query")
	err := DoErr(context.Background(), fastPolicy(5), "update", func(ctx context.Context) error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxTries(t *testing.T) {
	calls := 0
	err := DoErr(context.Background(), fastPolicy(2), "create", func(ctx context.Context) error {
		calls++
		return errors.New("rate limit exceeded")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Deadlock detected"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("resource temporarily unavailable"), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("constraint violation"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), "%v", tt.err)
	}
}
