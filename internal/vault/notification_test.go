package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/aclarai/internal/model"
)

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{"id":"blk_1","file_path":"notes/a.md","change_type":"modified",
		"timestamp_ms":1700000000000,"version":3,"block_type":"inline",
		"old_version":2,"new_version":3,"old_hash":"aa","new_hash":"bb"}`))
	require.NoError(t, err)
	assert.Equal(t, model.ChangeModified, n.ChangeType)
	assert.Equal(t, 3, n.Version)
	require.NotNil(t, n.OldVersion)
	assert.Equal(t, 2, *n.OldVersion)
	assert.Equal(t, "bb", *n.NewHash)

	tests := map[string]string{
		"malformed":             `{"id":`,
		"missing id":            `{"file_path":"a.md","change_type":"created"}`,
		"unknown change type":   `{"id":"x","file_path":"a.md","change_type":"moved"}`,
		"missing path":          `{"id":"x","change_type":"created"}`,
		"diff fields on create": `{"id":"x","file_path":"a.md","change_type":"created","old_hash":"aa"}`,
	}
	for name, raw := range tests {
		_, err := ParseNotification([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestParseNotifications(t *testing.T) {
	lines := []string{
		`{"id":"a","file_path":"a.md","change_type":"created","version":1}`,
		"",
		`not json`,
		`{"id":"b","change_type":"deleted"}`,
	}
	ns, errs := ParseNotifications(lines)
	require.Len(t, ns, 2)
	assert.Equal(t, "b", ns[1].ID)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "line 3")
}
