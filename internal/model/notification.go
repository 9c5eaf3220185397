package model

import "fmt"

// ChangeType classifies a vault file event
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// ChangeNotification is the message the file watcher publishes for each block edit
type ChangeNotification struct {
	ID          string     `json:"id"`
	FilePath    string     `json:"file_path"`
	ChangeType  ChangeType `json:"change_type"`
	TimestampMs int64      `json:"timestamp_ms"`
	Version     int        `json:"version"`
	BlockType   string     `json:"block_type"`
	OldVersion  *int       `json:"old_version,omitempty"`
	NewVersion  *int       `json:"new_version,omitempty"`
	OldHash     *string    `json:"old_hash,omitempty"`
	NewHash     *string    `json:"new_hash,omitempty"`
}

// Validate checks required fields and that modification details only accompany modified events
func (n ChangeNotification) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("notification missing id")
	}
	switch n.ChangeType {
	case ChangeCreated, ChangeModified, ChangeDeleted:
	default:
		return fmt.Errorf("notification %s: unknown change_type %q", n.ID, n.ChangeType)
	}
	if n.ChangeType != ChangeDeleted && n.FilePath == "" {
		return fmt.Errorf("notification %s: missing file_path", n.ID)
	}
	if n.ChangeType != ChangeModified &&
		(n.OldVersion != nil || n.NewVersion != nil || n.OldHash != nil || n.NewHash != nil) {
		return fmt.Errorf("notification %s: modification fields only valid for %s", n.ID, ChangeModified)
	}
	return nil
}

// BlockInput is the ConceptProcessor input: one persisted Claim or Summary
type BlockInput struct {
	ID           string `json:"id"`
	SemanticText string `json:"semantic_text"`
	AclaraiID    string `json:"aclarai_id,omitempty"`
}
