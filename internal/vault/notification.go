package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/aclarai/internal/model"
)

// ParseNotification decodes and validates one change notification
func ParseNotification(data []byte) (model.ChangeNotification, error) {
	var n model.ChangeNotification
	if err := json.Unmarshal(bytes.TrimSpace(data), &n); err != nil {
		return n, fmt.Errorf("decode notification: %w", err)
	}
	if err := n.Validate(); err != nil {
		return n, err
	}
	return n, nil
}

// ParseNotifications decodes JSON lines, collecting per-line errors
func ParseNotifications(lines []string) ([]model.ChangeNotification, []error) {
	var out []model.ChangeNotification
	var errs []error
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := ParseNotification([]byte(line))
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		out = append(out, n)
	}
	return out, errs
}
