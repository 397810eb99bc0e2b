package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/wanvideo/generation-be/internal/api/storage"
)

// DecodeJobCursor parses an opaque pagination cursor. An empty cursor
// means "first page".
func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.JobCursor{
		CreatedAt: time.Unix(0, createdAt),
		JobID:     parts[1],
	}, nil
}

// EncodeJobCursor renders a cursor as base64("<unixnano>|<job_id>").
func EncodeJobCursor(cursor *storage.JobCursor) (string, error) {
	if cursor == nil {
		return "", nil
	}

	raw := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.JobID)
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}
