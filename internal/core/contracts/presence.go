package contracts

import (
	"context"
	"time"
)

// PresenceMirror is a best-effort external copy of last-seen timestamps
// for collaborators outside this process. It is never read by the core.
type PresenceMirror interface {
	// Touch records userID as seen at the given time.
	Touch(ctx context.Context, userID string, at time.Time) error
	// LastSeen returns every mirrored user id with its timestamp.
	LastSeen(ctx context.Context) (map[string]time.Time, error)
}
