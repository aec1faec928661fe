package groups

import (
	"context"

	"github.com/makhammatovb/telegram-group-manager/internal/snapshot"
	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// DialogLister is the slice of the Telegram client the tracker needs.
type DialogLister interface {
	JoinedChannels(ctx context.Context, limit int) ([]telegram.Channel, error)
}

// SnapshotStore persists the last known group set.
type SnapshotStore interface {
	Load() (snapshot.Snapshot, error)
	Save(snapshot.Snapshot) error
}
