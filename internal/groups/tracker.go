package groups

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/makhammatovb/telegram-group-manager/internal/snapshot"
)

// Tracker fetches the account's joined groups and diffs them against the
// persisted snapshot to detect newly joined ones.
type Tracker struct {
	client DialogLister
	store  SnapshotStore
	limit  int
	logger *logrus.Logger
}

// DiffResult describes one detection run.
type DiffResult struct {
	// Initial is true when no snapshot existed before this run; the current
	// set was saved verbatim and no diff was computed.
	Initial bool
	// NewGroups holds the groups present now but absent from the previous
	// snapshot. Empty when Initial is true or nothing changed.
	NewGroups snapshot.Snapshot
	// Current is the full fetched set; it is the persisted snapshot after
	// the run, whatever the diff outcome.
	Current snapshot.Snapshot
}

// NewTracker creates a tracker. limit caps the dialog window; groups past
// it are invisible to the diff.
func NewTracker(client DialogLister, store SnapshotStore, limit int, logger *logrus.Logger) *Tracker {
	return &Tracker{
		client: client,
		store:  store,
		limit:  limit,
		logger: logger,
	}
}

// FetchJoinedGroups retrieves the current group-like dialogs and builds a
// snapshot keyed by stringified group id. Only broadcast channels and
// megagroups count; one-to-one conversations are dropped.
func (t *Tracker) FetchJoinedGroups(ctx context.Context) (snapshot.Snapshot, error) {
	channels, err := t.client.JoinedChannels(ctx, t.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dialogs: %w", err)
	}

	current := snapshot.Snapshot{}
	for _, ch := range channels {
		if !ch.Megagroup && !ch.Broadcast {
			continue
		}
		current[strconv.FormatInt(ch.ID, 10)] = snapshot.GroupRecord{
			Title:    ch.Title,
			Username: ch.Username,
		}
	}

	t.logger.Infof("Fetched %d joined groups (dialog window %d)", len(current), t.limit)
	return current, nil
}

// DetectNewGroups fetches the current group set, reports the groups absent
// from the previous snapshot and overwrites the snapshot with the current
// set. On the very first run the current set is saved verbatim and no diff
// is computed.
func (t *Tracker) DetectNewGroups(ctx context.Context) (*DiffResult, error) {
	current, err := t.FetchJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	previous, err := t.store.Load()
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if err := t.store.Save(current); err != nil {
			return nil, fmt.Errorf("failed to save initial snapshot: %w", err)
		}
		t.logger.Info("Initial group list saved.")
		return &DiffResult{Initial: true, Current: current}, nil
	}

	newGroups := snapshot.Snapshot{}
	for id, record := range current {
		if _, ok := previous[id]; !ok {
			newGroups[id] = record
		}
	}

	// The fetched set becomes the new baseline even when nothing changed.
	if err := t.store.Save(current); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if len(newGroups) > 0 {
		t.logger.Infof("New groups detected: %d", len(newGroups))
	} else {
		t.logger.Info("No new groups detected.")
	}

	return &DiffResult{NewGroups: newGroups, Current: current}, nil
}
