package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// DefaultDelay is the pause after each successful per-group operation.
// It paces the batch under Telegram's abuse detection; do not parallelize
// the loop to win it back.
const DefaultDelay = 30 * time.Second

// UserNotFoundError aborts a batch before any group is attempted.
type UserNotFoundError struct {
	Username string
	Err      error
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("cannot find user by username: %s: %v", e.Username, e.Err)
}

func (e *UserNotFoundError) Unwrap() error { return e.Err }

// BatchError reports the group at which a batch aborted.
type BatchError struct {
	Group string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("group %s: %v", e.Group, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Mutator invites a user to, or removes a user from, a list of groups.
// Groups are processed strictly in order and strictly sequentially; the
// only error a batch survives is a flood wait.
type Mutator struct {
	client Client
	delay  time.Duration
	logger *logrus.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewMutator creates a mutator with the given inter-group delay.
func NewMutator(client Client, delay time.Duration, logger *logrus.Logger) *Mutator {
	return &Mutator{
		client: client,
		delay:  delay,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// InviteUserToGroups invites the user to every group in order.
func (m *Mutator) InviteUserToGroups(ctx context.Context, userUsername string, groupUsernames []string) error {
	return m.run(ctx, userUsername, groupUsernames, "invite", m.client.InviteUser)
}

// RemoveUserFromGroups removes the user from every group in order.
func (m *Mutator) RemoveUserFromGroups(ctx context.Context, userUsername string, groupUsernames []string) error {
	return m.run(ctx, userUsername, groupUsernames, "remove", m.client.RemoveUser)
}

func (m *Mutator) run(ctx context.Context, userUsername string, groupUsernames []string, verb string, op func(context.Context, *telegram.Channel, *telegram.User) error) error {
	user, err := m.client.ResolveUser(ctx, userUsername)
	if err != nil {
		return &UserNotFoundError{Username: userUsername, Err: err}
	}
	m.logger.Infof("Found user by username: %d", user.ID)

	for _, groupUsername := range groupUsernames {
		err := m.processGroup(ctx, groupUsername, user, verb, op)
		if err == nil {
			m.sleep(m.delay)
			continue
		}

		if seconds, ok := telegram.AsFloodWait(err); ok {
			// Sleep out the cool-down and move on to the next group; the
			// current one is not retried.
			m.logger.Warnf("Flood wait error. Waiting for %d seconds.", seconds)
			m.sleep(time.Duration(seconds) * time.Second)
			continue
		}

		return &BatchError{Group: groupUsername, Err: err}
	}

	m.logger.Infof("Batch %s completed for user %s across %d groups", verb, userUsername, len(groupUsernames))
	return nil
}

func (m *Mutator) processGroup(ctx context.Context, groupUsername string, user *telegram.User, verb string, op func(context.Context, *telegram.Channel, *telegram.User) error) error {
	group, err := m.client.ResolveChannel(ctx, groupUsername)
	if err != nil {
		return fmt.Errorf("failed to resolve group: %w", err)
	}
	m.logger.Infof("Found group/channel: %d", group.ID)

	if err := op(ctx, group, user); err != nil {
		if errors.Is(err, telegram.ErrPrivacyRestricted) || errors.Is(err, telegram.ErrAdminRequired) {
			return err
		}
		var fw *telegram.FloodWaitError
		if errors.As(err, &fw) {
			return err
		}
		return fmt.Errorf("failed to %s user: %w", verb, err)
	}

	m.logger.Infof("Applied %s for user %s in group %s", verb, user.Username, groupUsername)
	return nil
}
