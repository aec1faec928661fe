package membership

import (
	"context"

	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// Client is the slice of the Telegram client the mutator needs.
type Client interface {
	ResolveUser(ctx context.Context, username string) (*telegram.User, error)
	ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error)
	InviteUser(ctx context.Context, channel *telegram.Channel, user *telegram.User) error
	RemoveUser(ctx context.Context, channel *telegram.Channel, user *telegram.User) error
}
