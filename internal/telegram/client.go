package telegram

import "context"

// User is a Telegram user resolved from a public username.
type User struct {
	ID         int64
	AccessHash int64
	Username   string
}

// Channel is a broadcast channel or megagroup the account can see.
// One-to-one conversations and legacy small chats are never represented
// by this type.
type Channel struct {
	ID         int64
	AccessHash int64
	Title      string
	Username   string
	Megagroup  bool
	Broadcast  bool
}

// Client is the surface of the Telegram MTProto connection used by the
// workflows. A Client models exactly one authenticated session; callers
// must not interleave calls from multiple goroutines.
type Client interface {
	// Connect opens the connection and keeps it running until Close.
	Connect(ctx context.Context) error
	// Close tears the connection down and releases the session.
	Close() error

	// SendCode asks Telegram to deliver a one-time login code to the phone.
	SendCode(ctx context.Context, phone string) error
	// SignIn completes the login with the code received after SendCode.
	// Returns ErrTwoFactorRequired when the account has a cloud password.
	SignIn(ctx context.Context, phone, code string) error

	// JoinedChannels lists the channels among the account's most relevant
	// dialogs, at most limit entries. Dialogs past the window are not seen.
	JoinedChannels(ctx context.Context, limit int) ([]Channel, error)

	// ResolveUser resolves a public username to a user.
	ResolveUser(ctx context.Context, username string) (*User, error)
	// ResolveChannel resolves a public username to a channel or megagroup.
	ResolveChannel(ctx context.Context, username string) (*Channel, error)

	// InviteUser adds the user to the channel.
	InviteUser(ctx context.Context, channel *Channel, user *User) error
	// RemoveUser revokes the user's right to view messages in the channel
	// indefinitely, which Telegram treats as a removal.
	RemoveUser(ctx context.Context, channel *Channel, user *User) error
}
