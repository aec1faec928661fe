package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	tdclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/sirupsen/logrus"
)

// GotdClient implements Client on top of gotd/td. Session state is kept in
// a single file so that discarding the file discards the authorization.
type GotdClient struct {
	client *tdclient.Client
	api    *tg.Client
	logger *logrus.Logger

	phoneCodeHash string

	cancel context.CancelFunc
	done   chan error
}

var _ Client = (*GotdClient)(nil)

// NewGotdClient builds a client bound to the given API credentials and
// session file. Nothing is dialed until Connect.
func NewGotdClient(apiID int, apiHash, sessionPath string, logger *logrus.Logger) *GotdClient {
	client := tdclient.NewClient(apiID, apiHash, tdclient.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
	})

	return &GotdClient{
		client: client,
		logger: logger,
	}
}

// Connect opens the MTProto connection in a background goroutine and waits
// until it is usable. The connection stays up until Close.
func (c *GotdClient) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		c.cancel = cancel
		c.done = done
		c.api = c.client.API()
		return nil
	case err := <-done:
		cancel()
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Close shuts the connection down.
func (c *GotdClient) Close() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	err := <-c.done
	c.cancel = nil
	c.done = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// SendCode triggers delivery of a one-time login code to the phone number.
func (c *GotdClient) SendCode(ctx context.Context, phone string) error {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return fmt.Errorf("failed to send login code: %w", classify(err))
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return fmt.Errorf("unexpected sent code response %T", sent)
	}
	c.phoneCodeHash = code.PhoneCodeHash

	c.logger.Infof("Login code sent to %s", phone)
	return nil
}

// SignIn submits the one-time code received after SendCode.
func (c *GotdClient) SignIn(ctx context.Context, phone, code string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, c.phoneCodeHash)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			return ErrTwoFactorRequired
		}
		return classify(err)
	}
	return nil
}

// JoinedChannels pulls the most relevant dialogs and keeps the channel-type
// entries. Telegram orders dialogs by relevance, so anything past the limit
// window is invisible to the caller.
func (c *GotdClient) JoinedChannels(ctx context.Context, limit int) ([]Channel, error) {
	dialogs, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetDate: 0,
		OffsetID:   0,
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
		Hash:       0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dialogs: %w", classify(err))
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", dialogs)
	}

	var channels []Channel
	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		channels = append(channels, Channel{
			ID:         ch.ID,
			AccessHash: ch.AccessHash,
			Title:      ch.Title,
			Username:   ch.Username,
			Megagroup:  ch.Megagroup,
			Broadcast:  ch.Broadcast,
		})
	}

	return channels, nil
}

// ResolveUser resolves a public username to a user.
func (c *GotdClient) ResolveUser(ctx context.Context, username string) (*User, error) {
	peer, err := c.resolve(ctx, username)
	if err != nil {
		return nil, err
	}

	resolved, ok := peer.Peer.(*tg.PeerUser)
	if !ok {
		return nil, ErrNotFound
	}

	for _, uc := range peer.Users {
		u, ok := uc.(*tg.User)
		if !ok || u.ID != resolved.UserID {
			continue
		}
		return &User{
			ID:         u.ID,
			AccessHash: u.AccessHash,
			Username:   u.Username,
		}, nil
	}

	return nil, ErrNotFound
}

// ResolveChannel resolves a public username to a channel or megagroup.
func (c *GotdClient) ResolveChannel(ctx context.Context, username string) (*Channel, error) {
	peer, err := c.resolve(ctx, username)
	if err != nil {
		return nil, err
	}

	resolved, ok := peer.Peer.(*tg.PeerChannel)
	if !ok {
		return nil, ErrNotFound
	}

	for _, cc := range peer.Chats {
		ch, ok := cc.(*tg.Channel)
		if !ok || ch.ID != resolved.ChannelID {
			continue
		}
		return &Channel{
			ID:         ch.ID,
			AccessHash: ch.AccessHash,
			Title:      ch.Title,
			Username:   ch.Username,
			Megagroup:  ch.Megagroup,
			Broadcast:  ch.Broadcast,
		}, nil
	}

	return nil, ErrNotFound
}

func (c *GotdClient) resolve(ctx context.Context, username string) (*tg.ContactsResolvedPeer, error) {
	peer, err := c.api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return nil, classify(err)
	}
	return peer, nil
}

// InviteUser adds the user to the channel.
func (c *GotdClient) InviteUser(ctx context.Context, channel *Channel, user *User) error {
	_, err := c.api.ChannelsInviteToChannel(ctx, &tg.ChannelsInviteToChannelRequest{
		Channel: &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash},
		Users: []tg.InputUserClass{
			&tg.InputUser{UserID: user.ID, AccessHash: user.AccessHash},
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// RemoveUser restricts the user's view-messages right indefinitely, which
// removes them from the channel.
func (c *GotdClient) RemoveUser(ctx context.Context, channel *Channel, user *User) error {
	_, err := c.api.ChannelsEditBanned(ctx, &tg.ChannelsEditBannedRequest{
		Channel:     &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash},
		Participant: &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash},
		BannedRights: tg.ChatBannedRights{
			UntilDate:    0,
			ViewMessages: true,
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps RPC errors onto the package taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &FloodWaitError{Seconds: int(d / time.Second)}
	}
	if tgerr.Is(err, "USER_PRIVACY_RESTRICTED") {
		return ErrPrivacyRestricted
	}
	if tgerr.Is(err, "CHAT_ADMIN_REQUIRED") {
		return ErrAdminRequired
	}
	if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
		return ErrNotFound
	}
	return err
}
