package server

import (
	"context"

	"github.com/makhammatovb/telegram-group-manager/internal/session"
	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// SessionGate is the session surface the handlers drive.
type SessionGate interface {
	Initialize(ctx context.Context, creds session.Credentials) error
	CompleteLogin(ctx context.Context, code string) error
	Client() (telegram.Client, error)
	Close() error
}
