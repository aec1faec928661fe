package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// ErrNotInitialized is returned when an operation needs a session and none
// has been established yet.
var ErrNotInitialized = errors.New("telegram client not initialized")

// CredentialError rejects a credential set before any session action is
// attempted.
type CredentialError struct {
	Message string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %s", e.Message)
}

// Credentials is the external-facing credential set. APIID stays textual
// here because it arrives from the environment or a JSON body; Validate
// checks that it parses.
type Credentials struct {
	APIID       string
	APIHash     string
	PhoneNumber string
}

// Validate checks that every field is present and the api id is numeric.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.APIID) == "" || strings.TrimSpace(c.APIHash) == "" || strings.TrimSpace(c.PhoneNumber) == "" {
		return &CredentialError{Message: "all fields (api_id, api_hash, phone_number) are required"}
	}
	if _, err := strconv.Atoi(c.APIID); err != nil {
		return &CredentialError{Message: fmt.Sprintf("api_id must be numeric, got %q", c.APIID)}
	}
	return nil
}

// ClientFactory builds a client for a credential pair. Swapped out in tests.
type ClientFactory func(apiID int, apiHash string) telegram.Client

// Gate owns the one authenticated Telegram session. It is confined to a
// single caller at a time: the CLI runs it from one goroutine, the server
// runs it on the session worker.
type Gate struct {
	factory     ClientFactory
	sessionPath string
	logger      *logrus.Logger

	client telegram.Client
	phone  string
}

// NewGate creates a gate with no session established.
func NewGate(factory ClientFactory, sessionPath string, logger *logrus.Logger) *Gate {
	return &Gate{
		factory:     factory,
		sessionPath: sessionPath,
		logger:      logger,
	}
}

// Initialize discards any existing session, deletes the on-disk session
// artifact, connects with fresh credentials and triggers the login code
// send. After a successful call exactly one verification is pending.
func (g *Gate) Initialize(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	if g.client != nil {
		if err := g.client.Close(); err != nil {
			g.logger.Warnf("Failed to close previous session: %v", err)
		}
		g.client = nil
		g.phone = ""
	}

	if err := os.Remove(g.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file %s: %w", g.sessionPath, err)
	}

	apiID, _ := strconv.Atoi(creds.APIID)
	client := g.factory(apiID, creds.APIHash)

	if err := client.Connect(ctx); err != nil {
		return err
	}

	if err := client.SendCode(ctx, creds.PhoneNumber); err != nil {
		client.Close()
		return err
	}

	g.client = client
	g.phone = creds.PhoneNumber
	g.logger.Info("Telegram client reinitialized, verification code requested")
	return nil
}

// CompleteLogin submits the one-time verification code. Returns
// telegram.ErrTwoFactorRequired when the account has a cloud password;
// submitting that password is not supported.
func (g *Gate) CompleteLogin(ctx context.Context, code string) error {
	if g.client == nil {
		return ErrNotInitialized
	}

	if err := g.client.SignIn(ctx, g.phone, code); err != nil {
		if errors.Is(err, telegram.ErrTwoFactorRequired) {
			return err
		}
		return fmt.Errorf("sign in failed: %w", err)
	}

	g.logger.Info("Login successful.")
	return nil
}

// Client returns the active session client.
func (g *Gate) Client() (telegram.Client, error) {
	if g.client == nil {
		return nil, ErrNotInitialized
	}
	return g.client, nil
}

// Close tears down the session if one exists. The session file stays on
// disk so the authorization survives the process.
func (g *Gate) Close() error {
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	g.phone = ""
	return err
}
