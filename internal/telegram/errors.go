package telegram

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes Telegram reports on membership
// and resolution calls. Everything not classified here is returned as-is.
var (
	// ErrNotFound means the username resolves to nothing.
	ErrNotFound = errors.New("no user or channel with this username")

	// ErrPrivacyRestricted means the target user's privacy settings forbid
	// the action.
	ErrPrivacyRestricted = errors.New("user privacy settings forbid this action")

	// ErrAdminRequired means the acting account lacks admin rights in the
	// channel.
	ErrAdminRequired = errors.New("account lacks admin privileges")

	// ErrTwoFactorRequired means sign-in needs the account's cloud password.
	// Password submission is not supported end to end; the login stays
	// incomplete when this is returned.
	ErrTwoFactorRequired = errors.New("two-step verification enabled, password needed")
)

// FloodWaitError is the service-imposed cool-down. It is the only
// recoverable error class: callers sleep Seconds and carry on.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %d seconds", e.Seconds)
}

// AsFloodWait reports whether err is a flood wait and, if so, how many
// seconds the service demands.
func AsFloodWait(err error) (int, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Seconds, true
	}
	return 0, false
}
