package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound room/message/user absent; distinct from authorization denial so
// clients can tell "doesn't exist" from "not allowed".
var ErrNotFound = errors.New("not found")

// NotFoundError wrap ErrNotFound with the entity kind
func NotFoundError(kind string) error {
	return fmt.Errorf("%s: %w", kind, ErrNotFound)
}

// AuthorizationDeniedError not a member / insufficient role.
type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	return "authorization denied: " + e.Reason
}

// Moderation rejection reasons surfaced to clients.
const (
	ReasonNotMember         = "not_a_member"
	ReasonRemoved           = "removed"
	ReasonMuted             = "muted"
	ReasonMessagingDisabled = "messaging_disabled"
	ReasonSlowMode          = "slow_mode"
)

// PermissionDeniedError blocked/muted/slow-mode/messaging-disabled; carries
// the specific reason and, for slow mode, the remaining wait.
type PermissionDeniedError struct {
	Reason      string
	WaitSeconds int
}

func (e *PermissionDeniedError) Error() string {
	if e.Reason == ReasonSlowMode {
		return fmt.Sprintf("permission denied: %s, wait %ds", e.Reason, e.WaitSeconds)
	}
	return "permission denied: " + e.Reason
}

// IsNotFound report whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// SendPermission is the verdict of the moderation check consumed before any
// message is accepted.
type SendPermission struct {
	CanSend     bool   `json:"can_send"`
	Reason      string `json:"reason,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}
