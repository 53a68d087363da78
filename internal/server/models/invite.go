package models

import "time"

// Invite maps a short human-readable code to a signed invite token.
// The workspace id and invitee email are embedded in the token itself.
// A code is redeemable at most once: redemption consumes the row.
type Invite struct {
	Code      string
	Token     string
	ExpiresAt time.Time
}
