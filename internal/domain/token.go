package domain

import "time"

// RefreshToken is an opaque long-lived credential. Rows are revoked, never deleted.
type RefreshToken struct {
	ID          string
	UserID      string
	Token       string
	ExpiresAt   time.Time
	IsRevoked   bool
	RevokedAt   *time.Time
	RevokedByIP string
	CreatedByIP string
	CreatedAt   time.Time
}

// IsActive reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

// TwoFactorChannel is the delivery channel of a one-time code.
type TwoFactorChannel string

const (
	ChannelEmail         TwoFactorChannel = "email"
	ChannelSMS           TwoFactorChannel = "sms"
	ChannelAuthenticator TwoFactorChannel = "authenticator"
)

// TwoFactorCode is a six digit one-time code bound to a user.
type TwoFactorCode struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	IsUsed    bool
	UsedAt    *time.Time
	Channel   TwoFactorChannel
	CreatedAt time.Time
}

// IsValid reports whether the code can still be redeemed at now.
func (c *TwoFactorCode) IsValid(now time.Time) bool {
	return !c.IsUsed && now.Before(c.ExpiresAt)
}
