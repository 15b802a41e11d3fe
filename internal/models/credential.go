package models

import (
	"time"
)

// CredentialRecord is an issued credential: either an authorization code
// or an access token. The Value doubles as the lookup key.
type CredentialRecord struct {
	Value       string     `json:"value"`
	ClientID    string     `json:"client_id"`
	Username    string     `json:"username"`
	RedirectURI string     `json:"redirect_uri,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether the credential has passed its expiry.
// Records without an expiry (access tokens) never expire.
func (c *CredentialRecord) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}
