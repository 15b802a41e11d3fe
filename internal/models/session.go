package models

import (
	"time"
)

// AuthorizationRequest is the pending authorization carried on the
// session between the authorize, login and consent steps. It never
// outlives the session.
type AuthorizationRequest struct {
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
	ClientID    string `json:"client_id"`
}

// Session is the browser session referenced by the auth_session cookie.
// An empty Username means the owner has not authenticated yet; a nil
// OAuth2 means no authorization flow is in progress.
type Session struct {
	ID        string                `json:"id"`
	Username  string                `json:"username,omitempty"`
	OAuth2    *AuthorizationRequest `json:"oauth2,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	ExpiresAt time.Time             `json:"expiresAt"`
}
