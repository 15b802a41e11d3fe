package registry

import (
	"context"

	"github.com/andyleap/authd/internal/models"
)

// ClientRegistry resolves client applications by their client_id.
type ClientRegistry interface {
	FindApplicationByClientID(clientID string) (*models.Client, bool)
}

// Authenticator checks resource owner credentials.
type Authenticator interface {
	MatchUser(ctx context.Context, username, password string) bool
}
