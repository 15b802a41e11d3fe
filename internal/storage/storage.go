package storage

import (
	"context"

	"github.com/andyleap/authd/internal/models"
)

// CredentialStore is keyed lookup for issued credentials. Every record
// is indexed twice: by its Value and by its (ClientID, Username) pair.
// Put must make the record visible on both index paths atomically from
// the caller's perspective, and Remove must clear both paths before it
// returns.
type CredentialStore interface {
	Put(ctx context.Context, record *models.CredentialRecord) error
	GetByValue(ctx context.Context, value string) (*models.CredentialRecord, error)
	GetByOwner(ctx context.Context, clientID, username string) (*models.CredentialRecord, error)
	Remove(ctx context.Context, record *models.CredentialRecord) error
}

type SessionStore interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
