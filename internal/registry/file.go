package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/andyleap/authd/internal/models"
)

// FileRegistry serves clients and users from a YAML registry file. It
// implements both ClientRegistry and Authenticator.
type FileRegistry struct {
	clients map[string]*models.Client
	users   map[string]*models.User
}

type registryFile struct {
	Clients []*models.Client `yaml:"clients"`
	Users   []*models.User   `yaml:"users"`
}

// LoadFileRegistry reads and indexes the registry file at path.
func LoadFileRegistry(path string) (*FileRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	return ParseRegistry(data)
}

// ParseRegistry builds a FileRegistry from raw YAML.
func ParseRegistry(data []byte) (*FileRegistry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	registry := &FileRegistry{
		clients: make(map[string]*models.Client),
		users:   make(map[string]*models.User),
	}
	for _, client := range file.Clients {
		if client.ID == "" {
			return nil, fmt.Errorf("registry client with empty id")
		}
		registry.clients[client.ID] = client
	}
	for _, user := range file.Users {
		if user.Name == "" {
			return nil, fmt.Errorf("registry user with empty name")
		}
		registry.users[user.Name] = user
	}

	return registry, nil
}

func (f *FileRegistry) FindApplicationByClientID(clientID string) (*models.Client, bool) {
	client, exists := f.clients[clientID]
	return client, exists
}

func (f *FileRegistry) MatchUser(ctx context.Context, username, password string) bool {
	user, exists := f.users[username]
	if !exists {
		return false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err != bcrypt.ErrMismatchedHashAndPassword {
			slog.Error("Password comparison failed", "username", username, "error", err)
		}
		return false
	}
	return true
}
