package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/crypto/bcrypt"

	"github.com/andyleap/authd/internal/models"
)

// S3UserDirectory authenticates against per-user JSON objects stored in
// an S3 bucket under users/<name>.json.
type S3UserDirectory struct {
	client *minio.Client
	bucket string
}

func NewS3UserDirectory(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3UserDirectory, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &S3UserDirectory{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *S3UserDirectory) getUser(ctx context.Context, username string) (*models.User, error) {
	key := fmt.Sprintf("users/%s.json", username)

	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get user from S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

func (s *S3UserDirectory) MatchUser(ctx context.Context, username, password string) bool {
	user, err := s.getUser(ctx, username)
	if err != nil {
		slog.Error("User lookup failed", "username", username, "error", err)
		return false
	}
	if user == nil {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// SaveUser writes a user object, mainly for provisioning tooling.
func (s *S3UserDirectory) SaveUser(ctx context.Context, user *models.User) error {
	key := fmt.Sprintf("users/%s.json", user.Name)

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to save user to S3: %w", err)
	}

	return nil
}
