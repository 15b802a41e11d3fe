package models

// User is a resource owner entry in the user directory. PasswordHash is
// a bcrypt hash, never the plaintext password.
type User struct {
	Name         string `json:"name" yaml:"name"`
	PasswordHash string `json:"password_hash" yaml:"password_hash"`
}
