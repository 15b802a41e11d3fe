package token

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

const (
	// DefaultCodeBytes and DefaultTokenBytes are the random draw sizes
	// for authorization codes and access tokens. Tuning parameters, not
	// protocol requirements.
	DefaultCodeBytes  = 256
	DefaultTokenBytes = 1024
)

// GenerationError signals that the random source could not supply
// entropy. It is the generator's only failure mode and must reach the
// caller; the generator never degrades to a weaker source.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("credential generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Generator produces authorization codes and access tokens. Random
// bytes are drawn from Source and hashed before returning; the hash
// normalizes output length and alphabet, the entropy comes from the
// draw itself.
type Generator struct {
	Source     io.Reader
	CodeBytes  int
	TokenBytes int
}

// NewGenerator returns a Generator backed by crypto/rand with the
// default draw sizes.
func NewGenerator() *Generator {
	return &Generator{
		Source:     rand.Reader,
		CodeBytes:  DefaultCodeBytes,
		TokenBytes: DefaultTokenBytes,
	}
}

// AuthCode returns a new hex-encoded authorization code (SHA-1 digest,
// 40 hex chars).
func (g *Generator) AuthCode() (string, error) {
	return g.generate(g.CodeBytes, sha1.New())
}

// AccessToken returns a new hex-encoded access token (SHA-512 digest,
// 128 hex chars).
func (g *Generator) AccessToken() (string, error) {
	return g.generate(g.TokenBytes, sha512.New())
}

func (g *Generator) generate(n int, h hash.Hash) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(g.Source, buf); err != nil {
		return "", &GenerationError{Cause: err}
	}
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil)), nil
}
