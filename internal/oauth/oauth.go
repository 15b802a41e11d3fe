package oauth

import (
	"context"
	"net/url"
	"time"

	"github.com/andyleap/authd/internal/models"
	"github.com/andyleap/authd/internal/registry"
	"github.com/andyleap/authd/internal/storage"
	"github.com/andyleap/authd/internal/token"
)

// Service drives the authorization-code grant: the browser-facing
// authorize → login → consent steps and the back-channel token
// exchange. All flow state between browser round trips lives on the
// session; the service itself is stateless.
type Service struct {
	codes         storage.CredentialStore
	tokens        storage.CredentialStore
	generator     *token.Generator
	clients       registry.ClientRegistry
	authenticator registry.Authenticator
	codeTTL       time.Duration

	now func() time.Time
}

func NewService(
	codes storage.CredentialStore,
	tokens storage.CredentialStore,
	generator *token.Generator,
	clients registry.ClientRegistry,
	authenticator registry.Authenticator,
	codeTTL time.Duration,
) *Service {
	return &Service{
		codes:         codes,
		tokens:        tokens,
		generator:     generator,
		clients:       clients,
		authenticator: authenticator,
		codeTTL:       codeTTL,
		now:           time.Now,
	}
}

// BeginRequest is the untrusted query of GET /authorize.
type BeginRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	State        string
}

// BeginAuthorization validates the authorization request and stores the
// pending state on the session. Validation short-circuits on the first
// failing parameter, reported via *ParamError; the session is untouched
// on failure.
func (s *Service) BeginAuthorization(sess *models.Session, req BeginRequest) error {
	if req.RedirectURI == "" || !redirectable(req.RedirectURI) {
		return &ParamError{Param: "redirect_uri"}
	}
	if req.ClientID == "" {
		return &ParamError{Param: "client_id"}
	}
	if req.ResponseType != "code" {
		return &ParamError{Param: "response_type"}
	}
	if req.State == "" {
		return &ParamError{Param: "state"}
	}

	sess.OAuth2 = &models.AuthorizationRequest{
		State:       req.State,
		RedirectURI: req.RedirectURI,
		ClientID:    req.ClientID,
	}
	return nil
}

// redirectable reports whether raw is an absolute http or https URL.
func redirectable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Login authenticates the resource owner against the injected
// Authenticator. It requires a pending authorization on the session.
func (s *Service) Login(ctx context.Context, sess *models.Session, username, password string) error {
	if sess.OAuth2 == nil {
		return ErrNoAuthorization
	}

	if !s.authenticator.MatchUser(ctx, username, password) {
		return ErrInvalidUser
	}

	sess.Username = username
	return nil
}

// Consent resolves the client application for the consent page. The
// unauthorized_client failure is delivered on the generic channel: the
// client's identity is unverified, so its redirect_uri cannot be
// trusted with the error.
func (s *Service) Consent(sess *models.Session) (*models.Client, error) {
	if sess.OAuth2 == nil {
		return nil, ErrNoAuthorization
	}
	if sess.Username == "" {
		return nil, ErrAuthenticationRequired
	}

	client, found := s.clients.FindApplicationByClientID(sess.OAuth2.ClientID)
	if !found {
		return nil, unauthorizedClient()
	}
	return client, nil
}

// FinalizeConsent turns the owner's decision into the final redirect.
// A "Yes" issues (or reuses) an authorization code and clears the
// pending authorization; anything else is delivered to the client's
// redirect_uri as an OAuth2 error. The redirect_uri is trusted here
// because it came from the validated session state, not this request.
func (s *Service) FinalizeConsent(ctx context.Context, sess *models.Session, decision string) (string, error) {
	if sess.OAuth2 == nil {
		return "", ErrNoAuthorization
	}
	if sess.Username == "" {
		return "", ErrAuthenticationRequired
	}

	pending := sess.OAuth2

	switch {
	case decision == "":
		return "", redirectError(invalidRequest(), pending.RedirectURI, pending.State)
	case decision != "Yes":
		return "", redirectError(accessDenied(), pending.RedirectURI, pending.State)
	}

	code, err := s.issueCode(ctx, sess, pending)
	if err != nil {
		return "", err
	}

	// The flow is complete; stale pending state must not replay this
	// step.
	sess.OAuth2 = nil

	return appendQuery(pending.RedirectURI, map[string]string{
		"code":  code,
		"state": pending.State,
	}), nil
}

// issueCode reuses a live code already issued to this (client, user)
// for the same redirect target, tolerating duplicate consent
// submissions. Only when none exists is a new code minted.
func (s *Service) issueCode(ctx context.Context, sess *models.Session, pending *models.AuthorizationRequest) (string, error) {
	existing, err := s.codes.GetByOwner(ctx, pending.ClientID, sess.Username)
	if err != nil {
		return "", redirectError(serverError(err), pending.RedirectURI, pending.State)
	}
	if existing != nil && !existing.Expired(s.now()) && existing.RedirectURI == pending.RedirectURI {
		return existing.Value, nil
	}

	value, err := s.generator.AuthCode()
	if err != nil {
		return "", redirectError(serverError(err), pending.RedirectURI, pending.State)
	}

	expires := s.now().Add(s.codeTTL)
	record := &models.CredentialRecord{
		Value:       value,
		ClientID:    pending.ClientID,
		Username:    sess.Username,
		RedirectURI: pending.RedirectURI,
		ExpiresAt:   &expires,
		CreatedAt:   s.now(),
	}
	if err := s.codes.Put(ctx, record); err != nil {
		return "", redirectError(serverError(err), pending.RedirectURI, pending.State)
	}

	return value, nil
}

// ExchangeRequest is the form-encoded body of POST /token.
type ExchangeRequest struct {
	GrantType   string
	Code        string
	RedirectURI string
	ClientID    string
}

// Token is the token endpoint's success payload.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Exchange redeems an authorization code for an access token. The code
// must be live and match the presented client_id and redirect_uri
// exactly; it is consumed on success. An existing access token for the
// same (client, user) is returned unchanged instead of minting a new
// one.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (*Token, error) {
	if req.GrantType != "authorization_code" ||
		req.Code == "" || req.RedirectURI == "" || req.ClientID == "" {
		return nil, invalidRequest()
	}

	authCode, err := s.codes.GetByValue(ctx, req.Code)
	if err != nil {
		return nil, serverError(err)
	}
	if authCode == nil || authCode.Expired(s.now()) ||
		authCode.ClientID != req.ClientID || authCode.RedirectURI != req.RedirectURI {
		return nil, accessDenied()
	}

	existing, err := s.tokens.GetByOwner(ctx, authCode.ClientID, authCode.Username)
	if err != nil {
		return nil, serverError(err)
	}
	if existing != nil && !existing.Expired(s.now()) {
		if err := s.codes.Remove(ctx, authCode); err != nil {
			return nil, serverError(err)
		}
		return &Token{AccessToken: existing.Value, TokenType: "Bearer"}, nil
	}

	value, err := s.generator.AccessToken()
	if err != nil {
		return nil, serverError(err)
	}
	record := &models.CredentialRecord{
		Value:     value,
		ClientID:  authCode.ClientID,
		Username:  authCode.Username,
		CreatedAt: s.now(),
	}
	if err := s.tokens.Put(ctx, record); err != nil {
		return nil, serverError(err)
	}
	if err := s.codes.Remove(ctx, authCode); err != nil {
		return nil, serverError(err)
	}

	return &Token{AccessToken: value, TokenType: "Bearer"}, nil
}

// appendQuery adds params to uri's query string, preserving whatever
// query it already carries.
func appendQuery(uri string, params map[string]string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}

	q := u.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ErrorRedirectURL builds the redirect target for a RedirectError.
func (e *RedirectError) ErrorRedirectURL() string {
	return appendQuery(e.RedirectURI, map[string]string{
		"error": e.Code,
		"state": e.State,
	})
}
