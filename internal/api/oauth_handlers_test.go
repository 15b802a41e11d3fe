package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/andyleap/authd/internal/models"
	"github.com/andyleap/authd/internal/oauth"
	"github.com/andyleap/authd/internal/storage"
	"github.com/andyleap/authd/internal/token"
	"github.com/andyleap/authd/internal/ui"
)

type stubRegistry map[string]*models.Client

func (r stubRegistry) FindApplicationByClientID(clientID string) (*models.Client, bool) {
	client, found := r[clientID]
	return client, found
}

type stubAuthenticator struct {
	username string
	password string
}

func (a stubAuthenticator) MatchUser(ctx context.Context, username, password string) bool {
	return username == a.username && password == a.password
}

func newTestMux(t *testing.T) http.Handler {
	t.Helper()

	service := oauth.NewService(
		storage.NewMemoryCredentialStore(),
		storage.NewMemoryCredentialStore(),
		token.NewGenerator(),
		stubRegistry{"123": {ID: "123", Name: "My super app"}},
		stubAuthenticator{username: "user", password: "secret"},
		10*time.Minute,
	)

	renderer, err := ui.NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	oauthHandlers := NewOAuthHandlers(service, storage.NewMemorySessionStore(), renderer, 30*time.Minute)
	tokenHandlers := NewTokenHandlers(service)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", oauthHandlers.AuthorizeHandler)
	mux.HandleFunc("GET /authorize/login", oauthHandlers.LoginPageHandler)
	mux.HandleFunc("POST /authorize/login", oauthHandlers.LoginSubmitHandler)
	mux.HandleFunc("GET /authorize/consent", oauthHandlers.ConsentPageHandler)
	mux.HandleFunc("POST /authorize/consent", oauthHandlers.ConsentSubmitHandler)
	mux.HandleFunc("POST /token", tokenHandlers.TokenHandler)

	return mux
}

// browser carries the session cookie between requests like a real
// user agent would.
type browser struct {
	mux    http.Handler
	cookie *http.Cookie
}

func (b *browser) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}

	rec := httptest.NewRecorder()
	b.mux.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookie {
			b.cookie = cookie
		}
	}
	return rec
}

const beginQuery = "/authorize?response_type=code&client_id=123&redirect_uri=http://a&state=s1"

// runFlow walks the browser through authorize, login and consent and
// returns the final redirect back to the client.
func runFlow(t *testing.T, mux http.Handler) (code string, state string) {
	t.Helper()
	b := &browser{mux: mux}

	rec := b.do(t, http.MethodGet, beginQuery, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/authorize/login" {
		t.Fatalf("authorize: status %d, location %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = b.do(t, http.MethodGet, "/authorize/login", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "form-signin") {
		t.Fatalf("login page: status %d", rec.Code)
	}

	rec = b.do(t, http.MethodPost, "/authorize/login", url.Values{
		"username": {"user"},
		"password": {"secret"},
	})
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/authorize/consent" {
		t.Fatalf("login: status %d, location %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = b.do(t, http.MethodGet, "/authorize/consent", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "My super app") {
		t.Fatalf("consent page: status %d", rec.Code)
	}

	rec = b.do(t, http.MethodPost, "/authorize/consent", url.Values{"result": {"Yes"}})
	if rec.Code != http.StatusFound {
		t.Fatalf("consent: status %d", rec.Code)
	}

	redirect, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("final redirect %q: %v", rec.Header().Get("Location"), err)
	}
	if redirect.Scheme != "http" || redirect.Host != "a" {
		t.Fatalf("final redirect = %q, want the client callback", redirect)
	}
	return redirect.Query().Get("code"), redirect.Query().Get("state")
}

func exchange(t *testing.T, mux http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func exchangeForm(code string) url.Values {
	return url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"http://a"},
		"client_id":    {"123"},
	}
}

func TestFullAuthorizationFlow(t *testing.T) {
	mux := newTestMux(t)

	code, state := runFlow(t, mux)
	if state != "s1" {
		t.Errorf("state = %q, want s1", state)
	}
	if code == "" {
		t.Fatal("no code in final redirect")
	}

	rec := exchange(t, mux, exchangeForm(code))
	if rec.Code != http.StatusOK {
		t.Fatalf("token: status %d, body %s", rec.Code, rec.Body.String())
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil {
		t.Fatalf("token body: %v", err)
	}
	if tok.TokenType != "Bearer" || tok.AccessToken == "" {
		t.Errorf("token = %+v", tok)
	}
}

func TestExchangeRejectsAlteredRedirectURI(t *testing.T) {
	mux := newTestMux(t)
	code, _ := runFlow(t, mux)

	form := exchangeForm(code)
	form.Set("redirect_uri", "http://evil")

	rec := exchange(t, mux, form)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "access_denied") {
		t.Errorf("body = %s, want access_denied", rec.Body.String())
	}
}

func TestExchangeIsSingleUse(t *testing.T) {
	mux := newTestMux(t)
	code, _ := runFlow(t, mux)

	if rec := exchange(t, mux, exchangeForm(code)); rec.Code != http.StatusOK {
		t.Fatalf("first exchange: status %d", rec.Code)
	}

	rec := exchange(t, mux, exchangeForm(code))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "access_denied") {
		t.Errorf("second exchange: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestExchangeRejectsWrongGrantType(t *testing.T) {
	mux := newTestMux(t)
	code, _ := runFlow(t, mux)

	form := exchangeForm(code)
	form.Set("grant_type", "password")

	rec := exchange(t, mux, form)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid_request") {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAuthorizeValidation(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantParam string
	}{
		{"no parameters", "/authorize", "redirect_uri"},
		{"missing redirect_uri", "/authorize?response_type=code&client_id=aaa&state=s", "redirect_uri"},
		{"unredirectable redirect_uri", "/authorize?response_type=code&client_id=aaa&state=s&redirect_uri=file:C://", "redirect_uri"},
		{"bad response_type", "/authorize?response_type=code1&client_id=aaa&state=s&redirect_uri=http://a", "response_type"},
		{"missing state", "/authorize?response_type=code&client_id=aaa&redirect_uri=http://a", "state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t)
			b := &browser{mux: mux}

			rec := b.do(t, http.MethodGet, tt.target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantParam) {
				t.Errorf("body does not name %q: %s", tt.wantParam, rec.Body.String())
			}
		})
	}
}

func TestStepsAreOrdered(t *testing.T) {
	t.Run("login page needs a pending authorization", func(t *testing.T) {
		mux := newTestMux(t)
		b := &browser{mux: mux}

		if rec := b.do(t, http.MethodGet, "/authorize/login", nil); rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("consent page needs authentication", func(t *testing.T) {
		mux := newTestMux(t)
		b := &browser{mux: mux}

		b.do(t, http.MethodGet, beginQuery, nil)
		if rec := b.do(t, http.MethodGet, "/authorize/consent", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("consent submit needs a session", func(t *testing.T) {
		mux := newTestMux(t)
		b := &browser{mux: mux}

		rec := b.do(t, http.MethodPost, "/authorize/consent", url.Values{"result": {"Yes"}})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestLoginFailureRedisplaysForm(t *testing.T) {
	mux := newTestMux(t)
	b := &browser{mux: mux}

	b.do(t, http.MethodGet, beginQuery, nil)
	rec := b.do(t, http.MethodPost, "/authorize/login", url.Values{
		"username": {"user"},
		"password": {"wrong"},
	})
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/authorize/login?error=invalid_user" {
		t.Fatalf("status = %d, location %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = b.do(t, http.MethodGet, "/authorize/login?error=invalid_user", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "invalid_user") {
		t.Errorf("login page does not carry the error marker: status %d", rec.Code)
	}
}

func TestDecisionBranches(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantError string
	}{
		{"declined", url.Values{"result": {"No"}}, "access_denied"},
		{"absent decision", url.Values{}, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t)
			b := &browser{mux: mux}

			b.do(t, http.MethodGet, beginQuery, nil)
			b.do(t, http.MethodPost, "/authorize/login", url.Values{
				"username": {"user"},
				"password": {"secret"},
			})

			rec := b.do(t, http.MethodPost, "/authorize/consent", tt.form)
			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", rec.Code)
			}

			redirect, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatalf("redirect: %v", err)
			}
			if redirect.Host != "a" || redirect.Query().Get("error") != tt.wantError {
				t.Errorf("redirect = %q, want error=%s at the client", redirect, tt.wantError)
			}
			if redirect.Query().Get("state") != "s1" {
				t.Errorf("state not echoed: %q", redirect)
			}
		})
	}
}

func TestUnknownClientAtConsent(t *testing.T) {
	mux := newTestMux(t)
	b := &browser{mux: mux}

	b.do(t, http.MethodGet, "/authorize?response_type=code&client_id=unknown&redirect_uri=http://a&state=s1", nil)
	b.do(t, http.MethodPost, "/authorize/login", url.Values{
		"username": {"user"},
		"password": {"secret"},
	})

	rec := b.do(t, http.MethodGet, "/authorize/consent", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unauthorized_client") {
		t.Errorf("body = %s, want unauthorized_client on the generic channel", rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("unauthorized_client must not redirect, got %q", loc)
	}
}

func TestDuplicateConsentYieldsSameCode(t *testing.T) {
	mux := newTestMux(t)

	first, _ := runFlow(t, mux)
	second, _ := runFlow(t, mux)

	if first != second {
		t.Errorf("distinct codes for duplicate consent:\n%s\n%s", first, second)
	}
}
