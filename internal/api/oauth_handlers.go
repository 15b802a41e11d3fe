package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/andyleap/authd/internal/models"
	"github.com/andyleap/authd/internal/oauth"
	"github.com/andyleap/authd/internal/storage"
	"github.com/andyleap/authd/internal/ui"
)

const sessionCookie = "auth_session"

// OAuthHandlers serves the browser side of the authorization flow. The
// session cookie is scoped to /authorize so the flow state never rides
// along on other endpoints.
type OAuthHandlers struct {
	service    *oauth.Service
	sessions   storage.SessionStore
	renderer   *ui.Renderer
	sessionTTL time.Duration
}

func NewOAuthHandlers(service *oauth.Service, sessions storage.SessionStore, renderer *ui.Renderer, sessionTTL time.Duration) *OAuthHandlers {
	return &OAuthHandlers{
		service:    service,
		sessions:   sessions,
		renderer:   renderer,
		sessionTTL: sessionTTL,
	}
}

// session returns the request's live session, or nil.
func (h *OAuthHandlers) session(r *http.Request) *models.Session {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}

	sess, err := h.sessions.GetSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("Session lookup failed", "error", err)
		return nil
	}
	return sess
}

func (h *OAuthHandlers) newSession(w http.ResponseWriter) *models.Session {
	sess := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(h.sessionTTL),
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/authorize",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return sess
}

func (h *OAuthHandlers) saveSession(w http.ResponseWriter, r *http.Request, sess *models.Session) bool {
	if err := h.sessions.SaveSession(r.Context(), sess); err != nil {
		slog.Error("Failed to save session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}
	return true
}

// AuthorizeHandler starts the flow.
// GET /authorize?response_type=code&client_id=...&redirect_uri=...&state=...
func (h *OAuthHandlers) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := oauth.BeginRequest{
		ResponseType: query.Get("response_type"),
		ClientID:     query.Get("client_id"),
		RedirectURI:  query.Get("redirect_uri"),
		State:        query.Get("state"),
	}

	sess := h.session(r)
	if sess == nil {
		sess = h.newSession(w)
	}

	if err := h.service.BeginAuthorization(sess, req); err != nil {
		var paramErr *oauth.ParamError
		if errors.As(err, &paramErr) {
			// No trustworthy redirect target exists yet; the error is
			// rendered in place, naming the offending parameter.
			h.renderErrorPage(w, http.StatusBadRequest, "Invalid Request", "Invalid parameter: "+paramErr.Param)
			return
		}
		slog.Error("Authorization request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !h.saveSession(w, r, sess) {
		return
	}

	http.Redirect(w, r, "/authorize/login", http.StatusFound)
}

// LoginPageHandler renders the login form.
// GET /authorize/login
func (h *OAuthHandlers) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil || sess.OAuth2 == nil {
		http.Error(w, "No authorization in progress", http.StatusForbidden)
		return
	}

	// Already signed in, nothing to ask.
	if sess.Username != "" {
		http.Redirect(w, r, "/authorize/consent", http.StatusFound)
		return
	}

	if err := h.renderer.RenderLogin(w, ui.LoginData{Error: r.URL.Query().Get("error")}); err != nil {
		slog.Error("Failed to render login page", "error", err)
	}
}

// LoginSubmitHandler checks the owner's credentials.
// POST /authorize/login
func (h *OAuthHandlers) LoginSubmitHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		http.Error(w, "No authorization in progress", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form body", http.StatusBadRequest)
		return
	}

	err := h.service.Login(r.Context(), sess, r.PostFormValue("username"), r.PostFormValue("password"))
	switch {
	case errors.Is(err, oauth.ErrNoAuthorization):
		http.Error(w, "No authorization in progress", http.StatusForbidden)
		return
	case errors.Is(err, oauth.ErrInvalidUser):
		http.Redirect(w, r, "/authorize/login?error=invalid_user", http.StatusFound)
		return
	case err != nil:
		slog.Error("Login failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !h.saveSession(w, r, sess) {
		return
	}

	http.Redirect(w, r, "/authorize/consent", http.StatusFound)
}

// ConsentPageHandler renders the consent form for the requesting
// client.
// GET /authorize/consent
func (h *OAuthHandlers) ConsentPageHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		http.Error(w, "No authorization in progress", http.StatusForbidden)
		return
	}

	client, err := h.service.Consent(sess)
	if err != nil {
		h.deliverFlowError(w, r, err)
		return
	}

	if err := h.renderer.RenderConsent(w, ui.ConsentData{ClientName: client.Name}); err != nil {
		slog.Error("Failed to render consent page", "error", err)
	}
}

// ConsentSubmitHandler finalizes the flow with the owner's decision.
// POST /authorize/consent
func (h *OAuthHandlers) ConsentSubmitHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if sess == nil {
		http.Error(w, "No authorization in progress", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form body", http.StatusBadRequest)
		return
	}

	redirect, err := h.service.FinalizeConsent(r.Context(), sess, r.PostFormValue("result"))
	if err != nil {
		h.deliverFlowError(w, r, err)
		return
	}

	if !h.saveSession(w, r, sess) {
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

// deliverFlowError routes a flow failure to the right channel: a 302 to
// the client when the redirect target is trusted, an inline error page
// or plain rejection otherwise.
func (h *OAuthHandlers) deliverFlowError(w http.ResponseWriter, r *http.Request, err error) {
	var redirectErr *oauth.RedirectError
	if errors.As(err, &redirectErr) {
		if redirectErr.Code == "server_error" {
			slog.Error("Flow failed", "error", redirectErr)
		}
		http.Redirect(w, r, redirectErr.ErrorRedirectURL(), http.StatusFound)
		return
	}

	switch {
	case errors.Is(err, oauth.ErrNoAuthorization):
		http.Error(w, "No authorization in progress", http.StatusForbidden)
	case errors.Is(err, oauth.ErrAuthenticationRequired):
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	default:
		var flowErr *oauth.FlowError
		if errors.As(err, &flowErr) {
			if flowErr.Code == "server_error" {
				slog.Error("Flow failed", "error", flowErr)
			}
			h.renderErrorPage(w, flowErr.Status, "Authorization Failed", flowErr.Code)
			return
		}
		slog.Error("Flow failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *OAuthHandlers) renderErrorPage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.RenderError(w, ui.ErrorData{Title: title, Detail: detail}); err != nil {
		slog.Error("Failed to render error page", "error", err)
	}
}
