package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/andyleap/authd/internal/oauth"
)

// TokenHandlers serves the back-channel token endpoint. No session or
// cookie is involved; the presented code and client identity are the
// only authentication.
type TokenHandlers struct {
	service *oauth.Service
}

func NewTokenHandlers(service *oauth.Service) *TokenHandlers {
	return &TokenHandlers{
		service: service,
	}
}

// TokenHandler exchanges an authorization code for an access token.
// POST /token (application/x-www-form-urlencoded)
func (h *TokenHandlers) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req := oauth.ExchangeRequest{
		GrantType:   r.PostFormValue("grant_type"),
		Code:        r.PostFormValue("code"),
		RedirectURI: r.PostFormValue("redirect_uri"),
		ClientID:    r.PostFormValue("client_id"),
	}

	tok, err := h.service.Exchange(r.Context(), req)
	if err != nil {
		var flowErr *oauth.FlowError
		if errors.As(err, &flowErr) {
			if flowErr.Code == "server_error" {
				// The cause stays in the logs; the caller only sees the
				// error code.
				slog.Error("Token exchange failed", "error", flowErr)
			}
			writeTokenError(w, flowErr.Status, flowErr.Code)
			return
		}
		slog.Error("Token exchange failed", "error", err)
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tok)
}

func writeTokenError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code})
}
