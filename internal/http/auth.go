package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gestaozabele/floripa/internal/accounts"
	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/http/respond"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/service"
)

const refreshCookie = "floripa_refresh"

type accountView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	FullName  string     `json:"full_name"`
	IsAdmin   bool       `json:"is_admin"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func newAccountView(a *repo.Account) accountView {
	return accountView{
		ID:        a.ID.String(),
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		FullName:  a.FullName(),
		IsAdmin:   a.IsAdmin,
		LastLogin: a.LastLogin,
	}
}

// Login autentica por username ou email.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Login    string `json:"login"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		respond.Validation(w, err)
		return
	}

	login := strings.TrimSpace(payload.Login)
	if login == "" {
		login = strings.TrimSpace(payload.Username)
	}
	if login == "" || payload.Password == "" {
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "usuário e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), login, payload.Password)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Refresh aceita o token pelo cookie ou pelo corpo.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshFromRequest(r)
	if token == "" {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := refreshFromRequest(r); token != "" {
		if err := h.authService.Logout(r.Context(), token); err != nil {
			respond.Internal(w, r, err)
			return
		}
	}
	h.clearRefreshCookie(w)
	respond.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me devolve conta, papéis e perfil (quando existir).
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := httpmiddleware.SubjectID(r.Context())
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	account, roles, err := h.authService.Me(r.Context(), subject)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}

	out := map[string]any{
		"account": newAccountView(account),
		"roles":   roles,
		"profile": nil,
	}
	profile, err := h.accounts.Me(r.Context(), subject)
	switch {
	case err == nil:
		out["profile"] = profile
	case errors.Is(err, accounts.ErrNotFound):
	default:
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrRefreshInvalid):
		respond.Error(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
	case errors.Is(err, service.ErrAccountDisabled):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, http.StatusUnauthorized, "AUTH", "conta não encontrada", nil)
	default:
		respond.Internal(w, r, err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	respond.JSON(w, http.StatusOK, map[string]any{
		"access_token":  result.AccessToken,
		"expires_at":    result.AccessExpiry,
		"refresh_token": result.RefreshToken,
		"account":       newAccountView(result.Account),
		"roles":         result.Roles,
	})
}

func refreshFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := respond.Decode(r, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.RefreshToken)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, h.cookie(token, expires, 0))
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie("", time.Time{}, -1))
}

func (h *Handler) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/auth",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: sameSite,
	}
}
