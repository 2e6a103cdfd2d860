package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gestaozabele/floripa/internal/auth"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyAudience contextKey = "audience"
	ContextKeyRoles    contextKey = "roles"
	ContextKeyUsername contextKey = "username"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(strings.TrimSpace(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			if len(claims.Audience) == 0 {
				writeError(w, http.StatusUnauthorized, "AUTH", "audience inválida")
				return
			}

			ctx := WithClaims(r.Context(), claims.Subject, claims.Audience[0], claims.Username, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims injeta identidade autenticada no contexto.
func WithClaims(ctx context.Context, subject, audience, username string, roles []string) context.Context {
	ctx = context.WithValue(ctx, ContextKeySubject, subject)
	ctx = context.WithValue(ctx, ContextKeyAudience, audience)
	ctx = context.WithValue(ctx, ContextKeyUsername, username)
	return context.WithValue(ctx, ContextKeyRoles, roles)
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// SubjectID converte o subject autenticado em UUID.
func SubjectID(ctx context.Context) (uuid.UUID, error) {
	subject := GetSubject(ctx)
	if subject == "" {
		return uuid.Nil, errors.New("subject ausente")
	}
	return uuid.Parse(subject)
}

// GetAudience recupera audience do contexto.
func GetAudience(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyAudience).(string)
	return val
}

// GetUsername recupera username do contexto.
func GetUsername(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyUsername).(string)
	return val
}

// GetRoles recupera roles do contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

// IsAdmin indica se o usuário autenticado é administrador.
func IsAdmin(ctx context.Context) bool {
	return auth.HasRole(GetRoles(ctx), auth.RoleAdmin)
}

// RequireAdmin garante papel de administrador.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSubject(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
			return
		}
		if !IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito a administradores")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
