package repo

import (
	"time"

	"github.com/google/uuid"
)

// Account representa a conta de acesso de um cidadão ou administrador.
type Account struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash string     `json:"-"`
	IsAdmin      bool       `json:"is_admin"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// FullName junta nome e sobrenome, caindo para o username.
func (a Account) FullName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.Username
	}
}

// CreateAccountParams agrupa campos de criação de conta.
type CreateAccountParams struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsAdmin      bool
}

// RefreshToken modela tabela de refresh tokens.
type RefreshToken struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// InsertRefreshTokenParams agrupa campos de um novo refresh token.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
