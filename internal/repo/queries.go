package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gestaozabele/floripa/internal/db"
)

// DBTX é satisfeito por *pgxpool.Pool e pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries concentra o acesso às tabelas de contas e sessões.
type Queries struct {
	db DBTX
}

// New cria Queries sobre pool ou transação.
func New(conn DBTX) *Queries {
	return &Queries{db: conn}
}

// WithTx devolve cópia ligada à transação informada.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const accountColumns = `id, username, email, first_name, last_name, password_hash, is_admin, active, created_at, last_login`

// CreateAccount insere uma conta. Username/email repetidos retornam ErrDuplicate.
func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (*Account, error) {
	query := `
        INSERT INTO accounts (id, username, email, first_name, last_name, password_hash, is_admin)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + accountColumns

	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.Username,
		strings.ToLower(arg.Email),
		arg.FirstName,
		arg.LastName,
		arg.PasswordHash,
		arg.IsAdmin,
	)
	account, err := scanAccount(row)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return account, nil
}

// GetAccountByID busca conta pelo identificador.
func (q *Queries) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetAccountByLogin busca por username ou email (sem diferenciar maiúsculas).
func (q *Queries) GetAccountByLogin(ctx context.Context, login string) (*Account, error) {
	const query = `SELECT ` + accountColumns + `
        FROM accounts
        WHERE lower(username) = lower($1) OR lower(email) = lower($1)
        LIMIT 1`
	row := q.db.QueryRow(ctx, query, strings.TrimSpace(login))
	return scanAccount(row)
}

// SetAccountAdmin promove ou rebaixa uma conta.
func (q *Queries) SetAccountAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET is_admin = $2 WHERE id = $1`, id, isAdmin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin registra o último acesso.
func (q *Queries) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE accounts SET last_login = now() WHERE id = $1`, id)
	return err
}

// CountAccounts retorna o total de contas de cidadãos (não administradores).
func (q *Queries) CountAccounts(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM accounts WHERE NOT is_admin`).Scan(&total)
	return total, err
}

// InsertRefreshToken persiste um novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (*RefreshToken, error) {
	const query = `
        INSERT INTO refresh_tokens (id, subject, audience, token_hash, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, subject, audience, token_hash, expires_at, created_at, revoked`
	row := q.db.QueryRow(ctx, query, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.ExpiresAt, arg.CreatedAt)
	return scanRefresh(row)
}

// GetRefreshToken busca refresh token pelo hash.
func (q *Queries) GetRefreshToken(ctx context.Context, hash string) (*RefreshToken, error) {
	const query = `
        SELECT id, subject, audience, token_hash, expires_at, created_at, revoked
        FROM refresh_tokens
        WHERE token_hash = $1`
	return scanRefresh(q.db.QueryRow(ctx, query, hash))
}

// RevokeRefreshToken marca o token como revogado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, hash string) error {
	tag, err := q.db.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token_hash = $1 AND NOT revoked`, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateOtherRefreshTokens revoga as demais sessões do subject na audience.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	const query = `
        UPDATE refresh_tokens
        SET revoked = true
        WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND NOT revoked`
	_, err := q.db.Exec(ctx, query, subject, audience, keepHash)
	return err
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.IsAdmin, &a.Active, &a.CreatedAt, &a.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanRefresh(row pgx.Row) (*RefreshToken, error) {
	var t RefreshToken
	if err := row.Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
