package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/validation"
)

// Repository provê acesso à tabela de alertas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const alertSelect = `
        SELECT al.id, al.account_id, a.username, al.category, al.description,
               al.media_key, al.media_url, al.media_type, al.location_text, al.latitude, al.longitude,
               al.status, al.priority, al.active, al.created_at, al.updated_at
        FROM alerts al
        JOIN accounts a ON a.id = al.account_id`

// Create insere um alerta pendente.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Alert, error) {
	const query = `
        INSERT INTO alerts (id, account_id, category, description, media_key, media_url, media_type,
                            location_text, latitude, longitude, status, priority)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.AccountID,
		p.Category,
		p.Description,
		p.MediaKey,
		p.MediaURL,
		string(p.MediaType),
		p.LocationText,
		p.Latitude,
		p.Longitude,
		StatusPending,
		p.Priority,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, p.ID)
}

// Get busca alerta ativo pelo identificador.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return scanAlert(r.pool.QueryRow(ctx, alertSelect+` WHERE al.id = $1 AND al.active`, id))
}

// List lista alertas ativos e devolve também o total.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Alert, int64, error) {
	clauses := []string{"al.active"}
	args := []any{}
	idx := 1

	if filter.AccountID != nil {
		clauses = append(clauses, fmt.Sprintf("al.account_id = $%d", idx))
		args = append(args, *filter.AccountID)
		idx++
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("al.status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("al.category = $%d", idx))
		args = append(args, filter.Category)
		idx++
	}
	if filter.Priority != nil {
		clauses = append(clauses, fmt.Sprintf("al.priority = $%d", idx))
		args = append(args, *filter.Priority)
		idx++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, fmt.Sprintf("(al.description ILIKE $%d OR al.location_text ILIKE $%d OR a.username ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+search+"%")
		idx++
	}

	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM alerts al JOIN accounts a ON a.id = al.account_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := alertSelect + where + fmt.Sprintf(" ORDER BY al.priority DESC, al.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return out, total, nil
}

// Update grava status e/ou prioridade.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, status *string, priority *int) (*Alert, error) {
	setParts := []string{}
	args := []any{}
	idx := 1

	if status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", idx))
		args = append(args, *status)
		idx++
	}
	if priority != nil {
		setParts = append(setParts, fmt.Sprintf("priority = $%d", idx))
		args = append(args, *priority)
		idx++
	}
	if len(setParts) == 0 {
		return r.Get(ctx, id)
	}

	setParts = append(setParts, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE alerts SET %s WHERE id = $%d AND active`, strings.Join(setParts, ", "), idx)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Deactivate faz a exclusão lógica.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET active = false, updated_at = now() WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus conta alertas ativos; status vazio conta todos e account restringe ao cidadão.
func (r *Repository) CountByStatus(ctx context.Context, account *uuid.UUID, status string) (int64, error) {
	const query = `
        SELECT COUNT(*)
        FROM alerts
        WHERE active
          AND ($1::uuid IS NULL OR account_id = $1)
          AND ($2::text = '' OR status = $2)`
	var total int64
	err := r.pool.QueryRow(ctx, query, account, status).Scan(&total)
	return total, err
}

// CountSince conta alertas ativos criados a partir de since.
func (r *Repository) CountSince(ctx context.Context, account *uuid.UUID, since time.Time) (int64, error) {
	const query = `
        SELECT COUNT(*)
        FROM alerts
        WHERE active
          AND ($1::uuid IS NULL OR account_id = $1)
          AND created_at >= $2`
	var total int64
	err := r.pool.QueryRow(ctx, query, account, since).Scan(&total)
	return total, err
}

var groupColumns = map[string]string{
	"category": "category",
	"status":   "status",
	"priority": "priority::text",
}

// GroupBy agrupa alertas ativos por category, status ou priority; account nil agrupa todos.
func (r *Repository) GroupBy(ctx context.Context, account *uuid.UUID, field string) ([]stats.Count, error) {
	column, ok := groupColumns[field]
	if !ok {
		return nil, fmt.Errorf("alerts: agrupamento inválido %q", field)
	}
	query := fmt.Sprintf(`
        SELECT %s AS key, COUNT(*) AS total
        FROM alerts
        WHERE active AND ($1::uuid IS NULL OR account_id = $1)
        GROUP BY key
        ORDER BY total DESC, key ASC`, column)

	rows, err := r.pool.Query(ctx, query, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Count
	for rows.Next() {
		var c stats.Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanAlert(row pgx.Row) (*Alert, error) {
	var (
		a         Alert
		mediaType string
	)
	err := row.Scan(
		&a.ID,
		&a.AccountID,
		&a.Username,
		&a.Category,
		&a.Description,
		&a.MediaKey,
		&a.MediaURL,
		&mediaType,
		&a.LocationText,
		&a.Latitude,
		&a.Longitude,
		&a.Status,
		&a.Priority,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.MediaType = validation.MediaType(mediaType)
	return a.labels(), nil
}
