package posts

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
)

// Repository provê acesso à tabela de posts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const postSelect = `
        SELECT p.id, p.title, p.body, p.alert_id, p.author_id,
               COALESCE(NULLIF(TRIM(a.first_name || ' ' || a.last_name), ''), a.username),
               p.status, p.featured, p.allow_comments, p.view_count,
               (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id AND c.active AND c.approved),
               p.created_at, p.updated_at, p.published_at
        FROM posts p
        JOIN accounts a ON a.id = p.author_id`

// Create insere um post; published_at é definido se já nasce publicado.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Post, error) {
	const query = `
        INSERT INTO posts (id, title, body, alert_id, author_id, status, featured, allow_comments, published_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $6 = 'published' THEN now() END)`

	_, err := r.pool.Exec(ctx, query, p.ID, p.Title, p.Body, p.AlertID, p.AuthorID, p.Status, p.Featured, p.AllowComments)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, p.ID)
}

// Get busca post pelo identificador.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	return scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
}

// IncrementViews soma uma visualização a um post publicado.
func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE posts SET view_count = view_count + 1 WHERE id = $1 AND status = 'published'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AlertExists confere o alerta de origem.
func (r *Repository) AlertExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1 AND active)`, id).Scan(&exists)
	return exists, err
}

// List lista posts; o feed usa Status = published e ordena destaques primeiro.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Post, int64, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("p.status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.Featured != nil {
		clauses = append(clauses, fmt.Sprintf("p.featured = $%d", idx))
		args = append(args, *filter.Featured)
		idx++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, fmt.Sprintf("(p.title ILIKE $%d OR p.body ILIKE $%d)", idx, idx))
		args = append(args, "%"+search+"%")
		idx++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := postSelect + where +
		fmt.Sprintf(" ORDER BY p.featured DESC, COALESCE(p.published_at, p.created_at) DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return out, total, nil
}

// Update aplica edição parcial; published_at só é definido na primeira publicação.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Post, error) {
	setParts := []string{}
	args := []any{}
	idx := 1

	add := func(column string, value any) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if input.Title != nil {
		add("title", *input.Title)
	}
	if input.Body != nil {
		add("body", *input.Body)
	}
	if input.AlertID != nil {
		add("alert_id", *input.AlertID)
	}
	if input.Featured != nil {
		add("featured", *input.Featured)
	}
	if input.AllowComments != nil {
		add("allow_comments", *input.AllowComments)
	}
	if input.Status != nil {
		add("status", *input.Status)
		setParts = append(setParts, fmt.Sprintf("published_at = CASE WHEN $%d = 'published' THEN COALESCE(published_at, now()) ELSE published_at END", idx-1))
	}

	if len(setParts) == 0 {
		return r.Get(ctx, id)
	}

	setParts = append(setParts, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d`, strings.Join(setParts, ", "), idx)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// CountByStatus conta posts; status vazio conta todos.
func (r *Repository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var total int64
	if status == "" {
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total)
		return total, err
	}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE status = $1`, status).Scan(&total)
	return total, err
}

// CountSince conta posts criados a partir de since.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE created_at >= $1`, since).Scan(&total)
	return total, err
}

// Totals devolve soma de visualizações e total de comentários ativos.
func (r *Repository) Totals(ctx context.Context) (views, comments int64, err error) {
	err = r.pool.QueryRow(ctx, `
        SELECT COALESCE((SELECT SUM(view_count) FROM posts), 0),
               (SELECT COUNT(*) FROM comments WHERE active)`).Scan(&views, &comments)
	return views, comments, err
}

// MostViewed devolve os posts publicados mais vistos.
func (r *Repository) MostViewed(ctx context.Context, limit int) ([]stats.Count, error) {
	const query = `
        SELECT id::text, title, view_count
        FROM posts
        WHERE status = 'published'
        ORDER BY view_count DESC, id ASC
        LIMIT $1`
	return r.ranking(ctx, query, limit)
}

// MostCommented devolve os posts com mais comentários ativos.
func (r *Repository) MostCommented(ctx context.Context, limit int) ([]stats.Count, error) {
	const query = `
        SELECT p.id::text, p.title, COUNT(c.id) AS total
        FROM posts p
        JOIN comments c ON c.post_id = p.id AND c.active
        GROUP BY p.id, p.title
        ORDER BY total DESC, p.id ASC
        LIMIT $1`
	return r.ranking(ctx, query, limit)
}

func (r *Repository) ranking(ctx context.Context, query string, limit int) ([]stats.Count, error) {
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Count
	for rows.Next() {
		var c stats.Count
		if err := rows.Scan(&c.Key, &c.Label, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Body,
		&p.AlertID,
		&p.AuthorID,
		&p.AuthorName,
		&p.Status,
		&p.Featured,
		&p.AllowComments,
		&p.ViewCount,
		&p.CommentCount,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.PublishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.StatusLabel = statusLabels[p.Status]
	return &p, nil
}
