package comments

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

// Repository provê acesso à tabela de comentários.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const commentSelect = `
        SELECT c.id, c.post_id, p.title, c.account_id, a.username,
               COALESCE(NULLIF(TRIM(CONCAT_WS(' ', a.first_name, a.last_name)), ''), a.username),
               c.body, c.parent_id, c.approved, c.active, c.created_at, c.updated_at
        FROM comments c
        JOIN posts p ON p.id = c.post_id
        JOIN accounts a ON a.id = c.account_id`

// PostInfo busca status e allow_comments do post.
func (r *Repository) PostInfo(ctx context.Context, postID uuid.UUID) (*PostInfo, error) {
	var info PostInfo
	err := r.pool.QueryRow(ctx, `SELECT status, allow_comments FROM posts WHERE id = $1`, postID).
		Scan(&info.Status, &info.AllowComments)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &info, nil
}

// Create insere um comentário aprovado e ativo.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Comment, error) {
	const query = `
        INSERT INTO comments (id, post_id, account_id, body, parent_id)
        VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, query, p.ID, p.PostID, p.AccountID, p.Body, p.ParentID); err != nil {
		return nil, err
	}
	return r.Get(ctx, p.ID)
}

// Get busca o comentário em qualquer estado.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
}

// ListTopLevel lista comentários raiz visíveis de um post, mais antigos primeiro.
func (r *Repository) ListTopLevel(ctx context.Context, postID uuid.UUID, limit, offset int) ([]Comment, int64, error) {
	const where = ` WHERE c.post_id = $1 AND c.parent_id IS NULL AND c.active AND c.approved`

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments c`+where, postID).Scan(&total); err != nil {
		return nil, 0, err
	}

	out, err := r.query(ctx, commentSelect+where+` ORDER BY c.created_at ASC, c.id ASC LIMIT $2 OFFSET $3`, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Replies lista respostas visíveis dos comentários informados.
func (r *Repository) Replies(ctx context.Context, parentIDs []uuid.UUID) ([]Comment, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx, commentSelect+`
        WHERE c.parent_id = ANY($1) AND c.active AND c.approved
        ORDER BY c.created_at ASC, c.id ASC`, parentIDs)
}

// List lista comentários para moderação.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Comment, int64, error) {
	clauses := []string{}
	args := []any{}
	idx := 1

	if filter.PostID != nil {
		clauses = append(clauses, fmt.Sprintf("c.post_id = $%d", idx))
		args = append(args, *filter.PostID)
		idx++
	}
	if filter.Approved != nil {
		clauses = append(clauses, fmt.Sprintf("c.approved = $%d", idx))
		args = append(args, *filter.Approved)
		idx++
	}
	if filter.Active != nil {
		clauses = append(clauses, fmt.Sprintf("c.active = $%d", idx))
		args = append(args, *filter.Active)
		idx++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, fmt.Sprintf("(c.body ILIKE $%d OR a.username ILIKE $%d OR p.title ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+search+"%")
		idx++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM comments c JOIN posts p ON p.id = c.post_id JOIN accounts a ON a.id = c.account_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := commentSelect + where + fmt.Sprintf(" ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, max(filter.Offset, 0))

	out, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateBody grava o novo texto.
func (r *Repository) UpdateBody(ctx context.Context, id uuid.UUID, body string) (*Comment, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE comments SET body = $1, updated_at = now() WHERE id = $2 AND active`, body, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// SetFlags altera approved e active.
func (r *Repository) SetFlags(ctx context.Context, id uuid.UUID, flags Flags) (*Comment, error) {
	setParts := []string{}
	args := []any{}
	idx := 1

	if flags.Approved != nil {
		setParts = append(setParts, fmt.Sprintf("approved = $%d", idx))
		args = append(args, *flags.Approved)
		idx++
	}
	if flags.Active != nil {
		setParts = append(setParts, fmt.Sprintf("active = $%d", idx))
		args = append(args, *flags.Active)
		idx++
	}
	if len(setParts) == 0 {
		return r.Get(ctx, id)
	}

	setParts = append(setParts, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE comments SET %s WHERE id = $%d`, strings.Join(setParts, ", "), idx)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Count conta comentários; flags nulas não filtram.
func (r *Repository) Count(ctx context.Context, approved, active *bool) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM comments
        WHERE ($1::boolean IS NULL OR approved = $1)
          AND ($2::boolean IS NULL OR active = $2)`, approved, active).Scan(&total)
	return total, err
}

// CountSince conta comentários criados a partir de since.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE created_at >= $1`, since).Scan(&total)
	return total, err
}

// TopUsers ranqueia autores por comentários visíveis.
func (r *Repository) TopUsers(ctx context.Context, limit int) ([]stats.Count, error) {
	const query = `
        SELECT a.username, a.username, COUNT(*) AS total
        FROM comments c
        JOIN accounts a ON a.id = c.account_id
        WHERE c.active AND c.approved
        GROUP BY a.username
        ORDER BY total DESC, a.username ASC
        LIMIT $1`
	return r.ranking(ctx, query, limit)
}

// TopPosts ranqueia posts por comentários visíveis.
func (r *Repository) TopPosts(ctx context.Context, limit int) ([]stats.Count, error) {
	const query = `
        SELECT p.id::text, p.title, COUNT(*) AS total
        FROM comments c
        JOIN posts p ON p.id = c.post_id
        WHERE c.active AND c.approved
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

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.PostTitle,
		&c.AccountID,
		&c.Username,
		&c.AuthorName,
		&c.Body,
		&c.ParentID,
		&c.Approved,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
