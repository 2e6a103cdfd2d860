package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/floripa/internal/db"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/validation"
)

// Repository provê acesso às tabelas de perfis e contas.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileSelect = `
        SELECT p.id, p.account_id, a.username, a.email, a.first_name, a.last_name,
               p.cpf, p.birth_date, p.phone, p.address_text, p.neighborhood, p.postal_code,
               p.active, p.created_at, p.updated_at
        FROM profiles p
        JOIN accounts a ON a.id = p.account_id`

// Register cria conta e perfil na mesma transação.
func (r *Repository) Register(ctx context.Context, account repo.CreateAccountParams, profile CreateProfileParams) (*Profile, error) {
	var created *Profile
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		acct, err := repo.New(tx).CreateAccount(ctx, account)
		if err != nil {
			return err
		}

		profile.AccountID = acct.ID
		if err := insertProfile(ctx, tx, profile); err != nil {
			return err
		}

		created, err = scanProfile(tx.QueryRow(ctx, profileSelect+` WHERE p.id = $1`, profile.ID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateProfile adiciona perfil a uma conta existente (uso do CLI).
func (r *Repository) CreateProfile(ctx context.Context, profile CreateProfileParams) (*Profile, error) {
	if err := insertProfile(ctx, r.pool, profile); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, profile.ID)
}

func insertProfile(ctx context.Context, q repo.DBTX, p CreateProfileParams) error {
	const query = `
        INSERT INTO profiles (id, account_id, cpf, birth_date, phone, address_text, neighborhood, postal_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := q.Exec(ctx, query,
		p.ID,
		p.AccountID,
		p.CPF,
		p.BirthDate,
		p.Phone,
		strings.TrimSpace(p.AddressText),
		p.Neighborhood,
		p.PostalCode,
	)
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case "profiles_account_id_key":
			return ErrProfileExists
		default:
			return ErrCPFTaken
		}
	}
	return err
}

// CPFExists indica se o CPF já pertence a algum perfil, ativo ou não.
func (r *Repository) CPFExists(ctx context.Context, cpf string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE cpf = $1)`, cpf).Scan(&exists)
	return exists, err
}

// GetByID busca perfil pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, profileSelect+` WHERE p.id = $1`, id))
}

// GetByAccount busca o perfil da conta.
func (r *Repository) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, profileSelect+` WHERE p.account_id = $1`, accountID))
}

// GetByCPF busca perfil pelo CPF (somente dígitos).
func (r *Repository) GetByCPF(ctx context.Context, cpf string) (*Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, profileSelect+` WHERE p.cpf = $1`, cpf))
}

// UpdateProfile aplica edição parcial no perfil e na conta.
func (r *Repository) UpdateProfile(ctx context.Context, input UpdateProfileParams) (*Profile, error) {
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		setParts := []string{}
		args := []any{}
		idx := 1

		add := func(column string, value any) {
			setParts = append(setParts, fmt.Sprintf("%s = $%d", column, idx))
			args = append(args, value)
			idx++
		}

		if input.BirthDate != nil {
			add("birth_date", *input.BirthDate)
		}
		if input.Phone != nil {
			add("phone", *input.Phone)
		}
		if input.AddressText != nil {
			add("address_text", strings.TrimSpace(*input.AddressText))
		}
		if input.Neighborhood != nil {
			add("neighborhood", *input.Neighborhood)
		}
		if input.PostalCode != nil {
			add("postal_code", *input.PostalCode)
		}

		if len(setParts) > 0 {
			setParts = append(setParts, "updated_at = now()")
			args = append(args, input.AccountID)
			query := fmt.Sprintf(`UPDATE profiles SET %s WHERE account_id = $%d`, strings.Join(setParts, ", "), idx)
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}

		if input.FirstName != nil || input.LastName != nil {
			const query = `
        UPDATE accounts
        SET first_name = COALESCE($1, first_name), last_name = COALESCE($2, last_name)
        WHERE id = $3`
			if _, err := tx.Exec(ctx, query, trimPtr(input.FirstName), trimPtr(input.LastName), input.AccountID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByAccount(ctx, input.AccountID)
}

// SetActive altera o flag active do perfil.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Profile, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET active = $1, updated_at = now() WHERE id = $2`, active, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// List lista perfis com filtros e devolve também o total.
func (r *Repository) List(ctx context.Context, filter ProfileFilter) ([]Profile, int64, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		cond := fmt.Sprintf("(LOWER(a.first_name) LIKE $%d OR LOWER(a.last_name) LIKE $%d OR LOWER(a.username) LIKE $%d OR p.cpf LIKE $%d", idx, idx, idx, idx)
		args = append(args, like)
		idx++
		if digits := validation.OnlyDigits(search); digits != "" {
			cond += fmt.Sprintf(" OR p.cpf LIKE $%d", idx)
			args = append(args, "%"+digits+"%")
			idx++
		}
		clauses = append(clauses, cond+")")
	}
	if n := strings.TrimSpace(filter.Neighborhood); n != "" {
		clauses = append(clauses, fmt.Sprintf("p.neighborhood ILIKE $%d", idx))
		args = append(args, "%"+n+"%")
		idx++
	}
	if filter.Active != nil {
		clauses = append(clauses, fmt.Sprintf("p.active = $%d", idx))
		args = append(args, *filter.Active)
		idx++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM profiles p JOIN accounts a ON a.id = p.account_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := profileSelect + where + fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, *p)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return profiles, total, nil
}

// CountAccounts conta contas de cidadãos.
func (r *Repository) CountAccounts(ctx context.Context) (int64, error) {
	return repo.New(r.pool).CountAccounts(ctx)
}

// CountProfiles conta perfis, opcionalmente filtrando por active.
func (r *Repository) CountProfiles(ctx context.Context, active *bool) (int64, error) {
	var total int64
	if active == nil {
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&total)
		return total, err
	}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE active = $1`, *active).Scan(&total)
	return total, err
}

// TopNeighborhoods agrupa perfis ativos por bairro.
func (r *Repository) TopNeighborhoods(ctx context.Context, limit int) ([]stats.Count, error) {
	const query = `
        SELECT neighborhood, COUNT(*) AS total
        FROM profiles
        WHERE active AND neighborhood <> ''
        GROUP BY neighborhood
        ORDER BY total DESC, neighborhood ASC
        LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collectCounts(rows)
}

// RegistrationTimes devolve created_at dos perfis criados desde since.
func (r *Repository) RegistrationTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	return r.collectTimes(ctx, `SELECT created_at FROM profiles WHERE created_at >= $1`, since)
}

// ActiveBirthDates devolve datas de nascimento dos perfis ativos.
func (r *Repository) ActiveBirthDates(ctx context.Context) ([]time.Time, error) {
	return r.collectTimes(ctx, `SELECT birth_date FROM profiles WHERE active`)
}

func (r *Repository) collectTimes(ctx context.Context, query string, args ...any) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func collectCounts(rows pgx.Rows) ([]stats.Count, error) {
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

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Username,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.CPF,
		&p.BirthDate,
		&p.Phone,
		&p.AddressText,
		&p.Neighborhood,
		&p.PostalCode,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

