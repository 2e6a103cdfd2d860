package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/auth"
	"github.com/gestaozabele/floripa/internal/cache"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/util"
	"github.com/gestaozabele/floripa/internal/validation"
)

const (
	statsCacheKey    = "stats:profiles"
	topNeighborhoods = 10
	maxExportRows    = 10000
)

type profileRepository interface {
	Register(ctx context.Context, account repo.CreateAccountParams, profile CreateProfileParams) (*Profile, error)
	CPFExists(ctx context.Context, cpf string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	GetByCPF(ctx context.Context, cpf string) (*Profile, error)
	UpdateProfile(ctx context.Context, input UpdateProfileParams) (*Profile, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Profile, error)
	List(ctx context.Context, filter ProfileFilter) ([]Profile, int64, error)
	CountAccounts(ctx context.Context) (int64, error)
	CountProfiles(ctx context.Context, active *bool) (int64, error)
	TopNeighborhoods(ctx context.Context, limit int) ([]stats.Count, error)
	RegistrationTimes(ctx context.Context, since time.Time) ([]time.Time, error)
	ActiveBirthDates(ctx context.Context) ([]time.Time, error)
}

// Service reúne as regras de cadastro e consulta de perfis.
type Service struct {
	repo     profileRepository
	redis    *redis.Client
	lookup   AddressLookup
	loc      *time.Location
	cacheTTL time.Duration
	now      func() time.Time
}

// Option ajusta dependências opcionais do serviço.
type Option func(*Service)

// WithAddressLookup habilita a consulta de endereço por CEP.
func WithAddressLookup(l AddressLookup) Option {
	return func(s *Service) { s.lookup = l }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService cria o serviço de perfis.
func NewService(r profileRepository, redisClient *redis.Client, loc *time.Location, cacheTTL time.Duration, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{repo: r, redis: redisClient, loc: loc, cacheTTL: cacheTTL, now: util.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

// Register cria conta de cidadão e perfil de forma atômica.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Profile, error) {
	username, err := validation.Username(input.Username)
	if err != nil {
		return nil, err
	}
	email, err := validation.Email(input.Email)
	if err != nil {
		return nil, err
	}
	if err := validation.Password(input.Password, input.PasswordConfirm); err != nil {
		return nil, err
	}
	if err := validation.Required(input.FirstName, "first_name"); err != nil {
		return nil, err
	}

	cpf, err := validation.CPF(input.CPF)
	if err != nil {
		return nil, err
	}
	birth, err := s.parseBirthDate(input.BirthDate)
	if err != nil {
		return nil, err
	}
	phone, err := validation.Phone(input.Phone)
	if err != nil {
		return nil, err
	}
	neighborhood, err := validation.Neighborhood(input.Neighborhood)
	if err != nil {
		return nil, err
	}
	postal, err := validation.CEP(input.PostalCode)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.CPFExists(ctx, cpf)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCPFTaken
	}

	hash, err := auth.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.Register(ctx,
		repo.CreateAccountParams{
			ID:           uuid.New(),
			Username:     username,
			Email:        email,
			FirstName:    strings.TrimSpace(input.FirstName),
			LastName:     strings.TrimSpace(input.LastName),
			PasswordHash: hash,
		},
		CreateProfileParams{
			ID:           uuid.New(),
			CPF:          cpf,
			BirthDate:    birth,
			Phone:        phone,
			AddressText:  input.AddressText,
			Neighborhood: neighborhood,
			PostalCode:   postal,
		},
	)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrAccountTaken
		}
		return nil, err
	}

	s.forgetStats(ctx)
	log.Info().Str("account_id", profile.AccountID.String()).Str("neighborhood", profile.Neighborhood).Msg("perfil cadastrado")
	return s.decorate(profile), nil
}

// Me devolve o perfil da conta autenticada.
func (s *Service) Me(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.decorate(p), nil
}

// UpdateProfile aplica edição parcial; CPF é imutável.
func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, input UpdateProfileInput) (*Profile, error) {
	current, err := s.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if input.CPF != nil && validation.OnlyDigits(*input.CPF) != current.CPF {
		return nil, validation.New("cpf", ErrCPFImmutable.Error())
	}

	params := UpdateProfileParams{
		AccountID:   accountID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		AddressText: input.AddressText,
	}
	if input.FirstName != nil {
		if err := validation.Required(*input.FirstName, "first_name"); err != nil {
			return nil, err
		}
	}
	if input.BirthDate != nil {
		birth, err := s.parseBirthDate(*input.BirthDate)
		if err != nil {
			return nil, err
		}
		params.BirthDate = &birth
	}
	if input.Phone != nil {
		phone, err := validation.Phone(*input.Phone)
		if err != nil {
			return nil, err
		}
		params.Phone = &phone
	}
	if input.Neighborhood != nil {
		n, err := validation.Neighborhood(*input.Neighborhood)
		if err != nil {
			return nil, err
		}
		params.Neighborhood = &n
	}
	if input.PostalCode != nil {
		cep, err := validation.CEP(*input.PostalCode)
		if err != nil {
			return nil, err
		}
		params.PostalCode = &cep
	}

	updated, err := s.repo.UpdateProfile(ctx, params)
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	return s.decorate(updated), nil
}

// Deactivate desativa o perfil do próprio cidadão.
func (s *Service) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	p, err := s.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := s.repo.SetActive(ctx, p.ID, false); err != nil {
		return err
	}
	s.forgetStats(ctx)
	return nil
}

// Reactivate reativa um perfil desativado.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Active {
		return nil, ErrAlreadyActive
	}
	updated, err := s.repo.SetActive(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	return s.decorate(updated), nil
}

// ReactivateByCPF reativa pelo CPF (uso operacional).
func (s *Service) ReactivateByCPF(ctx context.Context, raw string) (*Profile, error) {
	cpf, err := validation.CPF(raw)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByCPF(ctx, cpf)
	if err != nil {
		return nil, err
	}
	return s.Reactivate(ctx, p.ID)
}

// List lista perfis para a administração.
func (s *Service) List(ctx context.Context, filter ProfileFilter) ([]Profile, int64, error) {
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range profiles {
		s.decorate(&profiles[i])
	}
	return profiles, total, nil
}

// Export lista até maxExportRows perfis para a planilha.
func (s *Service) Export(ctx context.Context, filter ProfileFilter) ([]Profile, error) {
	filter.Limit = maxExportRows
	filter.Offset = 0
	profiles, _, err := s.List(ctx, filter)
	return profiles, err
}

// Stats calcula (ou lê do cache) as estatísticas do cadastro.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cache.Remember(ctx, s.redis, statsCacheKey, s.cacheTTL, s.computeStats)
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	now := s.now()
	windows := stats.NewWindows(now, s.loc)

	users, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountProfiles(ctx, nil)
	if err != nil {
		return nil, err
	}
	active := true
	activeTotal, err := s.repo.CountProfiles(ctx, &active)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopNeighborhoods(ctx, topNeighborhoods)
	if err != nil {
		return nil, err
	}
	registrations, err := s.repo.RegistrationTimes(ctx, windows.SixMonths)
	if err != nil {
		return nil, err
	}
	births, err := s.repo.ActiveBirthDates(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalUsers:           users,
		TotalProfiles:        total,
		ActiveProfiles:       activeTotal,
		InactiveProfiles:     total - activeTotal,
		CompletionRate:       stats.CompletionRate(total, users),
		TopNeighborhoods:     stats.TopN(top, topNeighborhoods),
		MonthlyRegistrations: stats.GroupByMonth(registrations, windows.SixMonths, s.loc),
		AgeDistribution:      stats.AgeDistribution(births, s.today()),
		GeneratedAt:          now,
	}, nil
}

// CheckCPF valida o CPF e informa se ainda está disponível.
func (s *Service) CheckCPF(ctx context.Context, raw string) (*CPFCheck, error) {
	cpf, err := validation.CPF(raw)
	if err != nil {
		verr, _ := validation.AsValidation(err)
		return &CPFCheck{Message: verr.Message}, nil
	}
	exists, err := s.repo.CPFExists(ctx, cpf)
	if err != nil {
		return nil, err
	}
	out := &CPFCheck{Valid: true, Available: !exists, Formatted: validation.FormatCPF(cpf), Message: "CPF válido."}
	if exists {
		out.Message = ErrCPFTaken.Error()
	}
	return out, nil
}

// CheckPhone valida o telefone.
func (s *Service) CheckPhone(raw string) *FieldCheck {
	if strings.TrimSpace(raw) == "" {
		return &FieldCheck{Message: "Telefone é obrigatório."}
	}
	phone, err := validation.Phone(raw)
	if err != nil {
		verr, _ := validation.AsValidation(err)
		return &FieldCheck{Message: verr.Message}
	}
	return &FieldCheck{Valid: true, Formatted: validation.FormatPhone(phone), Message: "Telefone válido."}
}

// CheckCEP valida o CEP e, se habilitado, consulta o endereço.
func (s *Service) CheckCEP(ctx context.Context, raw string) *FieldCheck {
	if strings.TrimSpace(raw) == "" {
		return &FieldCheck{Message: "CEP é obrigatório."}
	}
	cep, err := validation.CEP(raw)
	if err != nil {
		verr, _ := validation.AsValidation(err)
		return &FieldCheck{Message: verr.Message}
	}
	out := &FieldCheck{Valid: true, Formatted: validation.FormatCEP(cep), Message: "CEP válido."}
	if s.lookup == nil {
		return out
	}

	addr, err := s.lookup.Lookup(ctx, cep)
	switch {
	case errors.Is(err, ErrCEPNotFound):
		out.Valid = false
		out.Message = ErrCEPNotFound.Error()
	case err != nil:
		log.Warn().Err(err).Str("cep", cep).Msg("consulta de CEP falhou")
	default:
		addr.PostalCode = out.Formatted
		out.Address = addr
	}
	return out
}

func (s *Service) parseBirthDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validation.BirthDate(time.Time{}, s.today())
	}
	birth, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		return time.Time{}, validation.New("birth_date", "Data de nascimento inválida.")
	}
	if err := validation.BirthDate(birth, s.today()); err != nil {
		return time.Time{}, err
	}
	return birth, nil
}

func (s *Service) decorate(p *Profile) *Profile {
	p.FullName = repo.Account{Username: p.Username, FirstName: p.FirstName, LastName: p.LastName}.FullName()
	p.Birth = p.BirthDate.Format("2006-01-02")
	p.Age = stats.Age(p.BirthDate, s.today())
	p.CPFFormatted = validation.FormatCPF(p.CPF)
	p.PhoneFormatted = validation.FormatPhone(p.Phone)
	p.PostalCodeFormatted = validation.FormatCEP(p.PostalCode)
	return p
}

func (s *Service) forgetStats(ctx context.Context) {
	cache.Forget(ctx, s.redis, statsCacheKey)
}
