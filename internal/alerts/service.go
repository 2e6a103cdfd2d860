package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/cache"
	"github.com/gestaozabele/floripa/internal/notify"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/storage"
	"github.com/gestaozabele/floripa/internal/util"
	"github.com/gestaozabele/floripa/internal/validation"
)

const (
	statsCacheKey = "stats:alerts"
	mediaPrefix   = "alerts"
)

type alertRepository interface {
	Create(ctx context.Context, p CreateParams) (*Alert, error)
	Get(ctx context.Context, id uuid.UUID) (*Alert, error)
	List(ctx context.Context, filter Filter) ([]Alert, int64, error)
	Update(ctx context.Context, id uuid.UUID, status *string, priority *int) (*Alert, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context, account *uuid.UUID, status string) (int64, error)
	CountSince(ctx context.Context, account *uuid.UUID, since time.Time) (int64, error)
	GroupBy(ctx context.Context, account *uuid.UUID, field string) ([]stats.Count, error)
}

// Config agrupa ajustes do serviço de alertas.
type Config struct {
	Location          *time.Location
	CacheTTL          time.Duration
	NotifyMinPriority int
}

// Service aplica as regras de criação e moderação de alertas.
type Service struct {
	repo     alertRepository
	redis    *redis.Client
	uploader storage.Uploader
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService cria o serviço. uploader e notifier nulos viram Noop.
func NewService(r alertRepository, redisClient *redis.Client, uploader storage.Uploader, notifier notify.Notifier, cfg Config) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.NotifyMinPriority <= 0 {
		cfg.NotifyMinPriority = 3
	}
	return &Service{
		repo:     r,
		redis:    redisClient,
		uploader: uploader,
		notifier: notifier,
		cfg:      cfg,
		now:      util.Now,
		logger:   log.With().Str("component", "alerts").Logger(),
	}
}

// Create registra um alerta pendente para o cidadão.
func (s *Service) Create(ctx context.Context, actor Actor, input CreateInput) (*Alert, error) {
	category := strings.ToLower(strings.TrimSpace(input.Category))
	if !IsValidCategory(category) {
		return nil, validation.New("category", "Categoria inválida.")
	}
	description, err := validation.AlertDescription(input.Description)
	if err != nil {
		return nil, err
	}
	if err := validation.Coordinates(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}
	priority := DefaultPriority
	if input.Priority != nil {
		if err := validation.Priority(*input.Priority); err != nil {
			return nil, err
		}
		priority = *input.Priority
	}
	location := ""
	if strings.TrimSpace(input.LocationText) != "" {
		if location, err = validation.Location(input.LocationText); err != nil {
			return nil, err
		}
	}

	params := CreateParams{
		ID:           uuid.New(),
		AccountID:    actor.ID,
		Category:     category,
		Description:  description,
		LocationText: location,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		Priority:     priority,
	}

	if input.Media != nil {
		kind, err := validation.Media(input.Media.Filename, input.Media.Size)
		if err != nil {
			return nil, err
		}
		res, err := s.uploader.Upload(ctx, storage.UploadInput{
			Key:          storage.MediaKey(mediaPrefix, actor.Username, input.Media.Filename),
			Body:         input.Media.Body,
			ContentType:  storage.ContentTypeFor(input.Media.Filename),
			CacheControl: "public, max-age=31536000",
		})
		if err != nil {
			if errors.Is(err, storage.ErrNotConfigured) {
				return nil, ErrMediaUnavailable
			}
			return nil, fmt.Errorf("upload de mídia: %w", err)
		}
		params.MediaKey = res.Key
		params.MediaURL = res.URL
		params.MediaType = kind
	}

	alert, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	s.forgetStats(ctx)
	s.logger.Info().
		Str("alert_id", alert.ID.String()).
		Str("category", alert.Category).
		Int("priority", alert.Priority).
		Msg("alerta criado")

	if alert.Priority >= s.cfg.NotifyMinPriority {
		s.notifyCreated(ctx, alert)
	}
	return alert, nil
}

func (s *Service) notifyCreated(ctx context.Context, alert *Alert) {
	text := fmt.Sprintf("%s (prioridade %s) enviado por %s", alert.CategoryLabel, PriorityLabel(fmt.Sprint(alert.Priority)), alert.Username)
	if alert.LocationText != "" {
		text += "\nLocal: " + alert.LocationText
	}
	text += "\n" + alert.Description

	msg := notify.Message{
		Title:    "Novo alerta: " + alert.CategoryLabel,
		Text:     text,
		Severity: notify.SeverityForPriority(alert.Priority),
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Str("alert_id", alert.ID.String()).Msg("falha ao notificar alerta")
	}
}

// Get devolve o alerta ao dono ou a um administrador.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Alert, error) {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && alert.AccountID != actor.ID {
		return nil, ErrForbidden
	}
	return alert, nil
}

// ListMine lista os alertas do cidadão com os mesmos filtros da administração.
func (s *Service) ListMine(ctx context.Context, actor Actor, filter Filter) ([]Alert, int64, error) {
	filter.AccountID = &actor.ID
	return s.List(ctx, filter)
}

// List lista alertas para a administração.
func (s *Service) List(ctx context.Context, filter Filter) ([]Alert, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, validation.New("status", "Status inválido.")
	}
	if filter.Category != "" && !IsValidCategory(filter.Category) {
		return nil, 0, validation.New("category", "Categoria inválida.")
	}
	return s.repo.List(ctx, filter)
}

// OwnerUpdate aplica a edição do cidadão, permitida só enquanto pendente.
func (s *Service) OwnerUpdate(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*Alert, error) {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.AccountID != actor.ID {
		return nil, ErrForbidden
	}
	if !CanOwnerEdit(alert.Status) {
		return nil, ErrAlreadyProcessed
	}
	if input.Status != nil && strings.ToLower(strings.TrimSpace(*input.Status)) != StatusPending {
		return nil, validation.New("status", "Cidadão não pode alterar o status do alerta.")
	}
	if input.Priority != nil {
		if err := validation.Priority(*input.Priority); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, id, nil, input.Priority)
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	return updated, nil
}

// OwnerDelete exclui logicamente, permitido só enquanto pendente ou rejeitado.
func (s *Service) OwnerDelete(ctx context.Context, actor Actor, id uuid.UUID) error {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if alert.AccountID != actor.ID {
		return ErrForbidden
	}
	if !CanOwnerDelete(alert.Status) {
		return ErrCannotDelete
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.forgetStats(ctx)
	return nil
}

// AdminUpdate define status e prioridade livremente, validando apenas os valores.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, input UpdateInput) (*Alert, error) {
	var status *string
	if input.Status != nil {
		normalized := strings.ToLower(strings.TrimSpace(*input.Status))
		if !IsValidStatus(normalized) {
			return nil, validation.New("status", "Status inválido.")
		}
		status = &normalized
	}
	if input.Priority != nil {
		if err := validation.Priority(*input.Priority); err != nil {
			return nil, err
		}
	}
	if status == nil && input.Priority == nil {
		return nil, validation.New("", "Informe status ou priority.")
	}

	updated, err := s.repo.Update(ctx, id, status, input.Priority)
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	s.logger.Info().Str("alert_id", id.String()).Str("status", updated.Status).Int("priority", updated.Priority).Msg("alerta moderado")
	return updated, nil
}

// Stats calcula (ou lê do cache) as estatísticas gerais dos alertas.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cache.Remember(ctx, s.redis, statsCacheKey, s.cfg.CacheTTL, func(ctx context.Context) (*Stats, error) {
		return s.computeStats(ctx, nil)
	})
}

// MyStats resume só os alertas do cidadão; não passa pelo cache.
func (s *Service) MyStats(ctx context.Context, actor Actor) (*Stats, error) {
	return s.computeStats(ctx, &actor.ID)
}

func (s *Service) computeStats(ctx context.Context, account *uuid.UUID) (*Stats, error) {
	windows := stats.NewWindows(s.now(), s.cfg.Location)
	out := &Stats{}

	var err error
	if out.Total, err = s.repo.CountByStatus(ctx, account, ""); err != nil {
		return nil, err
	}
	if out.Pending, err = s.repo.CountByStatus(ctx, account, StatusPending); err != nil {
		return nil, err
	}
	if out.Approved, err = s.repo.CountByStatus(ctx, account, StatusApproved); err != nil {
		return nil, err
	}
	if out.Today, err = s.repo.CountSince(ctx, account, windows.Today); err != nil {
		return nil, err
	}
	if out.Week, err = s.repo.CountSince(ctx, account, windows.Week); err != nil {
		return nil, err
	}

	groups := map[string]*[]stats.Count{
		"category": &out.ByCategory,
		"status":   &out.ByStatus,
		"priority": &out.ByPriority,
	}
	for field, dst := range groups {
		counts, err := s.repo.GroupBy(ctx, account, field)
		if err != nil {
			return nil, err
		}
		counts = stats.TopN(counts, 0)
		for i := range counts {
			counts[i].Label = labelFor(field, counts[i].Key)
		}
		*dst = counts
	}
	return out, nil
}

func labelFor(field, key string) string {
	switch field {
	case "category":
		return categoryLabels[key]
	case "status":
		return statusLabels[key]
	default:
		return PriorityLabel(key)
	}
}

func (s *Service) forgetStats(ctx context.Context) {
	cache.Forget(ctx, s.redis, statsCacheKey)
}
