package posts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/cache"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/util"
	"github.com/gestaozabele/floripa/internal/validation"
)

const (
	statsCacheKey = "stats:posts"
	rankingSize   = 5
)

type postRepository interface {
	Create(ctx context.Context, p CreateParams) (*Post, error)
	Get(ctx context.Context, id uuid.UUID) (*Post, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	AlertExists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter Filter) ([]Post, int64, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Post, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Totals(ctx context.Context) (views, comments int64, err error)
	MostViewed(ctx context.Context, limit int) ([]stats.Count, error)
	MostCommented(ctx context.Context, limit int) ([]stats.Count, error)
}

// Service aplica as regras dos boletins.
type Service struct {
	repo     postRepository
	redis    *redis.Client
	loc      *time.Location
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(r postRepository, redisClient *redis.Client, loc *time.Location, cacheTTL time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: r, redis: redisClient, loc: loc, cacheTTL: cacheTTL, now: util.Now}
}

// Create cria um post em nome do administrador.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, input CreateInput) (*Post, error) {
	title, err := validation.PostTitle(input.Title)
	if err != nil {
		return nil, err
	}
	body, err := validation.PostBody(input.Body)
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status == "" {
		status = StatusDraft
	}
	if !IsValidStatus(status) {
		return nil, validation.New("status", "Status inválido.")
	}

	if err := s.checkAlert(ctx, input.AlertID); err != nil {
		return nil, err
	}

	allowComments := true
	if input.AllowComments != nil {
		allowComments = *input.AllowComments
	}

	post, err := s.repo.Create(ctx, CreateParams{
		ID:            uuid.New(),
		Title:         title,
		Body:          body,
		AlertID:       input.AlertID,
		AuthorID:      authorID,
		Status:        status,
		Featured:      input.Featured,
		AllowComments: allowComments,
	})
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	log.Info().Str("post_id", post.ID.String()).Str("status", post.Status).Msg("post criado")
	return post, nil
}

// Update edita um post.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Post, error) {
	if input.Title != nil {
		title, err := validation.PostTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		input.Title = &title
	}
	if input.Body != nil {
		body, err := validation.PostBody(*input.Body)
		if err != nil {
			return nil, err
		}
		input.Body = &body
	}
	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		if !IsValidStatus(status) {
			return nil, validation.New("status", "Status inválido.")
		}
		input.Status = &status
	}
	if err := s.checkAlert(ctx, input.AlertID); err != nil {
		return nil, err
	}

	post, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	return post, nil
}

// Archive arquiva o post (não há exclusão física).
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*Post, error) {
	status := StatusArchived
	return s.Update(ctx, id, UpdateInput{Status: &status})
}

// Get devolve o post em qualquer status (administração).
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.repo.Get(ctx, id)
}

// List lista posts para a administração.
func (s *Service) List(ctx context.Context, filter Filter) ([]Post, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, validation.New("status", "Status inválido.")
	}
	return s.repo.List(ctx, filter)
}

// Feed lista posts publicados, destaques primeiro. Aceita busca em título/conteúdo
// e o filtro de destaque; o status é sempre published.
func (s *Service) Feed(ctx context.Context, filter Filter) ([]Post, int64, error) {
	filter.Status = StatusPublished
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// Read devolve um post publicado e contabiliza a visualização.
func (s *Service) Read(ctx context.Context, id uuid.UUID) (*Post, error) {
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Stats calcula (ou lê do cache) as estatísticas dos posts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cache.Remember(ctx, s.redis, statsCacheKey, s.cacheTTL, s.computeStats)
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	windows := stats.NewWindows(s.now(), s.loc)
	out := &Stats{}

	counts := []struct {
		dst    *int64
		status string
	}{
		{&out.Total, ""},
		{&out.Published, StatusPublished},
		{&out.Draft, StatusDraft},
		{&out.Archived, StatusArchived},
	}
	for _, c := range counts {
		n, err := s.repo.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	var err error
	if out.Today, err = s.repo.CountSince(ctx, windows.Today); err != nil {
		return nil, err
	}
	if out.Week, err = s.repo.CountSince(ctx, windows.Week); err != nil {
		return nil, err
	}
	if out.TotalViews, out.TotalComments, err = s.repo.Totals(ctx); err != nil {
		return nil, err
	}

	viewed, err := s.repo.MostViewed(ctx, rankingSize)
	if err != nil {
		return nil, err
	}
	commented, err := s.repo.MostCommented(ctx, rankingSize)
	if err != nil {
		return nil, err
	}
	out.MostViewed = stats.TopN(viewed, rankingSize)
	out.MostCommented = stats.TopN(commented, rankingSize)
	return out, nil
}

func (s *Service) checkAlert(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := s.repo.AlertExists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlertNotFound
	}
	return nil
}

func (s *Service) forgetStats(ctx context.Context) {
	cache.Forget(ctx, s.redis, statsCacheKey)
}
