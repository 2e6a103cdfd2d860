package comments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/cache"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/util"
	"github.com/gestaozabele/floripa/internal/validation"
)

const (
	statsCacheKey = "stats:comments"
	rankingSize   = 10
	postStatus    = "published"
)

type commentRepository interface {
	PostInfo(ctx context.Context, postID uuid.UUID) (*PostInfo, error)
	Create(ctx context.Context, p CreateParams) (*Comment, error)
	Get(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListTopLevel(ctx context.Context, postID uuid.UUID, limit, offset int) ([]Comment, int64, error)
	Replies(ctx context.Context, parentIDs []uuid.UUID) ([]Comment, error)
	List(ctx context.Context, filter Filter) ([]Comment, int64, error)
	UpdateBody(ctx context.Context, id uuid.UUID, body string) (*Comment, error)
	SetFlags(ctx context.Context, id uuid.UUID, flags Flags) (*Comment, error)
	Count(ctx context.Context, approved, active *bool) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	TopUsers(ctx context.Context, limit int) ([]stats.Count, error)
	TopPosts(ctx context.Context, limit int) ([]stats.Count, error)
}

// Service aplica as regras de comentários e moderação.
type Service struct {
	repo     commentRepository
	redis    *redis.Client
	loc      *time.Location
	cacheTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(r commentRepository, redisClient *redis.Client, loc *time.Location, cacheTTL time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     r,
		redis:    redisClient,
		loc:      loc,
		cacheTTL: cacheTTL,
		now:      util.Now,
		logger:   log.With().Str("component", "comments").Logger(),
	}
}

// Create publica um comentário (ou resposta) em um post aberto a comentários.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, input CreateInput) (*Comment, error) {
	body, err := validation.CommentBody(input.Body)
	if err != nil {
		return nil, err
	}
	if input.PostID == uuid.Nil {
		return nil, validation.New("post_id", "Post é obrigatório")
	}
	if err := s.checkPost(ctx, input.PostID); err != nil {
		return nil, err
	}

	if input.ParentID != nil {
		parent, err := s.repo.Get(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		switch {
		case !parent.Active || !parent.Approved:
			return nil, ErrParentNotFound
		case parent.ParentID != nil:
			return nil, ErrNestedReply
		case parent.PostID != input.PostID:
			return nil, ErrParentMismatch
		}
	}

	comment, err := s.repo.Create(ctx, CreateParams{
		ID:        uuid.New(),
		PostID:    input.PostID,
		AccountID: accountID,
		Body:      body,
		ParentID:  input.ParentID,
	})
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	return s.decorate(comment), nil
}

// Update edita o texto dentro da janela de edição.
func (s *Service) Update(ctx context.Context, accountID, id uuid.UUID, body string) (*Comment, error) {
	comment, err := s.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(comment.CreatedAt) > EditWindow {
		return nil, ErrEditWindow
	}
	clean, err := validation.CommentBody(body)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateBody(ctx, id, clean)
	if err != nil {
		return nil, err
	}
	return s.decorate(updated), nil
}

// Delete faz a exclusão lógica pelo autor dentro da janela de exclusão.
func (s *Service) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	comment, err := s.owned(ctx, accountID, id)
	if err != nil {
		return err
	}
	if s.now().Sub(comment.CreatedAt) > DeleteWindow {
		return ErrDeleteWindow
	}
	inactive := false
	if _, err := s.repo.SetFlags(ctx, id, Flags{Active: &inactive}); err != nil {
		return err
	}
	s.forgetStats(ctx)
	s.logger.Info().Str("comment_id", id.String()).Str("account_id", accountID.String()).Msg("comentário excluído pelo autor")
	return nil
}

// ListForPost devolve os comentários raiz visíveis com suas respostas.
func (s *Service) ListForPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]Comment, int64, error) {
	if err := s.checkPost(ctx, postID); err != nil {
		return nil, 0, err
	}
	roots, total, err := s.repo.ListTopLevel(ctx, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, 0, len(roots))
	for _, c := range roots {
		ids = append(ids, c.ID)
	}
	replies, err := s.repo.Replies(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byParent := make(map[uuid.UUID][]Comment, len(roots))
	for _, reply := range replies {
		if reply.ParentID == nil {
			continue
		}
		byParent[*reply.ParentID] = append(byParent[*reply.ParentID], *s.decorate(&reply))
	}

	for i := range roots {
		s.decorate(&roots[i])
		roots[i].Replies = byParent[roots[i].ID]
		roots[i].ReplyCount = len(roots[i].Replies)
	}
	return roots, total, nil
}

// List lista comentários para moderação.
func (s *Service) List(ctx context.Context, filter Filter) ([]Comment, int64, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorate(&items[i])
	}
	return items, total, nil
}

// Moderate aplica approve, reject ou delete.
func (s *Service) Moderate(ctx context.Context, id uuid.UUID, action, moderator string) (*Comment, error) {
	var flags Flags
	yes, no := true, false
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionApprove:
		flags.Approved = &yes
	case ActionReject:
		flags.Approved = &no
	case ActionDelete:
		flags.Active = &no
	default:
		return nil, ErrInvalidAction
	}

	comment, err := s.repo.SetFlags(ctx, id, flags)
	if err != nil {
		return nil, err
	}
	s.forgetStats(ctx)
	s.logger.Info().
		Str("comment_id", id.String()).
		Str("action", action).
		Str("moderator", moderator).
		Msg("comentário moderado")
	return s.decorate(comment), nil
}

// Stats calcula (ou lê do cache) as estatísticas de comentários.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cache.Remember(ctx, s.redis, statsCacheKey, s.cacheTTL, s.computeStats)
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	windows := stats.NewWindows(s.now(), s.loc)
	yes, no := true, false
	out := &Stats{}

	var err error
	if out.Total, err = s.repo.Count(ctx, nil, nil); err != nil {
		return nil, err
	}
	if out.Approved, err = s.repo.Count(ctx, &yes, &yes); err != nil {
		return nil, err
	}
	if out.Pending, err = s.repo.Count(ctx, &no, &yes); err != nil {
		return nil, err
	}
	if out.Today, err = s.repo.CountSince(ctx, windows.Today); err != nil {
		return nil, err
	}
	if out.Week, err = s.repo.CountSince(ctx, windows.Week); err != nil {
		return nil, err
	}

	users, err := s.repo.TopUsers(ctx, rankingSize)
	if err != nil {
		return nil, err
	}
	posts, err := s.repo.TopPosts(ctx, rankingSize)
	if err != nil {
		return nil, err
	}
	out.TopUsers = stats.TopN(users, rankingSize)
	out.TopPosts = stats.TopN(posts, rankingSize)
	return out, nil
}

func (s *Service) checkPost(ctx context.Context, postID uuid.UUID) error {
	info, err := s.repo.PostInfo(ctx, postID)
	if err != nil {
		return err
	}
	if info.Status != postStatus {
		return ErrPostNotFound
	}
	if !info.AllowComments {
		return ErrCommentsDisabled
	}
	return nil
}

// owned busca comentário ativo do autor; de outro autor conta como inexistente.
func (s *Service) owned(ctx context.Context, accountID, id uuid.UUID) (*Comment, error) {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !comment.Active || comment.AccountID != accountID {
		return nil, ErrNotFound
	}
	return comment, nil
}

func (s *Service) decorate(c *Comment) *Comment {
	c.TimeAgo = TimeAgo(c.CreatedAt, s.now(), s.loc)
	return c
}

func (s *Service) forgetStats(ctx context.Context) {
	cache.Forget(ctx, s.redis, statsCacheKey)
}
