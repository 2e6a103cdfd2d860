package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/validation"
)

type stubRepo struct {
	mu     sync.Mutex
	posts  map[uuid.UUID]*Post
	alerts map[uuid.UUID]bool
	clock  time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		posts:  map[uuid.UUID]*Post{},
		alerts: map[uuid.UUID]bool{},
		clock:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (s *stubRepo) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *stubRepo) Create(ctx context.Context, p CreateParams) (*Post, error) {
	s.mu.Lock()
	now := s.tick()
	post := &Post{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Body,
		AlertID:       p.AlertID,
		AuthorID:      p.AuthorID,
		AuthorName:    "Defesa Civil",
		Status:        p.Status,
		Featured:      p.Featured,
		AllowComments: p.AllowComments,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Status == StatusPublished {
		post.PublishedAt = &now
	}
	s.posts[p.ID] = post
	s.mu.Unlock()
	return s.Get(ctx, p.ID)
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.StatusLabel = statusLabels[cp.Status]
	return &cp, nil
}

func (s *stubRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.Status != StatusPublished {
		return ErrNotFound
	}
	p.ViewCount++
	return nil
}

func (s *stubRepo) AlertExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.alerts[id], nil
}

func (s *stubRepo) List(ctx context.Context, filter Filter) ([]Post, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Post
	for _, p := range s.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if q := strings.ToLower(filter.Search); q != "" &&
			!strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Body), q) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Featured != out[j].Featured {
			return out[i].Featured
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, int64(len(out)), nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Post, error) {
	s.mu.Lock()
	p, ok := s.posts[id]
	if ok {
		if input.Title != nil {
			p.Title = *input.Title
		}
		if input.Body != nil {
			p.Body = *input.Body
		}
		if input.Featured != nil {
			p.Featured = *input.Featured
		}
		if input.AllowComments != nil {
			p.AllowComments = *input.AllowComments
		}
		if input.Status != nil {
			p.Status = *input.Status
			if p.Status == StatusPublished && p.PublishedAt == nil {
				now := s.tick()
				p.PublishedAt = &now
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *stubRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.posts {
		if status == "" || p.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.posts {
		if !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) Totals(ctx context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var views int64
	for _, p := range s.posts {
		views += p.ViewCount
	}
	return views, 0, nil
}

func (s *stubRepo) MostViewed(ctx context.Context, limit int) ([]stats.Count, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stats.Count
	for _, p := range s.posts {
		if p.Status == StatusPublished {
			out = append(out, stats.Count{Key: p.ID.String(), Label: p.Title, Count: p.ViewCount})
		}
	}
	return stats.TopN(out, limit), nil
}

func (s *stubRepo) MostCommented(ctx context.Context, limit int) ([]stats.Count, error) {
	return nil, nil
}

func newTestService(r *stubRepo) *Service {
	svc := NewService(r, nil, time.UTC, time.Minute)
	svc.now = func() time.Time { return r.clock.Add(time.Hour) }
	return svc
}

func strPtr(v string) *string { return &v }

func TestPublishedAtSetOnce(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r)
	ctx := context.Background()

	post, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Chuvas fortes", Body: "Previsão de chuva forte para amanhã."})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, post.Status)
	assert.True(t, post.AllowComments)
	assert.Nil(t, post.PublishedAt)

	published, err := svc.Update(ctx, post.ID, UpdateInput{Status: strPtr("published")})
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	first := *published.PublishedAt

	archived, err := svc.Archive(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)

	again, err := svc.Update(ctx, post.ID, UpdateInput{Status: strPtr("published")})
	require.NoError(t, err)
	assert.Equal(t, first, *again.PublishedAt)
}

func TestCreateValidation(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r)
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Ok", Body: "curto"})
	assert.True(t, validation.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), CreateInput{Title: "", Body: "Corpo com tamanho suficiente"})
	assert.True(t, validation.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), CreateInput{Title: "Ok", Body: "Corpo com tamanho suficiente", Status: "removed"})
	assert.True(t, validation.IsValidation(err))

	missing := uuid.New()
	_, err = svc.Create(ctx, uuid.New(), CreateInput{Title: "Ok", Body: "Corpo com tamanho suficiente", AlertID: &missing})
	assert.ErrorIs(t, err, ErrAlertNotFound)

	known := uuid.New()
	r.alerts[known] = true
	post, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Ok", Body: "Corpo com tamanho suficiente", AlertID: &known})
	require.NoError(t, err)
	assert.Equal(t, known, *post.AlertID)
}

func TestReadIncrementsViewsOnlyWhenPublished(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r)
	ctx := context.Background()

	draft, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Rascunho", Body: "Ainda não publicado aqui"})
	require.NoError(t, err)
	_, err = svc.Read(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	pub, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Publicado", Body: "Conteúdo publicado no feed", Status: "published"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.Read(ctx, pub.ID)
		require.NoError(t, err)
	}
	got, err := svc.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ViewCount)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, int64(1), st.Published)
	assert.Equal(t, int64(1), st.Draft)
	assert.Equal(t, int64(3), st.TotalViews)
	assert.Equal(t, int64(2), st.Today)
	require.Len(t, st.MostViewed, 1)
	assert.Equal(t, "Publicado", st.MostViewed[0].Label)
}

func TestFeedOnlyPublished(t *testing.T) {
	svc := newTestService(newStubRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Obras na SC-401", Body: "Rascunho sobre a duplicação"})
	require.NoError(t, err)
	pub, err := svc.Create(ctx, uuid.New(), CreateInput{Title: "Vacinação", Body: "Campanha nos postos da SC-401", Status: "published"})
	require.NoError(t, err)

	posts, total, err := svc.Feed(ctx, Filter{Status: StatusDraft, Search: "  sc-401 "})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, pub.ID, posts[0].ID)

	yes := true
	_, total, err = svc.Feed(ctx, Filter{Featured: &yes})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHandlers(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r)
	handler := NewHandler(svc)

	router := chi.NewRouter()
	handler.RegisterPublicRoutes(router)
	router.Group(func(g chi.Router) {
		g.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := httpmiddleware.WithClaims(req.Context(), uuid.NewString(), "cidadao", "admin", []string{"CIDADAO", "ADMIN"})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		g.Use(httpmiddleware.RequireAdmin)
		handler.RegisterAdminRoutes(g)
	})

	create := func(title string, featured bool) Post {
		body, _ := json.Marshal(map[string]any{"title": title, "body": "Conteúdo do boletim municipal", "status": "published", "featured": featured})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/posts", bytes.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var out struct {
			Data Post `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out.Data
	}

	normal := create("Boletim", false)
	featured := create("Destaque", true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Data struct {
			Count    int64  `json:"count"`
			PageSize int    `json:"page_size"`
			Results  []Post `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Equal(t, int64(2), feed.Data.Count)
	assert.Equal(t, 10, feed.Data.PageSize)
	assert.Equal(t, featured.ID, feed.Data.Results[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed/"+normal.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view_count":1`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed?page_size=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed?search=destaque", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Equal(t, int64(1), feed.Data.Count)
	assert.Equal(t, featured.ID, feed.Data.Results[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed?featured=false", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Equal(t, int64(1), feed.Data.Count)
	assert.Equal(t, normal.ID, feed.Data.Results[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed?featured=talvez", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/posts/"+normal.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"archived"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed/"+normal.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/posts?featured=true", nil))
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/posts/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
