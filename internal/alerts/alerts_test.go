package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/notify"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/storage"
	"github.com/gestaozabele/floripa/internal/validation"
)

type stubRepo struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*Alert
	now    time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{alerts: map[uuid.UUID]*Alert{}, now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (s *stubRepo) Create(ctx context.Context, p CreateParams) (*Alert, error) {
	s.mu.Lock()
	a := &Alert{
		ID:           p.ID,
		AccountID:    p.AccountID,
		Username:     "maria",
		Category:     p.Category,
		Description:  p.Description,
		MediaKey:     p.MediaKey,
		MediaURL:     p.MediaURL,
		MediaType:    p.MediaType,
		LocationText: p.LocationText,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Status:       StatusPending,
		Priority:     p.Priority,
		Active:       true,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.alerts[a.ID] = a
	s.mu.Unlock()
	return s.Get(ctx, a.ID)
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || !a.Active {
		return nil, ErrNotFound
	}
	cp := *a
	return cp.labels(), nil
}

func (s *stubRepo) List(ctx context.Context, filter Filter) ([]Alert, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.alerts {
		if !a.Active {
			continue
		}
		if filter.AccountID != nil && a.AccountID != *filter.AccountID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.Priority != nil && a.Priority != *filter.Priority {
			continue
		}
		out = append(out, *a.labels())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, int64(len(out)), nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, status *string, priority *int) (*Alert, error) {
	s.mu.Lock()
	a, ok := s.alerts[id]
	if ok {
		if status != nil {
			a.Status = *status
		}
		if priority != nil {
			a.Priority = *priority
		}
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *stubRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || !a.Active {
		return ErrNotFound
	}
	a.Active = false
	return nil
}

func inScope(a *Alert, account *uuid.UUID) bool {
	return a.Active && (account == nil || a.AccountID == *account)
}

func (s *stubRepo) CountByStatus(ctx context.Context, account *uuid.UUID, status string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.alerts {
		if inScope(a, account) && (status == "" || a.Status == status) {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) CountSince(ctx context.Context, account *uuid.UUID, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.alerts {
		if inScope(a, account) && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) GroupBy(ctx context.Context, account *uuid.UUID, field string) ([]stats.Count, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var values []string
	for _, a := range s.alerts {
		if !inScope(a, account) {
			continue
		}
		switch field {
		case "category":
			values = append(values, a.Category)
		case "status":
			values = append(values, a.Status)
		case "priority":
			values = append(values, strconv.Itoa(a.Priority))
		}
	}
	return stats.GroupCount(values, 0), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

type memoryUploader struct {
	uploads []storage.UploadInput
}

func (m *memoryUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	m.uploads = append(m.uploads, input)
	return &storage.UploadResult{Key: input.Key, URL: "https://cdn.floripa.sc.gov.br/" + input.Key}, nil
}

func newTestService(r *stubRepo, n notify.Notifier, up storage.Uploader) *Service {
	svc := NewService(r, nil, up, n, Config{Location: time.UTC, CacheTTL: time.Minute, NotifyMinPriority: 3})
	svc.now = func() time.Time { return r.now.Add(time.Hour) }
	return svc
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestAlertLifecycle(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r, nil, nil)
	ctx := context.Background()
	owner := Actor{ID: uuid.New(), Username: "maria"}

	alert, err := svc.Create(ctx, owner, CreateInput{
		Category:    "flood",
		Description: "Rua alagada próxima ao terminal",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, alert.Status)
	assert.Equal(t, DefaultPriority, alert.Priority)
	assert.Equal(t, "Alagamento", alert.CategoryLabel)

	updated, err := svc.OwnerUpdate(ctx, owner, alert.ID, UpdateInput{Priority: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Priority)

	approved, err := svc.AdminUpdate(ctx, alert.ID, UpdateInput{Status: strPtr("approved")})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	_, err = svc.OwnerUpdate(ctx, owner, alert.ID, UpdateInput{Priority: intPtr(3)})
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, "Alerta já foi processado e não pode ser alterado", err.Error())

	assert.ErrorIs(t, svc.OwnerDelete(ctx, owner, alert.ID), ErrCannotDelete)

	_, err = svc.AdminUpdate(ctx, alert.ID, UpdateInput{Status: strPtr("rejected")})
	require.NoError(t, err)
	require.NoError(t, svc.OwnerDelete(ctx, owner, alert.ID))

	_, err = svc.Get(ctx, owner, alert.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOwnerRules(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r, nil, nil)
	ctx := context.Background()
	owner := Actor{ID: uuid.New(), Username: "maria"}
	other := Actor{ID: uuid.New(), Username: "joao"}

	alert, err := svc.Create(ctx, owner, CreateInput{Category: "fire", Description: "Fumaça no morro da Cruz"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, alert.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Get(ctx, Actor{ID: uuid.New(), Admin: true}, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, got.ID)

	_, err = svc.OwnerUpdate(ctx, other, alert.ID, UpdateInput{Priority: intPtr(2)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.OwnerUpdate(ctx, owner, alert.ID, UpdateInput{Status: strPtr("approved")})
	assert.True(t, validation.IsValidation(err))

	_, err = svc.OwnerUpdate(ctx, owner, alert.ID, UpdateInput{Priority: intPtr(5)})
	assert.True(t, validation.IsValidation(err))

	_, err = svc.AdminUpdate(ctx, alert.ID, UpdateInput{Status: strPtr("closed")})
	assert.True(t, validation.IsValidation(err))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newStubRepo(), nil, nil)
	ctx := context.Background()
	owner := Actor{ID: uuid.New(), Username: "maria"}

	tests := []struct {
		name  string
		input CreateInput
		field string
	}{
		{"categoria", CreateInput{Category: "tsunami", Description: "Descrição suficiente"}, "category"},
		{"descricao curta", CreateInput{Category: "storm", Description: "curta"}, "description"},
		{"latitude sozinha fora", CreateInput{Category: "storm", Description: "Descrição suficiente", Latitude: floatPtr(95)}, "latitude"},
		{"latitude fora", CreateInput{Category: "storm", Description: "Descrição suficiente", Latitude: floatPtr(-91), Longitude: floatPtr(-48.5)}, "latitude"},
		{"prioridade", CreateInput{Category: "storm", Description: "Descrição suficiente", Priority: intPtr(0)}, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner, tt.input)
			verr, ok := validation.AsValidation(err)
			require.True(t, ok, "erro: %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateAcceptsSingleCoordinate(t *testing.T) {
	svc := newTestService(newStubRepo(), nil, nil)
	ctx := context.Background()
	owner := Actor{ID: uuid.New(), Username: "maria"}

	alert, err := svc.Create(ctx, owner, CreateInput{Category: "storm", Description: "Descrição suficiente", Latitude: floatPtr(-27.59)})
	require.NoError(t, err)
	require.NotNil(t, alert.Latitude)
	assert.Nil(t, alert.Longitude)

	_, err = svc.Create(ctx, owner, CreateInput{Category: "storm", Description: "Descrição suficiente", Longitude: floatPtr(-48.54)})
	require.NoError(t, err)
}

func TestCreateUploadsMediaAndNotifies(t *testing.T) {
	n := &recordingNotifier{}
	up := &memoryUploader{}
	svc := newTestService(newStubRepo(), n, up)
	ctx := context.Background()
	owner := Actor{ID: uuid.New(), Username: "maria"}

	alert, err := svc.Create(ctx, owner, CreateInput{
		Category:     "landslide",
		Description:  "Deslizamento de terra na encosta",
		LocationText: "Morro do Mocotó, Centro",
		Latitude:     floatPtr(-27.597),
		Longitude:    floatPtr(-48.545),
		Priority:     intPtr(4),
		Media:        &MediaUpload{Filename: "encosta.JPG", Size: 4, Body: []byte("jpeg")},
	})
	require.NoError(t, err)
	assert.Equal(t, validation.MediaImage, alert.MediaType)
	require.Len(t, up.uploads, 1)
	assert.Equal(t, "image/jpeg", up.uploads[0].ContentType)
	assert.Contains(t, alert.MediaURL, "alerts/maria/")

	require.Len(t, n.messages, 1)
	assert.Equal(t, notify.SeverityCritical, n.messages[0].Severity)
	assert.Contains(t, n.messages[0].Text, "Morro do Mocotó")

	_, err = svc.Create(ctx, owner, CreateInput{Category: "other", Description: "Baixa prioridade aqui"})
	require.NoError(t, err)
	assert.Len(t, n.messages, 1)

	_, err = svc.Create(ctx, owner, CreateInput{
		Category:    "other",
		Description: "Documento anexado errado",
		Media:       &MediaUpload{Filename: "relatorio.pdf", Size: 10, Body: []byte("pdf")},
	})
	assert.True(t, validation.IsValidation(err))

	noStorage := newTestService(newStubRepo(), nil, nil)
	_, err = noStorage.Create(ctx, owner, CreateInput{
		Category:    "other",
		Description: "Foto sem armazenamento",
		Media:       &MediaUpload{Filename: "a.png", Size: 3, Body: []byte("png")},
	})
	assert.ErrorIs(t, err, ErrMediaUnavailable)
}

func TestStats(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r, nil, nil)
	ctx := context.Background()
	owner := Actor{ID: uuid.New(), Username: "maria"}

	for _, c := range []string{"flood", "flood", "fire"} {
		_, err := svc.Create(ctx, owner, CreateInput{Category: c, Description: "Descrição suficiente"})
		require.NoError(t, err)
	}
	old, err := svc.Create(ctx, owner, CreateInput{Category: "storm", Description: "Descrição suficiente"})
	require.NoError(t, err)
	r.alerts[old.ID].CreatedAt = r.now.AddDate(0, 0, -10)
	_, err = svc.AdminUpdate(ctx, old.ID, UpdateInput{Status: strPtr("approved")})
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Total)
	assert.Equal(t, int64(3), st.Pending)
	assert.Equal(t, int64(1), st.Approved)
	assert.Equal(t, int64(3), st.Today)
	assert.Equal(t, int64(3), st.Week)
	require.NotEmpty(t, st.ByCategory)
	assert.Equal(t, "flood", st.ByCategory[0].Key)
	assert.Equal(t, "Alagamento", st.ByCategory[0].Label)
	assert.Equal(t, "fire", st.ByCategory[1].Key)
	assert.Equal(t, "Baixa", st.ByPriority[0].Label)
}

func TestListMineAndMyStats(t *testing.T) {
	r := newStubRepo()
	svc := newTestService(r, nil, nil)
	ctx := context.Background()
	maria := Actor{ID: uuid.New(), Username: "maria"}
	joao := Actor{ID: uuid.New(), Username: "joao"}

	flood, err := svc.Create(ctx, maria, CreateInput{Category: "flood", Description: "Descrição suficiente", Priority: intPtr(3)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, maria, CreateInput{Category: "fire", Description: "Descrição suficiente"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, joao, CreateInput{Category: "flood", Description: "Descrição suficiente"})
	require.NoError(t, err)
	_, err = svc.AdminUpdate(ctx, flood.ID, UpdateInput{Status: strPtr("approved")})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   int64
	}{
		{"sem filtro", Filter{}, 2},
		{"categoria", Filter{Category: "FLOOD"}, 1},
		{"status", Filter{Status: "approved"}, 1},
		{"prioridade", Filter{Priority: intPtr(3)}, 1},
		{"nenhum", Filter{Category: "fire", Status: "approved"}, 0},
		{"ignora account do filtro", Filter{AccountID: &joao.ID}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := svc.ListMine(ctx, maria, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
		})
	}

	_, _, err = svc.ListMine(ctx, maria, Filter{Status: "fechado"})
	assert.True(t, validation.IsValidation(err))

	mine, err := svc.MyStats(ctx, maria)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)
	assert.Equal(t, int64(1), mine.Pending)
	assert.Equal(t, int64(1), mine.Approved)
	assert.Equal(t, int64(2), mine.Today)
	assert.Equal(t, int64(2), mine.Week)
	assert.Len(t, mine.ByCategory, 2)

	all, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
}

func withActor(id uuid.UUID, admin bool) func(http.Handler) http.Handler {
	roles := []string{"CIDADAO"}
	if admin {
		roles = append(roles, "ADMIN")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := httpmiddleware.WithClaims(r.Context(), id.String(), "cidadao", "maria", roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlersWithQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	up := &memoryUploader{}
	svc := newTestService(newStubRepo(), nil, up)
	handler := NewHandler(svc, httpmiddleware.DailyQuota(client, "alerts", 2))

	ownerID := uuid.New()
	citizen := chi.NewRouter()
	citizen.Use(withActor(ownerID, false))
	handler.RegisterRoutes(citizen)

	body, _ := json.Marshal(map[string]any{"category": "flood", "description": "Alagamento na Beira-Mar", "priority": 2})
	rec := httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	require.NoError(t, mw.WriteField("category", "storm"))
	require.NoError(t, mw.WriteField("description", "Queda de árvore na via"))
	require.NoError(t, mw.WriteField("latitude", "-27,59"))
	require.NoError(t, mw.WriteField("longitude", "-48.55"))
	part, err := mw.CreateFormFile("media", "arvore.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("video"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/alerts", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"media_type":"video"`)
	require.Len(t, up.uploads, 1)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts", bytes.NewReader(body)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/mine", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	admin := chi.NewRouter()
	admin.Use(withActor(uuid.New(), true))
	admin.Group(func(r chi.Router) {
		r.Use(httpmiddleware.RequireAdmin)
		handler.RegisterAdminRoutes(r)
	})

	patch, _ := json.Marshal(map[string]any{"status": "approved"})
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/alerts/"+created.Data.ID.String(), bytes.NewReader(patch)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	again, _ := json.Marshal(map[string]any{"priority": 3})
	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/alerts/"+created.Data.ID.String(), bytes.NewReader(again)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alerta já foi processado")

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/mine?status=approved", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/mine?category=storm&priority=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/mine?priority=alta", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine struct {
		Data Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Equal(t, int64(2), mine.Data.Total)
	assert.Equal(t, int64(1), mine.Data.Approved)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/alerts?status=approved", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/alerts?status=fechado", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/alerts/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
