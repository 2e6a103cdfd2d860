package accounts

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

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/validation"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type stubRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*Profile
	accounts int64
	statsHit int
}

func newStubRepo() *stubRepo {
	return &stubRepo{profiles: map[uuid.UUID]*Profile{}}
}

func (s *stubRepo) Register(ctx context.Context, account repo.CreateAccountParams, profile CreateProfileParams) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.CPF == profile.CPF {
			return nil, ErrCPFTaken
		}
		if p.Username == account.Username {
			return nil, repo.ErrDuplicate
		}
	}
	p := &Profile{
		ID:           profile.ID,
		AccountID:    account.ID,
		Username:     account.Username,
		Email:        account.Email,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		CPF:          profile.CPF,
		BirthDate:    profile.BirthDate,
		Phone:        profile.Phone,
		AddressText:  profile.AddressText,
		Neighborhood: profile.Neighborhood,
		PostalCode:   profile.PostalCode,
		Active:       true,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	s.profiles[p.ID] = p
	s.accounts++
	cp := *p
	return &cp, nil
}

func (s *stubRepo) CPFExists(ctx context.Context, cpf string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.CPF == cpf {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.AccountID == accountID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubRepo) GetByCPF(ctx context.Context, cpf string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.CPF == cpf {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubRepo) UpdateProfile(ctx context.Context, input UpdateProfileParams) (*Profile, error) {
	s.mu.Lock()
	for _, p := range s.profiles {
		if p.AccountID != input.AccountID {
			continue
		}
		if input.FirstName != nil {
			p.FirstName = *input.FirstName
		}
		if input.BirthDate != nil {
			p.BirthDate = *input.BirthDate
		}
		if input.Phone != nil {
			p.Phone = *input.Phone
		}
		if input.Neighborhood != nil {
			p.Neighborhood = *input.Neighborhood
		}
		if input.PostalCode != nil {
			p.PostalCode = *input.PostalCode
		}
	}
	s.mu.Unlock()
	return s.GetByAccount(ctx, input.AccountID)
}

func (s *stubRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Profile, error) {
	s.mu.Lock()
	p, ok := s.profiles[id]
	if ok {
		p.Active = active
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *stubRepo) List(ctx context.Context, filter ProfileFilter) ([]Profile, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Profile
	for _, p := range s.profiles {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		if filter.Neighborhood != "" && !strings.Contains(strings.ToLower(p.Neighborhood), strings.ToLower(filter.Neighborhood)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, int64(len(out)), nil
}

func (s *stubRepo) CountAccounts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsHit++
	return s.accounts + 1, nil
}

func (s *stubRepo) CountProfiles(ctx context.Context, active *bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.profiles {
		if active == nil || p.Active == *active {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) TopNeighborhoods(ctx context.Context, limit int) ([]stats.Count, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var values []string
	for _, p := range s.profiles {
		if p.Active {
			values = append(values, p.Neighborhood)
		}
	}
	return stats.GroupCount(values, limit), nil
}

func (s *stubRepo) RegistrationTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, p := range s.profiles {
		out = append(out, p.CreatedAt)
	}
	return out, nil
}

func (s *stubRepo) ActiveBirthDates(ctx context.Context) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, p := range s.profiles {
		if p.Active {
			out = append(out, p.BirthDate)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, r *stubRepo, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(r, nil, time.UTC, time.Minute, opts...)
}

func validInput(username, cpf string) RegisterInput {
	return RegisterInput{
		Username:        username,
		Email:           username + "@floripa.sc.gov.br",
		Password:        "senhaSegura1",
		PasswordConfirm: "senhaSegura1",
		FirstName:       "Maria",
		LastName:        "Silva",
		CPF:             cpf,
		BirthDate:       "1995-06-15",
		Phone:           "(48) 99988-7766",
		AddressText:     "Rua Lauro Linhares, 100",
		Neighborhood:    "Trindade",
		PostalCode:      "88036-001",
	}
}

func TestRegisterAndDuplicateCPF(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ctx := context.Background()

	p, err := svc.Register(ctx, validInput("maria", "111.444.777-35"))
	require.NoError(t, err)
	assert.Equal(t, "11144477735", p.CPF)
	assert.Equal(t, "111.444.777-35", p.CPFFormatted)
	assert.Equal(t, 30, p.Age)
	assert.Equal(t, "Trindade", p.Neighborhood)
	assert.Equal(t, "(48) 99988-7766", p.PhoneFormatted)
	assert.Equal(t, "88036-001", p.PostalCodeFormatted)
	assert.Equal(t, "Maria Silva", p.FullName)

	_, err = svc.Register(ctx, validInput("joao", "11144477735"))
	require.ErrorIs(t, err, ErrCPFTaken)
	assert.Equal(t, "Este CPF já está cadastrado.", err.Error())
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"cpf invalido", func(in *RegisterInput) { in.CPF = "11144477734" }, "cpf"},
		{"menor de idade", func(in *RegisterInput) { in.BirthDate = "2010-01-01" }, "birth_date"},
		{"bairro", func(in *RegisterInput) { in.Neighborhood = "Veneza" }, "neighborhood"},
		{"senha diferente", func(in *RegisterInput) { in.PasswordConfirm = "outraSenha1" }, "password_confirm"},
		{"telefone", func(in *RegisterInput) { in.Phone = "0999887766" }, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("ana", "52998224725")
			tt.mutate(&in)
			_, err := svc.Register(ctx, in)
			verr, ok := validation.AsValidation(err)
			require.True(t, ok, "esperava erro de validação, veio %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUpdateProfileKeepsCPF(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ctx := context.Background()

	p, err := svc.Register(ctx, validInput("maria", "11144477735"))
	require.NoError(t, err)

	other := "52998224725"
	_, err = svc.UpdateProfile(ctx, p.AccountID, UpdateProfileInput{CPF: &other})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CPF não pode ser alterado")

	same := "111.444.777-35"
	bairro := "lagoa"
	updated, err := svc.UpdateProfile(ctx, p.AccountID, UpdateProfileInput{CPF: &same, Neighborhood: &bairro})
	require.NoError(t, err)
	assert.Equal(t, "Lagoa", updated.Neighborhood)
}

func TestDeactivateAndReactivate(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ctx := context.Background()

	p, err := svc.Register(ctx, validInput("maria", "11144477735"))
	require.NoError(t, err)

	_, err = svc.Reactivate(ctx, p.ID)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	require.NoError(t, svc.Deactivate(ctx, p.AccountID))
	got, err := svc.ReactivateByCPF(ctx, "111.444.777-35")
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestStatsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := newStubRepo()
	svc := NewService(r, client, time.UTC, time.Minute, WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput("maria", "11144477735"))
	require.NoError(t, err)
	second := validInput("joao", "52998224725")
	second.BirthDate = "1955-01-10"
	second.Neighborhood = "centro"
	_, err = svc.Register(ctx, second)
	require.NoError(t, err)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalUsers)
	assert.Equal(t, int64(2), st.TotalProfiles)
	assert.Equal(t, 66.67, st.CompletionRate)
	assert.Equal(t, 1, st.AgeDistribution["26-35"])
	assert.Equal(t, 1, st.AgeDistribution["65+"])
	assert.Len(t, st.AgeDistribution, 6)
	require.Len(t, st.TopNeighborhoods, 2)
	assert.Equal(t, "Centro", st.TopNeighborhoods[0].Key)
	assert.Equal(t, []stats.MonthCount{{Month: "2025-06", Count: 2}}, st.MonthlyRegistrations)

	_, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.statsHit)
}

type fakeLookup struct {
	addr *Address
	err  error
}

func (f fakeLookup) Lookup(ctx context.Context, cep string) (*Address, error) {
	return f.addr, f.err
}

func TestCheckEndpointsHelpers(t *testing.T) {
	svc := newTestService(t, newStubRepo(), WithAddressLookup(fakeLookup{addr: &Address{City: "Florianópolis", State: "SC"}}))
	ctx := context.Background()

	cpf, err := svc.CheckCPF(ctx, "11144477735")
	require.NoError(t, err)
	assert.True(t, cpf.Valid)
	assert.True(t, cpf.Available)
	assert.Equal(t, "111.444.777-35", cpf.Formatted)

	bad, err := svc.CheckCPF(ctx, "11111111111")
	require.NoError(t, err)
	assert.False(t, bad.Valid)

	assert.True(t, svc.CheckPhone("4833334444").Valid)
	assert.False(t, svc.CheckPhone("0999887766").Valid)

	cep := svc.CheckCEP(ctx, "88010000")
	assert.True(t, cep.Valid)
	assert.Equal(t, "88010-000", cep.Formatted)
	require.NotNil(t, cep.Address)
	assert.Equal(t, "Florianópolis", cep.Address.City)

	missing := newTestService(t, newStubRepo(), WithAddressLookup(fakeLookup{err: ErrCEPNotFound})).CheckCEP(ctx, "88010000")
	assert.False(t, missing.Valid)
}

func TestViaCEPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/ws/88010000/json/" {
			_, _ = w.Write([]byte(`{"cep":"88010-000","logradouro":"Praça XV de Novembro","bairro":"Centro","localidade":"Florianópolis","uf":"SC"}`))
			return
		}
		_, _ = w.Write([]byte(`{"erro": "true"}`))
	}))
	defer srv.Close()

	client := NewViaCEPClient(srv.URL, time.Second)
	addr, err := client.Lookup(context.Background(), "88010000")
	require.NoError(t, err)
	assert.Equal(t, "Centro", addr.Neighborhood)
	assert.Equal(t, "SC", addr.State)

	_, err = client.Lookup(context.Background(), "99999999")
	assert.ErrorIs(t, err, ErrCEPNotFound)
}

func TestWriteXLSX(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	p, err := svc.Register(context.Background(), validInput("maria", "11144477735"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []Profile{*p}, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Usuário", rows[0][0])
	assert.Equal(t, "maria", rows[1][0])
	assert.Equal(t, "111.444.777-35", rows[1][3])
}

func withSubject(accountID uuid.UUID, admin bool) func(http.Handler) http.Handler {
	roles := []string{"CIDADAO"}
	if admin {
		roles = append(roles, "ADMIN")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := httpmiddleware.WithClaims(r.Context(), accountID.String(), "cidadao", "maria", roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandlers(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	handler := NewHandler(svc, time.UTC)

	public := chi.NewRouter()
	handler.RegisterPublicRoutes(public)

	body, _ := json.Marshal(validInput("maria", "11144477735"))
	rec := httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data Profile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	dup, _ := json.Marshal(validInput("joao", "11144477735"))
	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(dup)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Este CPF já está cadastrado.")

	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/neighborhoods", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Trindade")

	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/validate/cpf?cpf=11144477735", nil))
	assert.Contains(t, rec.Body.String(), `"available":false`)

	citizen := chi.NewRouter()
	citizen.Use(withSubject(created.Data.AccountID, false))
	handler.RegisterRoutes(citizen)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/me", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"birth_date":"1995-06-15"`)

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/accounts/me/profile", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	admin := chi.NewRouter()
	admin.Use(withSubject(uuid.New(), true))
	admin.Group(func(r chi.Router) {
		r.Use(httpmiddleware.RequireAdmin)
		handler.RegisterAdminRoutes(r)
	})

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/profiles/inactive", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/profiles?page=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/profiles/"+created.Data.ID.String()+"/reactivate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/profiles/export.xlsx", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "perfis-")

	rec = httptest.NewRecorder()
	citizen.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/profiles", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
