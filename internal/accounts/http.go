package accounts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/http/respond"
	"github.com/gestaozabele/floripa/internal/validation"
)

// Handler expõe as rotas de cadastro e perfis.
type Handler struct {
	service *Service
	loc     *time.Location
}

func NewHandler(service *Service, loc *time.Location) *Handler {
	return &Handler{service: service, loc: loc}
}

// RegisterPublicRoutes monta rotas sem autenticação.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Get("/accounts/neighborhoods", h.handleNeighborhoods)
	r.Get("/accounts/validate/cpf", h.handleValidateCPF)
	r.Get("/accounts/validate/phone", h.handleValidatePhone)
	r.Get("/accounts/validate/cep", h.handleValidateCEP)
}

// RegisterRoutes monta rotas do cidadão autenticado.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/accounts/me", h.handleMe)
	r.Put("/accounts/me/profile", h.handleUpdateProfile)
	r.Delete("/accounts/me/profile", h.handleDeactivate)
}

// RegisterAdminRoutes monta rotas administrativas (exigem RequireAdmin no grupo).
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/profiles", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/inactive", h.handleListInactive)
		r.Get("/stats", h.handleStats)
		r.Get("/export.xlsx", h.handleExport)
		r.Patch("/{id}/reactivate", h.handleReactivate)
	})
}

// HandleRegister cria conta e perfil.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}

	profile, err := h.service.Register(r.Context(), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, profile)
}

func (h *Handler) handleNeighborhoods(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{"neighborhoods": validation.Neighborhoods()})
}

func (h *Handler) handleValidateCPF(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.CheckCPF(r.Context(), r.URL.Query().Get("cpf"))
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleValidatePhone(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.service.CheckPhone(r.URL.Query().Get("phone")))
}

func (h *Handler) handleValidateCEP(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.service.CheckCEP(r.Context(), r.URL.Query().Get("cep")))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subject(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Me(r.Context(), accountID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subject(w, r)
	if !ok {
		return
	}
	var input UpdateProfileInput
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), accountID, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subject(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), accountID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Perfil desativado."})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseFilter(r)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	h.list(w, r, filter, page)
}

func (h *Handler) handleListInactive(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseFilter(r)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	inactive := false
	filter.Active = &inactive
	h.list(w, r, filter, page)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter ProfileFilter, page respond.Page) {
	profiles, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(profiles, total, page))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Stats(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, _, err := parseFilter(r)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	profiles, err := h.service.Export(r.Context(), filter)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, profiles, h.loc); err != nil {
		respond.Internal(w, r, err)
		return
	}

	filename := fmt.Sprintf("perfis-%s.xlsx", time.Now().In(h.loc).Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	log.Info().Str("admin", httpmiddleware.GetUsername(r.Context())).Int("rows", len(profiles)).Msg("exportação de perfis")
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	profile, err := h.service.Reactivate(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}

func parseFilter(r *http.Request) (ProfileFilter, respond.Page, error) {
	page, err := respond.ParsePage(r, 20, 100)
	if err != nil {
		return ProfileFilter{}, page, err
	}
	active, err := respond.BoolParam(r, "active")
	if err != nil {
		return ProfileFilter{}, page, err
	}
	q := r.URL.Query()
	return ProfileFilter{
		Search:       strings.TrimSpace(q.Get("search")),
		Neighborhood: strings.TrimSpace(q.Get("neighborhood")),
		Active:       active,
		Limit:        page.Size,
		Offset:       page.Offset(),
	}, page, nil
}

func subject(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := httpmiddleware.SubjectID(r.Context())
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return uuid.Nil, false
	}
	return id, true
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case validation.IsValidation(err):
		respond.Validation(w, err)
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "Perfil não encontrado.", nil)
	case errors.Is(err, ErrCPFTaken):
		respond.Error(w, http.StatusConflict, "CONFLICT", ErrCPFTaken.Error(), map[string]string{"field": "cpf"})
	case errors.Is(err, ErrAccountTaken), errors.Is(err, ErrProfileExists), errors.Is(err, ErrAlreadyActive):
		respond.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, context.Canceled):
		respond.Error(w, http.StatusRequestTimeout, "INTERNAL", "requisição cancelada", nil)
	default:
		respond.Internal(w, r, err)
	}
}
