package alerts

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/http/respond"
	"github.com/gestaozabele/floripa/internal/validation"
)

const multipartMemory = 8 << 20

// Handler expõe as rotas de alertas.
type Handler struct {
	service *Service
	quota   func(http.Handler) http.Handler
}

// NewHandler cria o handler; quota limita a criação de alertas (pode ser nil).
func NewHandler(service *Service, quota func(http.Handler) http.Handler) *Handler {
	if quota == nil {
		quota = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: service, quota: quota}
}

// RegisterRoutes monta rotas do cidadão autenticado.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.With(h.quota).Post("/", h.handleCreate)
		r.Get("/mine", h.handleListMine)
		r.Get("/stats", h.handleMyStats)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleOwnerUpdate)
		r.Delete("/{id}", h.handleOwnerDelete)
	})
}

// RegisterAdminRoutes monta rotas de moderação.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/alerts", func(r chi.Router) {
		r.Get("/", h.handleAdminList)
		r.Get("/stats", h.handleStats)
		r.Patch("/{id}", h.handleAdminUpdate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var (
		input CreateInput
		err   error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		input, err = parseMultipart(w, r)
	} else {
		err = respond.Decode(r, &input)
	}
	if err != nil {
		respond.Validation(w, err)
		return
	}

	alert, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, alert)
}

func parseMultipart(w http.ResponseWriter, r *http.Request) (CreateInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxMediaSize+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return CreateInput{}, validation.New("media", "Arquivo muito grande. Tamanho máximo: 50MB.")
		}
		return CreateInput{}, validation.New("", "formulário inválido")
	}

	input := CreateInput{
		Category:     r.FormValue("category"),
		Description:  r.FormValue("description"),
		LocationText: r.FormValue("location_text"),
	}

	var err error
	if input.Latitude, err = formFloat(r, "latitude"); err != nil {
		return input, err
	}
	if input.Longitude, err = formFloat(r, "longitude"); err != nil {
		return input, err
	}
	if raw := strings.TrimSpace(r.FormValue("priority")); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return input, validation.New("priority", "Prioridade inválida.")
		}
		input.Priority = &p
	}

	file, header, err := r.FormFile("media")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil
	}
	if err != nil {
		return input, validation.New("media", "arquivo inválido")
	}
	defer file.Close()

	if _, err := validation.Media(header.Filename, header.Size); err != nil {
		return input, err
	}
	body, err := io.ReadAll(file)
	if err != nil {
		return input, validation.New("media", "arquivo inválido")
	}
	input.Media = &MediaUpload{Filename: header.Filename, Size: header.Size, Body: body}
	return input, nil
}

func formFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, validation.New(name, "Coordenada inválida.")
	}
	return &v, nil
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	filter, page, err := listFilter(r)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	alerts, total, err := h.service.ListMine(r.Context(), actor, filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(alerts, total, page))
}

func (h *Handler) handleMyStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	out, err := h.service.MyStats(r.Context(), actor)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

// listFilter lê status, category, priority, search e a paginação.
func listFilter(r *http.Request) (Filter, respond.Page, error) {
	page, err := respond.ParsePage(r, 20, 100)
	if err != nil {
		return Filter{}, page, err
	}
	priority, err := respond.IntParam(r, "priority")
	if err != nil {
		return Filter{}, page, err
	}
	q := r.URL.Query()
	return Filter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Priority: priority,
		Search:   q.Get("search"),
		Limit:    page.Size,
		Offset:   page.Offset(),
	}, page, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	alert, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

func (h *Handler) handleOwnerUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	var input UpdateInput
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	alert, err := h.service.OwnerUpdate(r.Context(), actor, id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

func (h *Handler) handleOwnerDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	if err := h.service.OwnerDelete(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Alerta excluído."})
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := listFilter(r)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	alerts, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(alerts, total, page))
}

func (h *Handler) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	var input UpdateInput
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	alert, err := h.service.AdminUpdate(r.Context(), id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Stats(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

func actorFrom(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	id, err := httpmiddleware.SubjectID(r.Context())
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return Actor{}, false
	}
	return Actor{
		ID:       id,
		Username: httpmiddleware.GetUsername(r.Context()),
		Admin:    httpmiddleware.IsAdmin(r.Context()),
	}, true
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case validation.IsValidation(err):
		respond.Validation(w, err)
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "Alerta não encontrado.", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "FORBIDDEN", "Sem permissão para este alerta.", nil)
	case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrCannotDelete):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrMediaUnavailable):
		respond.Error(w, http.StatusServiceUnavailable, "INTERNAL", err.Error(), nil)
	default:
		respond.Internal(w, r, err)
	}
}
