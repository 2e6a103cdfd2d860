package posts

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/http/respond"
	"github.com/gestaozabele/floripa/internal/validation"
)

const feedPageSize = 10

// Handler expõe o feed público e a gestão de posts.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes monta o feed.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/feed", h.handleFeed)
	r.Get("/feed/{id}", h.handleRead)
}

// RegisterAdminRoutes monta a gestão de posts.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/posts", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/stats", h.handleStats)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleArchive)
	})
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := respond.ParsePage(r, feedPageSize, 100)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	featured, err := respond.BoolParam(r, "featured")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	posts, total, err := h.service.Feed(r.Context(), Filter{
		Featured: featured,
		Search:   r.URL.Query().Get("search"),
		Limit:    page.Size,
		Offset:   page.Offset(),
	})
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(posts, total, page))
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	post, err := h.service.Read(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := respond.ParsePage(r, 20, 100)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	featured, err := respond.BoolParam(r, "featured")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	q := r.URL.Query()
	posts, total, err := h.service.List(r.Context(), Filter{
		Status:   q.Get("status"),
		Featured: featured,
		Search:   q.Get("search"),
		Limit:    page.Size,
		Offset:   page.Offset(),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(posts, total, page))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	authorID, err := httpmiddleware.SubjectID(r.Context())
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}
	var input CreateInput
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	post, err := h.service.Create(r.Context(), authorID, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, post)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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
	post, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	post, err := h.service.Archive(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Stats(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case validation.IsValidation(err):
		respond.Validation(w, err)
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "Post não encontrado.", nil)
	case errors.Is(err, ErrAlertNotFound):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", "Alerta de origem não encontrado.", map[string]string{"field": "alert_id"})
	default:
		respond.Internal(w, r, err)
	}
}
