package comments

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/http/respond"
	"github.com/gestaozabele/floripa/internal/validation"
)

// Handler expõe comentários públicos, do autor e da moderação.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/comments/post/{postID}", h.handleListForPost)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/comments", h.handleCreate)
	r.Patch("/comments/{id}", h.handleUpdate)
	r.Delete("/comments/{id}", h.handleDelete)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/comments", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/stats", h.handleStats)
		r.Post("/{id}/moderate", h.handleModerate)
	})
}

func (h *Handler) handleListForPost(w http.ResponseWriter, r *http.Request) {
	postID, err := respond.UUIDParam(r, "postID")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	page, err := respond.ParsePage(r, 20, 100)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	items, total, err := h.service.ListForPost(r.Context(), postID, page.Size, page.Offset())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(items, total, page))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subject(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	comment, err := h.service.Create(r.Context(), accountID, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, comment)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subject(w, r)
	if !ok {
		return
	}
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	var input struct {
		Body string `json:"body"`
	}
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	comment, err := h.service.Update(r.Context(), accountID, id, input.Body)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, comment)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := subject(w, r)
	if !ok {
		return
	}
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), accountID, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Comentário excluído com sucesso"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := respond.ParsePage(r, 20, 100)
	if err != nil {
		respond.Validation(w, err)
		return
	}
	filter := Filter{Search: r.URL.Query().Get("search"), Limit: page.Size, Offset: page.Offset()}
	if filter.Approved, err = respond.BoolParam(r, "approved"); err != nil {
		respond.Validation(w, err)
		return
	}
	if filter.Active, err = respond.BoolParam(r, "active"); err != nil {
		respond.Validation(w, err)
		return
	}
	if filter.PostID, err = respond.UUIDQuery(r, "post_id"); err != nil {
		respond.Validation(w, err)
		return
	}

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.NewPageResult(items, total, page))
}

func (h *Handler) handleModerate(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Validation(w, err)
		return
	}
	var input struct {
		Action string `json:"action"`
	}
	if err := respond.Decode(r, &input); err != nil {
		respond.Validation(w, err)
		return
	}
	comment, err := h.service.Moderate(r.Context(), id, input.Action, httpmiddleware.GetUsername(r.Context()))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"id":       comment.ID,
		"approved": comment.Approved,
		"active":   comment.Active,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Stats(r.Context())
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
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
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "Comentário não encontrado.", nil)
	case errors.Is(err, ErrPostNotFound):
		respond.Error(w, http.StatusNotFound, "NOT_FOUND", "Post não encontrado.", nil)
	case errors.Is(err, ErrParentNotFound), errors.Is(err, ErrNestedReply), errors.Is(err, ErrParentMismatch):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string]string{"field": "parent_id"})
	case errors.Is(err, ErrCommentsDisabled), errors.Is(err, ErrEditWindow),
		errors.Is(err, ErrDeleteWindow), errors.Is(err, ErrInvalidAction):
		respond.Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		respond.Internal(w, r, err)
	}
}
