package posts

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/floripa/internal/stats"
)

var (
	ErrNotFound      = errors.New("post não encontrado")
	ErrAlertNotFound = errors.New("alerta de origem não encontrado")
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var statusLabels = map[string]string{
	StatusDraft:     "Rascunho",
	StatusPublished: "Publicado",
	StatusArchived:  "Arquivado",
}

// IsValidStatus indica se o status pertence ao enum.
func IsValidStatus(s string) bool {
	_, ok := statusLabels[s]
	return ok
}

// Post é um boletim público publicado pela administração.
type Post struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	AlertID       *uuid.UUID `json:"alert_id,omitempty"`
	AuthorID      uuid.UUID  `json:"author_id"`
	AuthorName    string     `json:"author_name"`
	Status        string     `json:"status"`
	StatusLabel   string     `json:"status_label"`
	Featured      bool       `json:"featured"`
	AllowComments bool       `json:"allow_comments"`
	ViewCount     int64      `json:"view_count"`
	CommentCount  int64      `json:"comment_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// CreateInput é o payload de criação.
type CreateInput struct {
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	AlertID       *uuid.UUID `json:"alert_id"`
	Status        string     `json:"status"`
	Featured      bool       `json:"featured"`
	AllowComments *bool      `json:"allow_comments"`
}

// CreateParams são os campos validados a inserir.
type CreateParams struct {
	ID            uuid.UUID
	Title         string
	Body          string
	AlertID       *uuid.UUID
	AuthorID      uuid.UUID
	Status        string
	Featured      bool
	AllowComments bool
}

// UpdateInput é a edição parcial.
type UpdateInput struct {
	Title         *string    `json:"title"`
	Body          *string    `json:"body"`
	AlertID       *uuid.UUID `json:"alert_id"`
	Status        *string    `json:"status"`
	Featured      *bool      `json:"featured"`
	AllowComments *bool      `json:"allow_comments"`
}

// Filter define filtros das listagens.
type Filter struct {
	Status   string
	Featured *bool
	Search   string
	Limit    int
	Offset   int
}

// Stats resume os posts.
type Stats struct {
	Total         int64         `json:"total"`
	Published     int64         `json:"published"`
	Draft         int64         `json:"draft"`
	Archived      int64         `json:"archived"`
	Today         int64         `json:"today"`
	Week          int64         `json:"week"`
	TotalViews    int64         `json:"total_views"`
	TotalComments int64         `json:"total_comments"`
	MostViewed    []stats.Count `json:"most_viewed"`
	MostCommented []stats.Count `json:"most_commented"`
}
