package alerts

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/floripa/internal/stats"
	"github.com/gestaozabele/floripa/internal/validation"
)

var (
	ErrNotFound         = errors.New("alerta não encontrado")
	ErrForbidden        = errors.New("sem permissão para este alerta")
	ErrAlreadyProcessed = errors.New("Alerta já foi processado e não pode ser alterado")
	ErrCannotDelete     = errors.New("Alerta só pode ser excluído enquanto pendente ou rejeitado")
	ErrMediaUnavailable = errors.New("Envio de mídia indisponível no momento")
)

const (
	CategoryFlood     = "flood"
	CategoryLandslide = "landslide"
	CategoryFire      = "fire"
	CategoryStorm     = "storm"
	CategoryAccident  = "accident"
	CategoryOther     = "other"

	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusPublished = "published"

	DefaultPriority = 1
)

var categoryLabels = map[string]string{
	CategoryFlood:     "Alagamento",
	CategoryLandslide: "Deslizamento",
	CategoryFire:      "Incêndio",
	CategoryStorm:     "Tempestade",
	CategoryAccident:  "Acidente",
	CategoryOther:     "Outro",
}

var statusLabels = map[string]string{
	StatusPending:   "Pendente",
	StatusAnalyzing: "Em análise",
	StatusApproved:  "Aprovado",
	StatusRejected:  "Rejeitado",
	StatusPublished: "Publicado",
}

// IsValidCategory indica se a categoria pertence ao enum.
func IsValidCategory(c string) bool {
	_, ok := categoryLabels[c]
	return ok
}

// IsValidStatus indica se o status pertence ao enum.
func IsValidStatus(s string) bool {
	_, ok := statusLabels[s]
	return ok
}

// CanOwnerEdit: o cidadão só edita enquanto pendente.
func CanOwnerEdit(status string) bool {
	return status == StatusPending
}

// CanOwnerDelete: o cidadão só exclui enquanto pendente ou rejeitado.
func CanOwnerDelete(status string) bool {
	return status == StatusPending || status == StatusRejected
}

// Alert é um relato de ocorrência enviado por um cidadão.
type Alert struct {
	ID            uuid.UUID            `json:"id"`
	AccountID     uuid.UUID            `json:"account_id"`
	Username      string               `json:"username"`
	Category      string               `json:"category"`
	CategoryLabel string               `json:"category_label"`
	Description   string               `json:"description"`
	MediaKey      string               `json:"-"`
	MediaURL      string               `json:"media_url,omitempty"`
	MediaType     validation.MediaType `json:"media_type,omitempty"`
	LocationText  string               `json:"location_text,omitempty"`
	Latitude      *float64             `json:"latitude,omitempty"`
	Longitude     *float64             `json:"longitude,omitempty"`
	Status        string               `json:"status"`
	StatusLabel   string               `json:"status_label"`
	Priority      int                  `json:"priority"`
	Active        bool                 `json:"active"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (a *Alert) labels() *Alert {
	a.CategoryLabel = categoryLabels[a.Category]
	a.StatusLabel = statusLabels[a.Status]
	return a
}

// PriorityLabel descreve a prioridade (1-4).
func PriorityLabel(key string) string {
	if n, err := strconv.Atoi(key); err == nil {
		switch n {
		case 1:
			return "Baixa"
		case 2:
			return "Média"
		case 3:
			return "Alta"
		case 4:
			return "Crítica"
		}
	}
	return key
}

// Actor identifica quem executa a operação.
type Actor struct {
	ID       uuid.UUID
	Username string
	Admin    bool
}

// MediaUpload é o arquivo anexado no envio do alerta.
type MediaUpload struct {
	Filename string
	Size     int64
	Body     []byte
}

// CreateInput é o payload de criação de alerta.
type CreateInput struct {
	Category     string       `json:"category"`
	Description  string       `json:"description"`
	LocationText string       `json:"location_text"`
	Latitude     *float64     `json:"latitude"`
	Longitude    *float64     `json:"longitude"`
	Priority     *int         `json:"priority"`
	Media        *MediaUpload `json:"-"`
}

// CreateParams são os campos validados a inserir.
type CreateParams struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Category     string
	Description  string
	MediaKey     string
	MediaURL     string
	MediaType    validation.MediaType
	LocationText string
	Latitude     *float64
	Longitude    *float64
	Priority     int
}

// UpdateInput altera status e/ou prioridade.
type UpdateInput struct {
	Status   *string `json:"status"`
	Priority *int    `json:"priority"`
}

// Filter define filtros das listagens.
type Filter struct {
	AccountID *uuid.UUID
	Status    string
	Category  string
	Priority  *int
	Search    string
	Limit     int
	Offset    int
}

// Stats resume os alertas ativos.
type Stats struct {
	Total      int64         `json:"total"`
	Pending    int64         `json:"pending"`
	Approved   int64         `json:"approved"`
	Today      int64         `json:"today"`
	Week       int64         `json:"week"`
	ByCategory []stats.Count `json:"by_category"`
	ByStatus   []stats.Count `json:"by_status"`
	ByPriority []stats.Count `json:"by_priority"`
}
