package respond

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestaozabele/floripa/internal/validation"
)

// MaxPage limita page para que o OFFSET caiba em int mesmo com page_size máximo.
const MaxPage = 100000

// Page descreve a página solicitada.
type Page struct {
	Number int
	Size   int
}

// Offset calcula o deslocamento SQL da página.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage lê page e page_size. Valores não numéricos, menores que 1 ou page acima de MaxPage são rejeitados;
// page_size acima de maxSize é limitado a maxSize.
func ParsePage(r *http.Request, defaultSize, maxSize int) (Page, error) {
	page := Page{Number: 1, Size: defaultSize}

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPage {
			return Page{}, validation.New("page", "Parâmetro page inválido")
		}
		page.Number = n
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, validation.New("page_size", "Parâmetro page_size inválido")
		}
		page.Size = n
	}
	if page.Size > maxSize {
		page.Size = maxSize
	}

	return page, nil
}

// PageResult é o corpo padrão de listagens paginadas.
type PageResult[T any] struct {
	Count      int64 `json:"count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	Results    []T   `json:"results"`
}

// NewPageResult monta a resposta paginada.
func NewPageResult[T any](items []T, total int64, page Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if page.Size > 0 {
		pages = int((total + int64(page.Size) - 1) / int64(page.Size))
	}
	return PageResult[T]{
		Count:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: pages,
		Results:    items,
	}
}

// BoolParam lê parâmetro booleano opcional ("true", "false", "1", "0").
func BoolParam(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, validation.New(name, "Parâmetro "+name+" inválido")
	}
	return &b, nil
}

// IntParam lê parâmetro inteiro opcional.
func IntParam(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, validation.New(name, "Parâmetro "+name+" inválido")
	}
	return &n, nil
}

// UUIDParam lê parâmetro de rota UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, validation.New(name, "identificador inválido")
	}
	return id, nil
}

// UUIDQuery lê parâmetro de query UUID opcional.
func UUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, validation.New(name, "identificador inválido")
	}
	return &id, nil
}
