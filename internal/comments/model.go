package comments

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/floripa/internal/stats"
)

var (
	ErrNotFound         = errors.New("comentário não encontrado")
	ErrPostNotFound     = errors.New("post não encontrado ou não publicado")
	ErrCommentsDisabled = errors.New("Este post não permite comentários")
	ErrParentNotFound   = errors.New("Comentário pai não encontrado")
	ErrNestedReply      = errors.New("Não é possível responder a uma resposta")
	ErrParentMismatch   = errors.New("Comentário pai deve pertencer ao mesmo post")
	ErrEditWindow       = errors.New("Comentário só pode ser editado até 15 minutos após a criação")
	ErrDeleteWindow     = errors.New("Comentário só pode ser excluído até 1 hora após a criação")
	ErrInvalidAction    = errors.New("Ação inválida. Use: approve, reject ou delete")
)

const (
	EditWindow   = 15 * time.Minute
	DeleteWindow = time.Hour
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionDelete  = "delete"
)

// Comment é uma resposta de cidadão a um post publicado.
type Comment struct {
	ID         uuid.UUID  `json:"id"`
	PostID     uuid.UUID  `json:"post_id"`
	PostTitle  string     `json:"post_title"`
	AccountID  uuid.UUID  `json:"account_id"`
	Username   string     `json:"username"`
	AuthorName string     `json:"author_name"`
	Body       string     `json:"body"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Approved   bool       `json:"approved"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Replies    []Comment  `json:"replies,omitempty"`
	ReplyCount int        `json:"reply_count"`
	TimeAgo    string     `json:"time_ago,omitempty"`
}

// PostInfo traz o que importa do post para aceitar comentários.
type PostInfo struct {
	Status        string
	AllowComments bool
}

// CreateInput é o payload de criação.
type CreateInput struct {
	PostID   uuid.UUID  `json:"post_id"`
	Body     string     `json:"body"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// CreateParams são os campos validados a inserir.
type CreateParams struct {
	ID        uuid.UUID
	PostID    uuid.UUID
	AccountID uuid.UUID
	Body      string
	ParentID  *uuid.UUID
}

// Flags altera approved e/ou active; nil mantém o valor.
type Flags struct {
	Approved *bool
	Active   *bool
}

// Filter define filtros da listagem administrativa.
type Filter struct {
	PostID   *uuid.UUID
	Approved *bool
	Active   *bool
	Search   string
	Limit    int
	Offset   int
}

// Stats resume os comentários.
type Stats struct {
	Total    int64         `json:"total"`
	Approved int64         `json:"approved"`
	Pending  int64         `json:"pending"`
	Today    int64         `json:"today"`
	Week     int64         `json:"week"`
	TopUsers []stats.Count `json:"top_users"`
	TopPosts []stats.Count `json:"top_posts"`
}

// TimeAgo descreve em português o tempo decorrido desde created.
func TimeAgo(created, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	diff := now.Sub(created)
	switch {
	case diff < time.Minute:
		return "Agora mesmo"
	case diff < time.Hour:
		return plural(int(diff/time.Minute), "minuto")
	case diff < 24*time.Hour:
		return plural(int(diff/time.Hour), "hora")
	case diff < 7*24*time.Hour:
		return plural(int(diff/(24*time.Hour)), "dia")
	default:
		return created.In(loc).Format("02/01/2006 às 15:04")
	}
}

func plural(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s atrás", n, unit)
}
