package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type textRule struct {
	field    string
	label    string
	feminine bool
	min      int
	max      int
	maxLabel string
}

var (
	alertDescriptionRule = textRule{field: "description", label: "Descrição do alerta", feminine: true, min: 10, max: 2000, maxLabel: "2.000"}
	postBodyRule         = textRule{field: "body", label: "Conteúdo do post", min: 10, max: 10000, maxLabel: "10.000"}
	commentBodyRule      = textRule{field: "body", label: "Comentário", min: 3, max: 1000, maxLabel: "1.000"}
)

func (r textRule) check(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		empty := "vazio"
		if r.feminine {
			empty = "vazia"
		}
		return "", newError(r.field, fmt.Sprintf("%s não pode estar %s", r.label, empty))
	}
	if utf8.RuneCountInString(trimmed) < r.min {
		return "", newError(r.field, fmt.Sprintf("%s deve ter pelo menos %d caracteres", r.label, r.min))
	}
	if utf8.RuneCountInString(value) > r.max {
		return "", newError(r.field, fmt.Sprintf("%s não pode exceder %s caracteres", r.label, r.maxLabel))
	}
	return trimmed, nil
}

// AlertDescription valida descrição do alerta (10 a 2000 caracteres).
func AlertDescription(value string) (string, error) {
	return alertDescriptionRule.check(value)
}

// PostBody valida conteúdo do post (10 a 10000 caracteres).
func PostBody(value string) (string, error) {
	return postBodyRule.check(value)
}

// CommentBody valida texto do comentário (3 a 1000 caracteres).
func CommentBody(value string) (string, error) {
	return commentBodyRule.check(value)
}

// PostTitle exige título não vazio de até 200 caracteres.
func PostTitle(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", newError("title", "Título do post é obrigatório")
	}
	if utf8.RuneCountInString(trimmed) > 200 {
		return "", newError("title", "Título do post não pode exceder 200 caracteres")
	}
	return trimmed, nil
}
