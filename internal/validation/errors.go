package validation

import (
	"errors"
	"strings"
)

// Error descreve uma falha de validação de entrada do usuário.
type Error struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// New cria erro de validação para o campo informado.
func New(field, message string) error {
	return newError(field, message)
}

// IsValidation indica se err (ou algum erro embrulhado) é de validação.
func IsValidation(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// AsValidation extrai o erro de validação, se houver.
func AsValidation(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// OnlyDigits remove tudo que não for dígito ASCII.
func OnlyDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
