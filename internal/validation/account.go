package validation

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]{3,150}$`)

// Email retorna erro para e-mails inválidos.
func Email(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", newError("email", "email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", newError("email", "email inválido")
	}
	return strings.ToLower(email), nil
}

// Password verifica requisitos mínimos de senha.
func Password(password, confirm string) error {
	if len(password) < 8 {
		return newError("password", "senha deve ter pelo menos 8 caracteres")
	}
	if password != confirm {
		return newError("password_confirm", "As senhas não coincidem.")
	}
	return nil
}

// Username aceita letras, dígitos e @.+-_ (3 a 150 caracteres).
func Username(username string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return "", newError("username", "nome de usuário inválido")
	}
	return username, nil
}

// Required garante string não vazia.
func Required(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return newError(field, field+" obrigatório")
	}
	return nil
}
