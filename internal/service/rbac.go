package service

import (
	"strings"

	"github.com/gestaozabele/floripa/internal/auth"
	"github.com/gestaozabele/floripa/internal/repo"
)

// RolesFor deriva os papéis emitidos no token a partir da conta.
func RolesFor(account *repo.Account) []string {
	roles := []string{auth.RoleCitizen}
	if account != nil && account.IsAdmin {
		roles = appendIfMissing(roles, auth.RoleAdmin)
	}
	return roles
}

func appendIfMissing(values []string, value string) []string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return values
	}
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
