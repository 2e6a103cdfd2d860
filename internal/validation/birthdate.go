package validation

import (
	"time"

	"github.com/gestaozabele/floripa/internal/stats"
)

const (
	MinAge = 16
	MaxAge = 120
)

// BirthDate garante data não futura e idade entre MinAge e MaxAge em relação a today.
func BirthDate(birth, today time.Time) error {
	if birth.IsZero() {
		return newError("birth_date", "Data de nascimento é obrigatória.")
	}

	if dateOnly(birth).After(dateOnly(today)) {
		return newError("birth_date", "Data de nascimento não pode ser futura.")
	}

	age := stats.Age(birth, today)
	if age < MinAge {
		return newError("birth_date", "Contribuinte deve ter pelo menos 16 anos.")
	}
	if age > MaxAge {
		return newError("birth_date", "Data de nascimento inválida.")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
