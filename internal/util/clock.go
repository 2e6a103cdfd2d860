package util

import "time"

// Now é o relógio padrão dos serviços (UTC).
func Now() time.Time {
	return time.Now().UTC()
}
