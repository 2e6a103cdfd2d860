package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrDuplicate indica violação de unicidade (username ou email).
	ErrDuplicate = errors.New("registro duplicado")
)
