// Package respond padroniza o envelope JSON das respostas da API.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/validation"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

const maxBodyBytes = 1 << 20

// JSON escreve envelope de sucesso.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// Error escreve envelope de erro e mantém formato consistente.
func Error(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// Validation responde 400 a partir de um erro de validação.
func Validation(w http.ResponseWriter, err error) {
	if verr, ok := validation.AsValidation(err); ok {
		var details any
		if verr.Field != "" {
			details = map[string]string{"field": verr.Field}
		}
		Error(w, http.StatusBadRequest, "VALIDATION", verr.Message, details)
		return
	}
	Error(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
}

// Internal registra o erro e responde 500 sem expor detalhes.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("erro interno")
	Error(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

// Decode lê o corpo JSON da requisição em dst.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return validation.New("", "corpo da requisição obrigatório")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.New("", "corpo da requisição obrigatório")
		}
		return validation.New("", "payload inválido")
	}
	return nil
}
