package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Address é o endereço devolvido pela consulta de CEP.
type Address struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// AddressLookup resolve um CEP em endereço.
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*Address, error)
}

// ErrCEPNotFound indica CEP inexistente na base consultada.
var ErrCEPNotFound = errors.New("CEP não encontrado")

// ViaCEPClient consulta https://viacep.com.br.
type ViaCEPClient struct {
	client *resty.Client
}

type viaCEPResponse struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	Erro        any    `json:"erro"`
}

// NewViaCEPClient cria o cliente com baseURL e timeout.
func NewViaCEPClient(baseURL string, timeout time.Duration) *ViaCEPClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("Accept", "application/json")
	return &ViaCEPClient{client: client}
}

// Lookup consulta o CEP (8 dígitos).
func (c *ViaCEPClient) Lookup(ctx context.Context, cep string) (*Address, error) {
	var out viaCEPResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("cep", cep).
		SetResult(&out).
		Get("/ws/{cep}/json/")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 400 || resp.StatusCode() == 404 {
		return nil, ErrCEPNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("viacep: status %d", resp.StatusCode())
	}
	if notFound(out.Erro) {
		return nil, ErrCEPNotFound
	}

	return &Address{
		PostalCode:   cep,
		Street:       out.Logradouro,
		Complement:   out.Complemento,
		Neighborhood: out.Bairro,
		City:         out.Localidade,
		State:        out.UF,
	}, nil
}

// a API devolve "erro": true ou "erro": "true"
func notFound(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	}
	return false
}
