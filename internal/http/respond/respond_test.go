package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/floripa/internal/validation"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Page
		wantErr bool
	}{
		{"padrao", "", Page{Number: 1, Size: 20}, false},
		{"explicito", "?page=3&page_size=50", Page{Number: 3, Size: 50}, false},
		{"limite", "?page_size=500", Page{Number: 1, Size: 100}, false},
		{"page texto", "?page=abc", Page{}, true},
		{"page_size texto", "?page_size=dez", Page{}, true},
		{"page zero", "?page=0", Page{}, true},
		{"page no limite", "?page=100000&page_size=100", Page{Number: MaxPage, Size: 100}, false},
		{"page enorme", "?page=100000000000000000&page_size=100", Page{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
			got, err := ParsePage(req, 20, 100)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, validation.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewPageResult(t *testing.T) {
	res := NewPageResult[int](nil, 41, Page{Number: 2, Size: 20})
	assert.Equal(t, 3, res.TotalPages)
	assert.NotNil(t, res.Results)
	assert.Equal(t, 20, Page{Number: 2, Size: 20}.Offset())
}

func TestValidationEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Validation(rec, validation.New("cpf", "CPF inválido."))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION", body.Error.Code)
	assert.Equal(t, "CPF inválido.", body.Error.Message)

	rec = httptest.NewRecorder()
	Validation(rec, errors.New("outro"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
