package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/floripa/internal/stats"
)

var (
	ErrNotFound       = errors.New("perfil não encontrado")
	ErrCPFTaken       = errors.New("Este CPF já está cadastrado.")
	ErrAccountTaken   = errors.New("Nome de usuário ou e-mail já cadastrado.")
	ErrProfileExists  = errors.New("Conta já possui perfil.")
	ErrAlreadyActive  = errors.New("Perfil já está ativo.")
	ErrCPFImmutable   = errors.New("CPF não pode ser alterado.")
	ErrLookupDisabled = errors.New("consulta de CEP desabilitada")
)

// Profile é o cadastro do cidadão junto com os dados da conta dona.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CPF          string    `json:"cpf"`
	BirthDate    time.Time `json:"-"`
	Phone        string    `json:"phone"`
	AddressText  string    `json:"address_text"`
	Neighborhood string    `json:"neighborhood"`
	PostalCode   string    `json:"postal_code"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// preenchidos por decorate
	FullName            string `json:"full_name"`
	Birth               string `json:"birth_date"`
	Age                 int    `json:"age"`
	CPFFormatted        string `json:"cpf_formatted"`
	PhoneFormatted      string `json:"phone_formatted"`
	PostalCodeFormatted string `json:"postal_code_formatted"`
}

// RegisterInput é o payload de cadastro de conta + perfil.
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	CPF             string `json:"cpf"`
	BirthDate       string `json:"birth_date"`
	Phone           string `json:"phone"`
	AddressText     string `json:"address_text"`
	Neighborhood    string `json:"neighborhood"`
	PostalCode      string `json:"postal_code"`
}

// CreateProfileParams agrupa campos já validados do perfil.
type CreateProfileParams struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	CPF          string
	BirthDate    time.Time
	Phone        string
	AddressText  string
	Neighborhood string
	PostalCode   string
}

// UpdateProfileInput é a edição parcial feita pelo próprio cidadão.
type UpdateProfileInput struct {
	CPF          *string `json:"cpf,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	BirthDate    *string `json:"birth_date,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	AddressText  *string `json:"address_text,omitempty"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
}

// UpdateProfileParams carrega os campos normalizados a gravar.
type UpdateProfileParams struct {
	AccountID    uuid.UUID
	FirstName    *string
	LastName     *string
	BirthDate    *time.Time
	Phone        *string
	AddressText  *string
	Neighborhood *string
	PostalCode   *string
}

// ProfileFilter define filtros da listagem administrativa.
type ProfileFilter struct {
	Search       string
	Neighborhood string
	Active       *bool
	Limit        int
	Offset       int
}

// Stats resume o cadastro de cidadãos.
type Stats struct {
	TotalUsers           int64              `json:"total_users"`
	TotalProfiles        int64              `json:"total_profiles"`
	ActiveProfiles       int64              `json:"active_profiles"`
	InactiveProfiles     int64              `json:"inactive_profiles"`
	CompletionRate       float64            `json:"completion_rate"`
	TopNeighborhoods     []stats.Count      `json:"top_neighborhoods"`
	MonthlyRegistrations []stats.MonthCount `json:"monthly_registrations"`
	AgeDistribution      map[string]int     `json:"age_distribution"`
	GeneratedAt          time.Time          `json:"generated_at"`
}

// CPFCheck é a resposta da validação pública de CPF.
type CPFCheck struct {
	Valid     bool   `json:"valid"`
	Available bool   `json:"available"`
	Formatted string `json:"formatted,omitempty"`
	Message   string `json:"message"`
}

// FieldCheck é a resposta da validação pública de telefone e CEP.
type FieldCheck struct {
	Valid     bool     `json:"valid"`
	Formatted string   `json:"formatted,omitempty"`
	Message   string   `json:"message"`
	Address   *Address `json:"address,omitempty"`
}
