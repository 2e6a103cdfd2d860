package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin   = "ADMIN"
	RoleCitizen = "CIDADAO"
)

// Claims representa as informações presentes em um JWT de acesso.
type Claims struct {
	Roles    []string `json:"roles"`
	Username string   `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	audience  string
}

// NewJWTManager cria o gerenciador com segredo, TTL e audience configurados.
func NewJWTManager(secret string, accessTTL time.Duration, audience string) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL, audience: audience}
}

// Audience devolve a audience emitida nos tokens.
func (m *JWTManager) Audience() string {
	return m.audience
}

// GenerateAccessToken cria um JWT HS256 e devolve também o jti e a expiração.
func (m *JWTManager) GenerateAccessToken(subject, username string, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	expires := now.Add(m.accessTTL)

	claims := Claims{
		Roles:    roles,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expires, nil
}

// ParseAndValidate verifica assinatura, audience e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}

// HasRole verifica se role está na lista (sem diferenciar maiúsculas).
func HasRole(roles []string, role string) bool {
	role = strings.TrimSpace(role)
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}
