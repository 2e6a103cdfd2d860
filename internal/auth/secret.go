package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/alexedwards/argon2id"
)

const refreshTokenBytes = 32

// passwordPolicy segue a recomendação OWASP para Argon2id (64 MiB, 3 passadas).
var passwordPolicy = argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash devolve a senha no formato PHC ($argon2id$v=19$...).
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, &passwordPolicy)
}

// Verify confere a senha; hash malformado retorna erro.
func Verify(password, encoded string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encoded)
}

// GenerateRefreshToken sorteia o token entregue ao cliente e devolve junto o hash que vai para o Redis.
func GenerateRefreshToken() (string, string, error) {
	var buf [refreshTokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf[:])
	return token, HashRefreshToken(token), nil
}

// HashRefreshToken nunca guarda o token em claro.
func HashRefreshToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// RefreshRedisKey separa sessões por audiência: refresh:<aud>:<hash>.
func RefreshRedisKey(audience, tokenHash string) string {
	return "refresh:" + audience + ":" + tokenHash
}
