package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/auth"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	ErrAccountDisabled    = errors.New("conta desativada")
	ErrRefreshInvalid     = errors.New("refresh token inválido")
)

const sessionActive = "active"

type authRepository interface {
	GetAccountByLogin(ctx context.Context, login string) (*repo.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*repo.Account, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	GetRefreshToken(ctx context.Context, hash string) (*repo.RefreshToken, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (*repo.RefreshToken, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
	RevokeRefreshToken(ctx context.Context, hash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService emite access tokens e mantém uma sessão de refresh por conta.
// A sessão vive no Postgres (auditoria) e no Redis (checagem rápida).
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(r authRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL, now: util.Now}
}

// JWT é usado pelo middleware de autenticação.
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult é devolvido por Login e Refresh.
type LoginResult struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
	Account       *repo.Account
	Roles         []string
}

// Login aceita username ou email. Conta inativa só é revelada com a senha correta.
func (s *AuthService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.repo.GetAccountByLogin(ctx, login)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}

	if ok, err := auth.Verify(password, account.PasswordHash); err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !account.Active {
		return nil, ErrAccountDisabled
	}

	result, err := s.openSession(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TouchLastLogin(ctx, account.ID); err != nil {
		log.Warn().Err(err).Str("account_id", account.ID.String()).Msg("falha ao registrar último login")
	}
	return result, nil
}

// Refresh rotaciona: o token apresentado deixa de valer assim que o novo é emitido.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	record, err := s.session(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.GetAccountByID(ctx, record.Subject)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrRefreshInvalid
	case err != nil:
		return nil, err
	case !account.Active:
		return nil, ErrAccountDisabled
	}

	result, err := s.openSession(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := s.dropSession(ctx, record.TokenHash); err != nil {
		return nil, err
	}
	return result, nil
}

// Logout é idempotente; token vazio ou desconhecido não gera erro.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.dropSession(ctx, auth.HashRefreshToken(rawToken))
}

// Me devolve a conta do subject e os papéis atuais (lidos do banco, não do token).
func (s *AuthService) Me(ctx context.Context, subject uuid.UUID) (*repo.Account, []string, error) {
	account, err := s.repo.GetAccountByID(ctx, subject)
	if err != nil {
		return nil, nil, err
	}
	if !account.Active {
		return nil, nil, ErrAccountDisabled
	}
	return account, RolesFor(account), nil
}

// session valida o refresh no Redis e depois no banco.
func (s *AuthService) session(ctx context.Context, rawToken string) (*repo.RefreshToken, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}
	audience := s.jwt.Audience()
	hash := auth.HashRefreshToken(rawToken)

	state, err := s.redis.Get(ctx, auth.RefreshRedisKey(audience, hash)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrRefreshInvalid
	case err != nil:
		return nil, err
	case state != sessionActive:
		return nil, ErrRefreshInvalid
	}

	record, err := s.repo.GetRefreshToken(ctx, hash)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrRefreshInvalid
	case err != nil:
		return nil, err
	}
	if record.Revoked || record.Audience != audience || !s.now().Before(record.ExpiresAt) {
		return nil, ErrRefreshInvalid
	}
	return record, nil
}

func (s *AuthService) openSession(ctx context.Context, account *repo.Account) (*LoginResult, error) {
	roles := RolesFor(account)
	access, accessExp, err := s.jwt.GenerateAccessToken(account.ID.String(), account.Username, roles)
	if err != nil {
		return nil, err
	}
	refresh, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	audience := s.jwt.Audience()
	now := s.now()
	refreshExp := now.Add(s.refreshTTL)
	if _, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   account.ID,
		Audience:  audience,
		TokenHash: hash,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := s.repo.InvalidateOtherRefreshTokens(ctx, account.ID, audience, hash); err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, auth.RefreshRedisKey(audience, hash), sessionActive, s.refreshTTL).Err(); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   access,
		AccessExpiry:  accessExp,
		RefreshToken:  refresh,
		RefreshExpiry: refreshExp,
		Account:       account,
		Roles:         roles,
	}, nil
}

func (s *AuthService) dropSession(ctx context.Context, hash string) error {
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, auth.RefreshRedisKey(s.jwt.Audience(), hash)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
