package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrRoleNotAllowed     = errors.New("role not allowed for this operation")
)

const defaultTeacherModule = "General"

// Claims extends JWT standard claims with the account identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID int        `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

// AccountStore is the account persistence AuthService depends on.
type AccountStore interface {
	GetByEmail(ctx context.Context, role model.Role, email string) (model.Account, error)
	GetByID(ctx context.Context, role model.Role, id int) (model.Account, error)
	Create(ctx context.Context, account model.Account) error
	SetActivation(ctx context.Context, role model.Role, id int, active bool) error
}

// AuthService handles registration, login and JWT issuance.
type AuthService struct {
	cfg      *config.Config
	accounts AccountStore
	log      zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, accounts AccountStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:      cfg,
		accounts: accounts,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Register creates an activated teacher or student account.
func (s *AuthService) Register(ctx context.Context, role model.Role, req model.RegisterRequest) (model.Account, error) {
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var account model.Account
	switch role {
	case model.RoleTeacher:
		account = &model.TeacherAccount{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			Module:       defaultTeacherModule,
			IsActivated:  true,
		}
	case model.RoleStudent:
		account = &model.StudentAccount{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			IsActivated:  true,
		}
	default:
		return nil, ErrRoleNotAllowed
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info().Str("role", string(role)).Int("account_id", account.AccountID()).Msg("Account registered")
	return account, nil
}

// Login checks the credentials of an account of the given role and issues a token.
func (s *AuthService) Login(ctx context.Context, role model.Role, email, password string) (*model.LoginResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, role, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if err := s.CheckPassword(account.PasswordDigest(), password); err != nil {
		return nil, err
	}
	if !account.Active() {
		return nil, ErrAccountDeactivated
	}

	token, expiresAt, err := s.GenerateToken(account)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:          token,
		ExpirationDate: expiresAt.Unix(),
		Account:        account,
		Role:           account.AccountRole(),
	}, nil
}

// GenerateToken signs a JWT for the account.
func (s *AuthService) GenerateToken(account model.Account) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(account.AccountID()),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: account.AccountID(),
		Email:  account.AccountEmail(),
		Role:   account.AccountRole(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.Valid() {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// GetAccount loads the account behind a set of claims.
func (s *AuthService) GetAccount(ctx context.Context, role model.Role, id int) (model.Account, error) {
	account, err := s.accounts.GetByID(ctx, role, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

// IsActive reports whether the account may keep using the API.
func (s *AuthService) IsActive(ctx context.Context, role model.Role, id int) (bool, error) {
	if role == model.RoleAdmin {
		return true, nil
	}
	account, err := s.GetAccount(ctx, role, id)
	if err != nil {
		return false, err
	}
	return account.Active(), nil
}

// SetActivation activates or deactivates a teacher or student.
func (s *AuthService) SetActivation(ctx context.Context, role model.Role, id int, active bool) error {
	if role != model.RoleTeacher && role != model.RoleStudent {
		return ErrRoleNotAllowed
	}
	if err := s.accounts.SetActivation(ctx, role, id, active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("set activation: %w", err)
	}
	s.log.Info().Str("role", string(role)).Int("account_id", id).Bool("active", active).Msg("Account activation changed")
	return nil
}
