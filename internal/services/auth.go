package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jobtracker/apiserver/config"
	"github.com/jobtracker/apiserver/internal/store"
	"github.com/jobtracker/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// Column widths of users.
const (
	maxUsernameLength = 50
	maxEmailLength    = 255
)

const msgInvalidCredentials = "invalid email or password"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int    `json:"userId"`
	Username string `json:"username"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// AuthService registers users, checks credentials and issues and verifies
// session tokens.
type AuthService struct {
	repo       UserRepository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	compare    func(hash, password []byte) error

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(repo UserRepository, cfg config.AuthConfig) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		repo:       repo,
		secret:     []byte(cfg.JWTSecret),
		tokenTTL:   ttl,
		bcryptCost: cost,
		now:        time.Now,
		compare:    bcrypt.CompareHashAndPassword,
	}
}

// unknownUserHash is compared against on a login for an email with no account,
// so both failures spend the same bcrypt work.
func (s *AuthService) unknownUserHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("no-such-user-password"), s.bcryptCost)
		if err != nil {
			hash, _ = bcrypt.GenerateFromPassword([]byte("no-such-user-password"), bcrypt.DefaultCost)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Register creates an account and signs the user in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return AuthResult{}, validationError("username, email and password are required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return AuthResult{}, validationError("password must be at least %d characters", minPasswordLength)
	}
	if err := checkLength("username", username, maxUsernameLength); err != nil {
		return AuthResult{}, err
	}
	if err := checkLength("email", email, maxEmailLength); err != nil {
		return AuthResult{}, err
	}

	exists, err := s.repo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return AuthResult{}, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return AuthResult{}, conflictError("user with this email or username already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return AuthResult{}, validationError("password must be at most 72 bytes")
		}
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return AuthResult{}, conflictError("user with this email or username already exists")
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	return s.signIn(user)
}

// Login checks the credentials. An unknown email and a wrong password fail
// with the same message.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, validationError("email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.compare(s.unknownUserHash(), []byte(password))
			return AuthResult{}, unauthorizedError(msgInvalidCredentials)
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, unauthorizedError(msgInvalidCredentials)
	}

	return s.signIn(user)
}

// VerifyToken returns the claims of a valid token. A missing token is
// ErrUnauthorized, anything else wrong with it is ErrForbidden.
func (s *AuthService) VerifyToken(tokenString string) (Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, unauthorizedError("access token required")
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID < 1 {
		return Claims{}, forbiddenError("invalid or expired token")
	}
	return claims, nil
}

// CurrentUser loads the account behind a verified token.
func (s *AuthService) CurrentUser(ctx context.Context, userID int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFoundError("user not found")
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) signIn(user types.User) (AuthResult, error) {
	token, err := s.issueToken(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("sign token: %w", err)
	}
	return AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) issueToken(user types.User) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID:   user.ID,
		Username: user.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
