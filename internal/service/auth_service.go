package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zhejian/shortlink/internal/model"
	"github.com/zhejian/shortlink/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthServiceInterface issues and verifies credentials
type AuthServiceInterface interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error)
	Authenticate(ctx context.Context, token string) (model.Actor, error)
}

// AuthService handles account registration, login and bearer token checks
type AuthService struct {
	users      repository.UserRepositoryInterface
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewAuthService creates an auth service. Registration only ever creates
// regular accounts; administrators come from EnsureAdmin.
func NewAuthService(users repository.UserRepositoryInterface, secret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AuthService{
		users:      users,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Register validates the request and stores a new non-admin account with a
// bcrypt hash.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if req.Password != req.ConfirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	return s.create(ctx, username, email, req.Password, false)
}

// EnsureAdmin makes sure an administrator account exists for email. A missing
// account is created with the given credentials. An existing account is
// promoted only if password matches its stored hash, so an address someone
// else registered first is never elevated; that case yields ErrAdminConflict.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || password == "" || !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: admin account needs a username, email and password", ErrInvalidInput)
	}

	u, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return s.create(ctx, username, email, password, true)
	case err != nil:
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrAdminConflict
	}
	if !u.IsAdmin {
		if err := s.users.Promote(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("promote admin: %w", err)
		}
		u.IsAdmin = true
	}
	return u, nil
}

func (s *AuthService) create(ctx context.Context, username, email, password string, admin bool) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      admin,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return u, nil
}

// Login checks the password and issues an HS256 token whose subject is the user id.
// Unknown emails and wrong passwords are reported identically.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(u.ID, 10),
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &model.LoginResponse{
		Token:     token,
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Authenticate verifies a bearer token and reloads the account so the admin
// flag reflects the current database state.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return model.Actor{}, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return model.Actor{}, ErrInvalidToken
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.Actor{}, ErrInvalidToken
		}
		return model.Actor{}, err
	}
	return u.Actor(), nil
}

var _ AuthServiceInterface = (*AuthService)(nil)
