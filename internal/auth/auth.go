// Package auth handles account registration, login and JWT issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tresor/internal/finance"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmptyUsername      = errors.New("username is required")
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is what a successful register or login returns.
type Session struct {
	User      finance.User
	Token     string
	ExpiresIn int64 // seconds
}

type Service struct {
	users      finance.UserStore
	jwtSecret  []byte
	expiration time.Duration
}

type Config struct {
	Users      finance.UserStore
	JWTSecret  string
	Expiration time.Duration
}

func NewService(config Config) *Service {
	if config.Expiration == 0 {
		config.Expiration = 24 * time.Hour
	}
	return &Service{
		users:      config.Users,
		jwtSecret:  []byte(config.JWTSecret),
		expiration: config.Expiration,
	}
}

// Register creates an account and returns a fresh session.
func (s *Service) Register(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Session{}, ErrEmptyUsername
	}
	if len(password) < 8 {
		return Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, finance.User{
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		return Session{}, err
	}
	return s.newSession(user)
}

// Login verifies the password and returns a session. Unknown usernames
// and wrong passwords yield the same error.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, finance.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.newSession(user)
}

func (s *Service) newSession(user finance.User) (Session, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Session{
		User:      user,
		Token:     signed,
		ExpiresIn: int64(s.expiration.Seconds()),
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
