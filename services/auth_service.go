package services

import (
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/repositories"
	"fmt"
	"strings"
	"time"
)

type IAuthService interface {
	Login(username, password string) (Session, error)
	Register(username, displayName, password string) (Session, error)
}

type AuthService struct {
	userRepository    repositories.IUserRepository
	secret            []byte
	authTokenDuration time.Duration
}

type Token string

func (t Token) String() string {
	return string(t)
}

// Session is what a successful login hands back to the caller.
type Session struct {
	Identity domain.Identity
	Token    Token
}

func NewAuthService(repo repositories.IUserRepository, secret string, authTokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, secret: []byte(secret), authTokenDuration: authTokenDuration}
}

func (s *AuthService) Register(username, displayName, password string) (Session, error) {
	displayName = strings.TrimSpace(displayName)
	valReq := auth.RegisterRequest{
		Username:    username,
		DisplayName: displayName,
		Password:    password,
	}

	// Business rules are checked before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, displayName, hashedPassword)
	if err != nil {
		return Session{}, err // ErrUserAlreadyExists when the username is taken
	}

	return s.issue(user)
}

func (s *AuthService) Login(username, password string) (Session, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user domain.User) (Session, error) {
	token, err := auth.GenerateToken(user.Identity(), user.Roles, s.secret, s.authTokenDuration)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Identity: user.Identity(), Token: Token(token)}, nil
}
