package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

var (
	ErrUserExists    = repository.ErrUserExists
	ErrUserNotFound  = repository.ErrUserNotFound
	ErrWrongPassword = errors.New("wrong password")
)

type AuthUserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	FindByWhatsApp(ctx context.Context, whatsapp string) (domain.User, error)
	SetRole(ctx context.Context, whatsapp string, role domain.Role) error
}

type AuthService struct {
	repo  AuthUserRepository
	admin string
}

// NewAuthService grants the admin role to the account registered under adminWhatsApp.
func NewAuthService(repo AuthUserRepository, adminWhatsApp string) *AuthService {
	return &AuthService{
		repo:  repo,
		admin: adminWhatsApp,
	}
}

func (s *AuthService) Signup(ctx context.Context, user domain.User) (domain.User, error) {
	hash, err := hashPassword(user.Password)
	if err != nil {
		return domain.User{}, err
	}
	user.Password = hash

	user.Role = domain.RoleMember
	if s.admin != "" && user.WhatsApp == s.admin {
		user.Role = domain.RoleAdmin
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *AuthService) Login(ctx context.Context, whatsapp, password string) (domain.User, error) {
	user, err := s.repo.FindByWhatsApp(ctx, whatsapp)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrUserNotFound
		}

		return domain.User{}, fmt.Errorf("s.repo.FindByWhatsApp -> %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return domain.User{}, ErrWrongPassword
	}

	if s.admin != "" && user.WhatsApp == s.admin && !user.IsAdmin() {
		if err := s.repo.SetRole(ctx, user.WhatsApp, domain.RoleAdmin); err != nil {
			return domain.User{}, fmt.Errorf("s.repo.SetRole -> %w", err)
		}
		user.Role = domain.RoleAdmin
	}

	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}
