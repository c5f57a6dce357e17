package repository

import (
	"context"
	"fmt"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

var (
	ErrUserExists   = dao.ErrUserExists
	ErrUserNotFound = dao.ErrUserNotFound
)

type UserDAO interface {
	Insert(ctx context.Context, user dao.User) (dao.User, error)
	FindByWhatsApp(ctx context.Context, whatsapp string) (dao.User, error)
	UpdateRole(ctx context.Context, whatsapp, role string) error
}

type UserRepository struct {
	dao UserDAO
}

func NewUserRepository(dao UserDAO) *UserRepository {
	return &UserRepository{
		dao: dao,
	}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *UserRepository) FindByWhatsApp(ctx context.Context, whatsapp string) (domain.User, error) {
	found, err := r.dao.FindByWhatsApp(ctx, whatsapp)
	if err != nil {
		return domain.User{}, fmt.Errorf("r.dao.FindByWhatsApp -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *UserRepository) SetRole(ctx context.Context, whatsapp string, role domain.Role) error {
	if err := r.dao.UpdateRole(ctx, whatsapp, string(role)); err != nil {
		return fmt.Errorf("r.dao.UpdateRole -> %w", err)
	}

	return nil
}

func (r *UserRepository) domainToDao(u domain.User) dao.User {
	return dao.User{
		WhatsApp:  u.WhatsApp,
		Name:      u.Name,
		Password:  u.Password,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func (r *UserRepository) daoToDomain(u dao.User) domain.User {
	return domain.User{
		WhatsApp:  u.WhatsApp,
		Name:      u.Name,
		Password:  u.Password,
		Role:      domain.Role(u.Role),
		CreatedAt: u.CreatedAt,
	}
}
