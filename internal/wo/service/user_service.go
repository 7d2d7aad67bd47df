package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService 用户服务
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	EmployeeNo string
	Name       string
	Email      string
	Password   string
	Role       string
}

// Create 创建用户
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Name == "" || len(in.Password) < 8 {
		return nil, fmt.Errorf("name, email and a password of at least 8 characters are required")
	}
	switch in.Role {
	case entity.RoleAdmin, entity.RoleOperator, entity.RoleViewer:
	case "":
		in.Role = entity.RoleOperator
	default:
		return nil, fmt.Errorf("unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := &entity.User{
		ID:           strings.ReplaceAll(uuid.New().String(), "-", ""),
		EmployeeNo:   in.EmployeeNo,
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
