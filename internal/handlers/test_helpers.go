package handlers

import (
	"context"
	"time"

	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/services"
)

// MockAuthService is a function-field fake of AuthServiceInterface. Tests set
// only the fields the handler under test calls.
type MockAuthService struct {
	RegisterFunc      func(ctx context.Context, input services.RegisterInput) (*models.User, error)
	CreateByAdminFunc func(ctx context.Context, input services.AdminCreateInput, actorID string) (*models.User, error)
	LoginFunc         func(ctx context.Context, key models.LoginKey, password string) (*models.TokenPair, *models.User, error)
	RefreshFunc       func(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error)
	LogoutFunc        func(ctx context.Context, accessToken string) error
	GetByIDFunc       func(ctx context.Context, targetID string, actor models.IdentityContext) (*models.User, error)
	UpdateSelfFunc    func(ctx context.Context, userID string, input services.SelfUpdateInput) (*models.User, error)
	UpdateByAdminFunc func(ctx context.Context, targetID string, input services.AdminUpdateInput, actorID string) (*models.User, error)
	DeleteByAdminFunc func(ctx context.Context, targetID, actorID string) error
	ListUsersFunc     func(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error)
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) CreateByAdmin(ctx context.Context, input services.AdminCreateInput, actorID string) (*models.User, error) {
	if m.CreateByAdminFunc != nil {
		return m.CreateByAdminFunc(ctx, input, actorID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, key models.LoginKey, password string) (*models.TokenPair, *models.User, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, key, password)
	}
	return nil, nil, models.ErrUnauthorized
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockAuthService) GetByID(ctx context.Context, targetID string, actor models.IdentityContext) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, targetID, actor)
	}
	return nil, models.ErrNotFound
}

func (m *MockAuthService) UpdateSelf(ctx context.Context, userID string, input services.SelfUpdateInput) (*models.User, error) {
	if m.UpdateSelfFunc != nil {
		return m.UpdateSelfFunc(ctx, userID, input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) UpdateByAdmin(ctx context.Context, targetID string, input services.AdminUpdateInput, actorID string) (*models.User, error) {
	if m.UpdateByAdminFunc != nil {
		return m.UpdateByAdminFunc(ctx, targetID, input, actorID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) DeleteByAdmin(ctx context.Context, targetID, actorID string) error {
	if m.DeleteByAdminFunc != nil {
		return m.DeleteByAdminFunc(ctx, targetID, actorID)
	}
	return models.ErrNotFound
}

func (m *MockAuthService) ListUsers(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, role, isActive)
	}
	return []*models.User{}, nil
}

func sampleUser() *models.User {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return &models.User{
		ID:           "5e0f7a56-1b0c-4a2d-9c3e-7f8a9b0c1d2e",
		Role:         models.RoleDealer,
		BusinessName: "Test Motors",
		Email:        "dealer@example.com",
		PasswordHash: "$2a$12$unused",
		Province:     "Ankara",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func samplePair() *models.TokenPair {
	return &models.TokenPair{
		AccessToken:  "access.jwt.token",
		RefreshToken: "refresh.jwt.token",
		TokenType:    "Bearer",
	}
}
