package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hkaraoglu/dealer-auth/internal/models"
	pkglogger "github.com/hkaraoglu/dealer-auth/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	GetByIDFunc          func(ctx context.Context, id string, includeDeleted bool) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string, includeDeleted bool) (*models.User, error)
	FindByPhoneFunc      func(ctx context.Context, phone string, includeDeleted bool) ([]*models.User, error)
	ListFunc             func(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error)
	UpdateFunc           func(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	SoftDeleteFunc       func(ctx context.Context, id string) (bool, error)
	SetRefreshJTIFunc    func(ctx context.Context, id string, jti *string) error
	RotateRefreshJTIFunc func(ctx context.Context, id, oldJTI, newJTI string) (bool, error)
	SetLastLoginFunc     func(ctx context.Context, id string) error
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, includeDeleted)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email, includeDeleted)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByPhone(ctx context.Context, phone string, includeDeleted bool) ([]*models.User, error) {
	if m.FindByPhoneFunc != nil {
		return m.FindByPhoneFunc(ctx, phone, includeDeleted)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) List(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, role, isActive)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, patch)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id)
	}
	return false, nil
}

func (m *MockUserRepository) SetRefreshJTI(ctx context.Context, id string, jti *string) error {
	if m.SetRefreshJTIFunc != nil {
		return m.SetRefreshJTIFunc(ctx, id, jti)
	}
	return nil
}

func (m *MockUserRepository) RotateRefreshJTI(ctx context.Context, id, oldJTI, newJTI string) (bool, error) {
	if m.RotateRefreshJTIFunc != nil {
		return m.RotateRefreshJTIFunc(ctx, id, oldJTI, newJTI)
	}
	return false, nil
}

func (m *MockUserRepository) SetLastLogin(ctx context.Context, id string) error {
	if m.SetLastLoginFunc != nil {
		return m.SetLastLoginFunc(ctx, id)
	}
	return nil
}

// MockRegistry implements revocation.Registry for testing
type MockRegistry struct {
	BlacklistTokenFunc     func(ctx context.Context, token string, ttl time.Duration) error
	IsTokenBlacklistedFunc func(ctx context.Context, token string) (bool, error)
	RevokeUserFunc         func(ctx context.Context, userID string) error
	IsUserRevokedFunc      func(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

func (m *MockRegistry) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if m.BlacklistTokenFunc != nil {
		return m.BlacklistTokenFunc(ctx, token, ttl)
	}
	return nil
}

func (m *MockRegistry) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if m.IsTokenBlacklistedFunc != nil {
		return m.IsTokenBlacklistedFunc(ctx, token)
	}
	return false, nil
}

func (m *MockRegistry) RevokeUser(ctx context.Context, userID string) error {
	if m.RevokeUserFunc != nil {
		return m.RevokeUserFunc(ctx, userID)
	}
	return nil
}

func (m *MockRegistry) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	if m.IsUserRevokedFunc != nil {
		return m.IsUserRevokedFunc(ctx, userID, issuedAt)
	}
	return false, nil
}

// newTestLogger returns a logger that discards output
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuditLogger returns an audit logger that discards output
func newTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(newTestLogger(), "test")
}

// hashForTests hashes at the minimum bcrypt cost so test setup stays fast.
func hashForTests(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
