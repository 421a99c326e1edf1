package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hkaraoglu/dealer-auth/internal/auth"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/hkaraoglu/dealer-auth/internal/revocation"
	pkgauth "github.com/hkaraoglu/dealer-auth/pkg/auth"
	pkglogger "github.com/hkaraoglu/dealer-auth/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error)
	GetByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error)
	FindByPhone(ctx context.Context, phone string, includeDeleted bool) ([]*models.User, error)
	List(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	SetRefreshJTI(ctx context.Context, id string, jti *string) error
	RotateRefreshJTI(ctx context.Context, id, oldJTI, newJTI string) (bool, error)
	SetLastLogin(ctx context.Context, id string) error
}

// AuthService composes credential verification, token issuance, the identity
// directory and the revocation registry into the account lifecycle operations.
type AuthService struct {
	repo        UserRepository
	registry    revocation.Registry
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, registry revocation.Registry, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		registry:    registry,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// RegisterInput carries the fields a dealer submits at self-registration.
type RegisterInput struct {
	BusinessName string
	Email        string
	Password     string
	Province     string
	ContactName  *string
	Phone        *string
}

// AdminCreateInput is RegisterInput plus the fields only an admin may set.
type AdminCreateInput struct {
	RegisterInput
	Role     models.Role
	IsActive bool
}

// SelfUpdateInput carries the profile fields a user may change on their own
// account. Email, role and activation state are deliberately absent. The
// nullable fields use Optional so an explicit null clears them while an
// absent field leaves them untouched.
type SelfUpdateInput struct {
	BusinessName *string
	Province     *string
	ContactName  models.Optional[string]
	Phone        models.Optional[string]
}

// AdminUpdateInput carries the fields an admin may change on any account.
type AdminUpdateInput struct {
	Role         *models.Role
	BusinessName *string
	Province     *string
	ContactName  models.Optional[string]
	Phone        models.Optional[string]
	Password     *string
	IsActive     *bool
}

// Register creates a new dealer account. Email uniqueness is checked against
// soft-deleted rows as well; phone uniqueness only among active accounts.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.BusinessName = strings.TrimSpace(input.BusinessName)

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.checkEmailAvailable(ctx, input.Email); err != nil {
		return nil, err
	}
	if err := s.checkPhoneAvailable(ctx, input.Phone, ""); err != nil {
		return nil, err
	}

	hashedPassword, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Role:         models.RoleDealer,
		BusinessName: input.BusinessName,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Province:     input.Province,
		ContactName:  input.ContactName,
		Phone:        input.Phone,
		IsActive:     true,
	}

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered",
		slog.String("user_id", createdUser.ID),
		slog.String("email", pkglogger.SanitizedEmail(createdUser.Email)))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, "")

	return createdUser, nil
}

// CreateByAdmin creates an account with caller-specified role and activation
// state. The caller's admin role is enforced at the route layer.
func (s *AuthService) CreateByAdmin(ctx context.Context, input AdminCreateInput, actorID string) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.BusinessName = strings.TrimSpace(input.BusinessName)

	if !input.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.checkEmailAvailable(ctx, input.Email); err != nil {
		return nil, err
	}
	if err := s.checkPhoneAvailable(ctx, input.Phone, ""); err != nil {
		return nil, err
	}

	hashedPassword, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Role:         input.Role,
		BusinessName: input.BusinessName,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Province:     input.Province,
		ContactName:  input.ContactName,
		Phone:        input.Phone,
		IsActive:     input.IsActive,
	}

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created by admin",
		slog.String("user_id", createdUser.ID),
		slog.String("actor_id", actorID))
	s.auditLogger.LogAccountAction("user_created_by_admin", createdUser.ID, actorID)

	return createdUser, nil
}

// Login authenticates a user by the resolved login key and issues a fresh
// token pair. The new refresh jti overwrites any prior chain, so logging in
// elsewhere invalidates the previous refresh token.
func (s *AuthService) Login(ctx context.Context, key models.LoginKey, password string) (*models.TokenPair, *models.User, error) {
	user, err := s.resolveLoginUser(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			// Unknown identifiers pay the same bcrypt cost as wrong
			// passwords, so timing does not enumerate accounts.
			pkgauth.CompareDummyPassword(password)
		}
		return nil, nil, err
	}

	// Password first: the inactive branch below must cost the same as a
	// successful compare.
	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, nil, models.ErrUnauthorized
	}

	if !user.IsActive {
		s.logger.Info("login blocked: account inactive", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "account_inactive",
			Success:       false,
		})
		return nil, nil, models.ErrUnauthorized
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	jti := pair.refreshJTI
	if err := s.repo.SetRefreshJTI(ctx, user.ID, &jti); err != nil {
		s.logger.Error("failed to store refresh jti", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if err := s.repo.SetLastLogin(ctx, user.ID); err != nil {
		// Bookkeeping only; the chain is already committed.
		s.logger.Warn("failed to record last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return pair.TokenPair, user, nil
}

// Refresh exchanges a valid refresh token for a new pair. The stored jti is
// rotated with a single conditional update, so two concurrent refreshes
// presenting the same token cannot both succeed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshToken)
	if err != nil {
		s.logger.Info("refresh token validation failed")
		return nil, nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeRefresh || claims.ID == "" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID, false)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found for token refresh", slog.String("user_id", claims.UserID))
			return nil, nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if !user.IsActive {
		s.logger.Info("token refresh blocked: account inactive", slog.String("user_id", user.ID))
		return nil, nil, models.ErrUnauthorized
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	rotated, err := s.repo.RotateRefreshJTI(ctx, user.ID, claims.ID, pair.refreshJTI)
	if err != nil {
		s.logger.Error("failed to rotate refresh jti", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}
	if !rotated {
		// Stale jti or a lost race with a concurrent refresh.
		s.logger.Warn("refresh token replay detected", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "refresh_failed",
			UserID:        user.ID,
			FailureReason: "stale_refresh_token",
			Success:       false,
		})
		return nil, nil, models.ErrUnauthorized
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))

	return pair.TokenPair, user, nil
}

// Logout blacklists the presented access token for its remaining lifetime and
// kills the refresh chain.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}
	if claims.Type != models.TokenTypeAccess {
		return models.ErrUnauthorized
	}

	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			if err := s.registry.BlacklistToken(ctx, accessToken, remaining); err != nil {
				s.logger.Error("failed to blacklist access token", slog.String("user_id", claims.UserID), slog.Any("error", err))
				return models.ErrStoreUnavailable
			}
		}
	}

	if err := s.repo.SetRefreshJTI(ctx, claims.UserID, nil); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to clear refresh jti", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    claims.UserID,
		Success:   true,
	})

	return nil
}

// GetByID returns a user's record. Non-admin actors may only read their own.
func (s *AuthService) GetByID(ctx context.Context, targetID string, actor models.IdentityContext) (*models.User, error) {
	if actor.Role != models.RoleAdmin && actor.UserID != targetID {
		return nil, models.ErrForbidden
	}

	user, err := s.repo.GetByID(ctx, targetID, false)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return user, nil
}

// UpdateSelf applies a profile update to the caller's own account.
func (s *AuthService) UpdateSelf(ctx context.Context, userID string, input SelfUpdateInput) (*models.User, error) {
	// Clearing a phone never conflicts; only a new value is checked.
	if err := s.checkPhoneAvailable(ctx, input.Phone.Value, userID); err != nil {
		return nil, err
	}

	patch := models.UserPatch{
		BusinessName: input.BusinessName,
		Province:     input.Province,
		ContactName:  input.ContactName,
		Phone:        input.Phone,
	}
	if patch.Empty() {
		return s.repo.GetByID(ctx, userID, false)
	}

	user, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user updated profile", slog.String("user_id", userID))
	return user, nil
}

// UpdateByAdmin applies an administrative update. A password change or a
// deactivation clears the refresh chain and mass-revokes every token issued
// before this moment.
func (s *AuthService) UpdateByAdmin(ctx context.Context, targetID string, input AdminUpdateInput, actorID string) (*models.User, error) {
	if input.Role != nil && !input.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role", models.ErrBadRequest)
	}

	if _, err := s.repo.GetByID(ctx, targetID, false); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.checkPhoneAvailable(ctx, input.Phone.Value, targetID); err != nil {
		return nil, err
	}

	patch := models.UserPatch{
		Role:         input.Role,
		BusinessName: input.BusinessName,
		Province:     input.Province,
		ContactName:  input.ContactName,
		Phone:        input.Phone,
		IsActive:     input.IsActive,
	}

	if input.Password != nil {
		if err := pkgauth.ValidatePassword(*input.Password); err != nil {
			return nil, err
		}
		hashedPassword, err := pkgauth.HashPassword(*input.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		patch.PasswordHash = &hashedPassword
	}

	user, err := s.repo.Update(ctx, targetID, patch)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update user", slog.String("user_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	sensitive := input.Password != nil || (input.IsActive != nil && !*input.IsActive)
	if sensitive {
		if err := s.revokeAllSessions(ctx, targetID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user updated by admin",
		slog.String("user_id", targetID),
		slog.String("actor_id", actorID),
		slog.Bool("sessions_revoked", sensitive))
	s.auditLogger.LogAccountAction("user_updated_by_admin", targetID, actorID)

	return user, nil
}

// DeleteByAdmin soft-deletes an account and revokes all of its sessions. The
// row is never hard-deleted, so the email stays reserved.
func (s *AuthService) DeleteByAdmin(ctx context.Context, targetID, actorID string) error {
	deleted, err := s.repo.SoftDelete(ctx, targetID)
	if err != nil {
		s.logger.Error("failed to soft delete user", slog.String("user_id", targetID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !deleted {
		return models.ErrNotFound
	}

	if err := s.revokeAllSessions(ctx, targetID); err != nil {
		return err
	}

	s.logger.Info("user soft deleted",
		slog.String("user_id", targetID),
		slog.String("actor_id", actorID))
	s.auditLogger.LogAccountAction("user_deleted_by_admin", targetID, actorID)

	return nil
}

// ListUsers returns non-deleted users, newest first, optionally filtered by
// role and activation state.
func (s *AuthService) ListUsers(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error) {
	users, err := s.repo.List(ctx, role, isActive)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

// resolveLoginUser maps a login key to exactly one active-lookup candidate.
// Every failure collapses to ErrUnauthorized so the response never reveals
// whether the account exists.
func (s *AuthService) resolveLoginUser(ctx context.Context, key models.LoginKey) (*models.User, error) {
	switch key.Kind {
	case models.LoginByEmail:
		email := strings.ToLower(strings.TrimSpace(key.Value))
		if email == "" {
			return nil, models.ErrUnauthorized
		}
		user, err := s.repo.GetByEmail(ctx, email, false)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				s.logger.Info("login failed: invalid credentials",
					slog.String("email", pkglogger.SanitizedEmail(email)))
				s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
					EventType:     "login_failed",
					Identifier:    pkglogger.SanitizedEmail(email),
					FailureReason: "invalid_credentials",
					Success:       false,
				})
				return nil, models.ErrUnauthorized
			}
			s.logger.Error("failed to get user by email", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		return user, nil

	case models.LoginByPhone:
		phone := strings.TrimSpace(key.Value)
		if phone == "" {
			return nil, models.ErrUnauthorized
		}
		users, err := s.repo.FindByPhone(ctx, phone, false)
		if err != nil {
			s.logger.Error("failed to find users by phone", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		switch len(users) {
		case 0:
			s.logger.Info("login failed: invalid credentials",
				slog.String("phone", pkglogger.SanitizedPhone(phone)))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				Identifier:    pkglogger.SanitizedPhone(phone),
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		case 1:
			return users[0], nil
		default:
			s.logger.Warn("login failed: phone matches multiple accounts",
				slog.String("phone", pkglogger.SanitizedPhone(phone)))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "ambiguous_phone",
				Success:       false,
			})
			return nil, fmt.Errorf("%w: phone matches multiple accounts, use email", models.ErrUnauthorized)
		}

	default:
		return nil, models.ErrUnauthorized
	}
}

// issuedPair is a token pair plus the refresh jti that was minted into it.
type issuedPair struct {
	*models.TokenPair
	refreshJTI string
}

func (s *AuthService) issueTokenPair(user *models.User) (*issuedPair, error) {
	jti := uuid.NewString()

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Role, jti)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &issuedPair{
		TokenPair: &models.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
		},
		refreshJTI: jti,
	}, nil
}

// revokeAllSessions clears the refresh chain and records a per-user
// revocation boundary so outstanding access tokens die immediately.
func (s *AuthService) revokeAllSessions(ctx context.Context, userID string) error {
	if err := s.repo.SetRefreshJTI(ctx, userID, nil); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to clear refresh jti", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if err := s.registry.RevokeUser(ctx, userID); err != nil {
		s.logger.Error("failed to record user revocation", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrStoreUnavailable
	}
	return nil
}

// checkEmailAvailable rejects an email already present in the directory,
// including soft-deleted rows. A deleted account's email is never reusable.
func (s *AuthService) checkEmailAvailable(ctx context.Context, email string) error {
	_, err := s.repo.GetByEmail(ctx, email, true)
	if err == nil {
		s.logger.Info("registration rejected: email already registered",
			slog.String("email", pkglogger.SanitizedEmail(email)))
		return fmt.Errorf("%w: email already registered", models.ErrConflict)
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// checkPhoneAvailable rejects a phone already used by another active account.
// excludeID skips the account being updated. A nil phone means "unchanged".
func (s *AuthService) checkPhoneAvailable(ctx context.Context, phone *string, excludeID string) error {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return nil
	}
	users, err := s.repo.FindByPhone(ctx, strings.TrimSpace(*phone), false)
	if err != nil {
		s.logger.Error("failed to check phone availability", slog.Any("error", err))
		return models.ErrInternalServer
	}
	for _, u := range users {
		if u.ID != excludeID {
			return fmt.Errorf("%w: phone already registered", models.ErrConflict)
		}
	}
	return nil
}
