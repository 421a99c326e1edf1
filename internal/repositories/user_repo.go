package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hkaraoglu/dealer-auth/internal/database"
	"github.com/hkaraoglu/dealer-auth/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, role, business_name, email, password_hash, province, contact_name, phone,
		is_active, last_login_at, current_refresh_jti, created_at, updated_at, deleted_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string

	err := scanner.Scan(
		&user.ID, &role, &user.BusinessName, &user.Email, &user.PasswordHash,
		&user.Province, &user.ContactName, &user.Phone,
		&user.IsActive, &user.LastLoginAt, &user.CurrentRefreshJTI,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("corrupt role on user %s: %w", user.ID, err)
	}
	user.Role = parsed

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, role, business_name, email, password_hash, province, contact_name, phone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, string(user.Role), user.BusinessName, user.Email, user.PasswordHash,
		user.Province, user.ContactName, user.Phone, user.IsActive,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetByID loads a user by id. Soft-deleted rows are excluded unless
// includeDeleted is set.
func (r *UserRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail loads a user by email. Registration passes includeDeleted so a
// soft-deleted email cannot be re-registered.
func (r *UserRepository) GetByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

// FindByPhone returns every user matching the phone. Phone is only unique
// among active rows at best; multiple matches are a valid outcome the
// caller must handle.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string, includeDeleted bool) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	rows, err := r.pool.Query(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by phone: %w", err)
	}

	return scanUserRows(rows)
}

// List returns non-deleted users newest first, optionally filtered by role
// and active flag.
func (r *UserRepository) List(ctx context.Context, role *models.Role, isActive *bool) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := make([]interface{}, 0, 2)

	if role != nil {
		args = append(args, string(*role))
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if isActive != nil {
		args = append(args, *isActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// patchAssignments builds the SET clauses and positional arguments for a
// partial update. Email is deliberately absent: it is not updatable.
func patchAssignments(patch models.UserPatch) ([]string, []interface{}) {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.BusinessName != nil {
		add("business_name", *patch.BusinessName)
	}
	if patch.Province != nil {
		add("province", *patch.Province)
	}
	// Nullable columns: a set Optional with a nil value writes SQL NULL.
	if patch.ContactName.Set {
		add("contact_name", patch.ContactName.Value)
	}
	if patch.Phone.Set {
		add("phone", patch.Phone.Value)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	return sets, args
}

// Update applies a partial update to a non-deleted user. Email is not
// updatable through this path.
func (r *UserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	sets, args := patchAssignments(patch)

	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d AND deleted_at IS NULL RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args),
	)

	return scanUserRow(r.pool.QueryRow(ctx, query, args...))
}

// SoftDelete marks the user deleted, deactivates it and kills its refresh
// chain. Returns false for a missing or already-deleted id.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET deleted_at = NOW(), is_active = FALSE, current_refresh_jti = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// SetRefreshJTI unconditionally replaces the user's refresh chain. nil
// clears it.
func (r *UserRepository) SetRefreshJTI(ctx context.Context, id string, jti *string) error {
	query := `UPDATE users SET current_refresh_jti = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, jti, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// RotateRefreshJTI swaps the refresh chain only if oldJTI is still the
// current one. The conditional update is the atomic check-and-set that
// keeps two concurrent refreshes with the same stale token from both
// succeeding: exactly one conditional UPDATE wins at the store.
func (r *UserRepository) RotateRefreshJTI(ctx context.Context, id, oldJTI, newJTI string) (bool, error) {
	query := `
		UPDATE users
		SET current_refresh_jti = $1, updated_at = NOW()
		WHERE id = $2 AND current_refresh_jti = $3 AND deleted_at IS NULL AND is_active = TRUE
	`

	result, err := r.pool.Exec(ctx, query, newJTI, id, oldJTI)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// SetLastLogin stamps a successful login.
func (r *UserRepository) SetLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}
