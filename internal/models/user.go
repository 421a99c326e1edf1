package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleDealer Role = "DEALER"
)

// ParseRole converts a string into a Role, rejecting anything outside the enum.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDealer:
		return RoleDealer, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDealer
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID                string
	Role              Role
	BusinessName      string
	Email             string
	PasswordHash      string
	Province          string
	ContactName       *string
	Phone             *string
	IsActive          bool
	LastLoginAt       *time.Time
	CurrentRefreshJTI *string // Identifies the single live refresh chain
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time // Soft-delete marker; rows are never hard-deleted
}

// Deleted reports whether the user has been soft-deleted.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// UserPatch carries partial updates. Pointer fields distinguish "leave
// unchanged" (nil) from "set to this value"; the nullable columns use
// Optional so an explicit clear is representable too. Email is deliberately
// absent: it is immutable through the update path.
type UserPatch struct {
	Role         *Role
	BusinessName *string
	Province     *string
	ContactName  Optional[string]
	Phone        Optional[string]
	PasswordHash *string
	IsActive     *bool
}

// Empty reports whether the patch carries no changes.
func (p UserPatch) Empty() bool {
	return p.Role == nil && p.BusinessName == nil && p.Province == nil &&
		!p.ContactName.Set && !p.Phone.Set && p.PasswordHash == nil && p.IsActive == nil
}

// IdentityContext is the resolved identity attached to an authenticated
// request. It carries only what downstream authorization checks need.
type IdentityContext struct {
	UserID string
	Role   Role
}

// LoginKeyKind tags how a login identifier should be resolved.
type LoginKeyKind int

const (
	LoginByEmail LoginKeyKind = iota
	LoginByPhone
)

// LoginKey is the resolved login identifier. It is built once at the HTTP
// boundary and never re-derived downstream.
type LoginKey struct {
	Kind  LoginKeyKind
	Value string
}
