package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hkaraoglu/dealer-auth/internal/models"
)

// TestCredentials generates unique dealer credentials using a timestamp
func TestCredentials(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("dealer-%d-%s@example.com", ts, suffix)
	password = "Test-Password-1234!"
	return
}

// NewDealer builds an active dealer record ready for SeedUser
func NewDealer(email string) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Role:         models.RoleDealer,
		BusinessName: "Test Motors",
		Email:        email,
		Province:     "Ankara",
		IsActive:     true,
	}
}

// NewAdmin builds an active admin record ready for SeedUser
func NewAdmin(email string) *models.User {
	u := NewDealer(email)
	u.Role = models.RoleAdmin
	u.BusinessName = "Platform Admin"
	return u
}
