package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/jobpoints/models"
)

// RoleGate guards admin-only operations with a single role check.
type RoleGate struct {
	db *gorm.DB
}

// NewRoleGate creates a RoleGate reading profiles from db.
func NewRoleGate(db *gorm.DB) *RoleGate {
	return &RoleGate{db: db}
}

// RequireAdmin returns the caller's profile when it carries the admin role.
func (g *RoleGate) RequireAdmin(ctx context.Context, userID uint) (*models.Profile, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	var profile models.Profile
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load caller profile: %w", err)
	}
	if profile.Role != models.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	return &profile, nil
}
