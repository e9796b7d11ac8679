package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/jobpoints/models"
)

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeAttempts = 5
)

// MyProfile is the identity of the caller joined with its profile (nil until ensured).
type MyProfile struct {
	User          models.User     `json:"user"`
	Profile       *models.Profile `json:"profile"`
	ReferralCount int64           `json:"referral_count"`
}

// ProfileStore owns profiles: creation, lookups and admin role changes.
type ProfileStore struct {
	db      *gorm.DB
	gate    *RoleGate
	logger  *zap.Logger
	newCode func() (string, error)
}

// NewProfileStore creates a ProfileStore.
func NewProfileStore(db *gorm.DB, gate *RoleGate, logger *zap.Logger) *ProfileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileStore{db: db, gate: gate, logger: logger, newCode: NewReferralCode}
}

// Get returns the profile of userID or ErrProfileNotFound.
func (s *ProfileStore) Get(ctx context.Context, userID uint) (*models.Profile, error) {
	p, err := findProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// Ensure returns the existing profile of userID or creates one. requested is
// only honoured on creation; admin cannot be self-assigned. created reports
// whether this call inserted the profile.
func (s *ProfileStore) Ensure(ctx context.Context, userID uint, requested models.Role) (profile *models.Profile, created bool, err error) {
	if userID == 0 {
		return nil, false, ErrUnauthenticated
	}
	db := s.db.WithContext(ctx)
	if existing, err := findProfile(db, userID); err != nil || existing != nil {
		return existing, false, err
	}

	role := requested
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return nil, false, invalid("unknown role %q", requested)
	}
	if role == models.RoleAdmin {
		return nil, false, NewError(CodeNotAuthorized, "admin role cannot be self-assigned")
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, false, fmt.Errorf("generate referral code: %w", err)
		}
		p := &models.Profile{UserID: userID, Role: role, Points: 0, ReferralCode: &code}
		err = db.Create(p).Error
		if err == nil {
			s.logger.Info("profile created", zap.Uint("user_id", userID), zap.String("role", string(role)))
			return p, true, nil
		}
		if !isDuplicateKey(err) {
			return nil, false, fmt.Errorf("create profile: %w", err)
		}
		// Either a concurrent call created this user's profile or the code collided.
		if existing, ferr := findProfile(db, userID); ferr != nil || existing != nil {
			return existing, false, ferr
		}
		s.logger.Warn("referral code collision, retrying", zap.Int("attempt", attempt+1))
	}
	return nil, false, fmt.Errorf("create profile: no free referral code after %d attempts", referralCodeAttempts)
}

// Me returns the caller's identity and profile, or nil for anonymous/unknown callers.
func (s *ProfileStore) Me(ctx context.Context, userID uint) (*MyProfile, error) {
	if userID == 0 {
		return nil, nil
	}
	db := s.db.WithContext(ctx)
	var user models.User
	err := db.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	profile, err := findProfile(db, userID)
	if err != nil {
		return nil, err
	}
	var referred int64
	err = db.Model(&models.Referral{}).
		Where("referrer_id = ? AND status = ?", userID, models.ReferralCompletedSignup).
		Count(&referred).Error
	if err != nil {
		return nil, fmt.Errorf("count referrals: %w", err)
	}
	return &MyProfile{User: user, Profile: profile, ReferralCount: referred}, nil
}

// ReferralCode returns the caller's referral code, "" when there is none.
func (s *ProfileStore) ReferralCode(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", nil
	}
	p, err := findProfile(s.db.WithContext(ctx), userID)
	if err != nil || p == nil || p.ReferralCode == nil {
		return "", err
	}
	return *p.ReferralCode, nil
}

// FindByReferralCode returns the profile owning code, or nil.
func (s *ProfileStore) FindByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	var p models.Profile
	err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup referral code: %w", err)
	}
	return &p, nil
}

// AdminUpdateUserRole changes the role of targetUserID. Admin only.
func (s *ProfileStore) AdminUpdateUserRole(ctx context.Context, adminID, targetUserID uint, newRole models.Role) (*models.Profile, error) {
	if _, err := s.gate.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !newRole.Valid() {
		return nil, invalid("unknown role %q", newRole)
	}

	var target models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", targetUserID).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetNotFound
		}
		if err != nil {
			return err
		}
		target.Role = newRole
		return tx.Model(&target).Update("role", newRole).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role updated",
		zap.Uint("admin_id", adminID),
		zap.Uint("target_user_id", targetUserID),
		zap.String("role", string(newRole)),
	)
	return &target, nil
}

// BootstrapAdmins promotes the listed usernames to admin, creating profiles as needed.
// Unknown usernames are skipped. Runs at boot as an operational seed.
func (s *ProfileStore) BootstrapAdmins(ctx context.Context, usernames []string) error {
	for _, name := range usernames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var user models.User
		err := s.db.WithContext(ctx).Where("username = ?", name).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("admin bootstrap: user not found", zap.String("username", name))
			continue
		}
		if err != nil {
			return fmt.Errorf("admin bootstrap %s: %w", name, err)
		}
		profile, _, err := s.Ensure(ctx, user.ID, models.RoleStudent)
		if err != nil {
			return fmt.Errorf("admin bootstrap %s: %w", name, err)
		}
		if profile.Role == models.RoleAdmin {
			continue
		}
		if err := s.db.WithContext(ctx).Model(profile).Update("role", models.RoleAdmin).Error; err != nil {
			return fmt.Errorf("admin bootstrap %s: %w", name, err)
		}
		s.logger.Info("admin bootstrapped", zap.String("username", name), zap.Uint("user_id", user.ID))
	}
	return nil
}

func findProfile(tx *gorm.DB, userID uint) (*models.Profile, error) {
	var p models.Profile
	err := tx.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

// NewReferralCode returns a random 8 character uppercase alphanumeric code.
func NewReferralCode() (string, error) {
	limit := big.NewInt(int64(len(referralCodeAlphabet)))
	b := make([]byte, referralCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
