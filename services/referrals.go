package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/jobpoints/models"
)

// Referrals records sign-ups made with a referral code and rewards the referrer.
// A referral stays pending until its REFER_PEER award has been committed.
type Referrals struct {
	db       *gorm.DB
	profiles *ProfileStore
	engine   *Engine
	logger   *zap.Logger
}

// NewReferrals creates a Referrals service.
func NewReferrals(db *gorm.DB, profiles *ProfileStore, engine *Engine, logger *zap.Logger) *Referrals {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Referrals{db: db, profiles: profiles, engine: engine, logger: logger}
}

// Redeem links referredUserID to the owner of code and awards REFER_PEER to
// the owner. Unknown codes, self-referrals and users already linked to a
// referrer are ignored and reported as a nil result.
func (r *Referrals) Redeem(ctx context.Context, referredUserID uint, code string) (*AwardResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if referredUserID == 0 || code == "" {
		return nil, nil
	}

	referrer, err := r.profiles.FindByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil || referrer.UserID == referredUserID {
		r.logger.Info("referral code ignored", zap.String("code", code), zap.Uint("user_id", referredUserID))
		return nil, nil
	}

	referred := referredUserID
	ref := models.Referral{
		ReferrerID:       referrer.UserID,
		ReferralCodeUsed: code,
		ReferredUserID:   &referred,
		Status:           models.ReferralPendingSignup,
	}
	if err := r.db.WithContext(ctx).Create(&ref).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("record referral: %w", err)
	}
	return r.settle(ctx, ref.ID)
}

// RetryPending awards the referrer of referredUserID when an earlier attempt
// could not, e.g. because no REFER_PEER task was active. Nil when nothing is pending.
func (r *Referrals) RetryPending(ctx context.Context, referredUserID uint) (*AwardResult, error) {
	if referredUserID == 0 {
		return nil, nil
	}
	var ref models.Referral
	err := r.db.WithContext(ctx).
		Where("referred_user_id = ? AND status = ?", referredUserID, models.ReferralPendingSignup).
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending referral: %w", err)
	}
	return r.settle(ctx, ref.ID)
}

// settle awards a pending referral and marks it completed in the same transaction.
func (r *Referrals) settle(ctx context.Context, referralID uint) (*AwardResult, error) {
	var result *AwardResult
	var ref models.Referral
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ref, referralID).Error; err != nil {
			return err
		}
		if ref.Status != models.ReferralPendingSignup {
			return nil
		}
		res, err := r.engine.awardTx(tx, ref.ReferrerID, models.TaskReferPeer, referralReference(ref))
		if err != nil {
			return err
		}
		result = res
		if !res.Success {
			return nil
		}
		return tx.Model(&ref).Update("status", models.ReferralCompletedSignup).Error
	})
	if err != nil {
		r.logger.Error("referral award failed", zap.Uint("referral_id", referralID), zap.Error(err))
		return nil, fmt.Errorf("settle referral %d: %w", referralID, err)
	}
	if result == nil {
		return nil, nil
	}
	if result.Success {
		r.logger.Info("referral rewarded",
			zap.Uint("referrer_id", ref.ReferrerID),
			zap.Uint("referral_id", referralID),
			zap.Int("points", result.PointsAwarded),
		)
	} else {
		r.logger.Warn("referral left pending", zap.Uint("referral_id", referralID), zap.String("reason", result.Message))
	}
	return result, nil
}

func referralReference(ref models.Referral) string {
	if ref.ReferredUserID == nil {
		return ""
	}
	return "user:" + strconv.FormatUint(uint64(*ref.ReferredUserID), 10)
}
