package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobpoints/models"
	"github.com/cppla/jobpoints/services"
	"github.com/cppla/jobpoints/utils"
)

// ProfileController serves profile creation, lookups and admin role changes.
type ProfileController struct {
	profiles  *services.ProfileStore
	referrals *services.Referrals
}

// NewProfileController creates a new controller instance.
func NewProfileController(profiles *services.ProfileStore, referrals *services.Referrals) *ProfileController {
	return &ProfileController{profiles: profiles, referrals: referrals}
}

// EnsureProfile creates the caller's profile on first call and returns it.
// A referral code is only redeemed when this call created the profile; later
// calls settle a referral whose award could not be granted at sign-up.
func (p *ProfileController) EnsureProfile(ctx *gin.Context) {
	type request struct {
		Role         models.Role `json:"role"`
		ReferralCode string      `json:"referral_code"`
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req request
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
			return
		}
	}

	profile, created, err := p.profiles.Ensure(ctx.Request.Context(), userID, req.Role)
	if err != nil {
		respondServiceError(ctx, err, 50020)
		return
	}

	resp := gin.H{"profile": profile, "created": created}
	var award *services.AwardResult
	if created && req.ReferralCode != "" {
		award, err = p.referrals.Redeem(ctx.Request.Context(), userID, req.ReferralCode)
	} else if !created {
		award, err = p.referrals.RetryPending(ctx.Request.Context(), userID)
	}
	if err != nil {
		// the profile exists; a failed referral must not fail onboarding
		utils.Sugar.Errorf("redeem referral for user %d: %v", userID, err)
	} else if award != nil {
		resp["referral"] = award
	}
	utils.Success(ctx, resp)
}

// GetMyProfile returns the caller's user and profile, null when anonymous.
func (p *ProfileController) GetMyProfile(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	me, err := p.profiles.Me(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50021)
		return
	}
	if me == nil {
		utils.Success(ctx, nil)
		return
	}
	utils.Success(ctx, me)
}

// GetMyReferralCode returns the caller's referral code, null when there is none.
func (p *ProfileController) GetMyReferralCode(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	code, err := p.profiles.ReferralCode(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50022)
		return
	}
	var out *string
	if code != "" {
		out = &code
	}
	utils.Success(ctx, gin.H{"referral_code": out})
}

// AdminUpdateUserRole changes another user's role.
func (p *ProfileController) AdminUpdateUserRole(ctx *gin.Context) {
	type request struct {
		Role models.Role `json:"role" binding:"required"`
	}

	userID, _ := getUserID(ctx)
	targetID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	profile, err := p.profiles.AdminUpdateUserRole(ctx.Request.Context(), userID, targetID, req.Role)
	if err != nil {
		respondServiceError(ctx, err, 50023)
		return
	}
	utils.Success(ctx, profile)
}
