package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/jobpoints/models"
)

// AwardGuard decides whether an event-driven award may proceed. It is the
// de-duplication hook for AwardForEvent; without one every event awards.
// A claim that did not end in a committed award is handed back with Release.
type AwardGuard interface {
	Allow(ctx context.Context, userID uint, taskType models.TaskType, reference string) (bool, error)
	Release(ctx context.Context, userID uint, taskType models.TaskType, reference string) error
}

// CooldownGuard allows one award per (user, type, reference) per cooldown window using SET NX.
type CooldownGuard struct {
	rc       *redis.Client
	cooldown time.Duration
}

// NewCooldownGuard returns nil when rc is nil or cooldown is not positive, which disables guarding.
func NewCooldownGuard(rc *redis.Client, cooldown time.Duration) *CooldownGuard {
	if rc == nil || cooldown <= 0 {
		return nil
	}
	return &CooldownGuard{rc: rc, cooldown: cooldown}
}

// Allow claims the cooldown slot; false means an award for the same key is still cooling down.
func (g *CooldownGuard) Allow(ctx context.Context, userID uint, taskType models.TaskType, reference string) (bool, error) {
	ok, err := g.rc.SetNX(ctx, cooldownKey(userID, taskType, reference), "1", g.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("award guard: %w", err)
	}
	return ok, nil
}

// Release frees a slot claimed by Allow.
func (g *CooldownGuard) Release(ctx context.Context, userID uint, taskType models.TaskType, reference string) error {
	if err := g.rc.Del(ctx, cooldownKey(userID, taskType, reference)).Err(); err != nil {
		return fmt.Errorf("award guard release: %w", err)
	}
	return nil
}

func cooldownKey(userID uint, taskType models.TaskType, reference string) string {
	key := "award:cooldown:" + string(taskType) + ":" + strconv.FormatUint(uint64(userID), 10)
	if reference != "" {
		key += ":" + reference
	}
	return key
}
