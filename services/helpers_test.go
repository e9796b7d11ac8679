package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/jobpoints/config"
	"github.com/cppla/jobpoints/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), config.GormConfig("silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db,
		&models.User{}, &models.Profile{}, &models.Task{}, &models.CompletionRecord{}, &models.Referral{},
	))
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

type fixture struct {
	db        *gorm.DB
	clock     *fakeClock
	gate      *RoleGate
	catalog   *Catalog
	profiles  *ProfileStore
	engine    *Engine
	referrals *Referrals
}

func newFixture(t *testing.T, cache *redis.Client, opts ...EngineOption) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}
	gate := NewRoleGate(db)
	catalog := NewCatalog(db, cache, time.Minute, gate, nil)
	profiles := NewProfileStore(db, gate, nil)
	opts = append([]EngineOption{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	engine := NewEngine(db, catalog, opts...)
	return &fixture{
		db:        db,
		clock:     clock,
		gate:      gate,
		catalog:   catalog,
		profiles:  profiles,
		engine:    engine,
		referrals: NewReferrals(db, profiles, engine, nil),
	}
}

// user inserts a user with a profile of the given role and returns its id.
func (f *fixture) user(t *testing.T, name string, role models.Role) uint {
	t.Helper()
	u := models.User{Username: name}
	require.NoError(t, f.db.Create(&u).Error)
	code := strings.ToUpper("C" + name)
	require.NoError(t, f.db.Create(&models.Profile{UserID: u.ID, Role: role, ReferralCode: &code}).Error)
	return u.ID
}

func (f *fixture) task(t *testing.T, taskType models.TaskType, points int, active bool) *models.Task {
	t.Helper()
	task := &models.Task{Name: string(taskType), Points: points, TaskType: taskType, IsActive: active}
	require.NoError(t, f.db.Create(task).Error)
	return task
}

func (f *fixture) points(t *testing.T, userID uint) int {
	t.Helper()
	p, err := f.profiles.Get(context.Background(), userID)
	require.NoError(t, err)
	return p.Points
}

func (f *fixture) records(t *testing.T, userID, taskID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.CompletionRecord{}).
		Where("user_id = ? AND task_id = ?", userID, taskID).Count(&n).Error)
	return n
}

// account inserts a user without a profile.
func (f *fixture) account(t *testing.T, name string) uint {
	t.Helper()
	u := models.User{Username: name}
	require.NoError(t, f.db.Create(&u).Error)
	return u.ID
}
