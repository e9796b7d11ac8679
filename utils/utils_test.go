package utils

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobpoints/config"
)

func init() {
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret"})
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestToken(t *testing.T) {
	token, err := GenerateToken(42, "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	fallback, err := GenerateToken(42, "alice", -time.Hour)
	require.NoError(t, err)
	// non-positive durations fall back to the configured TTL
	_, err = ParseToken(fallback)
	assert.NoError(t, err)

	anonymous, err := GenerateToken(0, "ghost", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(anonymous)
	assert.Error(t, err)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}

func TestBlacklist(t *testing.T) {
	t.Run("Should use memory without redis", func(t *testing.T) {
		SetRedis(nil)
		BlacklistToken("mem-token", time.Now().Add(time.Hour))
		assert.True(t, IsTokenBlacklisted("mem-token"))
		assert.False(t, IsTokenBlacklisted("other"))

		BlacklistToken("stale", time.Now().Add(-time.Minute))
		assert.False(t, IsTokenBlacklisted("stale"))
	})

	t.Run("Should store revocations in redis", func(t *testing.T) {
		mr, rc := newMiniRedis(t)
		SetRedis(rc)
		t.Cleanup(func() { SetRedis(nil) })

		BlacklistToken("redis-token", time.Now().Add(time.Hour))
		assert.True(t, mr.Exists("jwt:blacklist:redis-token"))
		assert.True(t, IsTokenBlacklisted("redis-token"))

		mr.FastForward(2 * time.Hour)
		assert.False(t, IsTokenBlacklisted("redis-token"))
	})
}

func TestCacheJSON(t *testing.T) {
	_, rc := newMiniRedis(t)
	type item struct {
		Name string `json:"name"`
	}

	var out []item
	assert.False(t, CacheGetJSON(rc, "k", &out))

	CacheSetJSON(rc, "k", []item{{Name: "a"}}, time.Minute)
	require.True(t, CacheGetJSON(rc, "k", &out))
	assert.Equal(t, []item{{Name: "a"}}, out)

	CacheDelete(rc, "k")
	assert.False(t, CacheGetJSON(rc, "k", &out))

	// nil clients are a no-op
	CacheSetJSON(nil, "k", out, time.Minute)
	assert.False(t, CacheGetJSON(nil, "k", &out))
	CacheDelete(nil, "k")
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("secret-123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret-123"))
	assert.False(t, CheckPassword(hash, "secret-124"))

	assert.True(t, ValidPassword("abc.DEF_1-2"))
	assert.False(t, ValidPassword("short"))
	assert.False(t, ValidPassword("has space"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Upload Resume", PlainText("  <script>x</script>Upload <b>Resume</b> "))
	assert.Equal(t, `<b>bold</b> text`, Sanitize(`<b onclick="x()">bold</b> text`))
}
