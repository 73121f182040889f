package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quiz-interaction-service/internal/config"
	"quiz-interaction-service/internal/domain"
)

const correctPendulumAnswer = "空気抵抗と摩擦でエネルギーが失われるから"

func redisConfig(mr *miniredis.Miniredis) config.Config {
	var cfg config.Config
	cfg.Redis.Addr = mr.Addr()
	return cfg
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runReplay(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewReplayStatsCmd(&configPath)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildRuntimeMemoryOnly(t *testing.T) {
	ctx := context.Background()
	rt, err := buildRuntime(ctx, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.redis)
	assert.Nil(t, rt.pool)

	outcome, err := rt.service.CreateAnswer(ctx, "pendulum", "u1", correctPendulumAnswer)
	require.NoError(t, err)
	assert.True(t, outcome.Verdict.Correct)
	assert.Equal(t, 1, outcome.Statistics.CorrectAnswers)

	_, err = rt.service.ReplayStatistics(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)
}

func TestBuildRuntimeRedisKeepsCountersInRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rt, err := buildRuntime(ctx, redisConfig(mr), zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.redis)
	assert.Nil(t, rt.pool)

	_, err = rt.service.CreateAnswer(ctx, "pendulum", "u1", correctPendulumAnswer)
	require.NoError(t, err)
	like, err := rt.service.ToggleLike(ctx, "pendulum", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.LikeResult{State: domain.LikeAdded, Count: 1}, like)

	assert.True(t, mr.Exists("question:pendulum"), "question cached in redis")
	assert.True(t, mr.Exists("question:pendulum:likes"), "likes kept in redis")
	assert.True(t, mr.Exists("stats:user:u1"), "snapshot kept in redis")

	// A second process over the same Redis sees the same counters.
	other, err := buildRuntime(ctx, redisConfig(mr), zap.NewNop())
	require.NoError(t, err)
	defer other.Close()
	stats, err := other.service.Statistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CorrectAnswers)
	_, engagement, err := other.service.Question(ctx, "pendulum")
	require.NoError(t, err)
	assert.Equal(t, 1, engagement.Likes)
}

func TestBuildRuntimeFailsWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := redisConfig(mr)
	mr.Close()

	_, err = buildRuntime(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestReplayStatsKeepsRedisSnapshotWithoutDurableAnswers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rt, err := buildRuntime(ctx, redisConfig(mr), zap.NewNop())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := rt.service.CreateAnswer(ctx, "pendulum", "u1", correctPendulumAnswer)
		require.NoError(t, err)
	}
	rt.Close()
	before, err := mr.Get("stats:user:u1")
	require.NoError(t, err)

	path := writeConfig(t, fmt.Sprintf("redis:\n  addr: %q\n", mr.Addr()))
	out, err := runReplay(t, path, "--user", "u1")
	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)
	assert.Empty(t, out)

	after, err := mr.Get("stats:user:u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	var stats domain.UserStatistics
	require.NoError(t, json.Unmarshal([]byte(after), &stats))
	assert.Equal(t, 3, stats.TotalAnswers)
	assert.Equal(t, 3, stats.CorrectAnswers)
	assert.Equal(t, 1, stats.Level)
}

func TestReplayStatsMemoryOnlyRefuses(t *testing.T) {
	path := writeConfig(t, "env: local\n")
	out, err := runReplay(t, path, "--user", "u1")
	assert.ErrorIs(t, err, domain.ErrHistoryUnavailable)
	assert.Empty(t, out)
}

func TestReplayStatsRequiresUser(t *testing.T) {
	path := writeConfig(t, "env: local\n")
	_, err := runReplay(t, path)
	assert.EqualError(t, err, "--user is required")
}

func TestLoadSeeds(t *testing.T) {
	sample, err := loadSeeds("")
	require.NoError(t, err)
	assert.Contains(t, sample, "pendulum")

	seeded, err := loadSeeds(filepath.Join("..", "..", "config", "questions.yaml"))
	require.NoError(t, err)
	assert.Len(t, seeded, 3)
	assert.Equal(t, domain.SubjectChemistry, seeded["rust"].Subject)

	_, err = loadSeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
