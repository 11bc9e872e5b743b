package credforge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name string, config interface{}) string {
	t.Helper()
	data, err := json.Marshal(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	return name
}

func TestInit_LoadsConfigsAndWiresSystems(t *testing.T) {
	dir := t.TempDir()
	nk := newTestNakama()
	nk.configDir = dir
	logger := newTestLogger(t)

	statsFile := writeConfigFile(t, dir, "stats.json", &StatsConfig{})
	achievementsFile := writeConfigFile(t, dir, "achievements.json", achievementsTestConfig())
	challengesFile := writeConfigFile(t, dir, "challenges.json", challengesTestConfig())
	economyFile := writeConfigFile(t, dir, "economy.json", economyTestConfig())

	cf, err := Init(context.Background(), logger, nk, nil,
		WithStatsSystem(statsFile),
		WithAchievementsSystem(achievementsFile, false),
		WithChallengesSystem(challengesFile, false),
		WithEconomySystem(economyFile, false),
	)
	require.NoError(t, err)

	require.NotNil(t, cf.GetStatsSystem())
	require.NotNil(t, cf.GetAchievementsSystem())
	require.NotNil(t, cf.GetChallengesSystem())
	require.NotNil(t, cf.GetEconomySystem())

	achievementsConfig, ok := cf.GetAchievementsSystem().GetConfig().(*AchievementsConfig)
	require.True(t, ok)
	assert.Len(t, achievementsConfig.Achievements, 3)

	// Systems can reach their siblings: an evaluation exercises stats and
	// economy through the aggregate.
	userID := "player1"
	nk.setObject(userID, statsStorageCollection, statsAggregateStorageKey, &PlayerStatsSnapshot{TotalCrimes: 7})
	unlocked, err := cf.GetAchievementsSystem().EvaluateAndAward(context.Background(), logger, nk, userID)
	require.NoError(t, err)
	assert.Len(t, unlocked, 1)
}

func TestInit_MissingConfigFile(t *testing.T) {
	nk := newTestNakama()
	nk.configDir = t.TempDir()
	logger := newTestLogger(t)

	_, err := Init(context.Background(), logger, nk, nil, WithStatsSystem("does_not_exist.json"))
	assert.Error(t, err)
}

func sessionContext(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}

func TestRpcHandlers_RequireSessionUser(t *testing.T) {
	cf := newTestCredforge(&StatsConfig{}, achievementsTestConfig(), challengesTestConfig(), economyTestConfig())
	nk := newTestNakama()
	logger := newTestLogger(t)

	_, err := rpcAchievementsList(cf)(context.Background(), logger, nil, nk, "")
	assert.ErrorIs(t, err, ErrNoSessionUser)

	_, err = rpcChallengesClaim(cf)(context.Background(), logger, nil, nk, `{"challenge_id":"x","period":"daily"}`)
	assert.ErrorIs(t, err, ErrNoSessionUser)

	_, err = rpcEconomyDailyClaim(cf)(context.Background(), logger, nil, nk, "")
	assert.ErrorIs(t, err, ErrNoSessionUser)
}

func TestRpcChallengesClaim_FullFlow(t *testing.T) {
	cf := newTestCredforge(&StatsConfig{}, nil, challengesTestConfig(), economyTestConfig())
	nk := newTestNakama()
	logger := newTestLogger(t)
	ctx := sessionContext("player1")

	require.NoError(t, cf.GetChallengesSystem().IncrementProgress(ctx, logger, nk, "player1", ActionCrimeCompleted, 5))

	payload, err := rpcChallengesClaim(cf)(ctx, logger, nil, nk, `{"challenge_id":"heist_spree","period":"daily"}`)
	require.NoError(t, err)

	state := &ChallengeState{}
	require.NoError(t, json.Unmarshal([]byte(payload), state))
	assert.Equal(t, "heist_spree", state.Id)
	assert.Equal(t, PeriodTypeDaily, state.Period)
	assert.True(t, state.Claimed)

	_, err = rpcChallengesClaim(cf)(ctx, logger, nil, nk, `{"challenge_id":"heist_spree","period":"daily"}`)
	assert.ErrorIs(t, err, ErrChallengeAlreadyClaimed)

	_, err = rpcChallengesClaim(cf)(ctx, logger, nil, nk, `{"challenge_id":"heist_spree","period":"weekly"}`)
	assert.ErrorIs(t, err, ErrChallengeWrongPeriod)

	_, err = rpcChallengesClaim(cf)(ctx, logger, nil, nk, `{"challenge_id":"heist_spree"}`)
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = rpcChallengesClaim(cf)(ctx, logger, nil, nk, `{}`)
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = rpcChallengesClaim(cf)(ctx, logger, nil, nk, `not json`)
	assert.ErrorIs(t, err, ErrPayloadDecode)
}

func TestRpcEconomyBalanceAndSpend(t *testing.T) {
	cf := newTestCredforge(nil, nil, nil, economyTestConfig())
	nk := newTestNakama()
	logger := newTestLogger(t)
	ctx := sessionContext("player1")

	require.NoError(t, cf.GetEconomySystem().Credit(ctx, logger, nk, "player1", &Reward{Cash: 1000}, LedgerKindChallenge, "seed"))

	payload, err := rpcEconomySpend(cf)(ctx, logger, nil, nk, `{"sink_id":"ammo_crate","quantity":2}`)
	require.NoError(t, err)
	result := &SpendResult{}
	require.NoError(t, json.Unmarshal([]byte(payload), result))
	assert.Equal(t, int64(100), result.TotalCost)

	payload, err = rpcEconomyBalance(cf)(ctx, logger, nil, nk, "")
	require.NoError(t, err)
	balance := &PlayerBalance{}
	require.NoError(t, json.Unmarshal([]byte(payload), balance))
	assert.Equal(t, int64(900), balance.Cash)
}
