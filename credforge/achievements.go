package credforge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// AchievementsConfig is the data definition for an AchievementsSystem type.
// The catalog is authored as content, loaded once at startup and never
// mutated at runtime.
type AchievementsConfig struct {
	Achievements map[string]*AchievementsConfigAchievement `json:"achievements,omitempty"`
}

type AchievementsConfigAchievement struct {
	Name        string                         `json:"name,omitempty"`
	Description string                         `json:"description,omitempty"`
	Icon        string                         `json:"icon,omitempty"`
	Requirement *AchievementsConfigRequirement `json:"requirement,omitempty"`
	RewardCash  int64                          `json:"reward_cash,omitempty"`
	RewardXp    int64                          `json:"reward_xp,omitempty"`
}

// AchievementsConfigRequirement describes the unlock condition of a catalog
// entry. Value is a monotone threshold; DistrictID is only consulted by the
// specific_district_crimes kind.
type AchievementsConfigRequirement struct {
	Type       string `json:"type,omitempty"`
	Value      int64  `json:"value,omitempty"`
	DistrictID string `json:"district_id,omitempty"`
}

// AchievementUnlock is the permanent per-player unlock record. An
// achievement unlocks at most once per player; records are never updated or
// deleted.
type AchievementUnlock struct {
	Id            string `json:"id"`
	Name          string `json:"name,omitempty"`
	RewardCash    int64  `json:"reward_cash,omitempty"`
	RewardXp      int64  `json:"reward_xp,omitempty"`
	UnlockTimeSec int64  `json:"unlock_time_sec"`
}

// AchievementRecord is a catalog entry joined with the player's unlock state.
type AchievementRecord struct {
	Id            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Icon          string `json:"icon,omitempty"`
	RewardCash    int64  `json:"reward_cash,omitempty"`
	RewardXp      int64  `json:"reward_xp,omitempty"`
	Unlocked      bool   `json:"unlocked"`
	UnlockTimeSec int64  `json:"unlock_time_sec,omitempty"`
}

type AchievementsList struct {
	Achievements    []*AchievementRecord `json:"achievements"`
	UnlockedCount   int                  `json:"unlocked_count"`
	Total           int                  `json:"total"`
	UnlockedPercent float64              `json:"unlocked_percent"`
}

type AchievementsSystem interface {
	System

	// EvaluateAndAward scans all not-yet-unlocked achievements against the
	// player's current stats and awards every newly met one as a single batch.
	// Safe to call concurrently for the same player; duplicate evaluation
	// never double-awards.
	EvaluateAndAward(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (newlyUnlocked []*AchievementUnlock, err error)

	// EvaluateAndAwardAdvisory is the entry point for gameplay actions.
	// Failures are logged and swallowed: progression checks are side effects
	// and must never fail the action that triggered them.
	EvaluateAndAwardAdvisory(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (newlyUnlocked []*AchievementUnlock)

	// List returns the full catalog with the player's unlock state and the
	// aggregate unlock percentage.
	List(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (list *AchievementsList, err error)

	// RecentUnlocks returns the player's most recent unlocks, newest first.
	RecentUnlocks(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, limit int) (unlocks []*AchievementUnlock, err error)
}
