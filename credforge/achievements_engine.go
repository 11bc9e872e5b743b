package credforge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	achievementsStorageCollection = "achievements"
	achievementUnlocksStorageKey  = "unlocks"

	// maxEvaluateAttempts bounds the optimistic write retry loop when
	// concurrent evaluations race on the unlock set.
	maxEvaluateAttempts = 3

	defaultRecentUnlocksLimit = 5
)

// achievementUnlockSet is the per-player storage object holding every unlock
// the player has earned. Keys are achievement ids.
type achievementUnlockSet struct {
	Unlocks map[string]*AchievementUnlock `json:"unlocks,omitempty"`
}

// NakamaAchievementsSystem implements the AchievementsSystem interface using Nakama as the backend.
type NakamaAchievementsSystem struct {
	config    *AchievementsConfig
	credforge Credforge
}

// NewNakamaAchievementsSystem creates a new instance of the achievements system with the given configuration.
func NewNakamaAchievementsSystem(config *AchievementsConfig) *NakamaAchievementsSystem {
	return &NakamaAchievementsSystem{
		config: config,
	}
}

// GetType returns the system type for the achievements system.
func (a *NakamaAchievementsSystem) GetType() SystemType {
	return SystemTypeAchievements
}

// GetConfig returns the configuration for the achievements system.
func (a *NakamaAchievementsSystem) GetConfig() any {
	return a.config
}

func (a *NakamaAchievementsSystem) SetCredforge(cf Credforge) {
	a.credforge = cf
}

// readUnlockSet fetches the player's unlock set together with its storage
// version for conditional writes. A missing object yields an empty set and
// an empty version.
func (a *NakamaAchievementsSystem) readUnlockSet(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*achievementUnlockSet, string, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{
			Collection: achievementsStorageCollection,
			Key:        achievementUnlocksStorageKey,
			UserID:     userID,
		},
	})
	if err != nil {
		logger.Error("Failed to read achievement unlocks: %v", err)
		return nil, "", ErrInternal
	}

	set := &achievementUnlockSet{Unlocks: make(map[string]*AchievementUnlock)}
	if len(objects) == 0 || objects[0] == nil || objects[0].Value == "" {
		return set, "", nil
	}

	if err := json.Unmarshal([]byte(objects[0].Value), set); err != nil {
		logger.Error("Failed to unmarshal achievement unlocks: %v", err)
		return nil, "", ErrInternal
	}
	if set.Unlocks == nil {
		set.Unlocks = make(map[string]*AchievementUnlock)
	}

	return set, objects[0].Version, nil
}

// EvaluateAndAward scans all not-yet-unlocked achievements against the
// player's current stats and awards every newly met one as a single batch.
//
// The unlock set is written conditionally against the version it was read
// at, in the same multi-update that credits the reward, so two concurrent
// evaluations can never both award the same achievement. The loser of the
// race re-reads and drops the ids the winner already recorded.
func (a *NakamaAchievementsSystem) EvaluateAndAward(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) ([]*AchievementUnlock, error) {
	if userID == "" {
		return nil, ErrBadInput
	}
	if a.config == nil || len(a.config.Achievements) == 0 {
		return nil, nil
	}

	economy := a.credforge.GetEconomySystem()
	if economy == nil {
		return nil, ErrSystemNotFound
	}
	stats := a.credforge.GetStatsSystem()
	if stats == nil {
		return nil, ErrSystemNotFound
	}

	var lastErr error
	for attempt := 0; attempt < maxEvaluateAttempts; attempt++ {
		set, version, err := a.readUnlockSet(ctx, logger, nk, userID)
		if err != nil {
			return nil, err
		}

		snapshot, err := stats.Snapshot(ctx, logger, nk, userID)
		if err == ErrPlayerStatsNotFound {
			// A player with no stats aggregate has performed no trackable
			// actions yet, so no achievement can be met.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		nowSec := time.Now().Unix()
		newlyUnlocked := make([]*AchievementUnlock, 0)
		for id, achievement := range a.config.Achievements {
			if _, ok := set.Unlocks[id]; ok {
				continue
			}
			if !requirementMet(achievement.Requirement, snapshot) {
				continue
			}
			unlock := &AchievementUnlock{
				Id:            id,
				Name:          achievement.Name,
				RewardCash:    achievement.RewardCash,
				RewardXp:      achievement.RewardXp,
				UnlockTimeSec: nowSec,
			}
			set.Unlocks[id] = unlock
			newlyUnlocked = append(newlyUnlocked, unlock)
		}

		if len(newlyUnlocked) == 0 {
			return nil, nil
		}
		sort.Slice(newlyUnlocked, func(i, j int) bool {
			return newlyUnlocked[i].Id < newlyUnlocked[j].Id
		})

		value, err := json.Marshal(set)
		if err != nil {
			logger.Error("Failed to marshal achievement unlocks: %v", err)
			return nil, ErrInternal
		}

		// A missing object must be created, not overwritten, so a racing
		// first evaluation still conflicts instead of clobbering.
		writeVersion := version
		if writeVersion == "" {
			writeVersion = "*"
		}

		reward := &Reward{}
		ids := make([]string, 0, len(newlyUnlocked))
		for _, unlock := range newlyUnlocked {
			reward.Cash += unlock.RewardCash
			reward.Xp += unlock.RewardXp
			ids = append(ids, unlock.Id)
		}

		writes := []*runtime.StorageWrite{
			{
				Collection:      achievementsStorageCollection,
				Key:             achievementUnlocksStorageKey,
				UserID:          userID,
				Value:           string(value),
				Version:         writeVersion,
				PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
				PermissionWrite: runtime.STORAGE_PERMISSION_OWNER_WRITE,
			},
		}

		err = economy.Grant(ctx, logger, nk, userID, reward, LedgerKindAchievement, fmt.Sprintf("achievements unlocked: %v", ids), writes)
		if err != nil {
			// The conditional write lost a race. Re-read and re-evaluate so
			// only achievements the winner did not record get awarded.
			logger.Debug("Achievement award attempt %d failed, retrying: %v", attempt+1, err)
			lastErr = err
			continue
		}

		for _, unlock := range newlyUnlocked {
			sendAchievementUnlockedNotification(ctx, logger, nk, userID, unlock)
		}

		return newlyUnlocked, nil
	}

	logger.Error("Failed to award achievements after %d attempts: %v", maxEvaluateAttempts, lastErr)
	return nil, ErrInternal
}

// EvaluateAndAwardAdvisory logs and swallows errors so progression checks
// never fail the gameplay action that triggered them.
func (a *NakamaAchievementsSystem) EvaluateAndAwardAdvisory(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) []*AchievementUnlock {
	newlyUnlocked, err := a.EvaluateAndAward(ctx, logger, nk, userID)
	if err != nil {
		logger.Warn("Advisory achievement evaluation failed for user %s: %v", userID, err)
		return nil
	}
	return newlyUnlocked
}

// List returns the full catalog with the player's unlock state and the
// aggregate unlock percentage.
func (a *NakamaAchievementsSystem) List(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*AchievementsList, error) {
	if userID == "" {
		return nil, ErrBadInput
	}

	set, _, err := a.readUnlockSet(ctx, logger, nk, userID)
	if err != nil {
		return nil, err
	}

	list := &AchievementsList{
		Achievements: make([]*AchievementRecord, 0, len(a.config.Achievements)),
	}
	for id, achievement := range a.config.Achievements {
		record := &AchievementRecord{
			Id:          id,
			Name:        achievement.Name,
			Description: achievement.Description,
			Icon:        achievement.Icon,
			RewardCash:  achievement.RewardCash,
			RewardXp:    achievement.RewardXp,
		}
		if unlock, ok := set.Unlocks[id]; ok {
			record.Unlocked = true
			record.UnlockTimeSec = unlock.UnlockTimeSec
		}
		list.Achievements = append(list.Achievements, record)
	}
	sort.Slice(list.Achievements, func(i, j int) bool {
		return list.Achievements[i].Id < list.Achievements[j].Id
	})

	list.Total = len(list.Achievements)
	for _, record := range list.Achievements {
		if record.Unlocked {
			list.UnlockedCount++
		}
	}
	if list.Total > 0 {
		list.UnlockedPercent = float64(list.UnlockedCount) / float64(list.Total) * 100
	}

	return list, nil
}

// RecentUnlocks returns the player's most recent unlocks, newest first.
func (a *NakamaAchievementsSystem) RecentUnlocks(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, limit int) ([]*AchievementUnlock, error) {
	if userID == "" {
		return nil, ErrBadInput
	}
	if limit <= 0 {
		limit = defaultRecentUnlocksLimit
	}

	set, _, err := a.readUnlockSet(ctx, logger, nk, userID)
	if err != nil {
		return nil, err
	}

	unlocks := make([]*AchievementUnlock, 0, len(set.Unlocks))
	for _, unlock := range set.Unlocks {
		unlocks = append(unlocks, unlock)
	}
	sort.Slice(unlocks, func(i, j int) bool {
		if unlocks[i].UnlockTimeSec != unlocks[j].UnlockTimeSec {
			return unlocks[i].UnlockTimeSec > unlocks[j].UnlockTimeSec
		}
		return unlocks[i].Id < unlocks[j].Id
	})

	if len(unlocks) > limit {
		unlocks = unlocks[:limit]
	}
	return unlocks, nil
}
