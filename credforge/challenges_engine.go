package credforge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/robfig/cron/v3"
)

const (
	challengesStorageCollection = "challenges"
	challengeRotationStorageKey = "rotation"

	// maxRotationAttempts bounds the optimistic write retry loop when
	// concurrent requests race on the rotation state.
	maxRotationAttempts = 3

	defaultSelectionCount      = 3
	defaultDailyResetCronexpr  = "0 0 * * *"
	defaultWeeklyResetCronexpr = "0 0 * * 1"
)

// userChallengeState is the per-player storage object holding the current
// selections for both periods and all progress against them. Progress is
// keyed per period so an id appearing in both pools tracks independently and
// one period's reset cannot touch the other's entries.
type userChallengeState struct {
	DailyIDs  []string                      `json:"daily_ids,omitempty"`
	WeeklyIDs []string                      `json:"weekly_ids,omitempty"`
	Progress  map[string]*ChallengeProgress `json:"progress,omitempty"`

	DailyResetSec  int64 `json:"daily_reset_sec,omitempty"`
	WeeklyResetSec int64 `json:"weekly_reset_sec,omitempty"`
}

func progressKey(period PeriodType, challengeID string) string {
	return string(period) + ":" + challengeID
}

// NakamaChallengesSystem implements the ChallengesSystem interface using Nakama as the backend.
type NakamaChallengesSystem struct {
	config     *ChallengesConfig
	credforge  Credforge
	cronParser cron.Parser
}

// NewNakamaChallengesSystem creates a new instance of the challenges system with the given configuration.
func NewNakamaChallengesSystem(config *ChallengesConfig) *NakamaChallengesSystem {
	return &NakamaChallengesSystem{
		config:     config,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// GetType returns the system type for the challenges system.
func (c *NakamaChallengesSystem) GetType() SystemType {
	return SystemTypeChallenges
}

// GetConfig returns the configuration for the challenges system.
func (c *NakamaChallengesSystem) GetConfig() any {
	return c.config
}

func (c *NakamaChallengesSystem) SetCredforge(cf Credforge) {
	c.credforge = cf
}

func (c *NakamaChallengesSystem) location(logger runtime.Logger) *time.Location {
	if c.config == nil || c.config.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.config.Timezone)
	if err != nil {
		logger.Warn("Invalid challenges timezone %q, using UTC: %v", c.config.Timezone, err)
		return time.UTC
	}
	return loc
}

func (c *NakamaChallengesSystem) selectionCount() int {
	if c.config != nil && c.config.SelectionCount > 0 {
		return c.config.SelectionCount
	}
	return defaultSelectionCount
}

// nextReset computes the next reset boundary after now from a cron
// expression, falling back to the default schedule if the expression does
// not parse.
func (c *NakamaChallengesSystem) nextReset(logger runtime.Logger, expr, defaultExpr string, now time.Time, loc *time.Location) int64 {
	if expr == "" {
		expr = defaultExpr
	}
	schedule, err := c.cronParser.Parse(expr)
	if err != nil {
		logger.Warn("Invalid reset cron expression %q, using default: %v", expr, err)
		schedule, _ = c.cronParser.Parse(defaultExpr)
	}
	return schedule.Next(now.In(loc)).Unix()
}

// readState fetches the player's rotation state together with its storage
// version for conditional writes. A missing object yields an empty state and
// an empty version.
func (c *NakamaChallengesSystem) readState(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*userChallengeState, string, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{
			Collection: challengesStorageCollection,
			Key:        challengeRotationStorageKey,
			UserID:     userID,
		},
	})
	if err != nil {
		logger.Error("Failed to read challenge state: %v", err)
		return nil, "", ErrInternal
	}

	state := &userChallengeState{Progress: make(map[string]*ChallengeProgress)}
	if len(objects) == 0 || objects[0] == nil || objects[0].Value == "" {
		return state, "", nil
	}

	if err := json.Unmarshal([]byte(objects[0].Value), state); err != nil {
		logger.Error("Failed to unmarshal challenge state: %v", err)
		return nil, "", ErrInternal
	}
	if state.Progress == nil {
		state.Progress = make(map[string]*ChallengeProgress)
	}

	return state, objects[0].Version, nil
}

func (c *NakamaChallengesSystem) writeState(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, state *userChallengeState, version string) error {
	value, err := json.Marshal(state)
	if err != nil {
		logger.Error("Failed to marshal challenge state: %v", err)
		return ErrInternal
	}

	if version == "" {
		version = "*"
	}

	_, err = nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      challengesStorageCollection,
			Key:             challengeRotationStorageKey,
			UserID:          userID,
			Value:           string(value),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_OWNER_WRITE,
		},
	})
	return err
}

// ensureRotation rolls either period's selection forward if its reset
// boundary has passed, dropping the progress of the outgoing selection. The
// new selection is seeded from the player id and the period start so
// re-evaluating within the same period always deals the same set.
func (c *NakamaChallengesSystem) ensureRotation(logger runtime.Logger, userID string, state *userChallengeState, now time.Time) bool {
	loc := c.location(logger)
	changed := false

	if state.DailyResetSec == 0 || now.Unix() >= state.DailyResetSec {
		for _, id := range state.DailyIDs {
			delete(state.Progress, progressKey(PeriodTypeDaily, id))
		}
		periodStart := dayStart(now, loc)
		state.DailyIDs = selectChallengeIDs(c.config.Daily, c.selectionCount(), rotationSeed(userID, periodStart))
		state.DailyResetSec = c.nextReset(logger, c.config.DailyResetCronexpr, defaultDailyResetCronexpr, now, loc)
		changed = true
	}

	if state.WeeklyResetSec == 0 || now.Unix() >= state.WeeklyResetSec {
		for _, id := range state.WeeklyIDs {
			delete(state.Progress, progressKey(PeriodTypeWeekly, id))
		}
		periodStart := weekStart(now, loc)
		state.WeeklyIDs = selectChallengeIDs(c.config.Weekly, c.selectionCount(), rotationSeed(userID, periodStart))
		state.WeeklyResetSec = c.nextReset(logger, c.config.WeeklyResetCronexpr, defaultWeeklyResetCronexpr, now, loc)
		changed = true
	}

	return changed
}

func (c *NakamaChallengesSystem) challengeState(id string, challenge *ChallengesConfigChallenge, period PeriodType, progress *ChallengeProgress, resetSec int64) *ChallengeState {
	state := &ChallengeState{
		Id:          id,
		Name:        challenge.Name,
		Description: challenge.Description,
		Type:        challenge.Type,
		Period:      period,
		Target:      challenge.Target,
		Reward:      challenge.Reward,
		ResetSec:    resetSec,
	}
	if progress != nil {
		state.Progress = progress.Progress
		state.Claimed = progress.Claimed
	}
	state.Completed = state.Progress >= state.Target
	return state
}

// List returns the player's current daily and weekly selections, rotating
// them first if a reset boundary has passed.
func (c *NakamaChallengesSystem) List(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*ChallengesList, error) {
	if userID == "" {
		return nil, ErrBadInput
	}

	var lastErr error
	for attempt := 0; attempt < maxRotationAttempts; attempt++ {
		state, version, err := c.readState(ctx, logger, nk, userID)
		if err != nil {
			return nil, err
		}

		if c.ensureRotation(logger, userID, state, time.Now()) {
			if err := c.writeState(ctx, logger, nk, userID, state, version); err != nil {
				logger.Debug("Challenge rotation write attempt %d failed, retrying: %v", attempt+1, err)
				lastErr = err
				continue
			}
		}

		list := &ChallengesList{
			Daily:  make([]*ChallengeState, 0, len(state.DailyIDs)),
			Weekly: make([]*ChallengeState, 0, len(state.WeeklyIDs)),
		}
		for _, id := range state.DailyIDs {
			if challenge, ok := c.config.Daily[id]; ok {
				list.Daily = append(list.Daily, c.challengeState(id, challenge, PeriodTypeDaily, state.Progress[progressKey(PeriodTypeDaily, id)], state.DailyResetSec))
			}
		}
		for _, id := range state.WeeklyIDs {
			if challenge, ok := c.config.Weekly[id]; ok {
				list.Weekly = append(list.Weekly, c.challengeState(id, challenge, PeriodTypeWeekly, state.Progress[progressKey(PeriodTypeWeekly, id)], state.WeeklyResetSec))
			}
		}
		return list, nil
	}

	logger.Error("Failed to rotate challenges after %d attempts: %v", maxRotationAttempts, lastErr)
	return nil, ErrInternal
}

// IncrementProgress adds amount to every selected, unclaimed challenge whose
// type matches actionType, across both periods. Progress past the target is
// kept as-is so clients can show overshoot.
func (c *NakamaChallengesSystem) IncrementProgress(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, actionType string, amount int64) error {
	if userID == "" || actionType == "" || amount <= 0 {
		return ErrBadInput
	}

	var lastErr error
	for attempt := 0; attempt < maxRotationAttempts; attempt++ {
		state, version, err := c.readState(ctx, logger, nk, userID)
		if err != nil {
			return err
		}

		changed := c.ensureRotation(logger, userID, state, time.Now())

		apply := func(ids []string, pool map[string]*ChallengesConfigChallenge, period PeriodType) {
			for _, id := range ids {
				challenge, ok := pool[id]
				if !ok || challenge.Type != actionType {
					continue
				}
				key := progressKey(period, id)
				progress := state.Progress[key]
				if progress == nil {
					progress = &ChallengeProgress{}
					state.Progress[key] = progress
				}
				if progress.Claimed {
					continue
				}
				progress.Progress += amount
				changed = true
			}
		}
		apply(state.DailyIDs, c.config.Daily, PeriodTypeDaily)
		apply(state.WeeklyIDs, c.config.Weekly, PeriodTypeWeekly)

		if !changed {
			return nil
		}

		if err := c.writeState(ctx, logger, nk, userID, state, version); err != nil {
			logger.Debug("Challenge progress write attempt %d failed, retrying: %v", attempt+1, err)
			lastErr = err
			continue
		}
		return nil
	}

	logger.Error("Failed to record challenge progress after %d attempts: %v", maxRotationAttempts, lastErr)
	return ErrInternal
}

// IncrementProgressAdvisory logs and swallows errors so progress tracking
// never fails the gameplay action that triggered it.
func (c *NakamaChallengesSystem) IncrementProgressAdvisory(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, actionType string, amount int64) {
	if err := c.IncrementProgress(ctx, logger, nk, userID, actionType, amount); err != nil {
		logger.Warn("Advisory challenge progress failed for user %s action %s: %v", userID, actionType, err)
	}
}

// Claim pays out a completed challenge exactly once. The claimed flag is
// written conditionally in the same multi-update that credits the reward, so
// two concurrent claims can never both pay out: the loser re-reads, sees the
// flag, and fails with already claimed.
func (c *NakamaChallengesSystem) Claim(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, challengeID string, period PeriodType) (*ChallengeState, error) {
	if userID == "" || challengeID == "" {
		return nil, ErrBadInput
	}
	if period != PeriodTypeDaily && period != PeriodTypeWeekly {
		return nil, ErrBadInput
	}

	economy := c.credforge.GetEconomySystem()
	if economy == nil {
		return nil, ErrSystemNotFound
	}

	var lastErr error
	for attempt := 0; attempt < maxRotationAttempts; attempt++ {
		state, version, err := c.readState(ctx, logger, nk, userID)
		if err != nil {
			return nil, err
		}
		c.ensureRotation(logger, userID, state, time.Now())

		selected := state.DailyIDs
		other := state.WeeklyIDs
		pool := c.config.Daily
		resetSec := state.DailyResetSec
		if period == PeriodTypeWeekly {
			selected, other = other, selected
			pool = c.config.Weekly
			resetSec = state.WeeklyResetSec
		}

		var challenge *ChallengesConfigChallenge
		for _, id := range selected {
			if id == challengeID {
				challenge = pool[id]
			}
		}
		if challenge == nil {
			// Distinguish naming the wrong period from an id the player was
			// never dealt.
			for _, id := range other {
				if id == challengeID {
					return nil, ErrChallengeWrongPeriod
				}
			}
			return nil, ErrChallengeNotFound
		}

		key := progressKey(period, challengeID)
		progress := state.Progress[key]
		if progress == nil {
			progress = &ChallengeProgress{}
			state.Progress[key] = progress
		}
		if progress.Claimed {
			return nil, ErrChallengeAlreadyClaimed
		}
		if progress.Progress < challenge.Target {
			return nil, ErrChallengeNotCompleted
		}

		progress.Claimed = true
		progress.ClaimTimeSec = time.Now().Unix()

		value, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal challenge state: %v", err)
			return nil, ErrInternal
		}
		writeVersion := version
		if writeVersion == "" {
			writeVersion = "*"
		}
		writes := []*runtime.StorageWrite{
			{
				Collection:      challengesStorageCollection,
				Key:             challengeRotationStorageKey,
				UserID:          userID,
				Value:           string(value),
				Version:         writeVersion,
				PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
				PermissionWrite: runtime.STORAGE_PERMISSION_OWNER_WRITE,
			},
		}

		err = economy.Grant(ctx, logger, nk, userID, challenge.Reward, LedgerKindChallenge, fmt.Sprintf("challenge claimed: %s", challengeID), writes)
		if err != nil {
			// The conditional write lost a race. Re-read so a competing
			// claim of the same challenge surfaces as already claimed.
			logger.Debug("Challenge claim attempt %d failed, retrying: %v", attempt+1, err)
			lastErr = err
			continue
		}

		claimed := c.challengeState(challengeID, challenge, period, progress, resetSec)
		sendChallengeClaimedNotification(ctx, logger, nk, userID, claimed)
		return claimed, nil
	}

	logger.Error("Failed to claim challenge after %d attempts: %v", maxRotationAttempts, lastErr)
	return nil, ErrInternal
}
