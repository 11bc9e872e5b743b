package credforge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// PeriodType identifies the rotation cadence a challenge belongs to.
type PeriodType string

const (
	PeriodTypeDaily  PeriodType = "daily"
	PeriodTypeWeekly PeriodType = "weekly"
)

// ChallengesConfig is the data definition for a ChallengesSystem type. Daily
// and weekly pools are separate catalogs; each player is dealt a personal
// selection from each pool per period.
type ChallengesConfig struct {
	Daily  map[string]*ChallengesConfigChallenge `json:"daily,omitempty"`
	Weekly map[string]*ChallengesConfigChallenge `json:"weekly,omitempty"`

	// SelectionCount is the number of challenges dealt to a player from each
	// pool per period. Defaults to 3.
	SelectionCount int `json:"selection_count,omitempty"`

	// Timezone is an IANA timezone name used to anchor period boundaries.
	// Defaults to UTC.
	Timezone string `json:"timezone,omitempty"`

	// DailyResetCronexpr and WeeklyResetCronexpr override the reset
	// schedules. Defaults are midnight every day and midnight every Monday.
	DailyResetCronexpr  string `json:"daily_reset_cronexpr,omitempty"`
	WeeklyResetCronexpr string `json:"weekly_reset_cronexpr,omitempty"`
}

type ChallengesConfigChallenge struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	// Type is the gameplay action counter this challenge tracks, matched
	// against the action type reported by IncrementProgress.
	Type   string  `json:"type,omitempty"`
	Target int64   `json:"target,omitempty"`
	Reward *Reward `json:"reward,omitempty"`
}

// ChallengeProgress is the player's progress against one selected challenge
// within the current period.
type ChallengeProgress struct {
	Progress     int64 `json:"progress,omitempty"`
	Claimed      bool  `json:"claimed,omitempty"`
	ClaimTimeSec int64 `json:"claim_time_sec,omitempty"`
}

// ChallengeState is a selected challenge joined with the player's progress,
// as returned to clients.
type ChallengeState struct {
	Id          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type,omitempty"`
	Period      PeriodType `json:"period"`
	Target      int64      `json:"target"`
	Progress    int64      `json:"progress"`
	Completed   bool       `json:"completed"`
	Claimed     bool       `json:"claimed"`
	Reward      *Reward    `json:"reward,omitempty"`
	ResetSec    int64      `json:"reset_sec"`
}

type ChallengesList struct {
	Daily  []*ChallengeState `json:"daily"`
	Weekly []*ChallengeState `json:"weekly"`
}

type ChallengesSystem interface {
	System

	// List returns the player's current daily and weekly selections,
	// rotating them first if a reset boundary has passed.
	List(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (list *ChallengesList, err error)

	// IncrementProgress adds amount to every selected, unclaimed challenge
	// whose type matches actionType, across both periods. Progress is not
	// clamped at the target.
	IncrementProgress(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, actionType string, amount int64) error

	// IncrementProgressAdvisory is the entry point for gameplay actions.
	// Failures are logged and swallowed so progress tracking never fails the
	// action that triggered it.
	IncrementProgressAdvisory(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, actionType string, amount int64)

	// Claim pays out a completed challenge exactly once and returns its
	// post-claim state. The challenge is resolved against the given period's
	// selection only; naming the other period is rejected as wrong period.
	Claim(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, challengeID string, period PeriodType) (state *ChallengeState, err error)
}
