package credforge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// StatsConfig is the data definition for a StatsSystem type.
type StatsConfig struct {
	// Collection overrides the storage collection the aggregate is read from.
	Collection string `json:"collection,omitempty"`
}

// PlayerStatsSnapshot is a single point-in-time view of every counter the
// condition evaluator needs. It is read in one storage fetch so correlated
// fields (best streak vs current streak, per-district counts) can never mix
// pre- and post-update values, and no per-achievement lookups are required.
//
// The aggregate is written by the gameplay subsystems that resolve crimes,
// robberies, purchases and travel. This engine only ever reads it.
type PlayerStatsSnapshot struct {
	TotalCrimes      int64 `json:"total_crimes,omitempty"`
	SuccessfulCrimes int64 `json:"successful_crimes,omitempty"`
	CurrentStreak    int64 `json:"current_streak,omitempty"`
	BestStreak       int64 `json:"best_streak,omitempty"`
	TotalEarnings    int64 `json:"total_earnings,omitempty"`
	JailMinutes      int64 `json:"jail_minutes,omitempty"`
	ItemsBought      int64 `json:"items_bought,omitempty"`
	PrestigeLevel    int64 `json:"prestige_level,omitempty"`

	// RobberiesCommitted counts successful robberies with this player as the aggressor.
	RobberiesCommitted int64 `json:"robberies_committed,omitempty"`

	// CrewLeader is true while the player leads a crew.
	CrewLeader bool `json:"crew_leader,omitempty"`

	DistrictsVisited    []string `json:"districts_visited,omitempty"`
	CrimeTypesCommitted []string `json:"crime_types_committed,omitempty"`

	// DistrictCrimeSuccesses maps district id to the player's successful crime count there.
	DistrictCrimeSuccesses map[string]int64 `json:"district_crime_successes,omitempty"`
}

type StatsSystem interface {
	System

	// Snapshot returns a consistent read of the player's aggregate stats.
	Snapshot(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (snapshot *PlayerStatsSnapshot, err error)
}
