package credforge

import (
	"context"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	statsStorageCollection   = "player_stats"
	statsAggregateStorageKey = "aggregate"
)

// NakamaStatsSystem implements the StatsSystem interface using Nakama as the backend.
type NakamaStatsSystem struct {
	config *StatsConfig
}

// NewNakamaStatsSystem creates a new instance of the stats system with the given configuration.
func NewNakamaStatsSystem(config *StatsConfig) *NakamaStatsSystem {
	return &NakamaStatsSystem{
		config: config,
	}
}

// GetType returns the system type for the stats system.
func (s *NakamaStatsSystem) GetType() SystemType {
	return SystemTypeStats
}

// GetConfig returns the configuration for the stats system.
func (s *NakamaStatsSystem) GetConfig() any {
	return s.config
}

func (s *NakamaStatsSystem) collection() string {
	if s.config != nil && s.config.Collection != "" {
		return s.config.Collection
	}
	return statsStorageCollection
}

// Snapshot returns a consistent read of the player's aggregate stats.
// The whole aggregate lives in one storage object, so a single read is a
// point-in-time view regardless of concurrent writers.
func (s *NakamaStatsSystem) Snapshot(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*PlayerStatsSnapshot, error) {
	if userID == "" {
		return nil, ErrBadInput
	}

	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{
			Collection: s.collection(),
			Key:        statsAggregateStorageKey,
			UserID:     userID,
		},
	})
	if err != nil {
		logger.Error("Failed to read player stats aggregate: %v", err)
		return nil, ErrInternal
	}

	if len(objects) == 0 || objects[0] == nil || objects[0].Value == "" {
		return nil, ErrPlayerStatsNotFound
	}

	snapshot := &PlayerStatsSnapshot{}
	if err := json.Unmarshal([]byte(objects[0].Value), snapshot); err != nil {
		logger.Error("Failed to unmarshal player stats aggregate: %v", err)
		return nil, ErrInternal
	}

	return snapshot, nil
}
