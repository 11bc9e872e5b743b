package main

import (
	"context"
	"database/sql"
	"time"

	"streetcred/credforge"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading Streetcred Nakama plugin...")

	_, err := credforge.Init(ctx, logger, nk, initializer,
		credforge.WithStatsSystem("config/stats.json"),
		credforge.WithAchievementsSystem("config/achievements.json", true),
		credforge.WithChallengesSystem("config/challenges.json", true),
		credforge.WithEconomySystem("config/economy.json", true),
	)
	if err != nil {
		logger.Error("Failed to initialize progression systems: %v", err)
		return err
	}

	logger.Info("Streetcred Nakama plugin loaded in '%d' msec.", time.Now().Sub(initStart).Milliseconds())
	return nil
}

// main is never called; Nakama loads this module as a plugin via InitModule.
func main() {}
