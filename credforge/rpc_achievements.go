package credforge

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

type AchievementsRecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

type AchievementsRecentResponse struct {
	Unlocks []*AchievementUnlock `json:"unlocks"`
}

func rpcAchievementsList(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		achievementsSystem := cf.GetAchievementsSystem()
		if achievementsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		list, err := achievementsSystem.List(ctx, logger, nk, userID)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(list)
		if err != nil {
			logger.Error("Failed to marshal achievements list: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcAchievementsRecent(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		achievementsSystem := cf.GetAchievementsSystem()
		if achievementsSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		request := &AchievementsRecentRequest{}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), request); err != nil {
				logger.Error("Failed to unmarshal recent achievements request: %v", err)
				return "", ErrPayloadDecode
			}
		}

		unlocks, err := achievementsSystem.RecentUnlocks(ctx, logger, nk, userID, request.Limit)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(&AchievementsRecentResponse{Unlocks: unlocks})
		if err != nil {
			logger.Error("Failed to marshal recent achievements response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}
