package credforge

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

type ChallengesClaimRequest struct {
	ChallengeID string     `json:"challenge_id"`
	Period      PeriodType `json:"period"`
}

func rpcChallengesList(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		challengesSystem := cf.GetChallengesSystem()
		if challengesSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		list, err := challengesSystem.List(ctx, logger, nk, userID)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(list)
		if err != nil {
			logger.Error("Failed to marshal challenges list: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcChallengesClaim(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		challengesSystem := cf.GetChallengesSystem()
		if challengesSystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		request := &ChallengesClaimRequest{}
		if err := json.Unmarshal([]byte(payload), request); err != nil {
			logger.Error("Failed to unmarshal challenge claim request: %v", err)
			return "", ErrPayloadDecode
		}
		if request.ChallengeID == "" || request.Period == "" {
			return "", ErrBadInput
		}

		state, err := challengesSystem.Claim(ctx, logger, nk, userID, request.ChallengeID, request.Period)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal challenge claim response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}
