package credforge

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

type EconomyLedgerRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

type EconomyLedgerResponse struct {
	Entries []*LedgerEntry `json:"entries"`
	Cursor  string         `json:"cursor,omitempty"`
}

type EconomyCostsResponse struct {
	Sinks map[string]*EconomyConfigSink `json:"sinks"`
}

type EconomySpendRequest struct {
	SinkID   string `json:"sink_id"`
	Quantity int64  `json:"quantity,omitempty"`
}

func rpcEconomyBalance(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		economySystem := cf.GetEconomySystem()
		if economySystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		balance, err := economySystem.Balance(ctx, logger, nk, userID)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(balance)
		if err != nil {
			logger.Error("Failed to marshal balance: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcEconomyLedger(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		economySystem := cf.GetEconomySystem()
		if economySystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		request := &EconomyLedgerRequest{}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), request); err != nil {
				logger.Error("Failed to unmarshal ledger request: %v", err)
				return "", ErrPayloadDecode
			}
		}

		entries, cursor, err := economySystem.LedgerList(ctx, logger, nk, userID, request.Limit, request.Cursor)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(&EconomyLedgerResponse{Entries: entries, Cursor: cursor})
		if err != nil {
			logger.Error("Failed to marshal ledger response: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcEconomyCosts(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		economySystem := cf.GetEconomySystem()
		if economySystem == nil {
			return "", ErrSystemNotFound
		}

		data, err := json.Marshal(&EconomyCostsResponse{Sinks: economySystem.SinkCosts()})
		if err != nil {
			logger.Error("Failed to marshal sink costs: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcEconomyDailyClaim(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		economySystem := cf.GetEconomySystem()
		if economySystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		bonus, err := economySystem.DailyLoginClaim(ctx, logger, nk, userID)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(bonus)
		if err != nil {
			logger.Error("Failed to marshal login bonus: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcEconomySpend(cf *credforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		economySystem := cf.GetEconomySystem()
		if economySystem == nil {
			return "", ErrSystemNotFound
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		request := &EconomySpendRequest{}
		if err := json.Unmarshal([]byte(payload), request); err != nil {
			logger.Error("Failed to unmarshal spend request: %v", err)
			return "", ErrPayloadDecode
		}
		if request.SinkID == "" {
			return "", ErrBadInput
		}

		result, err := economySystem.Spend(ctx, logger, nk, userID, request.SinkID, request.Quantity)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(result)
		if err != nil {
			logger.Error("Failed to marshal spend result: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}
