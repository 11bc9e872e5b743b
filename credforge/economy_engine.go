package credforge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	economyStorageCollection = "economy"
	loginStreakStorageKey    = "login_streak"

	// maxClaimAttempts bounds the optimistic write retry loop when
	// concurrent login claims race on the streak state.
	maxClaimAttempts = 3

	defaultMaxLoginStreak = 7
)

// loginStreakState is the per-player storage object tracking consecutive
// login bonus claims.
type loginStreakState struct {
	Streak       int64 `json:"streak,omitempty"`
	LastClaimSec int64 `json:"last_claim_sec,omitempty"`
}

// NakamaEconomySystem implements the EconomySystem interface using Nakama as the backend.
type NakamaEconomySystem struct {
	config *EconomyConfig
}

// NewNakamaEconomySystem creates a new instance of the economy system with the given configuration.
func NewNakamaEconomySystem(config *EconomyConfig) *NakamaEconomySystem {
	return &NakamaEconomySystem{
		config: config,
	}
}

// GetType returns the system type for the economy system.
func (e *NakamaEconomySystem) GetType() SystemType {
	return SystemTypeEconomy
}

// GetConfig returns the configuration for the economy system.
func (e *NakamaEconomySystem) GetConfig() any {
	return e.config
}

func (e *NakamaEconomySystem) location(logger runtime.Logger) *time.Location {
	if e.config == nil || e.config.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.config.Timezone)
	if err != nil {
		logger.Warn("Invalid economy timezone %q, using UTC: %v", e.config.Timezone, err)
		return time.UTC
	}
	return loc
}

// rewardChangeset converts a reward into a wallet changeset, skipping zero
// amounts so empty rewards produce no transaction.
func rewardChangeset(reward *Reward) map[string]int64 {
	changeset := make(map[string]int64, 3)
	if reward == nil {
		return changeset
	}
	if reward.Cash != 0 {
		changeset[CurrencyCash] = reward.Cash
	}
	if reward.Xp != 0 {
		changeset[CurrencyXp] = reward.Xp
	}
	if reward.Cred != 0 {
		changeset[CurrencyCred] = reward.Cred
	}
	return changeset
}

func transactionMetadata(kind, description string) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": uuid.New().String(),
		"kind":           kind,
		"description":    description,
	}
}

// Grant credits a reward and applies the given storage writes as one atomic
// unit. Callers piggyback their own conditional state writes on the payout
// so a lost version race rolls the credit back too.
func (e *NakamaEconomySystem) Grant(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, reward *Reward, kind, description string, writes []*runtime.StorageWrite) error {
	if userID == "" {
		return ErrBadInput
	}

	changeset := rewardChangeset(reward)
	if len(changeset) == 0 && len(writes) == 0 {
		return nil
	}

	var walletUpdates []*runtime.WalletUpdate
	if len(changeset) > 0 {
		walletUpdates = []*runtime.WalletUpdate{
			{
				UserID:    userID,
				Changeset: changeset,
				Metadata:  transactionMetadata(kind, description),
			},
		}
	}

	if _, _, err := nk.MultiUpdate(ctx, nil, writes, nil, walletUpdates, true); err != nil {
		return err
	}
	return nil
}

// Credit is Grant without accompanying storage writes.
func (e *NakamaEconomySystem) Credit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, reward *Reward, kind, description string) error {
	return e.Grant(ctx, logger, nk, userID, reward, kind, description, nil)
}

// Debit atomically deducts street cred. The wallet update is rejected by
// the runtime when it would drive a balance negative, which is surfaced as
// insufficient funds. There is no read-then-write window to race through.
func (e *NakamaEconomySystem) Debit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, amount int64, kind, description string) error {
	if userID == "" || amount <= 0 {
		return ErrBadInput
	}

	changeset := map[string]int64{CurrencyCred: -amount}
	_, _, err := nk.WalletUpdate(ctx, userID, changeset, transactionMetadata(kind, description), true)
	if err != nil {
		// The rejection crosses the NakamaModule boundary untyped; the
		// server wraps it in a message containing "negative" (Go wallet
		// ledger path) or "insufficient" (script runtimes). Keep both
		// fragments in sync with the server when upgrading nakama-common.
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "insufficient") || strings.Contains(msg, "negative") {
			return ErrInsufficientFunds
		}
		logger.Error("Failed to debit wallet for user %s: %v", userID, err)
		return ErrInternal
	}
	return nil
}

// Balance returns the player's current wallet and login streak. The wallet
// is the denormalized balance; it always equals the sum of the ledger
// because every mutation goes through the wallet update path.
func (e *NakamaEconomySystem) Balance(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*PlayerBalance, error) {
	if userID == "" {
		return nil, ErrBadInput
	}

	account, err := nk.AccountGetId(ctx, userID)
	if err != nil {
		logger.Error("Failed to fetch account for user %s: %v", userID, err)
		return nil, ErrInternal
	}

	wallet := make(map[string]int64)
	if account.Wallet != "" {
		if err := json.Unmarshal([]byte(account.Wallet), &wallet); err != nil {
			logger.Error("Failed to unmarshal wallet for user %s: %v", userID, err)
			return nil, ErrInternal
		}
	}

	streak, err := e.LoginStreak(ctx, logger, nk, userID)
	if err != nil {
		return nil, err
	}

	return &PlayerBalance{
		Cash:        wallet[CurrencyCash],
		Xp:          wallet[CurrencyXp],
		Cred:        wallet[CurrencyCred],
		LoginStreak: streak,
	}, nil
}

// LedgerList pages through the player's transaction history, newest first.
func (e *NakamaEconomySystem) LedgerList(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, limit int, cursor string) ([]*LedgerEntry, string, error) {
	if userID == "" {
		return nil, "", ErrBadInput
	}
	if limit <= 0 {
		limit = 100
	}

	items, nextCursor, err := nk.WalletLedgerList(ctx, userID, limit, cursor)
	if err != nil {
		logger.Error("Failed to list wallet ledger for user %s: %v", userID, err)
		return nil, "", ErrInternal
	}

	entries := make([]*LedgerEntry, 0, len(items))
	for _, item := range items {
		entry := &LedgerEntry{
			Id:            item.GetID(),
			Amounts:       item.GetChangeset(),
			CreateTimeSec: item.GetCreateTime(),
		}
		metadata := item.GetMetadata()
		if kind, ok := metadata["kind"].(string); ok {
			entry.Kind = kind
		}
		if description, ok := metadata["description"].(string); ok {
			entry.Description = description
		}
		entries = append(entries, entry)
	}
	return entries, nextCursor, nil
}

func (e *NakamaEconomySystem) readLoginStreak(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*loginStreakState, string, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{
			Collection: economyStorageCollection,
			Key:        loginStreakStorageKey,
			UserID:     userID,
		},
	})
	if err != nil {
		logger.Error("Failed to read login streak: %v", err)
		return nil, "", ErrInternal
	}

	state := &loginStreakState{}
	if len(objects) == 0 || objects[0] == nil || objects[0].Value == "" {
		return state, "", nil
	}
	if err := json.Unmarshal([]byte(objects[0].Value), state); err != nil {
		logger.Error("Failed to unmarshal login streak: %v", err)
		return nil, "", ErrInternal
	}
	return state, objects[0].Version, nil
}

// maxLoginStreak is the ceiling the streak counter advances to, one day per
// configured reward entry.
func (e *NakamaEconomySystem) maxLoginStreak() int64 {
	if len(e.config.LoginRewards) > 0 {
		return int64(len(e.config.LoginRewards))
	}
	return defaultMaxLoginStreak
}

// loginBonusAmount returns the cred payout for a streak day.
func (e *NakamaEconomySystem) loginBonusAmount(streak int64) int64 {
	rewards := e.config.LoginRewards
	if len(rewards) == 0 {
		return 0
	}
	if streak > int64(len(rewards)) {
		streak = int64(len(rewards))
	}
	if streak < 1 {
		streak = 1
	}
	return rewards[streak-1]
}

// DailyLoginClaim claims today's login bonus at most once per local calendar
// day. The streak state is written conditionally in the same multi-update
// that credits the bonus, so double-submits cannot double-pay.
func (e *NakamaEconomySystem) DailyLoginClaim(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*LoginBonus, error) {
	if userID == "" {
		return nil, ErrBadInput
	}
	loc := e.location(logger)

	var lastErr error
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		state, version, err := e.readLoginStreak(ctx, logger, nk, userID)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		today := dayStart(now, loc)

		if state.LastClaimSec > 0 {
			lastDay := dayStart(time.Unix(state.LastClaimSec, 0), loc)
			if lastDay.Equal(today) {
				return nil, ErrLoginAlreadyClaimed
			}
			if lastDay.AddDate(0, 0, 1).Equal(today) {
				if state.Streak < e.maxLoginStreak() {
					state.Streak++
				}
			} else {
				state.Streak = 1
			}
		} else {
			state.Streak = 1
		}
		state.LastClaimSec = now.Unix()

		amount := e.loginBonusAmount(state.Streak)

		value, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal login streak: %v", err)
			return nil, ErrInternal
		}
		writeVersion := version
		if writeVersion == "" {
			writeVersion = "*"
		}
		writes := []*runtime.StorageWrite{
			{
				Collection:      economyStorageCollection,
				Key:             loginStreakStorageKey,
				UserID:          userID,
				Value:           string(value),
				Version:         writeVersion,
				PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
				PermissionWrite: runtime.STORAGE_PERMISSION_OWNER_WRITE,
			},
		}

		reward := &Reward{Cred: amount}
		err = e.Grant(ctx, logger, nk, userID, reward, LedgerKindLoginBonus, fmt.Sprintf("login bonus day %d", state.Streak), writes)
		if err != nil {
			// The conditional write lost a race. Re-read so a competing
			// claim surfaces as already claimed today.
			logger.Debug("Login claim attempt %d failed, retrying: %v", attempt+1, err)
			lastErr = err
			continue
		}

		bonus := &LoginBonus{Streak: state.Streak, Amount: amount}
		sendLoginBonusNotification(ctx, logger, nk, userID, bonus)
		return bonus, nil
	}

	logger.Error("Failed to claim login bonus after %d attempts: %v", maxClaimAttempts, lastErr)
	return nil, ErrInternal
}

// LoginStreak returns the player's effective login streak. A streak lapses
// once a full local calendar day passes without a claim.
func (e *NakamaEconomySystem) LoginStreak(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrBadInput
	}

	state, _, err := e.readLoginStreak(ctx, logger, nk, userID)
	if err != nil {
		return 0, err
	}
	if state.LastClaimSec == 0 {
		return 0, nil
	}

	loc := e.location(logger)
	today := dayStart(time.Now(), loc)
	lastDay := dayStart(time.Unix(state.LastClaimSec, 0), loc)
	if lastDay.Equal(today) || lastDay.AddDate(0, 0, 1).Equal(today) {
		return state.Streak, nil
	}
	return 0, nil
}

// Spend deducts the cost of a configured sink from the player's street cred.
func (e *NakamaEconomySystem) Spend(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, sinkID string, quantity int64) (*SpendResult, error) {
	if userID == "" || sinkID == "" || quantity < 0 {
		return nil, ErrBadInput
	}
	if quantity == 0 {
		quantity = 1
	}

	sink, ok := e.config.Sinks[sinkID]
	if !ok {
		return nil, ErrSinkNotFound
	}

	cost := sink.Cost
	if sink.PerUnit {
		cost = sink.Cost * quantity
	}

	if cost > 0 {
		if err := e.Debit(ctx, logger, nk, userID, cost, LedgerKindSpend, fmt.Sprintf("spend: %s x%d", sinkID, quantity)); err != nil {
			return nil, err
		}
	}

	return &SpendResult{
		SinkID:    sinkID,
		Quantity:  quantity,
		TotalCost: cost,
	}, nil
}

// SinkCosts returns the configured spend sinks.
func (e *NakamaEconomySystem) SinkCosts() map[string]*EconomyConfigSink {
	if e.config == nil {
		return nil
	}
	return e.config.Sinks
}
