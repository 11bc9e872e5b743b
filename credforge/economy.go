package credforge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Wallet currency identifiers.
const (
	CurrencyCash = "cash"
	CurrencyXp   = "xp"
	CurrencyCred = "cred"
)

// Ledger transaction kinds recorded in wallet metadata.
const (
	LedgerKindAchievement = "achievement"
	LedgerKindChallenge   = "challenge"
	LedgerKindLoginBonus  = "login_bonus"
	LedgerKindSpend       = "spend"
)

// Reward is a bundle of currency amounts granted by an achievement,
// challenge or bonus.
type Reward struct {
	Cash int64 `json:"cash,omitempty"`
	Xp   int64 `json:"xp,omitempty"`
	Cred int64 `json:"cred,omitempty"`
}

// EconomyConfig is the data definition for an EconomySystem type.
type EconomyConfig struct {
	// LoginRewards is the cred payout per consecutive login day, indexed by
	// streak day starting at 1. Streaks past the last entry keep paying the
	// last entry.
	LoginRewards []int64 `json:"login_rewards,omitempty"`

	// Sinks are the named shortcuts street cred can be spent on.
	Sinks map[string]*EconomyConfigSink `json:"sinks,omitempty"`

	// Timezone is an IANA timezone name used to anchor login days.
	// Defaults to UTC.
	Timezone string `json:"timezone,omitempty"`
}

type EconomyConfigSink struct {
	Name string `json:"name,omitempty"`
	Cost int64  `json:"cost,omitempty"`

	// PerUnit scales the cost by the purchased quantity.
	PerUnit bool `json:"per_unit,omitempty"`
}

// PlayerBalance is the denormalized view of a player's wallet.
type PlayerBalance struct {
	Cash        int64 `json:"cash"`
	Xp          int64 `json:"xp"`
	Cred        int64 `json:"cred"`
	LoginStreak int64 `json:"login_streak"`
}

// LedgerEntry is one wallet transaction as returned to clients.
type LedgerEntry struct {
	Id            string           `json:"id"`
	Amounts       map[string]int64 `json:"amounts,omitempty"`
	Kind          string           `json:"kind,omitempty"`
	Description   string           `json:"description,omitempty"`
	CreateTimeSec int64            `json:"create_time_sec"`
}

type LoginBonus struct {
	Streak int64 `json:"streak"`
	Amount int64 `json:"amount"`
}

type SpendResult struct {
	SinkID    string `json:"sink_id"`
	Quantity  int64  `json:"quantity"`
	TotalCost int64  `json:"total_cost"`
}

// EconomySystem is the single choke point for every balance mutation. All
// awards and spends flow through it so the wallet ledger stays the complete
// audit trail.
type EconomySystem interface {
	System

	// Grant credits a reward and applies the given storage writes in one
	// atomic unit, recording a ledger transaction. Either everything is
	// applied or nothing is.
	Grant(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, reward *Reward, kind, description string, writes []*runtime.StorageWrite) error

	// Credit is Grant without accompanying storage writes.
	Credit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, reward *Reward, kind, description string) error

	// Debit atomically deducts street cred, failing with ErrInsufficientFunds
	// when the balance cannot cover the amount. The balance never goes
	// negative.
	Debit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, amount int64, kind, description string) error

	// Balance returns the player's current wallet and login streak.
	Balance(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (balance *PlayerBalance, err error)

	// LedgerList pages through the player's transaction history, newest first.
	LedgerList(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, limit int, cursor string) (entries []*LedgerEntry, nextCursor string, err error)

	// DailyLoginClaim claims today's login bonus, at most once per local
	// calendar day. Consecutive days grow the streak; a missed day resets it.
	DailyLoginClaim(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (bonus *LoginBonus, err error)

	// LoginStreak returns the player's effective login streak, zero if the
	// streak has lapsed.
	LoginStreak(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (streak int64, err error)

	// Spend deducts the cost of a configured sink from the player's street
	// cred.
	Spend(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, sinkID string, quantity int64) (result *SpendResult, err error)

	// SinkCosts returns the configured spend sinks.
	SinkCosts() map[string]*EconomyConfigSink
}
