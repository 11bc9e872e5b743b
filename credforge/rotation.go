package credforge

import (
	"hash/fnv"
	"sort"
	"time"
)

// Action types reported by gameplay subsystems and matched against challenge
// type fields.
const (
	ActionCrimeCompleted    = "crime_completed"
	ActionCasinoWin         = "casino_win"
	ActionRaceWin           = "race_win"
	ActionPvpWin            = "pvp_win"
	ActionBankDeposit       = "bank_deposit"
	ActionShopPurchase      = "shop_purchase"
	ActionDistrictTravel    = "district_travel"
	ActionBountyClaim       = "bounty_claim"
	ActionLevelUp           = "level_up"
	ActionInterestCollected = "interest_collected"
)

// playerNumericID folds a user id string into a stable 64-bit number using
// FNV-1a. It only needs to be deterministic and well spread, not secure.
func playerNumericID(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum64())
}

// rotationSeed derives the per-player, per-period seed that makes challenge
// selection reproducible: the same player re-rolling within the same period
// always receives the same set.
func rotationSeed(userID string, periodStart time.Time) int64 {
	return playerNumericID(userID)*10000 + periodStart.UnixMilli()
}

// seededPermutation returns a permutation of [0, n) driven by a small linear
// congruential generator. Deliberately simple: the output must be
// bit-reproducible across server versions, so it cannot depend on the
// standard library's shuffle internals.
func seededPermutation(seed int64, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	state := uint64(seed)
	for i := n - 1; i > 0; i-- {
		state = state*6364136223846793005 + 1442695040888963407
		j := int((state >> 33) % uint64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// selectChallengeIDs deals count ids from the pool for the given seed. Pool
// iteration is over sorted keys so the result does not depend on map order.
func selectChallengeIDs(pool map[string]*ChallengesConfigChallenge, count int, seed int64) []string {
	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if count > len(ids) {
		count = len(ids)
	}

	perm := seededPermutation(seed, len(ids))
	selected := make([]string, 0, count)
	for _, idx := range perm[:count] {
		selected = append(selected, ids[idx])
	}
	sort.Strings(selected)
	return selected
}

// dayStart returns midnight of the day containing now in the given location.
func dayStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// weekStart returns the most recent Monday midnight at or before now in the
// given location.
func weekStart(now time.Time, loc *time.Location) time.Time {
	start := dayStart(now, loc)
	offset := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -offset)
}
