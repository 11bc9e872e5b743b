package credforge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Notification codes sent to clients.
const (
	NotificationCodeAchievementUnlocked = 1101
	NotificationCodeChallengeClaimed    = 1102
	NotificationCodeLoginBonus          = 1103
)

func sendAchievementUnlockedNotification(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, unlock *AchievementUnlock) {
	content := map[string]interface{}{
		"achievement_id": unlock.Id,
		"name":           unlock.Name,
		"reward_cash":    unlock.RewardCash,
		"reward_xp":      unlock.RewardXp,
		"type":           "achievement_unlocked",
	}

	err := nk.NotificationSend(ctx, userID, "Achievement unlocked", content, NotificationCodeAchievementUnlocked, "", true)
	if err != nil {
		logger.Error("Failed to send achievement notification to user %s: %v", userID, err)
	}
}

func sendChallengeClaimedNotification(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, state *ChallengeState) {
	content := map[string]interface{}{
		"challenge_id": state.Id,
		"name":         state.Name,
		"period":       string(state.Period),
		"type":         "challenge_claimed",
	}
	if state.Reward != nil {
		content["reward_cash"] = state.Reward.Cash
		content["reward_xp"] = state.Reward.Xp
		content["reward_cred"] = state.Reward.Cred
	}

	err := nk.NotificationSend(ctx, userID, "Challenge reward claimed", content, NotificationCodeChallengeClaimed, "", true)
	if err != nil {
		logger.Error("Failed to send challenge notification to user %s: %v", userID, err)
	}
}

func sendLoginBonusNotification(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, bonus *LoginBonus) {
	content := map[string]interface{}{
		"streak": bonus.Streak,
		"amount": bonus.Amount,
		"type":   "login_bonus",
	}

	err := nk.NotificationSend(ctx, userID, "Daily login bonus", content, NotificationCodeLoginBonus, "", true)
	if err != nil {
		logger.Error("Failed to send login bonus notification to user %s: %v", userID, err)
	}
}
