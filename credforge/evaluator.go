package credforge

// Requirement kinds understood by the condition evaluator. Any other value
// is treated as never met rather than rejected, so new kinds can ship in
// content before the server understands them.
const (
	RequirementTotalCrimes           = "total_crimes"
	RequirementTotalEarnings         = "total_earnings"
	RequirementJailTime              = "jail_time"
	RequirementCrimeStreak           = "crime_streak"
	RequirementItemsBought           = "items_bought"
	RequirementPrestigeLevel         = "prestige_level"
	RequirementCreateCrew            = "create_crew"
	RequirementRobPlayer             = "rob_player"
	RequirementAllDistricts          = "all_districts"
	RequirementAllCrimes             = "all_crimes"
	RequirementSpecificDistrictCrime = "specific_district_crimes"
)

// requirementMet evaluates a single unlock condition against a stats
// snapshot. All threshold comparisons are >= so conditions stay monotone:
// once met against a snapshot, any later snapshot with equal or greater
// counters also meets it.
func requirementMet(req *AchievementsConfigRequirement, snap *PlayerStatsSnapshot) bool {
	if req == nil || snap == nil {
		return false
	}

	switch req.Type {
	case RequirementTotalCrimes:
		return snap.TotalCrimes >= req.Value
	case RequirementTotalEarnings:
		return snap.TotalEarnings >= req.Value
	case RequirementJailTime:
		return snap.JailMinutes >= req.Value
	case RequirementCrimeStreak:
		// Compares the best streak ever reached, not the live streak, so the
		// condition stays monotone even after the streak breaks.
		return snap.BestStreak >= req.Value
	case RequirementItemsBought:
		return snap.ItemsBought >= req.Value
	case RequirementPrestigeLevel:
		return snap.PrestigeLevel >= req.Value
	case RequirementCreateCrew:
		return snap.CrewLeader
	case RequirementRobPlayer:
		return snap.RobberiesCommitted >= req.Value
	case RequirementAllDistricts:
		return int64(len(snap.DistrictsVisited)) >= req.Value
	case RequirementAllCrimes:
		return int64(len(snap.CrimeTypesCommitted)) >= req.Value
	case RequirementSpecificDistrictCrime:
		if req.DistrictID == "" {
			return false
		}
		return snap.DistrictCrimeSuccesses[req.DistrictID] >= req.Value
	default:
		return false
	}
}
