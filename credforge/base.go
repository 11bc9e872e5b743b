package credforge

import (
	"context"
	"encoding/json"
	"io"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	// INVALID_ARGUMENT_ERROR_CODE represents an error for invalid input arguments.
	INVALID_ARGUMENT_ERROR_CODE = 3
	// NOT_FOUND_ERROR_CODE represents an error for a resource not being found.
	NOT_FOUND_ERROR_CODE = 5
	// FAILED_PRECONDITION_ERROR_CODE represents an error for a failed precondition.
	FAILED_PRECONDITION_ERROR_CODE = 9
	// INTERNAL_ERROR_CODE represents an internal server error.
	INTERNAL_ERROR_CODE = 13
)

var (
	ErrInternal       = runtime.NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput       = runtime.NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrNoSessionUser  = runtime.NewError("no user ID in session", INVALID_ARGUMENT_ERROR_CODE)
	ErrPayloadDecode  = runtime.NewError("cannot decode json", INTERNAL_ERROR_CODE)
	ErrPayloadEncode  = runtime.NewError("cannot encode json", INTERNAL_ERROR_CODE)
	ErrSystemNotFound = runtime.NewError("system not found", INTERNAL_ERROR_CODE)

	ErrPlayerStatsNotFound     = runtime.NewError("player stats not found", NOT_FOUND_ERROR_CODE)
	ErrChallengeNotFound       = runtime.NewError("challenge not found", NOT_FOUND_ERROR_CODE)
	ErrChallengeWrongPeriod    = runtime.NewError("challenge not in requested period", FAILED_PRECONDITION_ERROR_CODE)
	ErrChallengeAlreadyClaimed = runtime.NewError("challenge already claimed", FAILED_PRECONDITION_ERROR_CODE)
	ErrChallengeNotCompleted   = runtime.NewError("challenge not completed", FAILED_PRECONDITION_ERROR_CODE)
	ErrSinkNotFound            = runtime.NewError("spend sink not found", NOT_FOUND_ERROR_CODE)
	ErrInsufficientFunds       = runtime.NewError("insufficient funds", FAILED_PRECONDITION_ERROR_CODE)
	ErrLoginAlreadyClaimed     = runtime.NewError("login bonus already claimed today", FAILED_PRECONDITION_ERROR_CODE)
)

// The SystemType identifies each of the progression systems.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeStats
	SystemTypeAchievements
	SystemTypeChallenges
	SystemTypeEconomy
)

// A System is a base type for a progression system.
type System interface {
	// GetType provides the runtime type of the progression system.
	GetType() SystemType

	// GetConfig returns the configuration type of the progression system.
	GetConfig() any
}

// Credforge provides a type which combines all progression systems.
type Credforge interface {
	GetStatsSystem() StatsSystem
	GetAchievementsSystem() AchievementsSystem
	GetChallengesSystem() ChallengesSystem
	GetEconomySystem() EconomySystem
}

// The SystemConfig describes the configuration that each progression system must use to configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the progression system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions in the progression system.
	GetConfigFile() string

	// GetRegister returns true if the progression system's RPCs should be registered with the game server.
	GetRegister() bool
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string
	register   bool
}

func (sc *systemConfig) GetType() SystemType {
	return sc.systemType
}
func (sc *systemConfig) GetConfigFile() string {
	return sc.configFile
}
func (sc *systemConfig) GetRegister() bool {
	return sc.register
}

// WithStatsSystem configures a StatsSystem type.
func WithStatsSystem(configFile string) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeStats,
		configFile: configFile,
	}
}

// WithAchievementsSystem configures an AchievementsSystem type and optionally registers its RPCs with the game server.
func WithAchievementsSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeAchievements,
		configFile: configFile,
		register:   register,
	}
}

// WithChallengesSystem configures a ChallengesSystem type and optionally registers its RPCs with the game server.
func WithChallengesSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeChallenges,
		configFile: configFile,
		register:   register,
	}
}

// WithEconomySystem configures an EconomySystem type and optionally registers its RPCs with the game server.
func WithEconomySystem(configFile string, register bool) SystemConfig {
	return &systemConfig{
		systemType: SystemTypeEconomy,
		configFile: configFile,
		register:   register,
	}
}

// credforgeImpl implements the Credforge interface.
type credforgeImpl struct {
	systems map[SystemType]System
}

// Init initializes a Credforge type with the configurations provided.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, configs ...SystemConfig) (Credforge, error) {
	cf := &credforgeImpl{
		systems: make(map[SystemType]System),
	}

	for _, config := range configs {
		if err := cf.initSystem(ctx, logger, nk, initializer, config); err != nil {
			return nil, err
		}
	}

	// Wire systems to each other after all of them have been created, so
	// initialization order in the configs list does not matter.
	for _, system := range cf.systems {
		if aware, ok := system.(credforgeAware); ok {
			aware.SetCredforge(cf)
		}
	}

	return cf, nil
}

// credforgeAware is implemented by systems which need access to their sibling systems.
type credforgeAware interface {
	SetCredforge(cf Credforge)
}

// initSystem initializes a specific system based on its type.
func (cf *credforgeImpl) initSystem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, config SystemConfig) error {
	logger.Info("Initializing system type: %v, config file: %s", config.GetType(), config.GetConfigFile())

	configData, err := nk.ReadFile(config.GetConfigFile())
	if err != nil {
		logger.Error("Failed to read config file %s: %v", config.GetConfigFile(), err)
		return err
	}

	configBytes, err := io.ReadAll(configData)
	if err != nil {
		logger.Error("Failed to read config file contents: %v", err)
		return err
	}
	defer configData.Close()

	var system System

	switch config.GetType() {
	case SystemTypeStats:
		statsConfig := &StatsConfig{}
		if err := json.Unmarshal(configBytes, statsConfig); err != nil {
			logger.Error("Failed to parse Stats system config: %v", err)
			return err
		}
		system = NewNakamaStatsSystem(statsConfig)

	case SystemTypeAchievements:
		achievementsConfig := &AchievementsConfig{}
		if err := json.Unmarshal(configBytes, achievementsConfig); err != nil {
			logger.Error("Failed to parse Achievements system config: %v", err)
			return err
		}
		system = NewNakamaAchievementsSystem(achievementsConfig)

	case SystemTypeChallenges:
		challengesConfig := &ChallengesConfig{}
		if err := json.Unmarshal(configBytes, challengesConfig); err != nil {
			logger.Error("Failed to parse Challenges system config: %v", err)
			return err
		}
		system = NewNakamaChallengesSystem(challengesConfig)

	case SystemTypeEconomy:
		economyConfig := &EconomyConfig{}
		if err := json.Unmarshal(configBytes, economyConfig); err != nil {
			logger.Error("Failed to parse Economy system config: %v", err)
			return err
		}
		system = NewNakamaEconomySystem(economyConfig)

	default:
		logger.Error("Unknown system type: %v", config.GetType())
		return runtime.NewError("unknown system type", INVALID_ARGUMENT_ERROR_CODE)
	}

	cf.systems[config.GetType()] = system

	if config.GetRegister() {
		if err := cf.registerSystemRpcs(initializer, config.GetType()); err != nil {
			return err
		}
	}

	return nil
}

// registerSystemRpcs registers the appropriate RPCs for a given system type.
func (cf *credforgeImpl) registerSystemRpcs(initializer runtime.Initializer, systemType SystemType) error {
	switch systemType {
	case SystemTypeAchievements:
		if err := initializer.RegisterRpc(RpcIdAchievementsList, rpcAchievementsList(cf)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdAchievementsRecent, rpcAchievementsRecent(cf)); err != nil {
			return err
		}

	case SystemTypeChallenges:
		if err := initializer.RegisterRpc(RpcIdChallengesList, rpcChallengesList(cf)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdChallengesClaim, rpcChallengesClaim(cf)); err != nil {
			return err
		}

	case SystemTypeEconomy:
		if err := initializer.RegisterRpc(RpcIdEconomyBalance, rpcEconomyBalance(cf)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEconomyLedger, rpcEconomyLedger(cf)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEconomyCosts, rpcEconomyCosts(cf)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEconomyDailyClaim, rpcEconomyDailyClaim(cf)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdEconomySpend, rpcEconomySpend(cf)); err != nil {
			return err
		}

	default:
		// No RPCs to register for this system type.
	}

	return nil
}

func (cf *credforgeImpl) GetStatsSystem() StatsSystem {
	if sys, ok := cf.systems[SystemTypeStats].(StatsSystem); ok {
		return sys
	}
	return nil
}

func (cf *credforgeImpl) GetAchievementsSystem() AchievementsSystem {
	if sys, ok := cf.systems[SystemTypeAchievements].(AchievementsSystem); ok {
		return sys
	}
	return nil
}

func (cf *credforgeImpl) GetChallengesSystem() ChallengesSystem {
	if sys, ok := cf.systems[SystemTypeChallenges].(ChallengesSystem); ok {
		return sys
	}
	return nil
}

func (cf *credforgeImpl) GetEconomySystem() EconomySystem {
	if sys, ok := cf.systems[SystemTypeEconomy].(EconomySystem); ok {
		return sys
	}
	return nil
}

// RPC identifiers registered with the game server.
const (
	RpcIdAchievementsList   = "achievements_list"
	RpcIdAchievementsRecent = "achievements_recent"
	RpcIdChallengesList     = "challenges_list"
	RpcIdChallengesClaim    = "challenges_claim"
	RpcIdEconomyBalance     = "economy_balance"
	RpcIdEconomyLedger      = "economy_ledger"
	RpcIdEconomyCosts       = "economy_costs"
	RpcIdEconomyDailyClaim  = "economy_daily_claim"
	RpcIdEconomySpend       = "economy_spend"
)
