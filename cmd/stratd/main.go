package main

import (
	"os"
	"os/signal"
	"syscall"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/minimum-finance/strategy-engine/internal/chainsim"
	"github.com/minimum-finance/strategy-engine/internal/config"
	"github.com/minimum-finance/strategy-engine/internal/fees"
	"github.com/minimum-finance/strategy-engine/internal/logger"
	"github.com/minimum-finance/strategy-engine/internal/state"
	"github.com/minimum-finance/strategy-engine/internal/strategy"
	"github.com/minimum-finance/strategy-engine/internal/vault"
	"github.com/minimum-finance/strategy-engine/internal/web"
)

// main is the entry point for the strategy engine daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Strategy engine starting...")

	// Safety switch: only the simulated collaborator stack is wired in, so
	// refuse to start in any other mode.
	if config.Mode != "sim" {
		log.Fatal().Str("mode", config.Mode).Msg("STRATD_MODE is not set to 'sim'. Halting to prevent accidental execution. Set STRATD_MODE=sim to run.")
	}

	// --- 2. Optional Persistence ---
	var eventStore strategy.EventStore
	var dbCheck func() error
	if config.Persistence {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		eventStore = state.EventStore{}
		dbCheck = state.TestDBConnection
	}

	// --- 3. Simulated Chain and Collaborators ---
	chain := chainsim.NewChain()
	bank := chainsim.NewBank()
	staking := chainsim.NewStaking(chainsim.StakingConfig{
		Account:       "staking-module",
		AssetDenom:    config.AssetDenom,
		StakedDenom:   config.StakedDenom,
		EpochBlocks:   2200,
		WarmupPeriod:  1,
		RebaseRateBps: 5,
	}, chain, bank)
	router := chainsim.NewRouter("swap-router", bank)
	router.SetRate(config.AssetDenom, config.StableDenom,
		sdkmath.LegacyNewDec(10).MulInt64(1_000_000_000))

	// --- 4. Strategy and Vault ---
	feeSchedule, err := fees.NewSchedule(config.ServiceFeeBps, config.WithdrawalFeeBps)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fee configuration")
	}

	recorder := strategy.NewRecorder(eventStore)
	strat, err := strategy.New(strategy.Config{
		Address:      config.StrategyAddress,
		Vault:        config.VaultAddress,
		Manager:      config.ManagerAddress,
		Keeper:       config.KeeperAddress,
		FeeRecipient: config.FeeRecipientAddress,
		AssetDenom:   config.AssetDenom,
		StakedDenom:  config.StakedDenom,
		PriceRoute:   config.PriceRoute,
		Fees:         feeSchedule,
		PublicRedeem: config.PublicRedeem,
		Bank:         bank,
		Staking:      staking,
		Router:       router,
		Chain:        chain,
		Recorder:     recorder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize strategy")
	}

	v, err := vault.New(vault.Config{
		Address:    config.VaultAddress,
		Manager:    config.ManagerAddress,
		AssetDenom: config.AssetDenom,
		MinDeposit: sdkmath.NewIntFromUint64(config.MinDeposit),
		Cap:        sdkmath.NewIntFromUint64(config.VaultCap),
		Bank:       bank,
		Strategy:   strat,
		Recorder:   recorder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}

	// --- 5. Block Production and Keeper Schedule ---
	scheduler := cron.New()

	// the simulated chain only moves when blocks are produced, so epochs,
	// warmups and bond vesting all hang off this job
	_, err = scheduler.AddFunc(config.BlockCronSpec, func() {
		chain.Advance(1)
	})
	if err != nil {
		log.Fatal().Err(err).Str("spec", config.BlockCronSpec).Msg("Invalid block cron spec")
	}

	_, err = scheduler.AddFunc(config.RedeemCronSpec, func() {
		if strat.IsBonding() {
			if err := strat.RedeemAndStake(config.KeeperAddress); err != nil {
				log.Error().Err(err).Msg("Scheduled redemption failed")
			}
		}
		if config.Persistence {
			balances := strat.Balances()
			if _, err := state.SaveBalanceSnapshot(chain.Height(), balances, strat.CurrentBond()); err != nil {
				log.Error().Err(err).Msg("Failed to save balance snapshot")
			}
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("spec", config.RedeemCronSpec).Msg("Invalid redemption cron spec")
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Info().
		Str("block_spec", config.BlockCronSpec).
		Str("redeem_spec", config.RedeemCronSpec).
		Msg("Block production and keeper schedules started")

	// --- 6. Web Server ---
	webServer := web.NewWebServer(config.WebListenAddr, strat, v, dbCheck)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 7. Wait for Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}
