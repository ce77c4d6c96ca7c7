package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by the LoadConfig function.
var (
	// Mode gates startup. Only "sim" is currently supported.
	Mode string

	// StrategyAddress is the strategy's own account.
	StrategyAddress string
	// VaultAddress is the vault account, the strategy's only privileged caller.
	VaultAddress string
	// ManagerAddress is the operator account allowed to run admin operations.
	ManagerAddress string
	// KeeperAddress is the automation account allowed to trigger redemptions.
	KeeperAddress string
	// FeeRecipientAddress receives service fees.
	FeeRecipientAddress string

	// AssetDenom is the managed rebasing token.
	AssetDenom string
	// StakedDenom is the staked form of the asset.
	StakedDenom string
	// StableDenom is the USD stable token ending the price route.
	StableDenom string
	// PriceRoute is the swap route used for fair-value quotes, comma separated.
	PriceRoute []string

	// ServiceFeeBps and WithdrawalFeeBps are the starting fee rates.
	ServiceFeeBps    uint64
	WithdrawalFeeBps uint64
	// MinDeposit is the vault's deposit floor in raw asset units.
	MinDeposit uint64
	// VaultCap bounds the vault's total managed balance; zero means uncapped.
	VaultCap uint64
	// PublicRedeem lets anyone trigger redeemAndStake when true.
	PublicRedeem bool

	// RedeemCronSpec schedules the keeper's automatic redemption sweeps.
	RedeemCronSpec string
	// BlockCronSpec schedules simulated block production.
	BlockCronSpec string

	// WebListenAddr is the status API bind address.
	WebListenAddr string

	// Persistence toggles the Postgres event and snapshot stores.
	Persistence bool
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All variables without a default are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Mode, err = getEnv("STRATD_MODE")
	if err != nil {
		return err
	}

	StrategyAddress, err = getEnv("STRAT_ADDRESS")
	if err != nil {
		return err
	}

	VaultAddress, err = getEnv("VAULT_ADDRESS")
	if err != nil {
		return err
	}

	ManagerAddress, err = getEnv("MANAGER_ADDRESS")
	if err != nil {
		return err
	}

	KeeperAddress = getEnvOr("KEEPER_ADDRESS", ManagerAddress)

	FeeRecipientAddress, err = getEnv("FEE_RECIPIENT_ADDRESS")
	if err != nil {
		return err
	}

	AssetDenom, err = getEnv("ASSET_DENOM")
	if err != nil {
		return err
	}

	StakedDenom, err = getEnv("STAKED_DENOM")
	if err != nil {
		return err
	}

	StableDenom, err = getEnv("STABLE_DENOM")
	if err != nil {
		return err
	}

	routeStr := getEnvOr("PRICE_ROUTE", AssetDenom+","+StableDenom)
	PriceRoute = splitRoute(routeStr)

	ServiceFeeBps, err = getEnvAsUint64Or("SERVICE_FEE_BPS", 300)
	if err != nil {
		return err
	}

	WithdrawalFeeBps, err = getEnvAsUint64Or("WITHDRAWAL_FEE_BPS", 100)
	if err != nil {
		return err
	}

	MinDeposit, err = getEnvAsUint64Or("MIN_DEPOSIT", 0)
	if err != nil {
		return err
	}

	VaultCap, err = getEnvAsUint64Or("VAULT_CAP", 0)
	if err != nil {
		return err
	}

	PublicRedeem = getEnvOr("PUBLIC_REDEEM", "false") == "true"

	RedeemCronSpec = getEnvOr("REDEEM_CRON", "@every 5m")

	BlockCronSpec = getEnvOr("BLOCK_CRON", "@every 1s")

	WebListenAddr = getEnvOr("WEB_LISTEN_ADDR", ":8080")

	Persistence = getEnvOr("PERSISTENCE", "false") == "true"
	if Persistence {
		if err := loadDBConfig(); err != nil {
			return err
		}
	}

	log.Debug().
		Str("Mode", Mode).
		Str("StrategyAddress", StrategyAddress).
		Str("AssetDenom", AssetDenom).
		Uint64("ServiceFeeBps", ServiceFeeBps).
		Uint64("WithdrawalFeeBps", WithdrawalFeeBps).
		Msg("Configuration loaded successfully.")

	return nil
}

// loadDBConfig loads the Postgres connection settings.
func loadDBConfig() error {
	var err error

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}

	port, err := getEnvAsUint64Or("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DBPort = int(port)

	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}

	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}

	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}

	DBSSLMode = getEnvOr("DB_SSLMODE", "disable")
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a fallback.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsUint64Or retrieves an environment variable as a uint64 with a
// fallback. Returns error if set but invalid.
func getEnvAsUint64Or(key string, fallback uint64) (uint64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// splitRoute parses a comma separated denom list, trimming whitespace.
func splitRoute(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
