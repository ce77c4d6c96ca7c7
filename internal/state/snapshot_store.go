// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// BalanceSnapshot is one periodic record of the strategy's buckets.
type BalanceSnapshot struct {
	SnapshotID  int64
	Timestamp   time.Time
	ChainHeight uint64
	Balances    types.Balances
	Total       string
	CurrentBond string
}

// SaveBalanceSnapshot writes one balance snapshot to the database.
func SaveBalanceSnapshot(height uint64, balances types.Balances, currentBond string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO balance_snapshots (
			chain_height, unstaked, staked, warmup, rebase_bonded, reserves, total_balance, current_bond
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		height,
		balances.Unstaked.String(), balances.Staked.String(), balances.Warmup.String(),
		balances.RebaseBonded.String(), balances.Reserves.String(), balances.Total().String(),
		currentBond,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save balance snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Uint64("chain_height", height).
		Str("total_balance", balances.Total().String()).
		Msg("Balance snapshot saved to database")

	return snapshotID, nil
}

// LatestBalanceSnapshot loads the most recent balance snapshot, or nil when
// none has been recorded yet.
func LatestBalanceSnapshot() (*BalanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, chain_height,
			unstaked, staked, warmup, rebase_bonded, reserves, total_balance, current_bond
		FROM balance_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1;
	`

	var snap BalanceSnapshot
	var unstaked, staked, warmup, rebaseBonded, reserves string
	err := DB.QueryRow(query).Scan(
		&snap.SnapshotID, &snap.Timestamp, &snap.ChainHeight,
		&unstaked, &staked, &warmup, &rebaseBonded, &reserves, &snap.Total, &snap.CurrentBond,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load balance snapshot: %w", err)
	}

	balances, err := parseBalances(unstaked, staked, warmup, rebaseBonded, reserves)
	if err != nil {
		return nil, err
	}
	snap.Balances = balances
	return &snap, nil
}

// parseBalances converts the stored decimal strings back into integers.
func parseBalances(unstaked, staked, warmup, rebaseBonded, reserves string) (types.Balances, error) {
	out := types.Balances{}
	for _, field := range []struct {
		name  string
		value string
		dest  *sdkmath.Int
	}{
		{"unstaked", unstaked, &out.Unstaked},
		{"staked", staked, &out.Staked},
		{"warmup", warmup, &out.Warmup},
		{"rebase_bonded", rebaseBonded, &out.RebaseBonded},
		{"reserves", reserves, &out.Reserves},
	} {
		parsed, ok := sdkmath.NewIntFromString(field.value)
		if !ok {
			return types.Balances{}, fmt.Errorf("failed to parse %s value %q", field.name, field.value)
		}
		*field.dest = parsed
	}
	return out, nil
}
