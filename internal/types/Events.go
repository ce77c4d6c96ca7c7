/*

This file contains the strategy's observability event types. Every state
mutation emits one of these; they are logged, kept in a bounded in-memory ring
and optionally persisted to Postgres.

*/

package types

import (
	"time"
)

// EventType identifies a strategy event.
type EventType string

const (
	EventDeposit           EventType = "deposit"
	EventBondAdded         EventType = "bond_added"
	EventBondRemoved       EventType = "bond_removed"
	EventBondOpened        EventType = "bond_opened"
	EventRedeem            EventType = "redeem"
	EventRedeemFinal       EventType = "redeem_final"
	EventReserveRegistered EventType = "reserve_registered"
	EventReservePaid       EventType = "reserve_paid"
	EventClaimPaid         EventType = "claim_paid"
	EventFeeChanged        EventType = "fee_changed"
	EventKeeperChanged     EventType = "keeper_changed"
	EventRecipientChanged  EventType = "recipient_changed"
	EventVaultChanged      EventType = "vault_changed"
	EventMinDepositChanged EventType = "min_deposit_changed"
	EventPanic             EventType = "panic"
	EventPaused            EventType = "paused"
	EventUnpaused          EventType = "unpaused"
	EventTokensRescued     EventType = "tokens_rescued"
)

// Event is a single observable strategy occurrence. Integer amounts are
// carried as decimal strings in Attrs to keep the payload JSON-stable.
type Event struct {
	ID     string            `json:"id"` // uuid, unique per emission
	Type   EventType         `json:"type"`
	Height uint64            `json:"height"` // chain height at emission
	Time   time.Time         `json:"time"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}
