package types

import (
	"fmt"
	"slices"
)

const (
	platformKeyPrefix = "platform:"
	rampKeyPrefix     = "ramp:"
	proofKeyPrefix    = "proof:"
	balanceKeyPrefix  = "balance:"
)

type (
	// RampTx is a declared intent to deposit (onramp) or withdraw (offramp)
	// value, queued on the platform until proven.
	RampTx struct {
		_        struct{} `cbor:",toarray"`
		IsOnramp bool     `json:"isOnramp"`
		User     Identity `json:"user"`
		Amount   uint64   `json:"amount,string"`
	}

	// Platform is the shared rollup state of one rollup instance.
	Platform struct {
		_             struct{}   `cbor:",toarray"`
		ID            PlatformID `json:"id"`
		Sequencer     Identity   `json:"sequencer"`
		LastStateHash Hash       `json:"lastStateHash"`
		RampTxs       []*RampTx  `json:"rampTxs"`
		// Deposit and Withdraw are lifetime aggregates of verified onramps
		// and offramps, Deposit >= Withdraw always holds.
		Deposit  uint64 `json:"deposit,string"`
		Withdraw uint64 `json:"withdraw,string"`
		// Paid is the realized part of Withdraw, ie the amount already
		// transferred out to rampers.
		Paid uint64 `json:"paid,string"`
	}

	// RampLedger is the per ramper per platform withdrawal entitlement.
	RampLedger struct {
		_                struct{}   `cbor:",toarray"`
		PlatformID       PlatformID `json:"platformId"`
		Ramper           Identity   `json:"ramper"`
		CurrentStateHash Hash       `json:"currentStateHash"`
		PendingWithdraw  uint64     `json:"pendingWithdraw,string"`
	}

	// Balance is the host ledger value held by an identity.
	Balance struct {
		_      struct{} `cbor:",toarray"`
		Owner  Identity `json:"owner"`
		Amount uint64   `json:"amount,string"`
	}
)

func NewPlatform(id PlatformID, sequencer Identity, initialStateHash Hash) *Platform {
	return &Platform{
		ID:            id,
		Sequencer:     slices.Clone(sequencer),
		LastStateHash: initialStateHash,
		RampTxs:       []*RampTx{},
	}
}

func (p *Platform) Unrealized() uint64 {
	return p.Withdraw - p.Paid
}

// Vault returns the host ledger identity holding the value deposited to the
// platform. The leading zero byte keeps it apart from public keys.
func (p *Platform) Vault() Identity {
	return VaultIdentity(p.ID)
}

func VaultIdentity(id PlatformID) Identity {
	return append(Identity{0x00}, id[:]...)
}

// Copy returns deep copy of the platform, mutations of the copy do not
// affect the original.
func (p *Platform) Copy() *Platform {
	if p == nil {
		return nil
	}
	c := *p
	c.Sequencer = slices.Clone(p.Sequencer)
	c.RampTxs = make([]*RampTx, len(p.RampTxs))
	for i, tx := range p.RampTxs {
		c.RampTxs[i] = tx.Copy()
	}
	return &c
}

func (p *Platform) Size() (int, error) {
	b, err := Cbor.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encoding platform: %w", err)
	}
	return len(b), nil
}

func (tx *RampTx) Copy() *RampTx {
	if tx == nil {
		return nil
	}
	return &RampTx{IsOnramp: tx.IsOnramp, User: slices.Clone(tx.User), Amount: tx.Amount}
}

func (tx *RampTx) String() string {
	kind := "offramp"
	if tx.IsOnramp {
		kind = "onramp"
	}
	return fmt.Sprintf("%s %d by %s", kind, tx.Amount, tx.User)
}

func NewRampLedger(platformID PlatformID, ramper Identity, stateHash Hash) *RampLedger {
	return &RampLedger{
		PlatformID:       platformID,
		Ramper:           slices.Clone(ramper),
		CurrentStateHash: stateHash,
	}
}

func (r *RampLedger) Copy() *RampLedger {
	if r == nil {
		return nil
	}
	c := *r
	c.Ramper = slices.Clone(r.Ramper)
	return &c
}

/*
PlatformKey returns the storage key of the platform record.

Record keys are derived from the role tag ("platform:", "ramp:",...)
followed by platform id and participant identity, so every record is
individually addressable.
*/
func PlatformKey(id PlatformID) []byte {
	return append([]byte(platformKeyPrefix), id[:]...)
}

// PlatformKeyPrefix is the common prefix of all platform record keys.
func PlatformKeyPrefix() []byte {
	return []byte(platformKeyPrefix)
}

func RampLedgerKey(id PlatformID, ramper Identity) []byte {
	key := append([]byte(rampKeyPrefix), id[:]...)
	return append(key, ramper...)
}

func ProofBufferKey(id PlatformID, prover Identity) []byte {
	key := append([]byte(proofKeyPrefix), id[:]...)
	return append(key, prover...)
}

func BalanceKey(owner Identity) []byte {
	return append([]byte(balanceKeyPrefix), owner...)
}
