package bridge

import (
	"bytes"
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/util"
)

/*
ValueTransfer moves value between the platform vault and the host ledger.
Deposit is called inside the prove transaction with the sum of the proven
onramps, Transfer inside the withdraw transaction. Returning an error aborts
the operation.
*/
type ValueTransfer interface {
	Deposit(tx *state.Tx, platform *types.Platform, amount uint64) error
	Transfer(tx *state.Tx, platform *types.Platform, to types.Identity, amount uint64) error
}

/*
HostLedger keeps host ledger balances as records in the bridge store. The
vault of a platform is the balance of types.VaultIdentity, it always holds
Deposit - Paid of the platform.
*/
type HostLedger struct{}

func (HostLedger) Deposit(tx *state.Tx, p *types.Platform, amount uint64) error {
	vault, err := tx.Balance(p.Vault())
	if err != nil {
		return fmt.Errorf("loading vault balance: %w", err)
	}
	sum, _, err := util.AddUint64(vault.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: vault of platform %s: %w", ErrArithmeticOverflow, p.ID, err)
	}
	vault.Amount = sum
	return tx.SetBalance(vault)
}

func (HostLedger) Transfer(tx *state.Tx, p *types.Platform, to types.Identity, amount uint64) error {
	if bytes.Equal(to, p.Vault()) {
		return fmt.Errorf("%w: transfer from vault to itself", ErrInvalidArgument)
	}
	vault, err := tx.Balance(p.Vault())
	if err != nil {
		return fmt.Errorf("loading vault balance: %w", err)
	}
	left, err := util.SubUint64(vault.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: vault of platform %s holds %d, transfer of %d", ErrInsufficientDeposits, p.ID, vault.Amount, amount)
	}
	bal, err := tx.Balance(to)
	if err != nil {
		return fmt.Errorf("loading balance: %w", err)
	}
	sum, _, err := util.AddUint64(bal.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: balance of %s: %w", ErrArithmeticOverflow, to, err)
	}
	vault.Amount = left
	bal.Amount = sum
	if err := tx.SetBalance(vault); err != nil {
		return err
	}
	return tx.SetBalance(bal)
}
