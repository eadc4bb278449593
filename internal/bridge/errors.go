package bridge

import (
	"errors"

	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/state"
)

// Errors returned by the Engine. All of them are terminal for the call and
// no state is changed by a failed call unless documented otherwise.
var (
	ErrAlreadyExists        = errors.New("already exists")
	ErrPlatformNotFound     = errors.New("platform not found")
	ErrRampLedgerNotFound   = errors.New("ramp ledger not found")
	ErrProofNotFound        = errors.New("proof buffer not found")
	ErrInsufficientDeposits = errors.New("insufficient deposits")
	ErrInvalidStateHash     = errors.New("invalid state hash")
	ErrInvalidProofData     = proofbuffer.ErrInvalidProofData
	ErrInvalidProof         = errors.New("invalid proof")
	ErrMissingRampTxs       = errors.New("missing ramp transactions")
	ErrOutOfMemory          = errors.New("out of memory")
	ErrDeserialization      = state.ErrDeserialization
	ErrQueueFull            = errors.New("ramp transaction queue is full")
	ErrArithmeticOverflow   = errors.New("arithmetic overflow")
	ErrInvalidArgument      = errors.New("invalid argument")
)
