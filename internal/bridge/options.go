package bridge

import (
	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/verifier"
)

const (
	// DefaultStorageBudget is the max encoded size of the platform record.
	DefaultStorageBudget = 10 * 1024 * 1024
	DefaultMaxProofSize  = 1024 * 1024
	// DefaultInlineProofLimit is the max size of a proof passed directly to ProveInline.
	DefaultInlineProofLimit = 1024
)

type (
	Options struct {
		verifier         verifier.Verifier
		storageBudget    int
		maxQueueLength   int
		maxProofSize     uint64
		inlineProofLimit int
		publisher        events.Publisher
		transfer         ValueTransfer
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		storageBudget:    DefaultStorageBudget,
		maxProofSize:     DefaultMaxProofSize,
		inlineProofLimit: DefaultInlineProofLimit,
		publisher:        events.LogPublisher{},
		transfer:         HostLedger{},
	}
}

// WithVerifier overrides the verifier given to New.
func WithVerifier(v verifier.Verifier) Option {
	return func(o *Options) {
		o.verifier = v
	}
}

// WithStorageBudget sets the max encoded size (in bytes) of the platform
// record, AddRampTx fails with ErrOutOfMemory when the queue would not fit.
func WithStorageBudget(bytes int) Option {
	return func(o *Options) {
		o.storageBudget = bytes
	}
}

// WithMaxQueueLength limits the number of pending ramp transactions, zero
// means no limit.
func WithMaxQueueLength(n int) Option {
	return func(o *Options) {
		o.maxQueueLength = n
	}
}

func WithMaxProofSize(size uint64) Option {
	return func(o *Options) {
		o.maxProofSize = size
	}
}

func WithInlineProofLimit(size int) Option {
	return func(o *Options) {
		o.inlineProofLimit = size
	}
}

func WithEventPublisher(p events.Publisher) Option {
	return func(o *Options) {
		o.publisher = p
	}
}

func WithValueTransfer(t ValueTransfer) Option {
	return func(o *Options) {
		o.transfer = t
	}
}
