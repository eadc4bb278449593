package events

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/types"
)

var log = logger.CreateForPackage()

const (
	PlatformCreated   = "platform.created"
	RampTxAdded       = "ramptx.added"
	ProofCommitted    = "proof.committed"
	ProofRejected     = "proof.rejected"
	WithdrawCompleted = "withdraw.completed"
)

type (
	// Event is published after the state change it describes has been
	// committed.
	Event struct {
		Type       string           `json:"type"`
		PlatformID types.PlatformID `json:"platformId"`
		Time       time.Time        `json:"time"`
		Data       any              `json:"data,omitempty"`
	}

	Publisher interface {
		Publish(ev *Event) error
	}

	// LogPublisher writes events to the log at debug level.
	LogPublisher struct{}

	// Recorder keeps published events in memory.
	Recorder struct {
		mu     sync.Mutex
		events []*Event
	}

	RampTxData struct {
		RampTx     *types.RampTx `json:"rampTx"`
		QueueIndex int           `json:"queueIndex"`
	}

	ProofCommittedData struct {
		Prover        types.Identity `json:"prover"`
		PreStateHash  types.Hash     `json:"preStateHash"`
		PostStateHash types.Hash     `json:"postStateHash"`
		RampTxCount   int            `json:"rampTxCount"`
		Deposited     uint64         `json:"deposited,string"`
		Withdrawn     uint64         `json:"withdrawn,string"`
	}

	ProofRejectedData struct {
		Prover types.Identity `json:"prover"`
		Reason string         `json:"reason"`
	}

	WithdrawData struct {
		Ramper types.Identity `json:"ramper"`
		Amount uint64         `json:"amount,string"`
	}
)

func New(typ string, id types.PlatformID, data any) *Event {
	return &Event{Type: typ, PlatformID: id, Time: time.Now().UTC(), Data: data}
}

func (e *Event) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

func (LogPublisher) Publish(ev *Event) error {
	b, err := ev.Bytes()
	if err != nil {
		return err
	}
	log.Debug("event %s", b)
	return nil
}

func (r *Recorder) Publish(ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded events of the given types, all events when
// no type is given.
func (r *Recorder) Events(typ ...string) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*Event
	for _, ev := range r.events {
		if len(typ) == 0 || slices.Contains(typ, ev.Type) {
			res = append(res, ev)
		}
	}
	return res
}
