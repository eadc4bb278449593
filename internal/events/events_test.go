package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/zkbridge/internal/types"
)

func TestSubject(t *testing.T) {
	ev := New(ProofCommitted, types.PlatformID{0xAB}, nil)
	require.Equal(t, "zkbridge.platform.ab"+strings.Repeat("00", 31)+".proof.committed", Subject(DefaultSubjectPrefix, ev))
}

func TestEvent_Bytes(t *testing.T) {
	ev := New(WithdrawCompleted, types.PlatformID{1}, &WithdrawData{Ramper: types.Identity{2}, Amount: 40})
	b, err := ev.Bytes()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, "withdraw.completed", m["type"])
	require.Equal(t, map[string]any{"ramper": "0x02", "amount": "40"}, m["data"])
	require.NoError(t, LogPublisher{}.Publish(ev))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.Empty(t, r.Events())
	require.NoError(t, r.Publish(New(PlatformCreated, types.PlatformID{1}, nil)))
	require.NoError(t, r.Publish(New(RampTxAdded, types.PlatformID{1}, nil)))
	require.NoError(t, r.Publish(New(RampTxAdded, types.PlatformID{1}, nil)))

	require.Len(t, r.Events(), 3)
	require.Len(t, r.Events(RampTxAdded), 2)
	require.Len(t, r.Events(PlatformCreated, ProofRejected), 1)
}

func TestNewNatsPublisher(t *testing.T) {
	_, err := NewNatsPublisher("", "")
	require.EqualError(t, err, "nats url is empty")

	// nothing listens on the port
	_, err = NewNatsPublisher("nats://127.0.0.1:1", "")
	require.ErrorContains(t, err, "connecting to nats nats://127.0.0.1:1")

	p := newNatsPublisher(nil, "custom.")
	require.Equal(t, "custom", p.prefix)
	require.NoError(t, p.Close())
}
