package proofbuffer

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/types"
)

// ErrInvalidProofData is returned for every rejected chunk.
var ErrInvalidProofData = errors.New("invalid proof data")

type State int

const (
	Empty State = iota
	Accumulating
	Complete
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

/*
Buffer accumulates one proof payload delivered in chunks.

Declared size is fixed when the buffer is created. Chunks must be written
in order: the offset of a chunk must equal the cursor (number of bytes
written so far). The only exception is the exact replay of the last written
chunk which is accepted without effect so that a client can safely resend a
chunk it did not get the confirmation for.

Buffer is persisted as is, Data always holds exactly Cursor bytes.
*/
type Buffer struct {
	_          struct{}       `cbor:",toarray"`
	Prover     types.Identity `json:"prover"`
	Size       uint64         `json:"size,string"`
	Cursor     uint64         `json:"cursor,string"`
	LastOffset uint64         `json:"lastOffset,string"`
	Data       []byte         `cbor:"data" json:"-"`
}

// Status is the externally visible progress of the upload.
type Status struct {
	Prover   types.Identity `json:"prover"`
	State    string         `json:"state"`
	Size     uint64         `json:"size,string"`
	Cursor   uint64         `json:"cursor,string"`
	// sha256 of the bytes received so far
	Digest   types.Hash     `json:"digest"`
	Replayed bool           `json:"replayed,omitempty"`
}

// New creates empty buffer for a proof of "size" bytes. When maxSize is
// not zero the size must not exceed it.
func New(prover types.Identity, size, maxSize uint64) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: proof size is zero", ErrInvalidProofData)
	}
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: proof size %d exceeds limit %d", ErrInvalidProofData, size, maxSize)
	}
	return &Buffer{Prover: prover, Size: size, Data: make([]byte, 0, size)}, nil
}

func (b *Buffer) State() State {
	switch {
	case b.Cursor == 0:
		return Empty
	case b.Cursor < b.Size:
		return Accumulating
	default:
		return Complete
	}
}

func (b *Buffer) Complete() bool {
	return b.State() == Complete
}

/*
Write appends chunk at offset. "size" is the proof size declared by the
writer and must match the size the buffer was created with.

Returns true when the chunk was an exact replay of the previously written
chunk, in that case the buffer is not modified.
*/
func (b *Buffer) Write(size, offset uint64, chunk []byte) (bool, error) {
	if size != b.Size {
		return false, fmt.Errorf("%w: declared size %d does not match buffer size %d", ErrInvalidProofData, size, b.Size)
	}
	if len(chunk) == 0 {
		return false, fmt.Errorf("%w: empty chunk", ErrInvalidProofData)
	}
	end := offset + uint64(len(chunk))
	if end < offset || end > b.Size {
		return false, fmt.Errorf("%w: chunk [%d, %d) is out of bounds of proof size %d", ErrInvalidProofData, offset, end, b.Size)
	}
	if b.Cursor > 0 && offset == b.LastOffset {
		if end == b.Cursor && bytes.Equal(b.Data[offset:end], chunk) {
			return true, nil
		}
		return false, fmt.Errorf("%w: chunk at offset %d differs from the one already written", ErrInvalidProofData, offset)
	}
	if offset != b.Cursor {
		return false, fmt.Errorf("%w: expected chunk at offset %d, got %d", ErrInvalidProofData, b.Cursor, offset)
	}
	b.Data = append(b.Data, chunk...)
	b.LastOffset = offset
	b.Cursor = end
	return false, nil
}

// Bytes returns the accumulated proof payload, buffer must be complete.
func (b *Buffer) Bytes() ([]byte, error) {
	if !b.Complete() {
		return nil, fmt.Errorf("%w: proof upload incomplete, %d of %d bytes received", ErrInvalidProofData, b.Cursor, b.Size)
	}
	return b.Data, nil
}

func (b *Buffer) Status() *Status {
	return &Status{
		Prover: b.Prover,
		State:  b.State().String(),
		Size:   b.Size,
		Cursor: b.Cursor,
		Digest: PrefixDigest(b.Data),
	}
}

// PrefixDigest is the digest reported in Status for the first Cursor
// bytes of a payload, lets the uploader check that a buffer it resumes
// holds the beginning of the same payload.
func PrefixDigest(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// Validate checks the consistency of a buffer loaded from storage.
func (b *Buffer) Validate() error {
	if b.Size == 0 {
		return errors.New("proof size is zero")
	}
	if b.Cursor > b.Size {
		return fmt.Errorf("cursor %d is past the proof size %d", b.Cursor, b.Size)
	}
	if uint64(len(b.Data)) != b.Cursor {
		return fmt.Errorf("buffer holds %d bytes, cursor is %d", len(b.Data), b.Cursor)
	}
	if b.Cursor > 0 && b.LastOffset >= b.Cursor {
		return fmt.Errorf("last chunk offset %d is not before cursor %d", b.LastOffset, b.Cursor)
	}
	return nil
}
