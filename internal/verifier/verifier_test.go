package verifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/zkbridge/internal/types"
)

func testInput() *types.PublicInput {
	return &types.PublicInput{
		PreStateHash:  types.Hash{1},
		RampTxs:       []*types.RampTx{{IsOnramp: true, User: types.Identity{1}, Amount: 100}},
		PostStateHash: types.Hash{2},
	}
}

func TestDigestVerifier(t *testing.T) {
	input := testInput()
	proof, err := DigestProof(input)
	require.NoError(t, err)
	require.Len(t, proof, types.HashSize)

	var v Verifier = DigestVerifier{}
	ok, err := v.Verify(proof, input)
	require.NoError(t, err)
	require.True(t, ok)

	// proof for another post state hash
	other := testInput()
	other.PostStateHash = types.Hash{3}
	ok, err = v.Verify(proof, other)
	require.NoError(t, err)
	require.False(t, ok)

	// proof for another pre state hash
	other = testInput()
	other.PreStateHash = types.Hash{3}
	ok, err = v.Verify(proof, other)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = v.Verify(proof[:5], input)
	require.ErrorIs(t, err, ErrMalformedProof)
}

func TestFunc(t *testing.T) {
	calls := 0
	var v Verifier = Func(func(proof []byte, input *types.PublicInput) (bool, error) {
		calls++
		return len(proof) == 1, nil
	})
	ok, err := v.Verify([]byte{1}, testInput())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, calls)
}
