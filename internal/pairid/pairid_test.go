package pairid_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/kindredapp/kindred/internal/pairid"
)

func TestPairID_Commutative(t *testing.T) {
	a := uuid.NewString()
	b := uuid.NewString()

	assert.Equal(t, pairid.PairID(a, b), pairid.PairID(b, a))
}

func TestPairID_DistinctPairsDiffer(t *testing.T) {
	a := uuid.NewString()
	b := uuid.NewString()
	c := uuid.NewString()

	assert.NotEqual(t, pairid.PairID(a, b), pairid.PairID(a, c))
	assert.NotEqual(t, pairid.PairID(a, b), pairid.PairID(b, c))
}

func TestPairID_StableAcrossCalls(t *testing.T) {
	a := "11111111-1111-1111-1111-111111111111"
	b := "22222222-2222-2222-2222-222222222222"

	first := pairid.PairID(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, pairid.PairID(a, b))
	}

	// Valid UUID output
	_, err := uuid.Parse(first)
	assert.NoError(t, err)
}

func TestOrdered(t *testing.T) {
	lo, hi := pairid.Ordered("bbb", "aaa")
	assert.Equal(t, "aaa", lo)
	assert.Equal(t, "bbb", hi)

	lo, hi = pairid.Ordered("aaa", "bbb")
	assert.Equal(t, "aaa", lo)
	assert.Equal(t, "bbb", hi)
}
