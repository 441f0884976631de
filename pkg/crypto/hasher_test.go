package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDualHasher_Shape(t *testing.T) {
	h := NewDualHasher(SecondaryBLAKE3)

	got := h.Sum([]byte("test"))
	parts := strings.Split(got, ":")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 64)
	assert.Len(t, parts[1], 64)
	assert.NotEqual(t, parts[0], parts[1])
	assert.True(t, Valid(got))
	assert.False(t, h.Degraded())
}

func TestDualHasher_PrimaryIsSHA256(t *testing.T) {
	h := NewDualHasher("")
	want := sha256.Sum256([]byte("empty"))

	primary, _, err := Split(h.SumString("empty"))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), primary)
}

func TestDualHasher_Deterministic(t *testing.T) {
	h := NewDualHasher(SecondaryBLAKE3)
	assert.Equal(t, h.Sum([]byte("abc")), h.Sum([]byte("abc")))
	assert.NotEqual(t, h.Sum([]byte("abc")), h.Sum([]byte("abd")))
}

func TestDualHasher_Degraded(t *testing.T) {
	for _, name := range []string{SecondaryNone, "md5"} {
		h := NewDualHasher(name)
		assert.True(t, h.Degraded(), name)

		primary, secondary, err := Split(h.Sum([]byte("x")))
		require.NoError(t, err)
		assert.Equal(t, primary, secondary)
	}
}

func TestDualHasher_BLAKE2bDiffersFromBLAKE3(t *testing.T) {
	b3 := NewDualHasher(SecondaryBLAKE3).Sum([]byte("x"))
	b2 := NewDualHasher(SecondaryBLAKE2b).Sum([]byte("x"))

	p3, s3, _ := Split(b3)
	p2, s2, _ := Split(b2)
	assert.Equal(t, p3, p2)
	assert.NotEqual(t, s3, s2)
}

func TestDualHasher_HashKeyOrderIndependent(t *testing.T) {
	h := NewDualHasher(SecondaryBLAKE3)

	h1, err := h.Hash(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := h.Hash(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestDualHasher_HashRejectsNaN(t *testing.T) {
	h := NewDualHasher(SecondaryBLAKE3)
	_, err := h.Hash(map[string]float64{"ratio": math.NaN()})
	assert.Error(t, err)
	_, err = h.Hash(map[string]float64{"ratio": math.Inf(1)})
	assert.Error(t, err)
}

func TestSplit_Malformed(t *testing.T) {
	for _, s := range []string{"", "abc", "abc:def", strings.Repeat("g", 64) + ":" + strings.Repeat("a", 64)} {
		_, _, err := Split(s)
		assert.ErrorIs(t, err, ErrMalformedHash, s)
	}
}
