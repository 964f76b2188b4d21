package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhase1TallyMajority(t *testing.T) {
	// N=5, majority=3. Own x=0 plus two more 0s reaches majority.
	got := phase1Tally(Zero, []Value{Zero, Zero, One}, 5)
	require.Equal(t, Zero, got)
}

func TestPhase1TallyNoMajority(t *testing.T) {
	// N=5, majority=3. 1 zero, 2 ones: neither reaches majority.
	got := phase1Tally(Zero, []Value{One, One}, 5)
	require.Equal(t, Unknown, got)
}

func TestPhase1TallyIgnoresUnknownInputs(t *testing.T) {
	// Unknown entries never count toward either bucket.
	got := phase1Tally(Zero, []Value{Unknown, Unknown, Unknown, Unknown}, 5)
	require.Equal(t, Unknown, got)
}

func TestPhase1TallyAtMostOneSideReachesMajority(t *testing.T) {
	for c0 := 0; c0 <= 5; c0++ {
		for c1 := 0; c1 <= 5-c0; c1++ {
			msgs := make([]Value, 0, c0+c1)
			for i := 0; i < c0; i++ {
				msgs = append(msgs, Zero)
			}
			for i := 0; i < c1; i++ {
				msgs = append(msgs, One)
			}
			majority := 5/2 + 1
			zeroWins := c0 >= majority
			oneWins := c1 >= majority
			require.False(t, zeroWins && oneWins, "c0=%d c1=%d both reached majority", c0, c1)

			got := phase1Tally(Unknown, msgs, 5)
			switch {
			case zeroWins:
				require.Equal(t, Zero, got, "c0=%d c1=%d", c0, c1)
			case oneWins:
				require.Equal(t, One, got, "c0=%d c1=%d", c0, c1)
			default:
				require.Equal(t, Unknown, got, "c0=%d c1=%d", c0, c1)
			}
		}
	}
}

func TestPhase2TallyDecidesOnlyWithOwnValueMatch(t *testing.T) {
	// N=4, F=1 => nn=3, decisionThreshold=2. Three zeros reported, but
	// this node's own x is One: rule (a) must NOT fire even though
	// count[0] reaches the threshold.
	coinCalled := false
	coin := func() Value { coinCalled = true; return Zero }

	next, decided := phase2Tally(One, []Value{Zero, Zero, Zero}, 4, 1, coin)
	require.False(t, decided)
	// count[0]=3 >= adoptionThreshold (nn/3+1=2), so rule (c) adopts 0.
	require.Equal(t, Zero, next)
	require.False(t, coinCalled)
}

func TestPhase2TallyDecides(t *testing.T) {
	// N=4, F=1 => nn=3, decisionThreshold=2. Own x=0, one more zero.
	next, decided := phase2Tally(Zero, []Value{Zero, One}, 4, 1, func() Value { return One })
	require.True(t, decided)
	require.Equal(t, Zero, next)
}

func TestPhase2TallyAdopts(t *testing.T) {
	// N=4, F=1 => nn=3, adoptionThreshold=2, decisionThreshold=2.
	// Own x=Unknown (can't decide), but two peers propose 1.
	next, decided := phase2Tally(Unknown, []Value{One, One}, 4, 1, func() Value { return Zero })
	require.False(t, decided)
	require.Equal(t, One, next)
}

func TestPhase2TallyFallsBackToCoin(t *testing.T) {
	// Nothing reaches either threshold: the coin must be consulted.
	next, decided := phase2Tally(Unknown, []Value{Unknown}, 5, 2, func() Value { return One })
	require.False(t, decided)
	require.Equal(t, One, next)
}

func TestDefaultCoinIsBinary(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := defaultCoin()
		require.True(t, v == Zero || v == One)
	}
}
