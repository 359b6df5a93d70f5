package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestArithmeticRoundsAfterEveryOperation(t *testing.T) {
	// 0.33335 rounds half-up to 0.3334 at entry; further ops stay at scale 4.
	a := MustParse("0.33335")
	require.Equal(t, "0.3334", a.String())

	sum := Zero
	for i := 0; i < 3; i++ {
		sum = sum.Add(a)
	}
	require.Equal(t, "1.0002", sum.String())
}

func TestSequenceMatchesReferenceAccumulator(t *testing.T) {
	terms := []string{"100.0000", "0.3333", "15.5555", "3.1416", "0.0001", "42.4242"}

	got := Zero
	ref := decimal.Zero
	for _, raw := range terms {
		a := MustParse(raw)
		got = got.Add(a)

		d, err := decimal.NewFromString(raw)
		require.NoError(t, err)
		ref = ref.Add(d.Round(Scale)).Round(Scale)
	}

	require.Equal(t, ref.StringFixed(Scale), got.String())
}

func TestMulRoundsProduct(t *testing.T) {
	fee := MustParse("0.0275")
	amount := MustParse("19.9900")
	// 0.549725 -> 0.5497
	require.Equal(t, "0.5497", fee.Mul(amount).String())
}

func TestAbsNormalizesSign(t *testing.T) {
	require.Equal(t, "40.0000", MustParse("-40.0000").Abs().String())
	require.Equal(t, "40.0000", MustParse("40.0000").Abs().String())
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Amount Amount `json:"amount"`
	}

	var quoted payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"25.00"}`), &quoted))
	require.True(t, quoted.Amount.Equal(MustParse("25.0000")))

	var numeric payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":25}`), &numeric))
	require.True(t, numeric.Amount.Equal(quoted.Amount))

	out, err := json.Marshal(quoted)
	require.NoError(t, err)
	require.JSONEq(t, `{"amount":25.0000}`, string(out))
}

func TestZeroAndSignPredicates(t *testing.T) {
	require.True(t, Zero.IsZero())
	require.True(t, MustParse("0.0000").IsZero())
	require.True(t, MustParse("-1.0000").IsNegative())
	require.False(t, MustParse("1.0000").IsNegative())
}
