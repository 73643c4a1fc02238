package aggregator

import (
	"math/big"
	"math/rand"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

func e18(n int64) math.Int { return math.NewInt(n).Mul(domain.OneUnit) }

// ratio returns pct percent as a 27-decimal ratio.
func ratio(pct int64) math.Int { return domain.Scale.MulRaw(pct).QuoRaw(100) }

func baseState() domain.PoolState {
	return domain.PoolState{
		Reserve:        math.ZeroInt(),
		NetAssetValue:  math.ZeroInt(),
		SeniorDebt:     math.ZeroInt(),
		SeniorBalance:  math.ZeroInt(),
		MaxReserve:     math.ZeroInt(),
		MaxSeniorRatio: math.ZeroInt(),
		Orders:         domain.ZeroOrders(),
	}
}

func TestDeriveCapacityReserveExample(t *testing.T) {
	st := baseState()
	st.Reserve = math.NewInt(100)
	st.Orders.SeniorSupply = math.NewInt(50)
	st.MaxReserve = math.NewInt(200)

	c, err := DeriveCapacity(st)
	require.NoError(t, err)
	assert.Equal(t, int64(150), c.NewReserve.Int64())
	assert.Equal(t, int64(50), c.GivenMaxReserve.Int64())
}

func TestDeriveCapacityClampsReserve(t *testing.T) {
	st := baseState()
	st.Orders.SeniorRedeem = math.NewInt(10)

	c, err := DeriveCapacity(st)
	require.NoError(t, err)
	assert.True(t, c.NewReserve.IsZero())
	assert.False(t, c.Total.IsNegative())
}

func TestDeriveCapacityDropRatio(t *testing.T) {
	st := baseState()
	st.Reserve = e18(100)
	st.NetAssetValue = e18(900)
	st.SeniorDebt = e18(600)
	st.SeniorBalance = e18(100)
	st.MaxReserve = e18(1_000)
	st.MaxSeniorRatio = ratio(80)

	c, err := DeriveCapacity(st)
	require.NoError(t, err)
	// junior = 900 + 100 - 700 = 300; pool = 300 / 0.2 = 1500; senior room = 1200 - 700.
	assert.Equal(t, e18(300), c.NewJuniorAsset)
	assert.Equal(t, e18(1_500), c.MaxPoolSize)
	assert.Equal(t, e18(500), c.GivenMaxDropRatio)
	assert.Equal(t, e18(900), c.GivenMaxReserve)
	assert.Equal(t, e18(500), c.Total)
}

func TestDeriveCapacityCreditLine(t *testing.T) {
	st := baseState()
	st.Reserve = e18(50)
	st.MaxReserve = e18(500)
	st.SeniorBalance = e18(5)
	st.SeniorDebt = e18(100)
	st.Orders.SeniorSupply = e18(30)
	st.CreditLine = &domain.CreditLine{Used: e18(20), Available: e18(100), Unused: e18(80)}

	c, err := DeriveCapacity(st)
	require.NoError(t, err)
	// Investments repay the used credit first.
	assert.True(t, c.NewUsedCreditline.IsZero())
	assert.Equal(t, e18(100), c.NewUnusedCreditline)
	assert.Equal(t, e18(80), c.NewReserve)
	assert.Equal(t, e18(320), c.GivenMaxReserve)
	// delta = -20: balance 5 is exhausted and 15 comes out of debt.
	assert.Equal(t, e18(85+30), c.NewSeniorAsset)
}

func TestDeriveCapacityRejectsFullSeniorRatio(t *testing.T) {
	st := baseState()
	st.MaxSeniorRatio = domain.Scale
	_, err := DeriveCapacity(st)
	assert.ErrorIs(t, err, domain.ErrMalformedState)
}

func TestDeriveCapacityOverflow(t *testing.T) {
	st := baseState()
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	huge := math.NewIntFromBigInt(maxUint256)
	st.Reserve = huge
	st.Orders.SeniorSupply = huge
	_, err := DeriveCapacity(st)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestDeriveCapacityProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	amt := func() math.Int { return e18(rng.Int63n(10_000)) }

	for i := 0; i < 500; i++ {
		st := domain.PoolState{
			Reserve:        amt(),
			NetAssetValue:  amt(),
			SeniorDebt:     amt(),
			SeniorBalance:  amt(),
			MaxReserve:     amt(),
			MaxSeniorRatio: ratio(rng.Int63n(100)),
			Orders: domain.Orders{
				SeniorSupply: amt(),
				JuniorSupply: amt(),
				SeniorRedeem: amt(),
				JuniorRedeem: amt(),
			},
		}
		if rng.Intn(2) == 0 {
			st.CreditLine = &domain.CreditLine{Used: amt(), Available: amt(), Unused: amt()}
		}

		c, err := DeriveCapacity(st)
		require.NoError(t, err)
		assert.False(t, c.GivenMaxReserve.IsNegative())
		assert.False(t, c.GivenMaxDropRatio.IsNegative())
		assert.False(t, c.Total.IsNegative())
		assert.Equal(t, domain.MinInt(c.GivenMaxReserve, c.GivenMaxDropRatio), c.Total)

		again, err := DeriveCapacity(st)
		require.NoError(t, err)
		assert.Equal(t, c, again)
	}
}
