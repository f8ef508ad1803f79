package executor

import (
	"math/big"
	"testing"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *TxBuilder {
	t.Helper()
	b, err := NewTxBuilder(DefaultContracts())
	require.NoError(t, err)
	return b
}

func outcome(label string, idx int, size string) domain.Outcome {
	d := decimal.RequireFromString(size)
	return domain.Outcome{Label: label, Index: idx, HeldSize: d, CurrentValue: d}
}

func TestBuildBinary(t *testing.T) {
	b := newTestBuilder(t)
	c := domain.NewRedemptionCandidate("0xABC", "Binary", false, []domain.Outcome{outcome("YES", 0, "10")})

	call, err := b.Build(c)
	require.NoError(t, err)
	require.Equal(t, domain.CallKindBinary, call.Kind)
	require.Equal(t, common.HexToAddress(DefaultCTFAddress), call.To)

	method := b.ctfABI.Methods[redeemMethod]
	require.Equal(t, method.ID, call.Data[:4])

	args, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)
	require.Equal(t, common.HexToAddress(DefaultCollateralAddress), args[0].(common.Address))
	require.Equal(t, [32]byte{}, args[1].([32]byte))
	require.Equal(t, [32]byte(common.HexToHash("0xABC")), args[2].([32]byte))
	require.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(2)}, args[3].([]*big.Int))
}

func TestBuildNegRisk(t *testing.T) {
	b := newTestBuilder(t)
	c := domain.NewRedemptionCandidate("0xDEF", "Multi", true, []domain.Outcome{
		outcome("A", 0, "1.5"),
		outcome("B", 1, "0.000001"),
	})

	call, err := b.Build(c)
	require.NoError(t, err)
	require.Equal(t, domain.CallKindNegRisk, call.Kind)
	require.Equal(t, common.HexToAddress(DefaultNegRiskAdapterAddress), call.To)

	method := b.negRiskABI.Methods[redeemMethod]
	require.Equal(t, method.ID, call.Data[:4])

	args, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	require.Equal(t, [32]byte(common.HexToHash("0xDEF")), args[0].([32]byte))
	require.Equal(t, []*big.Int{big.NewInt(1_500_000), big.NewInt(1)}, args[1].([]*big.Int))
}

func TestBuildRejectsEmptyCandidate(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Build(domain.NewRedemptionCandidate("0x1", "empty", false, nil))
	require.ErrorIs(t, err, domain.ErrUnsupportedCandidateShape)
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		size string
		want int64
	}{
		{"1.5", 1_500_000},
		{"0.000001", 1},
		{"0.0000019", 1},
		{"0.0000009", 0},
		{"123.4567891", 123_456_789},
		{"0", 0},
		{"-2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			got := ToBaseUnits(decimal.RequireFromString(tt.size))
			require.Equal(t, 0, got.Cmp(big.NewInt(tt.want)), "got %s", got)
		})
	}
}
