// Package executor turns redemption candidates into encoded contract calls
// and pushes them through the gasless relayer.
package executor

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Polygon mainnet contract addresses.
const (
	DefaultCTFAddress            = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	DefaultCollateralAddress     = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	DefaultNegRiskAdapterAddress = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"
)

const redeemMethod = "redeemPositions"

// collateralDecimals is the USDC scale applied to neg-risk amounts.
const collateralDecimals = 6

const ctfABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "collateralToken", "type": "address"},
      {"internalType": "bytes32", "name": "parentCollectionId", "type": "bytes32"},
      {"internalType": "bytes32", "name": "conditionId", "type": "bytes32"},
      {"internalType": "uint256[]", "name": "indexSets", "type": "uint256[]"}
    ],
    "name": "redeemPositions",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const negRiskAdapterABIJSON = `[
  {
    "inputs": [
      {"internalType": "bytes32", "name": "_conditionId", "type": "bytes32"},
      {"internalType": "uint256[]", "name": "_amounts", "type": "uint256[]"}
    ],
    "name": "redeemPositions",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

// binaryIndexSets redeems both outcome slots of a binary condition.
var binaryIndexSets = []*big.Int{big.NewInt(1), big.NewInt(2)}

// Contracts names the on-chain targets of redemption calls.
type Contracts struct {
	CTF            common.Address
	Collateral     common.Address
	NegRiskAdapter common.Address
}

// DefaultContracts returns the Polygon mainnet deployment.
func DefaultContracts() Contracts {
	return Contracts{
		CTF:            common.HexToAddress(DefaultCTFAddress),
		Collateral:     common.HexToAddress(DefaultCollateralAddress),
		NegRiskAdapter: common.HexToAddress(DefaultNegRiskAdapterAddress),
	}
}

// TxBuilder encodes one redemption call per candidate. It is pure: no
// network access and no state beyond the parsed ABIs.
type TxBuilder struct {
	contracts  Contracts
	ctfABI     abi.ABI
	negRiskABI abi.ABI
}

// NewTxBuilder parses the contract ABIs once.
func NewTxBuilder(contracts Contracts) (*TxBuilder, error) {
	ctfABI, err := abi.JSON(strings.NewReader(ctfABIJSON))
	if err != nil {
		return nil, fmt.Errorf("executor/builder: parse ctf abi: %w", err)
	}
	negRiskABI, err := abi.JSON(strings.NewReader(negRiskAdapterABIJSON))
	if err != nil {
		return nil, fmt.Errorf("executor/builder: parse neg-risk abi: %w", err)
	}
	return &TxBuilder{contracts: contracts, ctfABI: ctfABI, negRiskABI: negRiskABI}, nil
}

// Build returns the redemption call for c. Binary markets redeem both index
// sets on the conditional tokens contract; multi-outcome markets redeem
// per-outcome amounts on the neg-risk adapter.
func (b *TxBuilder) Build(c domain.RedemptionCandidate) (domain.ChainCall, error) {
	outcomes := c.Outcomes()
	if len(outcomes) == 0 {
		return domain.ChainCall{}, fmt.Errorf("executor/builder: market %s has no outcomes: %w",
			c.MarketID, domain.ErrUnsupportedCandidateShape)
	}

	conditionID := common.HexToHash(c.MarketID)

	if !c.IsMultiOutcome {
		data, err := b.ctfABI.Pack(redeemMethod, b.contracts.Collateral, common.Hash{}, conditionID, binaryIndexSets)
		if err != nil {
			return domain.ChainCall{}, fmt.Errorf("executor/builder: pack binary redeem: %w", err)
		}
		return domain.ChainCall{
			Kind:   domain.CallKindBinary,
			To:     b.contracts.CTF,
			Data:   data,
			Method: redeemMethod,
		}, nil
	}

	amounts := make([]*big.Int, len(outcomes))
	for i, o := range outcomes {
		amounts[i] = ToBaseUnits(o.HeldSize)
	}
	data, err := b.negRiskABI.Pack(redeemMethod, conditionID, amounts)
	if err != nil {
		return domain.ChainCall{}, fmt.Errorf("executor/builder: pack neg-risk redeem: %w", err)
	}
	return domain.ChainCall{
		Kind:   domain.CallKindNegRisk,
		To:     b.contracts.NegRiskAdapter,
		Data:   data,
		Method: redeemMethod,
	}, nil
}

// ToBaseUnits scales a share size to collateral base units, truncating any
// precision below one unit. Negative sizes map to zero.
func ToBaseUnits(size decimal.Decimal) *big.Int {
	if size.IsNegative() {
		return new(big.Int)
	}
	return size.Shift(collateralDecimals).Truncate(0).BigInt()
}
