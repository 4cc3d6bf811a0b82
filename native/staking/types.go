package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AccPerShareScale is the fixed-point scale of a pool accumulator.
var AccPerShareScale = big.NewInt(1_000_000_000_000)

// AssetSource is the narrow view of the fungible-token world the ledger
// consumes. Every asset a staker enrolls in must be resolvable through
// it; the ledger never mutates an asset's own accounting beyond moving
// balances between holders.
type AssetSource interface {
	BalanceOf(token, holder common.Address) *big.Int
	Allowance(token, owner, spender common.Address) *big.Int
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, owner, spender, to common.Address, amount *big.Int) error
	HasToken(token common.Address) bool
}

// Pool carries the reward accounting for one asset. AccountedBalance is
// a cache of the asset balance already folded into the accumulator; it
// is corrected on every inflow and every outflow.
type Pool struct {
	AccPerShare      *big.Int `json:"accPerShare"`
	TotalStake       *big.Int `json:"totalStake"`
	AccountedBalance *big.Int `json:"accountedBalance"`
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	return &Pool{
		AccPerShare:      new(big.Int).Set(p.AccPerShare),
		TotalStake:       new(big.Int).Set(p.TotalStake),
		AccountedBalance: new(big.Int).Set(p.AccountedBalance),
	}
}

func newPool() *Pool {
	return &Pool{
		AccPerShare:      big.NewInt(0),
		TotalStake:       big.NewInt(0),
		AccountedBalance: big.NewInt(0),
	}
}

// Position is one staker's state: the staked amount and the set of
// reward assets the staker elected to track.
type Position struct {
	Amount *big.Int         `json:"amount"`
	Tokens []common.Address `json:"tokens"`
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := &Position{Amount: new(big.Int).Set(p.Amount)}
	out.Tokens = append([]common.Address(nil), p.Tokens...)
	return out
}

func (p *Position) enrolled(token common.Address) bool {
	for _, t := range p.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// PendingReward pairs an asset with the reward currently claimable.
type PendingReward struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

// Snapshot is the serializable state of a ledger.
type Snapshot struct {
	Owner        common.Address                        `json:"owner"`
	Self         common.Address                        `json:"self"`
	StakeToken   common.Address                        `json:"stakeToken"`
	StakeSet     bool                                  `json:"stakeSet"`
	TotalStaking *big.Int                              `json:"totalStaking"`
	Pools        map[common.Address]*Pool              `json:"pools"`
	Positions    map[common.Address]*Position          `json:"positions"`
	RewardDebt   map[common.Address]map[common.Address]*big.Int `json:"rewardDebt"`
}
