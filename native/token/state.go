package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/core/events"
	"daotoken/native/emission"
)

// State is the serializable form of a token.
type State struct {
	Address    common.Address                                 `json:"address"`
	OrgID      string                                         `json:"orgId"`
	Name       string                                         `json:"name"`
	Symbol     string                                         `json:"symbol"`
	Owner      common.Address                                 `json:"owner"`
	Managers   []common.Address                               `json:"managers"`
	Balances   map[common.Address]*big.Int                    `json:"balances"`
	Allowances map[common.Address]map[common.Address]*big.Int `json:"allowances"`
	Supply     *big.Int                                       `json:"supply"`
	Anchor     *emission.Anchor                               `json:"anchor"`
	LpRatio    uint64                                         `json:"lpRatio"`
	LpBudget   *big.Int                                       `json:"lpBudget,omitempty"`
}

// Snapshot exports the token state for persistence.
func (t *Token) Snapshot() *State {
	state := &State{
		Address:    t.address,
		OrgID:      t.orgID,
		Name:       t.name,
		Symbol:     t.symbol,
		Owner:      t.owner,
		Managers:   make([]common.Address, 0, len(t.managers)),
		Balances:   make(map[common.Address]*big.Int, len(t.balances)),
		Allowances: make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
		Supply:     new(big.Int).Set(t.supply),
		Anchor:     t.anchor.Clone(),
		LpRatio:    t.lpRatio,
	}
	for manager := range t.managers {
		state.Managers = append(state.Managers, manager)
	}
	for holder, balance := range t.balances {
		state.Balances[holder] = new(big.Int).Set(balance)
	}
	for owner, grants := range t.allowances {
		copied := make(map[common.Address]*big.Int, len(grants))
		for spender, allowance := range grants {
			copied[spender] = new(big.Int).Set(allowance)
		}
		state.Allowances[owner] = copied
	}
	if t.lpBudget != nil {
		state.LpBudget = new(big.Int).Set(t.lpBudget)
	}
	return state
}

// Restore rebuilds a token from persisted state.
func Restore(state *State, sink events.Sink) *Token {
	t := &Token{
		address:    state.Address,
		orgID:      state.OrgID,
		name:       state.Name,
		symbol:     state.Symbol,
		owner:      state.Owner,
		managers:   make(map[common.Address]bool, len(state.Managers)),
		balances:   make(map[common.Address]*big.Int, len(state.Balances)),
		allowances: make(map[common.Address]map[common.Address]*big.Int, len(state.Allowances)),
		supply:     big.NewInt(0),
		anchor:     state.Anchor.Clone(),
		lpRatio:    state.LpRatio,
		sink:       sink,
	}
	if state.Supply != nil {
		t.supply = new(big.Int).Set(state.Supply)
	}
	for _, manager := range state.Managers {
		t.managers[manager] = true
	}
	for holder, balance := range state.Balances {
		t.balances[holder] = new(big.Int).Set(balance)
	}
	for owner, grants := range state.Allowances {
		copied := make(map[common.Address]*big.Int, len(grants))
		for spender, allowance := range grants {
			copied[spender] = new(big.Int).Set(allowance)
		}
		t.allowances[owner] = copied
	}
	if state.LpBudget != nil {
		t.lpBudget = new(big.Int).Set(state.LpBudget)
	}
	return t
}
