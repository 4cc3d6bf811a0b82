package token

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/core/events"
	"daotoken/native/distributor"
	"daotoken/native/emission"
	"daotoken/native/fullmath"
)

const (
	eventMinted      = "token.minted"
	eventTransferred = "token.transferred"

	lpRatioDenominator = 100
)

// Config captures the constructor parameters of an organization token.
// LpRatio is a percentage: every emission settlement mints
// minted*LpRatio/100 extra into the token's own balance (the temporary
// pool), bounded by the cumulative LpTotalAmount budget when set.
type Config struct {
	OrgID         string           `json:"orgId"`
	Name          string           `json:"name"`
	Symbol        string           `json:"symbol"`
	Owner         common.Address   `json:"owner"`
	Holders       []common.Address `json:"holders"`
	Amounts       []*big.Int       `json:"amounts"`
	LpRatio       uint64           `json:"lpRatio"`
	LpTotalAmount *big.Int         `json:"lpTotalAmount"`
	MintArgs      emission.Args    `json:"mintArgs"`
}

// Validate checks the constructor parameters.
func (c Config) Validate() error {
	if strings.TrimSpace(c.OrgID) == "" || strings.TrimSpace(c.Symbol) == "" {
		return ErrInvalidConfig
	}
	if len(c.Holders) != len(c.Amounts) {
		return ErrInvalidConfig
	}
	for _, amount := range c.Amounts {
		if amount == nil || amount.Sign() < 0 {
			return ErrInvalidConfig
		}
	}
	return c.MintArgs.Validate()
}

// Token is one organization's fungible token: balances, allowances,
// owner/manager roles, and the emission anchor that gates minting.
type Token struct {
	address    common.Address
	orgID      string
	name       string
	symbol     string
	owner      common.Address
	managers   map[common.Address]bool
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	supply     *big.Int
	anchor     *emission.Anchor
	lpRatio    uint64
	lpBudget   *big.Int // remaining temporary-pool budget; nil = unbounded
	sink       events.Sink
}

// MintResult reports one settlement's outcome.
type MintResult struct {
	Minted *big.Int            `json:"minted"`
	Lp     *big.Int            `json:"lp"`
	Dust   *big.Int            `json:"dust"`
	Shares []distributor.Share `json:"shares"`
}

// New constructs a token at the given address, mints the genesis holder
// balances, and seeds the temporary pool with LpRatio percent of the
// genesis total.
func New(address common.Address, cfg Config, now int64, sink events.Sink) (*Token, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	anchor, err := emission.NewAnchor(cfg.MintArgs, now)
	if err != nil {
		return nil, err
	}
	t := &Token{
		address:    address,
		orgID:      cfg.OrgID,
		name:       cfg.Name,
		symbol:     cfg.Symbol,
		owner:      cfg.Owner,
		managers:   make(map[common.Address]bool),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		supply:     big.NewInt(0),
		anchor:     anchor,
		lpRatio:    cfg.LpRatio,
		sink:       sink,
	}
	if cfg.LpTotalAmount != nil {
		t.lpBudget = new(big.Int).Set(cfg.LpTotalAmount)
	}
	genesis := big.NewInt(0)
	for i, holder := range cfg.Holders {
		t.credit(holder, cfg.Amounts[i])
		genesis.Add(genesis, cfg.Amounts[i])
	}
	t.credit(address, t.takeLp(genesis))
	return t, nil
}

// Address returns the token's deterministic address.
func (t *Token) Address() common.Address { return t.address }

// OrgID returns the organization identifier the token was issued for.
func (t *Token) OrgID() string { return t.orgID }

// Name returns the display name.
func (t *Token) Name() string { return t.name }

// Symbol returns the ticker symbol.
func (t *Token) Symbol() string { return t.symbol }

// Owner returns the administrative address.
func (t *Token) Owner() common.Address { return t.owner }

// TotalSupply returns the amount ever minted.
func (t *Token) TotalSupply() *big.Int { return new(big.Int).Set(t.supply) }

// Anchor returns a copy of the emission anchor.
func (t *Token) Anchor() *emission.Anchor { return t.anchor.Clone() }

// PreviewMint reports the amount a settlement at endTimestamp would
// mint, without advancing the anchor.
func (t *Token) PreviewMint(endTimestamp int64) *big.Int {
	return t.anchor.Preview(endTimestamp)
}

// TemporaryAmount returns the token's own balance: the LP reserve plus
// accumulated distribution dust.
func (t *Token) TemporaryAmount() *big.Int { return t.BalanceOf(t.address) }

// IsManager reports whether addr may settle emissions. The owner always
// may.
func (t *Token) IsManager(addr common.Address) bool {
	return addr == t.owner || t.managers[addr]
}

// AddManager grants mint rights. Owner-only.
func (t *Token) AddManager(caller, addr common.Address) error {
	if caller != t.owner {
		return ErrNotOwner
	}
	t.managers[addr] = true
	return nil
}

// RemoveManager revokes mint rights. Owner-only.
func (t *Token) RemoveManager(caller, addr common.Address) error {
	if caller != t.owner {
		return ErrNotOwner
	}
	delete(t.managers, addr)
	return nil
}

// TransferOwnership hands the token to a new owner. Owner-only.
func (t *Token) TransferOwnership(caller, next common.Address) error {
	if caller != t.owner {
		return ErrNotOwner
	}
	t.owner = next
	return nil
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(holder common.Address) *big.Int {
	if balance, ok := t.balances[holder]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// Allowance returns what spender may move on owner's behalf.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	if grants, ok := t.allowances[owner]; ok {
		if allowance, ok := grants[spender]; ok {
			return new(big.Int).Set(allowance)
		}
	}
	return big.NewInt(0)
}

// Approve sets spender's allowance over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	grants, ok := t.allowances[owner]
	if !ok {
		grants = make(map[common.Address]*big.Int)
		t.allowances[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if t.BalanceOf(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.debit(from, amount)
	t.credit(to, amount)
	t.emit(eventTransferred, map[string]string{
		"from":   strings.ToLower(from.Hex()),
		"to":     strings.ToLower(to.Hex()),
		"amount": amount.String(),
	})
	return nil
}

// TransferFrom moves amount from owner to to, spending spender's
// allowance.
func (t *Token) TransferFrom(owner, spender, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance := t.Allowance(owner, spender)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if t.BalanceOf(owner).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.allowances[owner][spender] = allowance.Sub(allowance, amount)
	t.debit(owner, amount)
	t.credit(to, amount)
	return nil
}

// Mint settles the emission anchor up to endTimestamp and fans the
// minted amount out to the weighted recipients. Truncation dust and the
// LP share land in the token's own balance. Owner or manager only.
func (t *Token) Mint(caller common.Address, recipients []distributor.Recipient, endTimestamp, now int64) (*MintResult, error) {
	if !t.IsManager(caller) {
		return nil, ErrUnauthorized
	}
	minted, err := t.anchor.Settle(endTimestamp, now)
	if err != nil {
		return nil, err
	}
	outcome, err := distributor.Distribute(minted, recipients)
	if err != nil {
		return nil, err
	}
	for _, share := range outcome.Shares {
		t.credit(share.Address, share.Amount)
	}
	lp := t.takeLp(minted)
	t.credit(t.address, lp)
	t.credit(t.address, outcome.Dust)

	t.emit(eventMinted, map[string]string{
		"orgId":  t.orgID,
		"minted": minted.String(),
		"lp":     lp.String(),
		"dust":   outcome.Dust.String(),
	})
	return &MintResult{
		Minted: minted,
		Lp:     lp,
		Dust:   outcome.Dust,
		Shares: outcome.Shares,
	}, nil
}

// takeLp computes the temporary-pool share of a minted amount and burns
// it from the remaining budget.
func (t *Token) takeLp(minted *big.Int) *big.Int {
	lp := fullmath.MulDiv(minted, new(big.Int).SetUint64(t.lpRatio), big.NewInt(lpRatioDenominator))
	if t.lpBudget != nil {
		if lp.Cmp(t.lpBudget) > 0 {
			lp = new(big.Int).Set(t.lpBudget)
		}
		t.lpBudget.Sub(t.lpBudget, lp)
	}
	return lp
}

func (t *Token) credit(holder common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	balance, ok := t.balances[holder]
	if !ok {
		balance = big.NewInt(0)
		t.balances[holder] = balance
	}
	balance.Add(balance, amount)
	t.supply.Add(t.supply, amount)
}

func (t *Token) debit(holder common.Address, amount *big.Int) {
	balance := t.balances[holder]
	balance.Sub(balance, amount)
	t.supply.Sub(t.supply, amount)
}

func (t *Token) emit(eventType string, attrs map[string]string) {
	if t.sink == nil {
		return
	}
	attrs["token"] = strings.ToLower(t.address.Hex())
	t.sink.AppendEvent(&events.Event{Type: eventType, Attributes: attrs})
}
