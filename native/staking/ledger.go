package staking

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/core/events"
	"daotoken/native/fullmath"
)

const (
	eventDeposited  = "staking.deposited"
	eventWithdrawn  = "staking.withdrawn"
	eventHarvested  = "staking.harvested"
	eventEnrolled   = "staking.enrolled"
	eventUnenrolled = "staking.unenrolled"
)

// Ledger is the multi-asset staking reward ledger. All methods assume
// external serialization (the node holds a single mutex); internally
// every mutating operation settles the pools it touches before changing
// any stake weight, and issues outbound transfers only after its
// accounting is final.
type Ledger struct {
	owner      common.Address
	self       common.Address
	stakeToken common.Address
	stakeSet   bool

	assets AssetSource
	sink   events.Sink

	totalStaking *big.Int
	pools        map[common.Address]*Pool
	positions    map[common.Address]*Position
	rewardDebt   map[common.Address]map[common.Address]*big.Int
}

// payout is an outbound transfer deferred until accounting completes.
type payout struct {
	token  common.Address
	to     common.Address
	amount *big.Int
}

// NewLedger constructs an empty ledger. self is the address the ledger
// holds assets under; owner may configure the stake token.
func NewLedger(owner, self common.Address, assets AssetSource, sink events.Sink) *Ledger {
	return &Ledger{
		owner:        owner,
		self:         self,
		assets:       assets,
		sink:         sink,
		totalStaking: big.NewInt(0),
		pools:        make(map[common.Address]*Pool),
		positions:    make(map[common.Address]*Position),
		rewardDebt:   make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Owner returns the ledger's administrative address.
func (l *Ledger) Owner() common.Address { return l.owner }

// TransferOwnership hands ledger administration to a new address.
func (l *Ledger) TransferOwnership(caller, next common.Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	l.owner = next
	return nil
}

// Address returns the address the ledger holds assets under.
func (l *Ledger) Address() common.Address { return l.self }

// StakeToken returns the configured stake token and whether it is set.
func (l *Ledger) StakeToken() (common.Address, bool) { return l.stakeToken, l.stakeSet }

// SetStakeToken designates the staked asset. Owner-only, once.
func (l *Ledger) SetStakeToken(caller, token common.Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	if l.stakeSet {
		return ErrStakeTokenSet
	}
	if !l.assets.HasToken(token) {
		return ErrUnknownAsset
	}
	l.stakeToken = token
	l.stakeSet = true
	return nil
}

// TotalStaking returns the sum of all staked amounts.
func (l *Ledger) TotalStaking() *big.Int {
	return new(big.Int).Set(l.totalStaking)
}

// UserInfo returns a copy of the user's position.
func (l *Ledger) UserInfo(user common.Address) *Position {
	if pos, ok := l.positions[user]; ok {
		return pos.Clone()
	}
	return &Position{Amount: big.NewInt(0)}
}

// PoolInfo returns a copy of the stored pool state for an asset.
func (l *Ledger) PoolInfo(token common.Address) *Pool {
	if pool, ok := l.pools[token]; ok {
		return pool.Clone()
	}
	return newPool()
}

// RewardDebt returns the stored accumulator baseline for a user/asset.
func (l *Ledger) RewardDebt(user, token common.Address) *big.Int {
	if debts, ok := l.rewardDebt[user]; ok {
		if debt, ok := debts[token]; ok {
			return new(big.Int).Set(debt)
		}
	}
	return big.NewInt(0)
}

// observedBalance returns the asset balance attributable to reward
// accounting. Staked principal of the stake token is excluded; it is
// tracked by totalStaking, never by a pool.
func (l *Ledger) observedBalance(token common.Address) *big.Int {
	balance := l.assets.BalanceOf(token, l.self)
	if l.stakeSet && token == l.stakeToken {
		balance = new(big.Int).Sub(balance, l.totalStaking)
		if balance.Sign() < 0 {
			balance = big.NewInt(0)
		}
	}
	return balance
}

func (l *Ledger) pool(token common.Address) *Pool {
	pool, ok := l.pools[token]
	if !ok {
		pool = newPool()
		l.pools[token] = pool
	}
	return pool
}

// settlePool folds the balance delta since the last settlement into the
// pool accumulator. Income observed while nobody is enrolled is absorbed:
// the cache still advances, so a later enrollment never captures it
// retroactively.
func (l *Ledger) settlePool(token common.Address) *Pool {
	pool := l.pool(token)
	observed := l.observedBalance(token)
	incoming := new(big.Int).Sub(observed, pool.AccountedBalance)
	if incoming.Sign() > 0 && pool.TotalStake.Sign() > 0 {
		pool.AccPerShare.Add(pool.AccPerShare, fullmath.MulDiv(incoming, AccPerShareScale, pool.TotalStake))
	}
	pool.AccountedBalance = observed
	return pool
}

// simulatedAccPerShare mirrors settlePool without persisting.
func (l *Ledger) simulatedAccPerShare(token common.Address) *big.Int {
	pool, ok := l.pools[token]
	if !ok {
		return big.NewInt(0)
	}
	acc := new(big.Int).Set(pool.AccPerShare)
	incoming := new(big.Int).Sub(l.observedBalance(token), pool.AccountedBalance)
	if incoming.Sign() > 0 && pool.TotalStake.Sign() > 0 {
		acc.Add(acc, fullmath.MulDiv(incoming, AccPerShareScale, pool.TotalStake))
	}
	return acc
}

func (l *Ledger) setDebt(user, token common.Address, value *big.Int) {
	debts, ok := l.rewardDebt[user]
	if !ok {
		debts = make(map[common.Address]*big.Int)
		l.rewardDebt[user] = debts
	}
	debts[token] = value
}

func (l *Ledger) clearDebt(user, token common.Address) {
	if debts, ok := l.rewardDebt[user]; ok {
		delete(debts, token)
		if len(debts) == 0 {
			delete(l.rewardDebt, user)
		}
	}
}

func (l *Ledger) debt(user, token common.Address) *big.Int {
	if debts, ok := l.rewardDebt[user]; ok {
		if d, ok := debts[token]; ok {
			return d
		}
	}
	return big.NewInt(0)
}

// weightedAcc returns amount*acc/scale, the user's share of everything
// the accumulator has ever credited.
func weightedAcc(amount, acc *big.Int) *big.Int {
	return fullmath.MulDiv(amount, acc, AccPerShareScale)
}

// harvestOne settles one pool, moves the user's pending entitlement out
// of the accounted cache, and re-baselines the debt. The actual transfer
// is deferred to the caller.
func (l *Ledger) harvestOne(user common.Address, pos *Position, token common.Address, payouts *[]payout) {
	pool := l.settlePool(token)
	earned := weightedAcc(pos.Amount, pool.AccPerShare)
	pending := new(big.Int).Sub(earned, l.debt(user, token))
	if pending.Sign() > 0 {
		pool.AccountedBalance = new(big.Int).Sub(pool.AccountedBalance, pending)
		*payouts = append(*payouts, payout{token: token, to: user, amount: pending})
	}
	l.setDebt(user, token, earned)
}

func (l *Ledger) executePayouts(payouts []payout) error {
	for _, p := range payouts {
		if err := l.assets.Transfer(p.token, l.self, p.to, p.amount); err != nil {
			return err
		}
		l.emit(eventHarvested, map[string]string{
			"user":   strings.ToLower(p.to.Hex()),
			"token":  strings.ToLower(p.token.Hex()),
			"amount": p.amount.String(),
		})
	}
	return nil
}

func (l *Ledger) emit(eventType string, attrs map[string]string) {
	if l.sink == nil {
		return
	}
	l.sink.AppendEvent(&events.Event{Type: eventType, Attributes: attrs})
}

// dedupeNew filters the requested enrollment list down to known assets
// the user is not yet enrolled in, preserving order.
func (l *Ledger) dedupeNew(pos *Position, tokens []common.Address) ([]common.Address, error) {
	out := make([]common.Address, 0, len(tokens))
	seen := make(map[common.Address]bool, len(tokens))
	for _, token := range tokens {
		if seen[token] || pos.enrolled(token) {
			continue
		}
		if !l.assets.HasToken(token) {
			return nil, ErrUnknownAsset
		}
		seen[token] = true
		out = append(out, token)
	}
	return out, nil
}

// Deposit raises the user's stake by amount and optionally enrolls new
// reward assets. Everything the user is currently owed is harvested
// before the stake weight changes, so past income is never diluted by
// the new weight.
func (l *Ledger) Deposit(user common.Address, amount *big.Int, newTokens []common.Address) error {
	if !l.stakeSet {
		return ErrStakeTokenNotSet
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if l.assets.BalanceOf(l.stakeToken, user).Cmp(amount) < 0 ||
		l.assets.Allowance(l.stakeToken, user, l.self).Cmp(amount) < 0 {
		return ErrInsufficientFunding
	}
	pos, ok := l.positions[user]
	if !ok {
		pos = &Position{Amount: big.NewInt(0)}
	}
	added, err := l.dedupeNew(pos, newTokens)
	if err != nil {
		return err
	}
	l.positions[user] = pos

	var payouts []payout
	for _, token := range pos.Tokens {
		l.harvestOne(user, pos, token, &payouts)
	}
	for _, token := range added {
		pool := l.settlePool(token)
		pos.Tokens = append(pos.Tokens, token)
		pool.TotalStake = new(big.Int).Add(pool.TotalStake, pos.Amount)
	}

	pos.Amount = new(big.Int).Add(pos.Amount, amount)
	for _, token := range pos.Tokens {
		pool := l.pool(token)
		pool.TotalStake = new(big.Int).Add(pool.TotalStake, amount)
	}
	l.totalStaking.Add(l.totalStaking, amount)
	for _, token := range pos.Tokens {
		l.setDebt(user, token, weightedAcc(pos.Amount, l.pool(token).AccPerShare))
	}

	if err := l.executePayouts(payouts); err != nil {
		return err
	}
	if err := l.assets.TransferFrom(l.stakeToken, user, l.self, l.self, amount); err != nil {
		return err
	}
	for _, token := range added {
		l.emit(eventEnrolled, map[string]string{
			"user":  strings.ToLower(user.Hex()),
			"token": strings.ToLower(token.Hex()),
		})
	}
	l.emit(eventDeposited, map[string]string{
		"user":   strings.ToLower(user.Hex()),
		"amount": amount.String(),
	})
	return nil
}

// Withdraw returns amount of staked tokens to the user after harvesting
// every enrolled pool. A full exit unenrolls the user from all assets.
func (l *Ledger) Withdraw(user common.Address, amount *big.Int) error {
	if !l.stakeSet {
		return ErrStakeTokenNotSet
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pos, ok := l.positions[user]
	if !ok || pos.Amount.Cmp(amount) < 0 {
		return ErrInsufficientStake
	}

	var payouts []payout
	for _, token := range pos.Tokens {
		l.harvestOne(user, pos, token, &payouts)
	}
	pos.Amount = new(big.Int).Sub(pos.Amount, amount)
	for _, token := range pos.Tokens {
		pool := l.pool(token)
		pool.TotalStake = new(big.Int).Sub(pool.TotalStake, amount)
	}
	l.totalStaking.Sub(l.totalStaking, amount)

	unenrolled := []common.Address{}
	if pos.Amount.Sign() == 0 {
		unenrolled = pos.Tokens
		for _, token := range pos.Tokens {
			l.clearDebt(user, token)
		}
		delete(l.positions, user)
	} else {
		for _, token := range pos.Tokens {
			l.setDebt(user, token, weightedAcc(pos.Amount, l.pool(token).AccPerShare))
		}
	}

	if err := l.executePayouts(payouts); err != nil {
		return err
	}
	if err := l.assets.Transfer(l.stakeToken, l.self, user, amount); err != nil {
		return err
	}
	for _, token := range unenrolled {
		l.emit(eventUnenrolled, map[string]string{
			"user":  strings.ToLower(user.Hex()),
			"token": strings.ToLower(token.Hex()),
		})
	}
	l.emit(eventWithdrawn, map[string]string{
		"user":   strings.ToLower(user.Hex()),
		"amount": amount.String(),
	})
	return nil
}

// Harvest pays out the pending entitlement for the requested assets.
// Assets the user is not enrolled in are skipped.
func (l *Ledger) Harvest(user common.Address, tokens []common.Address) error {
	pos, ok := l.positions[user]
	if !ok {
		return nil
	}
	var payouts []payout
	seen := make(map[common.Address]bool, len(tokens))
	for _, token := range tokens {
		if seen[token] || !pos.enrolled(token) {
			continue
		}
		seen[token] = true
		l.harvestOne(user, pos, token, &payouts)
	}
	return l.executePayouts(payouts)
}

// AddTokenList enrolls the user in additional reward assets. Enrollment
// is idempotent and independent of the staked amount; a zero-stake
// enrollment simply accrues nothing.
func (l *Ledger) AddTokenList(user common.Address, tokens []common.Address) error {
	pos, ok := l.positions[user]
	if !ok {
		pos = &Position{Amount: big.NewInt(0)}
	}
	added, err := l.dedupeNew(pos, tokens)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	l.positions[user] = pos
	for _, token := range added {
		pool := l.settlePool(token)
		pos.Tokens = append(pos.Tokens, token)
		pool.TotalStake = new(big.Int).Add(pool.TotalStake, pos.Amount)
		l.setDebt(user, token, weightedAcc(pos.Amount, pool.AccPerShare))
		l.emit(eventEnrolled, map[string]string{
			"user":  strings.ToLower(user.Hex()),
			"token": strings.ToLower(token.Hex()),
		})
	}
	return nil
}

// RemoveTokenList unenrolls the user from reward assets, paying out what
// is owed first. Assets not enrolled are skipped.
func (l *Ledger) RemoveTokenList(user common.Address, tokens []common.Address) error {
	pos, ok := l.positions[user]
	if !ok {
		return nil
	}
	var payouts []payout
	removed := make([]common.Address, 0, len(tokens))
	seen := make(map[common.Address]bool, len(tokens))
	for _, token := range tokens {
		if seen[token] || !pos.enrolled(token) {
			continue
		}
		seen[token] = true
		l.harvestOne(user, pos, token, &payouts)
		pool := l.pool(token)
		pool.TotalStake = new(big.Int).Sub(pool.TotalStake, pos.Amount)
		l.clearDebt(user, token)
		removed = append(removed, token)
	}
	if len(removed) == 0 {
		return nil
	}
	kept := pos.Tokens[:0]
	for _, token := range pos.Tokens {
		if !seen[token] {
			kept = append(kept, token)
		}
	}
	pos.Tokens = kept

	if err := l.executePayouts(payouts); err != nil {
		return err
	}
	for _, token := range removed {
		l.emit(eventUnenrolled, map[string]string{
			"user":  strings.ToLower(user.Hex()),
			"token": strings.ToLower(token.Hex()),
		})
	}
	return nil
}

// Pending reports the reward claimable for one asset without mutating
// any state. The simulation mirrors settlePool exactly, so an immediate
// Harvest transfers the reported amount.
func (l *Ledger) Pending(user, token common.Address) *big.Int {
	pos, ok := l.positions[user]
	if !ok || !pos.enrolled(token) {
		return big.NewInt(0)
	}
	acc := l.simulatedAccPerShare(token)
	pending := new(big.Int).Sub(weightedAcc(pos.Amount, acc), l.debt(user, token))
	if pending.Sign() < 0 {
		return big.NewInt(0)
	}
	return pending
}

// PendingAll reports the claimable reward for every asset the user is
// enrolled in, in enrollment order.
func (l *Ledger) PendingAll(user common.Address) []PendingReward {
	pos, ok := l.positions[user]
	if !ok {
		return []PendingReward{}
	}
	out := make([]PendingReward, 0, len(pos.Tokens))
	for _, token := range pos.Tokens {
		out = append(out, PendingReward{Token: token, Amount: l.Pending(user, token)})
	}
	return out
}

// Snapshot exports the ledger state for persistence.
func (l *Ledger) Snapshot() *Snapshot {
	snap := &Snapshot{
		Owner:        l.owner,
		Self:         l.self,
		StakeToken:   l.stakeToken,
		StakeSet:     l.stakeSet,
		TotalStaking: new(big.Int).Set(l.totalStaking),
		Pools:        make(map[common.Address]*Pool, len(l.pools)),
		Positions:    make(map[common.Address]*Position, len(l.positions)),
		RewardDebt:   make(map[common.Address]map[common.Address]*big.Int, len(l.rewardDebt)),
	}
	for token, pool := range l.pools {
		snap.Pools[token] = pool.Clone()
	}
	for user, pos := range l.positions {
		snap.Positions[user] = pos.Clone()
	}
	for user, debts := range l.rewardDebt {
		copied := make(map[common.Address]*big.Int, len(debts))
		for token, debt := range debts {
			copied[token] = new(big.Int).Set(debt)
		}
		snap.RewardDebt[user] = copied
	}
	return snap
}

// RestoreLedger rebuilds a ledger from a snapshot.
func RestoreLedger(snap *Snapshot, assets AssetSource, sink events.Sink) *Ledger {
	l := NewLedger(snap.Owner, snap.Self, assets, sink)
	l.stakeToken = snap.StakeToken
	l.stakeSet = snap.StakeSet
	if snap.TotalStaking != nil {
		l.totalStaking = new(big.Int).Set(snap.TotalStaking)
	}
	for token, pool := range snap.Pools {
		l.pools[token] = pool.Clone()
	}
	for user, pos := range snap.Positions {
		l.positions[user] = pos.Clone()
	}
	for user, debts := range snap.RewardDebt {
		copied := make(map[common.Address]*big.Int, len(debts))
		for token, debt := range debts {
			copied[token] = new(big.Int).Set(debt)
		}
		l.rewardDebt[user] = copied
	}
	return l
}
