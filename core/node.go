package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"daotoken/core/events"
	"daotoken/native/distributor"
	"daotoken/native/factory"
	"daotoken/native/staking"
	"daotoken/native/token"
	"daotoken/observability"
	"daotoken/storage"
)

// maxRetainedEvents bounds the in-memory event feed.
const maxRetainedEvents = 512

// Config carries the node bootstrap parameters.
type Config struct {
	RegistryOwner common.Address
	StakingOwner  common.Address
	// Clock supplies the current unix timestamp; defaults to time.Now.
	Clock func() int64
}

// Node owns the token registry and the staking ledger and serializes
// every mutation behind a single mutex. After each successful mutation
// the affected snapshot is written through to storage.
type Node struct {
	mu sync.Mutex

	store   *factory.Store
	factory *factory.Factory
	ledger  *staking.Ledger
	persist *storage.Store
	clock   func() int64
	logger  *slog.Logger

	events []events.Event
}

// FactoryAddress is the address of the node's built-in deployer.
func FactoryAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("daotoken/factory"))[12:])
}

// StakingAddress is the address the staking ledger holds assets under.
func StakingAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("daotoken/staking"))[12:])
}

// NewNode restores the node from storage, or bootstraps a fresh state
// when the database is empty.
func NewNode(cfg Config, persist *storage.Store, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	n := &Node{persist: persist, clock: clock, logger: logger}

	regState, err := persist.LoadRegistry()
	switch {
	case err == nil:
		n.store = factory.RestoreStore(regState, n)
	case errors.Is(err, storage.ErrNotFound):
		n.store = factory.NewStore(cfg.RegistryOwner)
		if err := n.store.AddFactory(cfg.RegistryOwner, FactoryAddress()); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load registry: %w", err)
	}
	n.factory = factory.NewFactory(FactoryAddress(), n.store, n)

	stakeState, err := persist.LoadStaking()
	switch {
	case err == nil:
		n.ledger = staking.RestoreLedger(stakeState, assetSource{n.store}, n)
	case errors.Is(err, storage.ErrNotFound):
		n.ledger = staking.NewLedger(cfg.StakingOwner, StakingAddress(), assetSource{n.store}, n)
	default:
		return nil, fmt.Errorf("load staking: %w", err)
	}
	return n, nil
}

// AppendEvent records an event on the in-memory feed.
func (n *Node) AppendEvent(evt *events.Event) {
	if evt == nil {
		return
	}
	n.events = append(n.events, *evt)
	if len(n.events) > maxRetainedEvents {
		n.events = n.events[len(n.events)-maxRetainedEvents:]
	}
}

// Events returns the most recent events, newest last.
func (n *Node) Events(limit int) []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 || limit > len(n.events) {
		limit = len(n.events)
	}
	out := make([]events.Event, limit)
	copy(out, n.events[len(n.events)-limit:])
	return out
}

// assetSource resolves staking asset calls against the token registry.
type assetSource struct {
	store *factory.Store
}

func (a assetSource) BalanceOf(tok, holder common.Address) *big.Int {
	t, ok := a.store.Token(tok)
	if !ok {
		return big.NewInt(0)
	}
	return t.BalanceOf(holder)
}

func (a assetSource) Allowance(tok, owner, spender common.Address) *big.Int {
	t, ok := a.store.Token(tok)
	if !ok {
		return big.NewInt(0)
	}
	return t.Allowance(owner, spender)
}

func (a assetSource) Transfer(tok, from, to common.Address, amount *big.Int) error {
	t, ok := a.store.Token(tok)
	if !ok {
		return staking.ErrUnknownAsset
	}
	return t.Transfer(from, to, amount)
}

func (a assetSource) TransferFrom(tok, owner, spender, to common.Address, amount *big.Int) error {
	t, ok := a.store.Token(tok)
	if !ok {
		return staking.ErrUnknownAsset
	}
	return t.TransferFrom(owner, spender, to, amount)
}

func (a assetSource) HasToken(tok common.Address) bool {
	_, ok := a.store.Token(tok)
	return ok
}

func (n *Node) persistRegistry() error {
	if err := n.persist.SaveRegistry(n.store.Snapshot()); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	return nil
}

func (n *Node) persistStaking() error {
	if err := n.persist.SaveStaking(n.ledger.Snapshot()); err != nil {
		return fmt.Errorf("persist staking: %w", err)
	}
	return nil
}

func (n *Node) persistAll() error {
	if err := n.persistStaking(); err != nil {
		return err
	}
	return n.persistRegistry()
}

// DeployToken deploys (or redeploys) the token for an organization.
func (n *Node) DeployToken(caller common.Address, cfg token.Config) (*token.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tok, err := n.factory.Deploy(caller, cfg, n.clock())
	if err != nil {
		return nil, err
	}
	if err := n.persistRegistry(); err != nil {
		return nil, err
	}
	n.logger.Info("token deployed", "orgId", cfg.OrgID, "address", tok.Address().Hex())
	return tok, nil
}

// ResolveToken returns the current token for an organization.
func (n *Node) ResolveToken(orgID string) (*token.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.Resolve(orgID)
}

// TokenByAddress returns the token deployed at an address.
func (n *Node) TokenByAddress(addr common.Address) (*token.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tok, ok := n.store.Token(addr)
	if !ok {
		return nil, factory.ErrNotFound
	}
	return tok, nil
}

// TokenRecord returns the registry record for an organization.
func (n *Node) TokenRecord(orgID string) (factory.Record, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.Record(orgID)
}

// AddFactory authorizes a deployer address. Registry owner only.
func (n *Node) AddFactory(caller, addr common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.store.AddFactory(caller, addr); err != nil {
		return err
	}
	return n.persistRegistry()
}

// RemoveFactory revokes a deployer address. Registry owner only.
func (n *Node) RemoveFactory(caller, addr common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.store.RemoveFactory(caller, addr); err != nil {
		return err
	}
	return n.persistRegistry()
}

// Mint settles the emission schedule of an organization's token up to
// endTimestamp and distributes the minted amount.
func (n *Node) Mint(caller common.Address, orgID string, recipients []distributor.Recipient, endTimestamp int64) (*token.MintResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tok, err := n.store.Resolve(orgID)
	if err != nil {
		return nil, err
	}
	result, err := tok.Mint(caller, recipients, endTimestamp, n.clock())
	if err != nil {
		return nil, err
	}
	if err := n.persistRegistry(); err != nil {
		return nil, err
	}
	observability.MintSettlements.WithLabelValues(orgID).Inc()
	n.logger.Info("tokens minted", "orgId", orgID, "minted", result.Minted.String(), "lp", result.Lp.String())
	return result, nil
}

// PreviewMint reports the amount a mint at endTimestamp would settle
// for an organization's token, without advancing its anchor.
func (n *Node) PreviewMint(orgID string, endTimestamp int64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tok, err := n.store.Resolve(orgID)
	if err != nil {
		return nil, err
	}
	return tok.PreviewMint(endTimestamp), nil
}

// Transfer moves token balance between holders.
func (n *Node) Transfer(tokenAddr, from, to common.Address, amount *big.Int) error {
	return n.withToken(tokenAddr, func(t *token.Token) error {
		return t.Transfer(from, to, amount)
	})
}

// Approve sets a spending allowance.
func (n *Node) Approve(tokenAddr, owner, spender common.Address, amount *big.Int) error {
	return n.withToken(tokenAddr, func(t *token.Token) error {
		return t.Approve(owner, spender, amount)
	})
}

// TransferFrom moves token balance on behalf of the owner.
func (n *Node) TransferFrom(tokenAddr, owner, spender, to common.Address, amount *big.Int) error {
	return n.withToken(tokenAddr, func(t *token.Token) error {
		return t.TransferFrom(owner, spender, to, amount)
	})
}

// AddManager grants mint authority on a token.
func (n *Node) AddManager(tokenAddr, caller, addr common.Address) error {
	return n.withToken(tokenAddr, func(t *token.Token) error {
		return t.AddManager(caller, addr)
	})
}

// RemoveManager revokes mint authority on a token.
func (n *Node) RemoveManager(tokenAddr, caller, addr common.Address) error {
	return n.withToken(tokenAddr, func(t *token.Token) error {
		return t.RemoveManager(caller, addr)
	})
}

func (n *Node) withToken(tokenAddr common.Address, fn func(*token.Token) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	tok, ok := n.store.Token(tokenAddr)
	if !ok {
		return factory.ErrNotFound
	}
	if err := fn(tok); err != nil {
		return err
	}
	return n.persistRegistry()
}

// SetStakeToken designates the staked asset. Staking owner only, once.
func (n *Node) SetStakeToken(caller, tokenAddr common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.SetStakeToken(caller, tokenAddr); err != nil {
		return err
	}
	return n.persistStaking()
}

// StakeToken returns the configured stake token, if set.
func (n *Node) StakeToken() (common.Address, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.StakeToken()
}

// Deposit raises the user's stake and optionally enrolls new reward
// assets. Harvested rewards and the staked transfer touch token state,
// so both snapshots are written through.
func (n *Node) Deposit(user common.Address, amount *big.Int, newTokens []common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.Deposit(user, amount, newTokens); err != nil {
		return err
	}
	return n.persistAll()
}

// Withdraw returns staked tokens to the user.
func (n *Node) Withdraw(user common.Address, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.Withdraw(user, amount); err != nil {
		return err
	}
	return n.persistAll()
}

// Harvest pays out pending rewards for the requested assets.
func (n *Node) Harvest(user common.Address, tokens []common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.Harvest(user, tokens); err != nil {
		return err
	}
	return n.persistAll()
}

// AddTokenList enrolls the user in additional reward assets.
func (n *Node) AddTokenList(user common.Address, tokens []common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.AddTokenList(user, tokens); err != nil {
		return err
	}
	return n.persistStaking()
}

// RemoveTokenList unenrolls the user from reward assets.
func (n *Node) RemoveTokenList(user common.Address, tokens []common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.RemoveTokenList(user, tokens); err != nil {
		return err
	}
	return n.persistAll()
}

// Pending reports the claimable reward for one asset.
func (n *Node) Pending(user, tokenAddr common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Pending(user, tokenAddr)
}

// PendingAll reports the claimable reward for every enrolled asset.
func (n *Node) PendingAll(user common.Address) []staking.PendingReward {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.PendingAll(user)
}

// StakePosition returns the user's staking position.
func (n *Node) StakePosition(user common.Address) *staking.Position {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.UserInfo(user)
}

// PoolInfo returns the stored pool state for an asset.
func (n *Node) PoolInfo(tokenAddr common.Address) *staking.Pool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.PoolInfo(tokenAddr)
}

// TotalStaking returns the sum of all staked amounts.
func (n *Node) TotalStaking() *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.TotalStaking()
}
