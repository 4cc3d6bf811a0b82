package storage

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/native/emission"
	"daotoken/native/factory"
	"daotoken/native/staking"
	"daotoken/native/token"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "daotoken.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFreshStoreReturnsNotFound(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.LoadRegistry(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("registry err = %v, want ErrNotFound", err)
	}
	if _, err := store.LoadStaking(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("staking err = %v, want ErrNotFound", err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	store := openTestStore(t)

	owner := common.BytesToAddress([]byte{0x01})
	registry := factory.NewStore(owner)
	factoryAddr := common.BytesToAddress([]byte{0x02})
	if err := registry.AddFactory(owner, factoryAddr); err != nil {
		t.Fatalf("add factory: %v", err)
	}
	deployer := factory.NewFactory(factoryAddr, registry, nil)
	cfg := token.Config{
		OrgID:   "dao.example",
		Name:    "Example DAO Token",
		Symbol:  "EXD",
		Owner:   owner,
		Holders: []common.Address{owner},
		Amounts: []*big.Int{big.NewInt(1000)},
		MintArgs: emission.Args{
			P:            big.NewInt(10),
			ANumerator:   1,
			ADenominator: 2,
			BNumerator:   1,
			BDenominator: 365,
		},
	}
	tok, err := deployer.Deploy(owner, cfg, 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	if err := store.SaveRegistry(registry.Snapshot()); err != nil {
		t.Fatalf("save registry: %v", err)
	}
	state, err := store.LoadRegistry()
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	restored := factory.RestoreStore(state, nil)
	resolved, err := restored.Resolve("dao.example")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Address() != tok.Address() {
		t.Fatalf("token address lost in round trip")
	}
	if resolved.BalanceOf(owner).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance lost in round trip")
	}
}

func TestStakingRoundTrip(t *testing.T) {
	store := openTestStore(t)

	snap := &staking.Snapshot{
		Owner:        common.BytesToAddress([]byte{0x01}),
		Self:         common.BytesToAddress([]byte{0x02}),
		StakeToken:   common.BytesToAddress([]byte{0xa1}),
		StakeSet:     true,
		TotalStaking: big.NewInt(12345),
		Pools: map[common.Address]*staking.Pool{
			common.BytesToAddress([]byte{0xa2}): {
				AccPerShare:      big.NewInt(2500000000000),
				TotalStake:       big.NewInt(400),
				AccountedBalance: big.NewInt(1000),
			},
		},
		Positions: map[common.Address]*staking.Position{
			common.BytesToAddress([]byte{0x11}): {
				Amount: big.NewInt(100),
				Tokens: []common.Address{common.BytesToAddress([]byte{0xa2})},
			},
		},
		RewardDebt: map[common.Address]map[common.Address]*big.Int{
			common.BytesToAddress([]byte{0x11}): {
				common.BytesToAddress([]byte{0xa2}): big.NewInt(250),
			},
		},
	}
	if err := store.SaveStaking(snap); err != nil {
		t.Fatalf("save staking: %v", err)
	}
	loaded, err := store.LoadStaking()
	if err != nil {
		t.Fatalf("load staking: %v", err)
	}
	if !loaded.StakeSet || loaded.StakeToken != snap.StakeToken {
		t.Fatalf("stake token lost in round trip")
	}
	if loaded.TotalStaking.Cmp(snap.TotalStaking) != 0 {
		t.Fatalf("total staking = %s, want %s", loaded.TotalStaking, snap.TotalStaking)
	}
	pool := loaded.Pools[common.BytesToAddress([]byte{0xa2})]
	if pool == nil || pool.AccPerShare.Cmp(big.NewInt(2500000000000)) != 0 {
		t.Fatalf("pool lost in round trip: %+v", pool)
	}
	debt := loaded.RewardDebt[common.BytesToAddress([]byte{0x11})][common.BytesToAddress([]byte{0xa2})]
	if debt == nil || debt.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("reward debt lost in round trip: %v", debt)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := openTestStore(t)

	first := &staking.Snapshot{TotalStaking: big.NewInt(1)}
	second := &staking.Snapshot{TotalStaking: big.NewInt(2)}
	if err := store.SaveStaking(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveStaking(second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err := store.LoadStaking()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.TotalStaking.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("total staking = %s, want 2", loaded.TotalStaking)
	}
}
