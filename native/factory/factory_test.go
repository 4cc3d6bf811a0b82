package factory

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/native/emission"
	"daotoken/native/token"
)

var (
	registryOwner = common.BytesToAddress([]byte{0x01})
	factoryAddr   = common.BytesToAddress([]byte{0x02})
	orgOwner      = common.BytesToAddress([]byte{0x11})
	orgManager    = common.BytesToAddress([]byte{0x12})
	stranger      = common.BytesToAddress([]byte{0x21})
)

func orgConfig(orgID string) token.Config {
	return token.Config{
		OrgID:   orgID,
		Name:    "Example DAO Token",
		Symbol:  "EXD",
		Owner:   orgOwner,
		Holders: []common.Address{orgOwner},
		Amounts: []*big.Int{big.NewInt(1000)},
		MintArgs: emission.Args{
			P:            big.NewInt(100),
			ANumerator:   1,
			ADenominator: 2,
			BNumerator:   1,
			BDenominator: 365,
		},
	}
}

func newTestFactory(t *testing.T) (*Factory, *Store) {
	t.Helper()
	store := NewStore(registryOwner)
	if err := store.AddFactory(registryOwner, factoryAddr); err != nil {
		t.Fatalf("add factory: %v", err)
	}
	return NewFactory(factoryAddr, store, nil), store
}

func TestDeploy(t *testing.T) {
	factory, store := newTestFactory(t)

	tok, err := factory.Deploy(stranger, orgConfig("dao.example"), 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if tok.Address() != DeriveTokenAddress("dao.example", 0) {
		t.Fatalf("token address is not deterministic")
	}

	rec, ok := store.Record("dao.example")
	if !ok || rec.Version != 0 || rec.Token != tok.Address() {
		t.Fatalf("record = %+v ok=%v", rec, ok)
	}
	resolved, err := store.Resolve("dao.example")
	if err != nil || resolved != tok {
		t.Fatalf("resolve = %v, err %v", resolved, err)
	}
}

func TestDeployRequiresAuthorizedFactory(t *testing.T) {
	store := NewStore(registryOwner)
	factory := NewFactory(factoryAddr, store, nil)

	if _, err := factory.Deploy(orgOwner, orgConfig("dao.example"), 0); !errors.Is(err, ErrFactoryNotAuthorized) {
		t.Fatalf("err = %v, want ErrFactoryNotAuthorized", err)
	}
}

func TestRedeployAuthorization(t *testing.T) {
	factory, store := newTestFactory(t)

	first, err := factory.Deploy(orgOwner, orgConfig("dao.example"), 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := first.AddManager(orgOwner, orgManager); err != nil {
		t.Fatalf("add manager: %v", err)
	}

	// Strangers cannot replace a live deployment.
	if _, err := factory.Deploy(stranger, orgConfig("dao.example"), 0); !errors.Is(err, ErrRedeployForbidden) {
		t.Fatalf("stranger redeploy err = %v, want ErrRedeployForbidden", err)
	}

	// Managers of the current token can.
	second, err := factory.Deploy(orgManager, orgConfig("dao.example"), 0)
	if err != nil {
		t.Fatalf("manager redeploy: %v", err)
	}
	if second.Address() == first.Address() {
		t.Fatalf("redeploy reused the old address")
	}
	rec, _ := store.Record("dao.example")
	if rec.Version != 1 || rec.Token != second.Address() {
		t.Fatalf("record after redeploy = %+v", rec)
	}

	// The superseded instance stays resolvable by address.
	if _, ok := store.Token(first.Address()); !ok {
		t.Fatalf("previous deployment dropped from the registry")
	}
	resolved, err := store.Resolve("dao.example")
	if err != nil || resolved != second {
		t.Fatalf("resolve after redeploy = %v, err %v", resolved, err)
	}
}

func TestDeriveTokenAddress(t *testing.T) {
	a := DeriveTokenAddress("dao.example", 0)
	if a != DeriveTokenAddress("dao.example", 0) {
		t.Fatalf("derivation is not deterministic")
	}
	if a == DeriveTokenAddress("dao.example", 1) {
		t.Fatalf("version does not separate addresses")
	}
	if a == DeriveTokenAddress("dao.other", 0) {
		t.Fatalf("org id does not separate addresses")
	}
}

func TestFactoryAdministration(t *testing.T) {
	store := NewStore(registryOwner)
	if err := store.AddFactory(stranger, factoryAddr); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner add err = %v, want ErrNotOwner", err)
	}
	if err := store.AddFactory(registryOwner, factoryAddr); err != nil {
		t.Fatalf("add factory: %v", err)
	}
	if !store.IsFactory(factoryAddr) {
		t.Fatalf("factory not registered")
	}
	if err := store.RemoveFactory(registryOwner, factoryAddr); err != nil {
		t.Fatalf("remove factory: %v", err)
	}
	if store.IsFactory(factoryAddr) {
		t.Fatalf("factory still registered after removal")
	}

	factory := NewFactory(factoryAddr, store, nil)
	if _, err := factory.Deploy(orgOwner, orgConfig("dao.example"), 0); !errors.Is(err, ErrFactoryNotAuthorized) {
		t.Fatalf("revoked deploy err = %v, want ErrFactoryNotAuthorized", err)
	}
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	factory, store := newTestFactory(t)
	tok, err := factory.Deploy(orgOwner, orgConfig("dao.example"), 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	restored := RestoreStore(store.Snapshot(), nil)
	if restored.Owner() != registryOwner {
		t.Fatalf("owner lost in round trip")
	}
	if !restored.IsFactory(factoryAddr) {
		t.Fatalf("factory set lost in round trip")
	}
	rec, ok := restored.Record("dao.example")
	if !ok || rec.Token != tok.Address() {
		t.Fatalf("record lost in round trip")
	}
	resolved, err := restored.Resolve("dao.example")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.BalanceOf(orgOwner).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("token state lost in round trip")
	}
}
