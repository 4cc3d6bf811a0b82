package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"daotoken/native/distributor"
	"daotoken/native/emission"
)

var (
	tokenAddr = common.BytesToAddress([]byte{0xf0})
	ownerAddr = common.BytesToAddress([]byte{0x01})
	holder1   = common.BytesToAddress([]byte{0x11})
	holder2   = common.BytesToAddress([]byte{0x12})
	outsider  = common.BytesToAddress([]byte{0x21})
)

func testConfig() Config {
	return Config{
		OrgID:   "dao.example",
		Name:    "Example DAO Token",
		Symbol:  "EXD",
		Owner:   ownerAddr,
		Holders: []common.Address{holder1, holder2},
		Amounts: []*big.Int{big.NewInt(600), big.NewInt(400)},
		LpRatio: 5,
		MintArgs: emission.Args{
			P:            big.NewInt(100),
			ANumerator:   1,
			ADenominator: 2,
			BNumerator:   1,
			BDenominator: 365,
		},
	}
}

func newTestToken(t *testing.T, cfg Config) *Token {
	t.Helper()
	tok, err := New(tokenAddr, cfg, 0, nil)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	return tok
}

func wantBalance(t *testing.T, tok *Token, holder common.Address, want int64) {
	t.Helper()
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("balance of %s = %s, want %d", holder.Hex(), got, want)
	}
}

func TestGenesis(t *testing.T) {
	tok := newTestToken(t, testConfig())

	wantBalance(t, tok, holder1, 600)
	wantBalance(t, tok, holder2, 400)
	// 5% of the genesis total lands in the temporary pool.
	if got := tok.TemporaryAmount(); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("temporary amount = %s, want 50", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(1050)) != 0 {
		t.Fatalf("total supply = %s, want 1050", got)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := testConfig()
	cfg.OrgID = "  "
	if _, err := New(tokenAddr, cfg, 0, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("blank orgId err = %v, want ErrInvalidConfig", err)
	}

	cfg = testConfig()
	cfg.Amounts = cfg.Amounts[:1]
	if _, err := New(tokenAddr, cfg, 0, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("mismatched holders err = %v, want ErrInvalidConfig", err)
	}

	cfg = testConfig()
	cfg.Amounts[0] = big.NewInt(-1)
	if _, err := New(tokenAddr, cfg, 0, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("negative genesis err = %v, want ErrInvalidConfig", err)
	}

	cfg = testConfig()
	cfg.MintArgs.ADenominator = 0
	if _, err := New(tokenAddr, cfg, 0, nil); !errors.Is(err, emission.ErrInvalidArgs) {
		t.Fatalf("bad schedule err = %v, want ErrInvalidArgs", err)
	}
}

func TestTransfers(t *testing.T) {
	tok := newTestToken(t, testConfig())

	if err := tok.Transfer(holder1, outsider, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero transfer err = %v, want ErrInvalidAmount", err)
	}
	if err := tok.Transfer(holder1, outsider, big.NewInt(601)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft err = %v, want ErrInsufficientBalance", err)
	}
	if err := tok.Transfer(holder1, outsider, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	wantBalance(t, tok, holder1, 500)
	wantBalance(t, tok, outsider, 100)
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(1050)) != 0 {
		t.Fatalf("supply changed by transfer: %s", got)
	}
}

func TestAllowances(t *testing.T) {
	tok := newTestToken(t, testConfig())

	if err := tok.TransferFrom(holder1, outsider, outsider, big.NewInt(50)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("no allowance err = %v, want ErrInsufficientAllowance", err)
	}
	if err := tok.Approve(holder1, outsider, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative approve err = %v, want ErrInvalidAmount", err)
	}
	if err := tok.Approve(holder1, outsider, big.NewInt(80)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(holder1, outsider, outsider, big.NewInt(50)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	wantBalance(t, tok, outsider, 50)
	if got := tok.Allowance(holder1, outsider); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("remaining allowance = %s, want 30", got)
	}
	if err := tok.TransferFrom(holder1, outsider, outsider, big.NewInt(31)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("exhausted allowance err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestMint(t *testing.T) {
	tok := newTestToken(t, testConfig())
	recipients := []distributor.Recipient{
		{Address: holder1, Weight: big.NewInt(1)},
		{Address: holder2, Weight: big.NewInt(3)},
	}

	// Ten days at a rate of 100 per day.
	end := int64(10 * emission.SecondsPerDay)
	result, err := tok.Mint(ownerAddr, recipients, end, end)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if result.Minted.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("minted = %s, want 1000", result.Minted)
	}
	if result.Lp.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("lp = %s, want 50", result.Lp)
	}
	wantBalance(t, tok, holder1, 600+250)
	wantBalance(t, tok, holder2, 400+750)
	// Genesis LP plus this settlement's LP.
	if got := tok.TemporaryAmount(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("temporary amount = %s, want 100", got)
	}

	// Replaying the same interval is rejected.
	if _, err := tok.Mint(ownerAddr, recipients, end, end); !errors.Is(err, emission.ErrStaleSettlement) {
		t.Fatalf("replay err = %v, want ErrStaleSettlement", err)
	}
}

func TestPreviewMintMatchesSettlement(t *testing.T) {
	tok := newTestToken(t, testConfig())
	recipients := []distributor.Recipient{
		{Address: holder1, Weight: big.NewInt(1)},
	}

	end := int64(10 * emission.SecondsPerDay)
	preview := tok.PreviewMint(end)
	if preview.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("preview = %s, want 1000", preview)
	}
	// The preview leaves the anchor and the supply untouched.
	if got := tok.Anchor().LastTimestamp; got != 0 {
		t.Fatalf("anchor advanced to %d", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(1050)) != 0 {
		t.Fatalf("supply = %s, want 1050", got)
	}

	result, err := tok.Mint(ownerAddr, recipients, end, end)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if result.Minted.Cmp(preview) != 0 {
		t.Fatalf("minted = %s, preview said %s", result.Minted, preview)
	}
	// A settled interval previews to zero.
	if got := tok.PreviewMint(end); got.Sign() != 0 {
		t.Fatalf("preview of settled interval = %s, want 0", got)
	}
}

func TestMintDustLandsInTemporaryPool(t *testing.T) {
	tok := newTestToken(t, testConfig())
	recipients := []distributor.Recipient{
		{Address: holder1, Weight: big.NewInt(1)},
		{Address: holder2, Weight: big.NewInt(1)},
		{Address: outsider, Weight: big.NewInt(1)},
	}

	end := int64(10 * emission.SecondsPerDay)
	result, err := tok.Mint(ownerAddr, recipients, end, end)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if result.Dust.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("dust = %s, want 1", result.Dust)
	}
	// Genesis 50 + lp 50 + dust 1.
	if got := tok.TemporaryAmount(); got.Cmp(big.NewInt(101)) != 0 {
		t.Fatalf("temporary amount = %s, want 101", got)
	}
}

func TestMintAuthorization(t *testing.T) {
	tok := newTestToken(t, testConfig())
	recipients := []distributor.Recipient{{Address: holder1, Weight: big.NewInt(1)}}
	end := int64(emission.SecondsPerDay)

	if _, err := tok.Mint(outsider, recipients, end, end); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("outsider mint err = %v, want ErrUnauthorized", err)
	}
	if err := tok.AddManager(outsider, outsider); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("self-grant err = %v, want ErrNotOwner", err)
	}
	if err := tok.AddManager(ownerAddr, outsider); err != nil {
		t.Fatalf("add manager: %v", err)
	}
	if _, err := tok.Mint(outsider, recipients, end, end); err != nil {
		t.Fatalf("manager mint: %v", err)
	}
	if err := tok.RemoveManager(ownerAddr, outsider); err != nil {
		t.Fatalf("remove manager: %v", err)
	}
	if _, err := tok.Mint(outsider, recipients, 2*end, 2*end); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked mint err = %v, want ErrUnauthorized", err)
	}
}

func TestLpBudget(t *testing.T) {
	cfg := testConfig()
	cfg.LpTotalAmount = big.NewInt(30)
	tok := newTestToken(t, cfg)

	// Genesis LP is capped by the budget.
	if got := tok.TemporaryAmount(); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("temporary amount = %s, want 30", got)
	}

	end := int64(10 * emission.SecondsPerDay)
	result, err := tok.Mint(ownerAddr, []distributor.Recipient{{Address: holder1, Weight: big.NewInt(1)}}, end, end)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	// Budget exhausted: no further LP accrual.
	if result.Lp.Sign() != 0 {
		t.Fatalf("lp = %s, want 0", result.Lp)
	}
	if got := tok.TemporaryAmount(); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("temporary amount = %s, want 30", got)
	}
}

func TestOwnership(t *testing.T) {
	tok := newTestToken(t, testConfig())
	if err := tok.TransferOwnership(outsider, outsider); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("hijack err = %v, want ErrNotOwner", err)
	}
	if err := tok.TransferOwnership(ownerAddr, outsider); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if !tok.IsManager(outsider) {
		t.Fatalf("new owner should be a manager")
	}
	if tok.IsManager(ownerAddr) {
		t.Fatalf("old owner retained manager rights")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.LpTotalAmount = big.NewInt(500)
	tok := newTestToken(t, cfg)

	if err := tok.AddManager(ownerAddr, outsider); err != nil {
		t.Fatalf("add manager: %v", err)
	}
	if err := tok.Approve(holder1, outsider, big.NewInt(77)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	end := int64(3 * emission.SecondsPerDay)
	if _, err := tok.Mint(ownerAddr, []distributor.Recipient{{Address: holder1, Weight: big.NewInt(1)}}, end, end); err != nil {
		t.Fatalf("mint: %v", err)
	}

	restored := Restore(tok.Snapshot(), nil)
	if restored.OrgID() != tok.OrgID() || restored.Symbol() != tok.Symbol() {
		t.Fatalf("identity lost in round trip")
	}
	if restored.TotalSupply().Cmp(tok.TotalSupply()) != 0 {
		t.Fatalf("supply = %s, want %s", restored.TotalSupply(), tok.TotalSupply())
	}
	if restored.BalanceOf(holder1).Cmp(tok.BalanceOf(holder1)) != 0 {
		t.Fatalf("holder1 balance lost in round trip")
	}
	if restored.Allowance(holder1, outsider).Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("allowance lost in round trip")
	}
	if !restored.IsManager(outsider) {
		t.Fatalf("manager set lost in round trip")
	}
	if restored.Anchor().N != tok.Anchor().N {
		t.Fatalf("anchor lost in round trip")
	}

	// The restored token continues the schedule where the original left off.
	if _, err := restored.Mint(ownerAddr, []distributor.Recipient{{Address: holder1, Weight: big.NewInt(1)}}, end, end); !errors.Is(err, emission.ErrStaleSettlement) {
		t.Fatalf("restored replay err = %v, want ErrStaleSettlement", err)
	}
}
