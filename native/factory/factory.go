package factory

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"daotoken/core/events"
	"daotoken/native/token"
)

const eventDeployed = "factory.deployed"

// Factory deploys organization tokens and records them in the shared
// store. Redeploying an organization's token requires the caller to be
// the current token's owner or a manager; a first deploy is open.
type Factory struct {
	address common.Address
	store   *Store
	sink    events.Sink
}

// NewFactory constructs a factory writing to store under its own
// address. The store owner must still authorize the address via
// AddFactory before deploys succeed.
func NewFactory(address common.Address, store *Store, sink events.Sink) *Factory {
	return &Factory{address: address, store: store, sink: sink}
}

// Address returns the factory's registry identity.
func (f *Factory) Address() common.Address { return f.address }

// IsAuthorizedToRedeploy reports whether caller may (re)deploy the
// organization's token: true when the id has never been deployed or the
// caller administers the current token.
func (f *Factory) IsAuthorizedToRedeploy(orgID string, caller common.Address) bool {
	rec, ok := f.store.Record(orgID)
	if !ok {
		return true
	}
	current, ok := f.store.Token(rec.Token)
	if !ok {
		return true
	}
	return current.IsManager(caller)
}

// Deploy creates (or replaces) the organization's token at a
// deterministic address derived from the org id and version.
func (f *Factory) Deploy(caller common.Address, cfg token.Config, now int64) (*token.Token, error) {
	if !f.store.IsFactory(f.address) {
		return nil, ErrFactoryNotAuthorized
	}
	version := uint32(0)
	if rec, ok := f.store.Record(cfg.OrgID); ok {
		if !f.IsAuthorizedToRedeploy(cfg.OrgID, caller) {
			return nil, ErrRedeployForbidden
		}
		version = rec.Version + 1
	}
	address := DeriveTokenAddress(cfg.OrgID, version)
	tok, err := token.New(address, cfg, now, f.sink)
	if err != nil {
		return nil, err
	}
	if err := f.store.put(f.address, cfg.OrgID, tok, version); err != nil {
		return nil, err
	}
	if f.sink != nil {
		f.sink.AppendEvent(&events.Event{Type: eventDeployed, Attributes: map[string]string{
			"orgId":   cfg.OrgID,
			"token":   strings.ToLower(address.Hex()),
			"version": strconv.FormatUint(uint64(version), 10),
		}})
	}
	return tok, nil
}

// DeriveTokenAddress computes the deterministic address for an
// organization token deployment.
func DeriveTokenAddress(orgID string, version uint32) common.Address {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], version)
	hash := ethcrypto.Keccak256([]byte("daotoken/token"), []byte(orgID), v[:])
	return common.BytesToAddress(hash[12:])
}
