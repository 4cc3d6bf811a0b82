package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"daotoken/core/events"
	"daotoken/native/token"
)

// Record maps an organization id to its current token deployment.
type Record struct {
	Token   common.Address `json:"token"`
	Version uint32         `json:"version"`
}

// Store is the durable registry shared by all factories: org id records,
// the authorized factory set, and the deployed token instances.
type Store struct {
	owner     common.Address
	factories map[common.Address]bool
	records   map[string]Record
	tokens    map[common.Address]*token.Token
}

// NewStore constructs an empty registry owned by owner.
func NewStore(owner common.Address) *Store {
	return &Store{
		owner:     owner,
		factories: make(map[common.Address]bool),
		records:   make(map[string]Record),
		tokens:    make(map[common.Address]*token.Token),
	}
}

// Owner returns the registry's administrative address.
func (s *Store) Owner() common.Address { return s.owner }

// AddFactory authorizes a factory address to write records. Owner-only.
func (s *Store) AddFactory(caller, factory common.Address) error {
	if caller != s.owner {
		return ErrNotOwner
	}
	s.factories[factory] = true
	return nil
}

// RemoveFactory revokes a factory. Owner-only.
func (s *Store) RemoveFactory(caller, factory common.Address) error {
	if caller != s.owner {
		return ErrNotOwner
	}
	delete(s.factories, factory)
	return nil
}

// IsFactory reports whether the address may write records.
func (s *Store) IsFactory(factory common.Address) bool {
	return s.factories[factory]
}

// Record returns the registry entry for an organization.
func (s *Store) Record(orgID string) (Record, bool) {
	rec, ok := s.records[orgID]
	return rec, ok
}

// Token returns a deployed token by address.
func (s *Store) Token(address common.Address) (*token.Token, bool) {
	tok, ok := s.tokens[address]
	return tok, ok
}

// Resolve returns the organization's current token.
func (s *Store) Resolve(orgID string) (*token.Token, error) {
	rec, ok := s.records[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	tok, ok := s.tokens[rec.Token]
	if !ok {
		return nil, ErrNotFound
	}
	return tok, nil
}

// Tokens returns every deployed token instance.
func (s *Store) Tokens() []*token.Token {
	out := make([]*token.Token, 0, len(s.tokens))
	for _, tok := range s.tokens {
		out = append(out, tok)
	}
	return out
}

// put records a deployment performed by an authorized factory.
func (s *Store) put(factory common.Address, orgID string, tok *token.Token, version uint32) error {
	if !s.factories[factory] {
		return ErrFactoryNotAuthorized
	}
	s.records[orgID] = Record{Token: tok.Address(), Version: version}
	s.tokens[tok.Address()] = tok
	return nil
}

// StoreState is the serializable form of the registry.
type StoreState struct {
	Owner     common.Address    `json:"owner"`
	Factories []common.Address  `json:"factories"`
	Records   map[string]Record `json:"records"`
	Tokens    []*token.State    `json:"tokens"`
}

// Snapshot exports the registry state for persistence.
func (s *Store) Snapshot() *StoreState {
	state := &StoreState{
		Owner:     s.owner,
		Factories: make([]common.Address, 0, len(s.factories)),
		Records:   make(map[string]Record, len(s.records)),
		Tokens:    make([]*token.State, 0, len(s.tokens)),
	}
	for factory := range s.factories {
		state.Factories = append(state.Factories, factory)
	}
	for orgID, rec := range s.records {
		state.Records[orgID] = rec
	}
	for _, tok := range s.tokens {
		state.Tokens = append(state.Tokens, tok.Snapshot())
	}
	return state
}

// RestoreStore rebuilds the registry from persisted state.
func RestoreStore(state *StoreState, sink events.Sink) *Store {
	s := NewStore(state.Owner)
	for _, factory := range state.Factories {
		s.factories[factory] = true
	}
	for orgID, rec := range state.Records {
		s.records[orgID] = rec
	}
	for _, tokenState := range state.Tokens {
		s.tokens[tokenState.Address] = token.Restore(tokenState, sink)
	}
	return s
}
