package dao

import (
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// Session bundles the provider, identity and contracts the engine acts with.
// A Session is never modified; an account or network change produces a new
// one which replaces the old one in the SessionStore.
type Session struct {
	ChainID *big.Int
	Account common.Address

	EVM      EVMRequester
	Governor GovernorContract
	Box      BoxContract

	// StartBlock is the lowest block discovery scans from
	StartBlock uint64
}

// HasSigner reports whether the session can submit writes
func (s *Session) HasSigner() bool {
	return s.Account != (common.Address{})
}

// SameIdentity reports whether both sessions act as the same account on the
// same chain
func (s *Session) SameIdentity(o *Session) bool {
	if s == nil || o == nil {
		return s == o
	}

	return s.Account == o.Account && s.ChainID.Cmp(o.ChainID) == 0
}

// versioned pairs a session with the generation it was stored under so both
// are read in one load
type versioned struct {
	sess *Session
	gen  uint64
}

type SessionStore struct {
	mu      sync.Mutex
	current atomic.Pointer[versioned]
}

func NewSessionStore(s *Session) *SessionStore {
	st := &SessionStore{}
	st.current.Store(&versioned{})
	if s != nil {
		st.Replace(s)
	}

	return st
}

// Load returns the current session, nil while the engine is idle
func (st *SessionStore) Load() *Session {
	return st.current.Load().sess
}

// LoadWithGeneration returns the current session together with the
// generation it was stored under
func (st *SessionStore) LoadWithGeneration() (*Session, uint64) {
	v := st.current.Load()
	return v.sess, v.gen
}

// Replace swaps the whole session and returns its generation
func (st *SessionStore) Replace(s *Session) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	gen := st.current.Load().gen + 1
	st.current.Store(&versioned{sess: s, gen: gen})

	return gen
}

// Clear makes the engine idle, e.g. after a switch to an unsupported chain
func (st *SessionStore) Clear() uint64 {
	return st.Replace(nil)
}

func (st *SessionStore) Generation() uint64 {
	return st.current.Load().gen
}
