package account

import (
	"sync"
	"time"

	"github.com/harun/voxrelay/pkg/protocol"
)

// Record is the session bookkeeping for one account. Invariants:
// PendingCodeHash is set exactly in CodeSent and PasswordRequired; Client is
// non-nil in every state except NoClient (a NoClient record is simply absent
// from the store).
type Record struct {
	AccountID       string
	State           State
	Client          protocol.Client
	PendingCodeHash string
	CodeSentAt      time.Time

	subscribed bool
	cancelSub  func()
}

// Store is the process-wide account session repository. Mutations happen
// under a per-account lock acquired through Lock, so concurrent operations
// on the same account serialize while distinct accounts proceed in parallel.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-account lock and returns the unlock function
func (s *Store) Lock(accountID string) func() {
	s.mu.Lock()
	lock, exists := s.locks[accountID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the record for an account, if one exists
func (s *Store) Get(accountID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[accountID]
	return rec, ok
}

// Put stores or replaces the record for an account
func (s *Store) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.AccountID] = rec
}

// Delete removes the record for an account
func (s *Store) Delete(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, accountID)
}

// List returns a snapshot of all records
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of live account records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
