package automation

import (
	"sync"

	"github.com/citizenwallet/boxdao/pkg/dao"
)

// TrackedSet maps proposal ids to their latest snapshot. Entries are added
// on discovery and replaced on every refresh, never merged or removed. The
// set belongs to one session generation and is emptied when it changes.
type TrackedSet struct {
	mu sync.RWMutex

	gen       uint64
	order     []string
	records   map[string]*dao.ProposalRecord
	snapshots map[string]dao.ProposalSnapshot
}

func NewTrackedSet() *TrackedSet {
	return &TrackedSet{
		records:   map[string]*dao.ProposalRecord{},
		snapshots: map[string]dao.ProposalSnapshot{},
	}
}

// Track adds the records not tracked yet and returns how many were new. A
// different generation empties the set first.
func (t *TrackedSet) Track(gen uint64, records []*dao.ProposalRecord) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		t.gen = gen
		t.order = nil
		t.records = map[string]*dao.ProposalRecord{}
		t.snapshots = map[string]dao.ProposalSnapshot{}
	}

	added := 0
	for _, r := range records {
		k := r.Key()
		if _, ok := t.records[k]; ok {
			continue
		}

		t.records[k] = r
		t.order = append(t.order, k)
		added++
	}

	return added
}

// Replace stores snap as the latest view of its proposal. Snapshots of an
// older generation or of untracked proposals are discarded.
func (t *TrackedSet) Replace(gen uint64, snap dao.ProposalSnapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return false
	}

	k := snap.Record.Key()
	if _, ok := t.records[k]; !ok {
		return false
	}

	t.snapshots[k] = snap
	return true
}

// Records returns the tracked records in discovery order
func (t *TrackedSet) Records() []*dao.ProposalRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rs := make([]*dao.ProposalRecord, 0, len(t.order))
	for _, k := range t.order {
		rs = append(rs, t.records[k])
	}

	return rs
}

// Snapshots returns the resolved snapshots, newest proposal first
func (t *TrackedSet) Snapshots() []dao.ProposalSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snaps := make([]dao.ProposalSnapshot, 0, len(t.snapshots))
	for i := len(t.order) - 1; i >= 0; i-- {
		if s, ok := t.snapshots[t.order[i]]; ok {
			snaps = append(snaps, s)
		}
	}

	return snaps
}

func (t *TrackedSet) Get(key string) (dao.ProposalSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.snapshots[key]
	return s, ok
}

func (t *TrackedSet) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.order)
}
