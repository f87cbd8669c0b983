package ring

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Lava is the ring of volcanoes. Per the Design Notes ("cyclic graphs"),
// it is modeled as an arena — a slice of volcanoes sorted by StartKey —
// rather than a graph of prev/next pointers, so that "clone, install,
// discard" is a slice swap rather than pointer surgery. Next/prev are
// derived from slice position with wraparound.
type Lava struct {
	mu    sync.RWMutex
	nodes []*Volcano
}

// NewLava returns an empty ring.
func NewLava() *Lava {
	return &Lava{}
}

// NewBootstrapLava returns a ring containing a single volcano owning the
// whole key space [MinKey, MaxKey], per spec.md §4.9 Bootstrap.
func NewBootstrapLava(self *Volcano) *Lava {
	self.StartKey = MinKey
	self.StopKey = MaxKey
	return &Lava{nodes: []*Volcano{self}}
}

// Participants returns the number of volcanoes currently in the ring.
func (l *Lava) Participants() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.nodes)
}

// First returns the volcano with the lowest StartKey, or nil if the ring
// is empty.
func (l *Lava) First() *Volcano {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.nodes) == 0 {
		return nil
	}
	return l.nodes[0]
}

// Last returns the volcano with the highest StartKey, or nil if empty.
func (l *Lava) Last() *Volcano {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.nodes) == 0 {
		return nil
	}
	return l.nodes[len(l.nodes)-1]
}

// Next returns the sibling with the immediately higher StartKey,
// wrapping to First when v is Last.
func (l *Lava) Next(v *Volcano) *Volcano {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexOf(v)
	if idx < 0 || len(l.nodes) == 0 {
		return nil
	}
	return l.nodes[(idx+1)%len(l.nodes)]
}

// Prev returns the sibling with the immediately lower StartKey,
// wrapping to Last when v is First.
func (l *Lava) Prev(v *Volcano) *Volcano {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexOf(v)
	if idx < 0 || len(l.nodes) == 0 {
		return nil
	}
	return l.nodes[(idx-1+len(l.nodes))%len(l.nodes)]
}

// indexOf must be called with at least a read lock held.
func (l *Lava) indexOf(v *Volcano) int {
	for i, n := range l.nodes {
		if n == v || n.Equal(v) {
			return i
		}
	}
	return -1
}

// ByNickname returns the volcano with the given nickname, or nil.
func (l *Lava) ByNickname(nickname string) *Volcano {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, n := range l.nodes {
		if n.Nickname == nickname {
			return n
		}
	}
	return nil
}

// All returns a snapshot slice of all volcanoes, sorted by StartKey.
func (l *Lava) All() []*Volcano {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Volcano, len(l.nodes))
	copy(out, l.nodes)
	return out
}

// HighestUsedKey returns the StopKey of the last node, i.e. the highest
// key currently assigned to any volcano's interval.
func (l *Lava) HighestUsedKey() Key {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.nodes) == 0 {
		return MinKey
	}
	return l.nodes[len(l.nodes)-1].StopKey
}

// NodeExists reports a collision per vulcano.h's magma_node_exists:
// a nickname, a non-empty FQDN, or an (ip, port) pair already present in
// the ring.
func (l *Lava) NodeExists(candidate *Volcano) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, n := range l.nodes {
		if n.Nickname == candidate.Nickname {
			return true
		}
		if n.FQDN != "" && n.FQDN == candidate.FQDN {
			return true
		}
		if n.IPAddr == candidate.IPAddr && n.Port == candidate.Port {
			return true
		}
	}
	return false
}

// CheckPartition verifies the ring partition invariant: intervals are
// pairwise disjoint and their union is [MinKey, MaxKey].
func (l *Lava) CheckPartition() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.nodes) == 0 {
		return errors.New("empty ring has no partition")
	}
	if l.nodes[0].StartKey != MinKey {
		return errors.Errorf("first node does not start at %s", MinKey)
	}
	if l.nodes[len(l.nodes)-1].StopKey != MaxKey {
		return errors.Errorf("last node does not stop at %s", MaxKey)
	}
	for i := 1; i < len(l.nodes); i++ {
		prevStop := l.nodes[i-1].StopKey
		wantStart, ok := prevStop.Inc()
		if !ok {
			return errors.Errorf("node %d stop key has no successor", i-1)
		}
		if l.nodes[i].StartKey != wantStart {
			return errors.Errorf("gap or overlap between node %d and %d", i-1, i)
		}
	}
	return nil
}

// Clone returns an independent copy of the ring's volcano list (deep
// copies of each Volcano record, same backing identity check via
// Equal). Used by membership operations to build a replacement topology
// without mutating the live ring.
func (l *Lava) Clone() *Lava {
	l.mu.RLock()
	defer l.mu.RUnlock()
	nodes := make([]*Volcano, len(l.nodes))
	for i, n := range l.nodes {
		nodes[i] = n.Clone()
	}
	return &Lava{nodes: nodes}
}

// InsertSorted inserts v into the clone's node list in StartKey order.
// Used while building a replacement ring before installation.
func (l *Lava) InsertSorted(v *Volcano) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := sort.Search(len(l.nodes), func(i int) bool {
		return l.nodes[i].StartKey.Compare(v.StartKey) >= 0
	})
	l.nodes = slices.Insert(l.nodes, idx, v)
}

// Remove deletes the volcano matching nickname from the clone's node
// list.
func (l *Lava) Remove(nickname string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes = slices.DeleteFunc(l.nodes, func(n *Volcano) bool {
		return n.Nickname == nickname
	})
}

// InstallFrom atomically replaces l's node list with other's, under l's
// write lock. This is the "install" step of clone/install/discard: the
// caller builds `other` (typically via Clone + InsertSorted/Remove),
// then swaps it in here; the old slice is left for the garbage
// collector once its last reference drops.
func (l *Lava) InstallFrom(other *Lava) {
	other.mu.RLock()
	nodes := make([]*Volcano, len(other.nodes))
	copy(nodes, other.nodes)
	other.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes = nodes
}
