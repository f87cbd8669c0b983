package ring

import "github.com/pkg/errors"

// Route returns the unique volcano whose interval contains hash(path),
// per spec.md §4.2. Although the source describes a recursive prev/next
// walk from an arbitrary starting node, Lava's arena representation
// makes a direct binary search over the sorted node list equivalent and
// O(log n); both return the same unique owner under the ring partition
// invariant.
func Route(l *Lava, path string) (*Volcano, error) {
	key := HashPath(path)
	return RouteKey(l, key)
}

// RouteKey is Route for an already-computed key.
func RouteKey(l *Lava, key Key) (*Volcano, error) {
	nodes := l.All()
	if len(nodes) == 0 {
		return nil, errors.New("route: empty ring")
	}

	lo, hi := 0, len(nodes)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		n := nodes[mid]
		switch {
		case key.Compare(n.StartKey) < 0:
			hi = mid - 1
		case key.Compare(n.StopKey) > 0:
			lo = mid + 1
		default:
			return n, nil
		}
	}
	return nil, errors.Errorf("route: no owner found for key %s", key)
}

// RedundantOwner returns owner.next, wrapping to the ring's first node,
// per spec.md §4.2 and §4.6.
func RedundantOwner(l *Lava, owner *Volcano) *Volcano {
	return l.Next(owner)
}
