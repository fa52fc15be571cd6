package route

import (
	"sort"

	"github.com/G-Research/memcload/internal/common/loaderrors"
)

// Router maps a device type onto the address of the shard that owns it. The mapping is fixed at construction.
type Router struct {
	shards map[string]string
}

func NewRouter(shards map[string]string) *Router {
	copied := make(map[string]string, len(shards))
	for devType, addr := range shards {
		copied[devType] = addr
	}
	return &Router{shards: copied}
}

// Route returns the shard address for devType, or an *loaderrors.ErrRouting if devType is unknown.
func (r *Router) Route(devType string) (string, error) {
	addr, ok := r.shards[devType]
	if !ok || addr == "" {
		return "", &loaderrors.ErrRouting{Category: devType}
	}
	return addr, nil
}

// Addresses returns the distinct shard addresses in sorted order. Several device types may share a shard.
func (r *Router) Addresses() []string {
	seen := make(map[string]bool, len(r.shards))
	addrs := make([]string, 0, len(r.shards))
	for _, addr := range r.shards {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
