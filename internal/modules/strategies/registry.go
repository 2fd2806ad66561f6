package strategies

import (
	"sort"
	"sync"

	"github.com/aristath/treasury/internal/domain"
)

// Registry maps addresses to deployed strategy modules
type Registry struct {
	mu         sync.RWMutex
	strategies map[domain.Address]domain.Strategy
}

// NewRegistry creates an empty strategy registry
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[domain.Address]domain.Strategy)}
}

// Deploy makes s resolvable at its address, replacing any previous module there
func (r *Registry) Deploy(s domain.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Address()] = s
}

// Resolve returns the module deployed at addr
func (r *Registry) Resolve(addr domain.Address) (domain.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[addr]
	return s, ok
}

// Deployed returns the addresses of every deployed module, sorted
func (r *Registry) Deployed() []domain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.Address, 0, len(r.strategies))
	for addr := range r.strategies {
		result = append(result, addr)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
