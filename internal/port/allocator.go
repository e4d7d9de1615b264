package port

import (
	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/model"
)

// BindChecker is the availability oracle the Allocator consults. *Scanner
// satisfies it; tests substitute a fixed set of busy ports.
type BindChecker interface {
	CanBind(port int) (bool, error)
}

// Allocator resolves each service's runtime port from its candidate list.
//
// Given a fixed availability oracle the result is a deterministic function
// of input order: the first eligible candidate wins.
type Allocator struct {
	checker BindChecker
	logger *log.Logger
}

// NewAllocator creates an Allocator backed by checker. A nil logger
// discards output.
func NewAllocator(checker BindChecker, logger *log.Logger) *Allocator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Allocator{checker: checker, logger: logger}
}

// Resolve returns the first available port among preferred followed by
// fallbacks. The fallbacks are not consulted at all when preferred is
// free. The boolean is false when every candidate is busy; that outcome is
// not an error.
func (a *Allocator) Resolve(preferred int, fallbacks []int) (int, bool) {
	return a.resolve(model.PortCandidates{Preferred: preferred, Fallbacks: fallbacks}, nil)
}

// ResolveAll runs the allocation pass for a whole session, in service
// declaration order. Services without a preferred port are skipped. A port
// handed to an earlier service is not offered to a later one, since both
// would check it as free before either child binds it.
func (a *Allocator) ResolveAll(services []model.ServiceDescriptor, fallbacks map[string][]int) []model.ResolvedPort {
	claimed := make(map[int]bool)
	resolved := make([]model.ResolvedPort, 0, len(services))

	for _, svc := range services {
		if !svc.HasPort() {
			continue
		}

		candidates := model.PortCandidates{Preferred: svc.Port, Fallbacks: fallbacks[svc.Key]}
		chosen, ok := a.resolve(candidates, claimed)

		rp := model.ResolvedPort{Service: svc.Key, Preferred: svc.Port}
		if ok {
			rp.Port = chosen
			claimed[chosen] = true
		}
		resolved = append(resolved, rp)
	}

	return resolved
}

func (a *Allocator) resolve(candidates model.PortCandidates, claimed map[int]bool) (int, bool) {
	for _, p := range candidates.All() {
		if claimed[p] {
			a.logger.Debug("port already chosen for another service", "port", p)
			continue
		}
		ok, err := a.checker.CanBind(p)
		if err != nil {
			a.logger.Debug("skipping candidate", "port", p, "err", err)
			continue
		}
		if ok {
			return p, true
		}
	}
	return 0, false
}
