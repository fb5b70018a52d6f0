// Package health aggregates subsystem checks for a service built around
// graceful degradation. The scoring chain keeps serving when individual
// collaborators fail (no RPC means synthetic data, an open breaker means the
// next tier), so subsystem failure has two grades: a degraded service is
// still serving, a down service is not.
package health

import (
	"context"
	"sync"
)

// State is the health grade of a subsystem or of the service as a whole.
type State string

const (
	// StateOK means the subsystem is fully operational.
	StateOK State = "ok"
	// StateDegraded means the subsystem is impaired but a fallback covers
	// for it, e.g. the chain RPC is unreachable and assessments run on
	// synthetic data.
	StateDegraded State = "degraded"
	// StateDown means the subsystem is failed with nothing covering for it.
	StateDown State = "down"
)

// worse reports whether a ranks below b.
func worse(a, b State) bool {
	rank := map[State]int{StateOK: 0, StateDegraded: 1, StateDown: 2}
	return rank[a] > rank[b]
}

// Status is the result of one subsystem check.
type Status struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// OK builds a passing status.
func OK(name string) Status {
	return Status{Name: name, State: StateOK}
}

// Degraded builds an impaired-but-covered status.
func Degraded(name, detail string) Status {
	return Status{Name: name, State: StateDegraded, Detail: detail}
}

// Down builds a failed status.
func Down(name, detail string) Status {
	return Status{Name: name, State: StateDown, Detail: detail}
}

// Checker checks one subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named subsystem checkers and aggregates their results.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name     string
	optional bool
	check    Checker
}

// NewRegistry creates an empty registry. An empty registry reports StateOK.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a required checker. A Down result from it takes the whole
// service down.
func (r *Registry) Register(name string, check Checker) {
	r.add(name, false, check)
}

// RegisterOptional adds a checker for a subsystem the scoring chain can work
// around. Its Down results are capped at StateDegraded in the aggregate, so
// a dead RPC or an open remote breaker never fails readiness on its own.
func (r *Registry) RegisterOptional(name string, check Checker) {
	r.add(name, true, check)
}

func (r *Registry) add(name string, optional bool, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, optional: optional, check: check})
	r.mu.Unlock()
}

// CheckAll runs every checker and returns the aggregate service state plus
// the individual results, in registration order.
func (r *Registry) CheckAll(ctx context.Context) (State, []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	aggregate := StateOK
	statuses := make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)

		contribution := statuses[i].State
		if nc.optional && contribution == StateDown {
			contribution = StateDegraded
		}
		if worse(contribution, aggregate) {
			aggregate = contribution
		}
	}

	return aggregate, statuses
}
