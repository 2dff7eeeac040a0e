package task

// Readiness describes a task's position in the dependency graph.
type Readiness struct {
	Task       *Task    `json:"task"`
	Blockers   []*Task  `json:"blockers,omitempty"`   // resolved BlockedBy entries
	Dependents []*Task  `json:"dependents,omitempty"` // tasks whose BlockedBy names this one
	Unresolved []string `json:"unresolved,omitempty"` // BlockedBy ids with no matching task
	Ready      bool     `json:"ready"`
}

// ComputeReadiness derives, for every task in the collection, its resolved
// blockers, resolved dependents, and whether it is eligible to run.
//
// A task is ready iff it is pending and every BlockedBy id that resolves to
// a task in the collection has completed. Ids that resolve to nothing are
// reported in Unresolved and do not block; callers that want stricter
// semantics can treat a non-empty Unresolved list as a hold.
//
// The input is never mutated and nothing is cached between calls.
func ComputeReadiness(tasks []*Task) []Readiness {
	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	// Dependents are derived from BlockedBy, not from the Blocks field,
	// which is maintained by callers and not guaranteed symmetric.
	dependents := make(map[string][]*Task)
	for _, t := range tasks {
		for _, dep := range t.BlockedBy {
			if _, ok := byID[dep]; ok {
				dependents[dep] = append(dependents[dep], t)
			}
		}
	}

	out := make([]Readiness, 0, len(tasks))
	for _, t := range tasks {
		r := Readiness{Task: t, Dependents: dependents[t.ID]}
		for _, dep := range t.BlockedBy {
			blocker, ok := byID[dep]
			if !ok {
				r.Unresolved = append(r.Unresolved, dep)
				continue
			}
			r.Blockers = append(r.Blockers, blocker)
		}

		r.Ready = t.Status == StatusPending
		for _, b := range r.Blockers {
			if b.Status != StatusCompleted {
				r.Ready = false
				break
			}
		}
		out = append(out, r)
	}
	return out
}

// ReadinessFor computes readiness for a single task id within the
// collection. Returns a zero Readiness with Ready=false when the id is
// not present.
func ReadinessFor(tasks []*Task, id string) Readiness {
	for _, r := range ComputeReadiness(tasks) {
		if r.Task.ID == id {
			return r
		}
	}
	return Readiness{}
}
