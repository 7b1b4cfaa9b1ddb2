package pipeline

// State is one stage of a Pipeline run's lifecycle (spec §4.G).
type State string

const (
	StateInit      State = "init"
	StateValidated State = "validated"
	StatePlanned   State = "planned"
	StateRunning   State = "running"
	StateAborting  State = "aborting"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// transition moves the Pipeline to next, recording it as the current state.
// Callers drive the sequence themselves; this just keeps the field and any
// future observers (telemetry, tests) honest about the legal shape:
// init -> validated -> planned -> running -> [aborting] -> completed
//                                         \-> cancelled
func (p *Pipeline) transition(next State) {
	p.state = next
}

// CurrentState reports the Pipeline's lifecycle stage. Safe to call only
// from the goroutine driving Run/DryRun — the state machine is owned by
// the single coordinator, per spec §5's "Pipeline accumulator: only
// mutated by the Pipeline coordinator" discipline.
func (p *Pipeline) CurrentState() State {
	return p.state
}
