package services

// Outcome is the tri-state result of a per-entity synchronization.
// A degraded sync did not crash: the remote error was recorded on the
// entity and saved. Callers must not treat it as a full success.
type Outcome int

const (
	// OutcomeOK means the entity synced and saved cleanly.
	OutcomeOK Outcome = iota
	// OutcomeDegraded means a remote error occurred and was recorded
	// in the entity's sync-error field; the record itself saved.
	OutcomeDegraded
	// OutcomeFailed means the entity could not be saved.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}
