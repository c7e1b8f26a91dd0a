// Package lifecycle implements the access state machine for GitHub
// users: a pure transition decision plus an explicit side-effect step
// applied by the Machine.
package lifecycle

import (
	"github.com/ogulcan/ghwarden/internal/models"
)

// Event is a state machine event.
type Event string

const (
	EventEnable   Event = "enable"
	EventRestrict Event = "restrict"
	EventDisable  Event = "disable"
	EventExclude  Event = "exclude"
)

// Inputs are the facts the transition decision depends on. Nothing
// else influences the outcome.
type Inputs struct {
	// Excluded is true when the login is on the global exclusion list.
	Excluded bool
	// AllRulesValid is true when every enabled rule passes.
	AllRulesValid bool
	// ExternalRulesValid is true when every rule required for external
	// access passes.
	ExternalRulesValid bool
	// OnExternalTeam is true when the user belongs to at least one
	// external-access team.
	OnExternalTeam bool
}

// Decide selects the transition for the current state, in priority
// order: excluded, enabled, external, disabled. It returns false when
// no transition should fire, either because the target equals the
// current state or because the required event is guarded off for
// excluded users.
func Decide(current models.AccessState, in Inputs) (Event, models.AccessState, bool) {
	var target models.AccessState
	switch {
	case in.Excluded:
		target = models.StateExcluded
	case in.AllRulesValid:
		target = models.StateEnabled
	case in.ExternalRulesValid && in.OnExternalTeam:
		target = models.StateExternal
	default:
		target = models.StateDisabled
	}

	if target == current {
		return "", "", false
	}

	event := eventFor(target)

	// Excluded users may only fire the exclude event; restrict and
	// disable are unavailable to them.
	if in.Excluded && (event == EventRestrict || event == EventDisable) {
		return "", "", false
	}

	return event, target, true
}

func eventFor(target models.AccessState) Event {
	switch target {
	case models.StateEnabled:
		return EventEnable
	case models.StateExternal:
		return EventRestrict
	case models.StateDisabled:
		return EventDisable
	case models.StateExcluded:
		return EventExclude
	}
	return ""
}
