package models

// AccessState describes a GitHub user's position in the access lifecycle.
//
//   - unknown:  user has not yet been evaluated
//   - enabled:  user meets all rules and can be a member of any team
//   - external: user only meets external rules and can only be a member
//     of external teams
//   - disabled: user fails one or more rules and should not be a member
//     of our organizations
//   - excluded: user is excluded from rules matching
type AccessState string

const (
	StateUnknown  AccessState = "unknown"
	StateEnabled  AccessState = "enabled"
	StateExternal AccessState = "external"
	StateDisabled AccessState = "disabled"
	StateExcluded AccessState = "excluded"
)

// Valid reports whether s is one of the defined access states.
func (s AccessState) Valid() bool {
	switch s {
	case StateUnknown, StateEnabled, StateExternal, StateDisabled, StateExcluded:
		return true
	}
	return false
}
