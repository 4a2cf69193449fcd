package reconcile

import "errors"

// Verb is the single operation chosen for one entity per pass.
type Verb int

const (
	VerbNone Verb = iota
	VerbCreate
	VerbUpdate
	VerbDelete
)

func (v Verb) String() string {
	switch v {
	case VerbCreate:
		return "create"
	case VerbUpdate:
		return "update"
	case VerbDelete:
		return "delete"
	default:
		return "none"
	}
}

// Intent is the user-configured reconciliation policy.
type Intent struct {
	// AutoRegister creates missing entities without asking.
	AutoRegister bool
	// AutoDelete removes diverging entities without asking.
	AutoDelete bool
	// ShowOnly reports what would happen and never mutates the registry.
	ShowOnly bool
	// Revalidate re-checks entities that already carry a usable
	// identifier instead of trusting it.
	Revalidate bool
}

// ConfirmFunc asks the user a single yes/no question. It keeps the verb
// policy pure and testable independent of any interactive surface.
type ConfirmFunc func(prompt string) bool

// ErrAborted reports that the user declined every offered action. No
// remote mutation was performed for the entity.
var ErrAborted = errors.New("reconcile: aborted by user")

// ResolveVerb turns a search outcome plus user intent into exactly one
// verb. Each branch that consults the user asks once and never re-asks.
func ResolveVerb(found bool, outcome Outcome, intent Intent, confirm ConfirmFunc) (Verb, error) {
	if !found {
		if intent.ShowOnly {
			return VerbNone, nil
		}
		if intent.AutoRegister {
			return VerbCreate, nil
		}
		if confirm != nil && confirm("no matching registry entry found - register it?") {
			return VerbCreate, nil
		}
		return VerbNone, ErrAborted
	}

	if outcome == OutcomeMatch {
		return VerbNone, nil
	}
	if intent.ShowOnly {
		return VerbNone, nil
	}
	if intent.AutoDelete {
		return VerbDelete, nil
	}
	if confirm != nil {
		if confirm("local definition differs from registry entry - update the registry?") {
			return VerbUpdate, nil
		}
		if confirm("delete the registry entry instead?") {
			return VerbDelete, nil
		}
	}
	return VerbNone, ErrAborted
}
