// Package reconcile aligns local definition entities with the validation
// registry: it builds canonical wire documents, matches remote documents
// field by field, resolves the verb to execute and orchestrates the
// per-definition reconciliation passes.
package reconcile

import (
	"context"
	"errors"

	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/registry"
)

// Outcome is the result of matching a remote document against a local
// entity.
type Outcome int

const (
	OutcomeMatch Outcome = iota
	OutcomeMismatch
	OutcomeMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Entity adapts one local declaration to the reconciliation engine. The
// matcher is the only place an identifier transitions from unset to
// usable; builders never touch identifiers.
type Entity interface {
	Collection() string
	Describe() string
	SearchFilter() string

	// Build returns the canonical wire document. ok is false when the
	// local declaration is absent and there is nothing to submit.
	Build() (doc registry.Document, ok bool)

	// Match compares doc against the local declaration, short-circuiting
	// on the first divergence. On OutcomeMatch it extracts the remote
	// identifier from the document's url and stores it.
	Match(ctx context.Context, doc registry.Document) (Outcome, error)

	RemoteID() id.ID
	SetRemoteID(id.ID)
}

// matchString compares one remote string field against the local value.
// Comparison is exact; the canonical build already encodes any
// normalization.
func matchString(doc registry.Document, key, want string) (Outcome, error) {
	got, err := doc.String(key)
	if err != nil {
		var schema *registry.SchemaError
		if errors.As(err, &schema) {
			return OutcomeMissing, nil
		}
		return OutcomeMismatch, err
	}
	if got != want {
		return OutcomeMismatch, nil
	}
	return OutcomeMatch, nil
}

// matchAll runs field comparisons in order and stops at the first
// non-match.
func matchAll(checks ...func() (Outcome, error)) (Outcome, error) {
	for _, check := range checks {
		outcome, err := check()
		if err != nil {
			return outcome, err
		}
		if outcome != OutcomeMatch {
			return outcome, nil
		}
	}
	return OutcomeMatch, nil
}

func stringCheck(doc registry.Document, key, want string) func() (Outcome, error) {
	return func() (Outcome, error) {
		return matchString(doc, key, want)
	}
}

// adoptSelfID stores the identifier from the document's self url, when
// present. Embedded documents carry no url and leave the identifier
// untouched.
func adoptSelfID(doc registry.Document, set func(id.ID)) error {
	if !doc.Has("url") {
		return nil
	}
	rid, err := doc.SelfID()
	if err != nil {
		return err
	}
	set(rid)
	return nil
}
