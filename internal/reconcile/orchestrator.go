package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/observability"
	"github.com/danmuck/metasync/internal/registry"
)

// State tracks one entity through a reconciliation pass.
type State int

const (
	StateUnresolved State = iota
	StateSearching
	StateDeciding
	StateExecuting
	StateResolved
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateDeciding:
		return "deciding"
	case StateExecuting:
		return "executing"
	case StateResolved:
		return "resolved"
	case StateAborted:
		return "aborted"
	default:
		return "unresolved"
	}
}

// Result reports how a single entity pass ended.
type Result struct {
	State State
	Verb  Verb
}

// Reconciler drives entity reconciliation against one registry client
// with one user intent.
type Reconciler struct {
	client  *registry.Client
	intent  Intent
	confirm ConfirmFunc
	log     zerolog.Logger
}

func New(client *registry.Client, intent Intent, confirm ConfirmFunc) *Reconciler {
	return &Reconciler{
		client:  client,
		intent:  intent,
		confirm: confirm,
		log:     log.With().Str("component", "reconcile").Logger(),
	}
}

// Client exposes the underlying registry client for matchers that need to
// resolve dependency references.
func (r *Reconciler) Client() *registry.Client { return r.client }

// ReconcileEntity runs the state machine for one entity: search, verb
// resolution, execution and identifier write-back. The caller must hold
// the definition lock.
func (r *Reconciler) ReconcileEntity(ctx context.Context, e Entity) (Result, error) {
	rid := e.RemoteID()

	if rid&id.Rejected != 0 {
		// A rejected registration is forgotten and renegotiated.
		r.log.Info().Str("entity", e.Describe()).Msg("previous registration rejected; starting over")
		e.SetRemoteID(0)
		rid = 0
	}
	if rid.Pending() {
		// Still awaiting async approval; the poller owns this marker.
		r.log.Info().Str("entity", e.Describe()).Msg("registration still pending; skipping")
		return Result{State: StateUnresolved}, nil
	}
	if rid.Usable() && !r.intent.Revalidate {
		return Result{State: StateResolved}, nil
	}

	r.log.Info().Str("entity", e.Describe()).Str("state", StateSearching.String()).
		Msg("searching for registry reference")
	found, outcome, err := r.search(ctx, e)
	if err != nil {
		return Result{State: StateAborted}, err
	}

	verb, err := ResolveVerb(found, outcome, r.intent, r.confirm)
	observability.RecordVerb(e.Collection(), verb.String())
	if err != nil {
		r.log.Warn().Str("entity", e.Describe()).Msg("reconciliation aborted by user")
		return Result{State: StateAborted, Verb: verb}, err
	}

	if verb == VerbNone {
		if found && outcome == OutcomeMatch {
			return Result{State: StateResolved}, nil
		}
		// Report-only run; the entity stays unresolved.
		r.log.Info().Str("entity", e.Describe()).Bool("found", found).
			Str("outcome", outcome.String()).Msg("no action taken")
		return Result{State: StateUnresolved}, nil
	}

	result, err := r.execute(ctx, e, verb)
	if err != nil {
		return result, err
	}
	r.log.Info().Str("entity", e.Describe()).Str("verb", verb.String()).
		Msg("registry operation complete")
	return result, nil
}

// search locates the remote counterpart. With a usable identifier the
// entity is fetched directly for re-validation; otherwise the collection
// is scanned page by page.
func (r *Reconciler) search(ctx context.Context, e Entity) (bool, Outcome, error) {
	if e.RemoteID().Usable() {
		doc, err := r.client.GetOne(ctx, e.Collection(), e.RemoteID())
		if err != nil {
			if registry.IsNotFound(err) {
				return false, OutcomeMismatch, nil
			}
			return false, OutcomeMismatch, err
		}
		outcome, err := e.Match(ctx, doc)
		if err != nil {
			return true, outcome, err
		}
		return true, outcome, nil
	}

	found, err := r.client.Search(ctx, e.Collection(), e.SearchFilter(),
		func(doc registry.Document) (bool, error) {
			outcome, err := e.Match(ctx, doc)
			if err != nil {
				return false, err
			}
			// A rejected candidate is not an error; keep scanning.
			return outcome == OutcomeMatch, nil
		})
	if err != nil {
		return false, OutcomeMismatch, err
	}
	if found {
		return true, OutcomeMatch, nil
	}
	return false, OutcomeMismatch, nil
}

// execute performs the resolved verb and writes the returned identifier
// back into the entity.
func (r *Reconciler) execute(ctx context.Context, e Entity, verb Verb) (Result, error) {
	result := Result{State: StateExecuting, Verb: verb}

	switch verb {
	case VerbCreate:
		doc, ok := e.Build()
		if !ok {
			// Nothing to submit; the entity is absent by declaration.
			result.State = StateResolved
			result.Verb = VerbNone
			return result, nil
		}
		rid, err := r.client.Create(ctx, e.Collection(), doc)
		if err != nil {
			result.State = StateAborted
			return result, err
		}
		e.SetRemoteID(rid)

	case VerbUpdate:
		doc, ok := e.Build()
		if !ok {
			result.State = StateResolved
			result.Verb = VerbNone
			return result, nil
		}
		rid, err := r.client.Update(ctx, e.Collection(), e.RemoteID(), doc)
		if err != nil {
			result.State = StateAborted
			return result, err
		}
		e.SetRemoteID(rid)

	case VerbDelete:
		if err := r.client.Delete(ctx, e.Collection(), e.RemoteID()); err != nil {
			result.State = StateAborted
			return result, err
		}
		e.SetRemoteID(0)

	default:
		return Result{State: StateResolved, Verb: VerbNone}, nil
	}

	result.State = StateResolved
	return result, nil
}

// errEntity decorates an entity failure without hiding the cause.
func errEntity(e Entity, err error) error {
	return fmt.Errorf("%s: %w", e.Describe(), err)
}

// aborted reports whether the pass ended through a user abort rather than
// a failure.
func aborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
