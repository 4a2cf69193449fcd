package reconcile

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/danmuck/metasync/internal/definition"
)

// Runner reconciles whole definitions, fanning out across a bounded worker
// pool when more than one is given.
type Runner struct {
	locks *definition.LockManager
	rec   *Reconciler
	jobs  int
}

func NewRunner(locks *definition.LockManager, rec *Reconciler, jobs int) *Runner {
	if jobs < 1 {
		jobs = 1
	}
	return &Runner{locks: locks, rec: rec, jobs: jobs}
}

// Sync reconciles every definition. Definitions are independent jobs; a
// failing one does not stop the others.
func (r *Runner) Sync(ctx context.Context, defs []*definition.Definition) error {
	p := pool.New().WithMaxGoroutines(r.jobs).WithErrors().WithContext(ctx)
	for _, def := range defs {
		def := def
		p.Go(func(ctx context.Context) error {
			return r.SyncDefinition(ctx, def)
		})
	}
	return p.Wait()
}

// Poll resolves outstanding async requests for every definition and
// persists the outcomes, without running a reconciliation pass.
func (r *Runner) Poll(ctx context.Context, defs []*definition.Definition) error {
	p := pool.New().WithMaxGoroutines(r.jobs).WithErrors().WithContext(ctx)
	for _, def := range defs {
		def := def
		p.Go(func(ctx context.Context) error {
			lock, err := r.locks.Acquire(def)
			if err != nil {
				return err
			}
			pollErr := r.rec.PollDefinition(ctx, def)
			return errors.Join(pollErr, r.locks.Release(lock))
		})
	}
	return p.Wait()
}

// SyncDefinition drives one definition through a full pass: poll pending
// requests, then reconcile vendor, contact, module, the OE dependencies
// and finally the composite OE. An aborted or failed entity does not block
// its siblings, but the OE only runs once both of its dependencies are
// resolved or declared absent.
func (r *Runner) SyncDefinition(ctx context.Context, def *definition.Definition) error {
	lock, err := r.locks.Acquire(def)
	if err != nil {
		return err
	}

	var errs []error
	record := func(e Entity, err error) {
		if err == nil {
			return
		}
		if aborted(err) {
			log.Warn().Str("definition", def.Name).Str("entity", e.Describe()).
				Msg("left unresolved by user choice")
		}
		errs = append(errs, errEntity(e, err))
	}

	if err := r.rec.PollDefinition(ctx, def); err != nil {
		errs = append(errs, err)
	}

	vendor := NewVendor(&def.Vendor)
	if _, err := r.rec.ReconcileEntity(ctx, vendor); err != nil {
		record(vendor, err)
	}

	person := NewPerson(&def.Contact, &def.Vendor)
	if _, err := r.rec.ReconcileEntity(ctx, person); err != nil {
		record(person, err)
	}

	module := NewModule(&def.Module, &def.Vendor, &def.Contact)
	if _, err := r.rec.ReconcileEntity(ctx, module); err != nil {
		record(module, err)
	}

	depsReady := r.syncDependencies(ctx, def, record)

	// A report-only pass never mutates, so the OE is inspected even with
	// unresolved dependencies.
	if depsReady || r.rec.intent.ShowOnly {
		oe := NewOperationalEnv(&def.OE, r.rec.Client())
		if _, err := r.rec.ReconcileEntity(ctx, oe); err != nil {
			record(oe, err)
		}
	} else {
		log.Info().Str("definition", def.Name).
			Msg("OE dependencies unresolved; deferring OE reconciliation")
	}

	if err := r.locks.Release(lock); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// syncDependencies reconciles the processor and software dependencies of
// the definition's OE. It reports whether every declared dependency ended
// up resolved, which gates the composite OE pass.
func (r *Runner) syncDependencies(ctx context.Context, def *definition.Definition, record func(Entity, error)) bool {
	ready := true

	if def.OE.HasProcessor() {
		proc := NewProcessorDependency(&def.OE)
		res, err := r.rec.ReconcileEntity(ctx, proc)
		if err != nil {
			record(proc, err)
		}
		// An async create ends the pass but the identifier is still a
		// pending marker; the OE must wait for the approved id.
		if !def.OE.ProcessorID.Usable() {
			ready = false
		}
		if res.Verb == VerbUpdate || res.Verb == VerbDelete {
			// Renaming a processor is a two-step operation on the registry
			// side: the old entry is retired and the new one approved on a
			// later pass.
			log.Info().Str("definition", def.Name).
				Msg("processor change submitted; re-run once the registry approves it")
		}
	}

	if def.OE.SoftwareID != 0 && !def.OE.HasSoftware() {
		log.Warn().Str("definition", def.Name).
			Msg("software dependency id recorded but no environment name declared; skipping")
	}
	if def.OE.HasSoftware() {
		sw := NewSoftwareDependency(&def.OE)
		if _, err := r.rec.ReconcileEntity(ctx, sw); err != nil {
			record(sw, err)
		}
		if !def.OE.SoftwareID.Usable() {
			ready = false
		}
	}

	return ready
}
