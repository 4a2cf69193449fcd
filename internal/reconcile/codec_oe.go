package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/registry"
)

// OECollection holds operational environments.
const OECollection = "oes"

// DependencyFetcher resolves a dependency reference URL to its document.
type DependencyFetcher interface {
	GetByURL(ctx context.Context, ref string) (registry.Document, error)
}

// OperationalEnv reconciles the composite OE entity. Its children must be
// resolved or determined absent before Build or a search runs.
type OperationalEnv struct {
	OE   *definition.OperationalEnv
	Deps DependencyFetcher
}

func NewOperationalEnv(oe *definition.OperationalEnv, deps DependencyFetcher) *OperationalEnv {
	return &OperationalEnv{OE: oe, Deps: deps}
}

func (o *OperationalEnv) Collection() string { return OECollection }

func (o *OperationalEnv) Describe() string {
	return "operational environment " + o.OE.CompositeName()
}

func (o *OperationalEnv) SearchFilter() string {
	return registry.SearchFilter(o.OE.CompositeName())
}

func dependencyURL(rid id.ID) string {
	return fmt.Sprintf("/%s/%d", DependenciesCollection, rid.Strip())
}

// Build embeds each child as a reference URL once it has a usable
// identifier, and as a full document otherwise.
func (o *OperationalEnv) Build() (registry.Document, bool) {
	var depURLs []any
	var embedded []any

	if o.OE.ProcessorID.Usable() {
		depURLs = append(depURLs, dependencyURL(o.OE.ProcessorID))
	} else if o.OE.HasProcessor() {
		if doc, ok := NewProcessorDependency(o.OE).Build(); ok {
			embedded = append(embedded, map[string]any(doc))
		}
	}

	if o.OE.SoftwareID != 0 && !o.OE.HasSoftware() {
		// A recorded software dependency with a null environment name is
		// an inconsistent declaration; the environment name wins and the
		// stale identifier is left untouched.
		log.Warn().Msg("software dependency id recorded but no environment name declared; " +
			"not reporting a software dependency")
	}

	switch {
	case o.OE.HasSoftware() && o.OE.SoftwareID.Usable():
		depURLs = append(depURLs, dependencyURL(o.OE.SoftwareID))
	case o.OE.HasSoftware():
		if doc, ok := NewSoftwareDependency(o.OE).Build(); ok {
			embedded = append(embedded, map[string]any(doc))
		}
	}

	doc := registry.Document{"name": o.OE.CompositeName()}
	if len(depURLs) > 0 {
		doc["dependencyUrls"] = depURLs
	}
	if len(embedded) > 0 {
		doc["dependencies"] = embedded
	}
	if len(depURLs) == 0 && len(embedded) == 0 {
		log.Warn().Str("oe", o.OE.CompositeName()).Msg("no dependencies found for OE")
	}
	return doc, true
}

func (o *OperationalEnv) Match(ctx context.Context, doc registry.Document) (Outcome, error) {
	outcome, err := matchString(doc, "name", o.OE.CompositeName())
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}

	if outcome, err = o.matchEmbedded(ctx, doc); err != nil || outcome != OutcomeMatch {
		return outcome, err
	}
	if outcome, err = o.matchReferenced(ctx, doc); err != nil || outcome != OutcomeMatch {
		return outcome, err
	}

	if err := adoptSelfID(doc, func(rid id.ID) { o.OE.ID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	return OutcomeMatch, nil
}

// matchEmbedded checks the fully exploded dependency documents, when the
// registry returned any.
func (o *OperationalEnv) matchEmbedded(ctx context.Context, doc registry.Document) (Outcome, error) {
	if !doc.Has("dependencies") {
		return OutcomeMatch, nil
	}
	elements, err := doc.Array("dependencies")
	if err != nil {
		return OutcomeMismatch, err
	}
	for _, element := range elements {
		obj, ok := element.(map[string]any)
		if !ok {
			return OutcomeMismatch, &registry.SchemaError{Field: "dependencies"}
		}
		outcome, err := o.matchDependency(ctx, registry.Document(obj))
		if err != nil || outcome != OutcomeMatch {
			return outcome, err
		}
	}
	return OutcomeMatch, nil
}

// matchReferenced downloads each dependency URL and checks it, when the
// registry returned references instead of documents.
func (o *OperationalEnv) matchReferenced(ctx context.Context, doc registry.Document) (Outcome, error) {
	if !doc.Has("dependencyUrls") {
		return OutcomeMatch, nil
	}
	refs, err := doc.Array("dependencyUrls")
	if err != nil {
		return OutcomeMismatch, err
	}
	for _, element := range refs {
		ref, ok := element.(string)
		if !ok {
			return OutcomeMismatch, &registry.SchemaError{Field: "dependencyUrls"}
		}
		dep, err := o.Deps.GetByURL(ctx, ref)
		if err != nil {
			return OutcomeMismatch, err
		}
		outcome, err := o.matchDependency(ctx, dep)
		if err != nil || outcome != OutcomeMatch {
			return outcome, err
		}
	}
	return OutcomeMatch, nil
}

// matchDependency dispatches one remote dependency document to the
// matcher for its kind. A software dependency is only considered when an
// environment name is declared locally.
func (o *OperationalEnv) matchDependency(ctx context.Context, dep registry.Document) (Outcome, error) {
	kind, err := dep.String("type")
	if err != nil {
		return OutcomeMismatch, err
	}
	switch {
	case kind == depTypeSoftware && o.OE.HasSoftware():
		return NewSoftwareDependency(o.OE).Match(ctx, dep)
	case kind == depTypeProcessor:
		return NewProcessorDependency(o.OE).Match(ctx, dep)
	default:
		log.Debug().Str("type", kind).Msg("dependency type not applicable")
		return OutcomeMismatch, nil
	}
}

func (o *OperationalEnv) RemoteID() id.ID       { return o.OE.ID }
func (o *OperationalEnv) SetRemoteID(rid id.ID) { o.OE.ID = rid }
