package reconcile

import (
	"context"
	"fmt"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/registry"
)

// DependenciesCollection holds both software and processor dependencies,
// discriminated by a type field.
const DependenciesCollection = "dependencies"

const (
	depTypeSoftware  = "software"
	depTypeProcessor = "processor"
)

// SoftwareDependency reconciles the software environment of an OE as a
// standalone dependency entity.
type SoftwareDependency struct {
	OE *definition.OperationalEnv
}

func NewSoftwareDependency(oe *definition.OperationalEnv) *SoftwareDependency {
	return &SoftwareDependency{OE: oe}
}

func (s *SoftwareDependency) Collection() string { return DependenciesCollection }

func (s *SoftwareDependency) Describe() string {
	return "software dependency " + s.OE.EnvName
}

func (s *SoftwareDependency) SearchFilter() string {
	return registry.SearchFilter(s.OE.EnvName)
}

func (s *SoftwareDependency) description() string {
	if s.OE.Description != "" {
		return s.OE.Description
	}
	return s.OE.EnvName
}

// Build emits the canonical software dependency document. A definition
// without an environment name has nothing to submit.
func (s *SoftwareDependency) Build() (registry.Document, bool) {
	if !s.OE.HasSoftware() {
		return nil, false
	}

	doc := registry.Document{
		"type": depTypeSoftware,
		"name": s.OE.EnvName,
		"cpe":  nil,
		"swid": nil,
	}
	switch {
	case s.OE.CPE != "":
		doc["cpe"] = s.OE.CPE
	case s.OE.SWID != "":
		doc["swid"] = s.OE.SWID
	}
	doc["description"] = s.description()
	return doc, true
}

func (s *SoftwareDependency) Match(ctx context.Context, doc registry.Document) (Outcome, error) {
	checks := []func() (Outcome, error){
		stringCheck(doc, "type", depTypeSoftware),
		stringCheck(doc, "name", s.OE.EnvName),
	}
	if s.OE.CPE != "" {
		checks = append(checks, stringCheck(doc, "cpe", s.OE.CPE))
	}
	if s.OE.SWID != "" {
		checks = append(checks, stringCheck(doc, "swid", s.OE.SWID))
	}
	if s.OE.CPE == "" && s.OE.SWID == "" {
		// A tag present remotely while the local entity declares none
		// is a divergence, not an ignorable extra.
		checks = append(checks, func() (Outcome, error) {
			if doc.Has("cpe") || doc.Has("swid") {
				return OutcomeMismatch, nil
			}
			return OutcomeMatch, nil
		})
	}
	checks = append(checks, stringCheck(doc, "description", s.description()))

	outcome, err := matchAll(checks...)
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}
	if err := adoptSelfID(doc, func(rid id.ID) { s.OE.SoftwareID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	return OutcomeMatch, nil
}

func (s *SoftwareDependency) RemoteID() id.ID       { return s.OE.SoftwareID }
func (s *SoftwareDependency) SetRemoteID(rid id.ID) { s.OE.SoftwareID = rid }

// ProcessorDependency reconciles the processor of an OE as a standalone
// dependency entity.
type ProcessorDependency struct {
	OE *definition.OperationalEnv
}

func NewProcessorDependency(oe *definition.OperationalEnv) *ProcessorDependency {
	return &ProcessorDependency{OE: oe}
}

func (p *ProcessorDependency) Collection() string { return DependenciesCollection }

func (p *ProcessorDependency) Describe() string {
	return "processor dependency " + p.OE.ProcName
}

func (p *ProcessorDependency) SearchFilter() string {
	return registry.SearchFilter(p.OE.ProcName)
}

func (p *ProcessorDependency) Build() (registry.Document, bool) {
	if !p.OE.HasProcessor() {
		return nil, false
	}
	return registry.Document{
		"type":         depTypeProcessor,
		"manufacturer": p.OE.Manufacturer,
		"family":       p.OE.ProcFamily,
		"name":         p.OE.ProcName,
		"series":       p.OE.ProcSeries,
		"description": fmt.Sprintf("Processor %s (processor family %s) from %s",
			p.OE.ProcName, p.OE.ProcFamily, p.OE.Manufacturer),
	}, true
}

func (p *ProcessorDependency) Match(ctx context.Context, doc registry.Document) (Outcome, error) {
	outcome, err := matchAll(
		stringCheck(doc, "type", depTypeProcessor),
		stringCheck(doc, "manufacturer", p.OE.Manufacturer),
		stringCheck(doc, "family", p.OE.ProcFamily),
		stringCheck(doc, "name", p.OE.ProcName),
		stringCheck(doc, "series", p.OE.ProcSeries),
	)
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}
	if err := adoptSelfID(doc, func(rid id.ID) { p.OE.ProcessorID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	return OutcomeMatch, nil
}

func (p *ProcessorDependency) RemoteID() id.ID       { return p.OE.ProcessorID }
func (p *ProcessorDependency) SetRemoteID(rid id.ID) { p.OE.ProcessorID = rid }
