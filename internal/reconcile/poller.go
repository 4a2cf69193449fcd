package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/observability"
	"github.com/danmuck/metasync/internal/registry"
)

// idSlot is one identifier position inside a definition that may carry a
// pending request marker.
type idSlot struct {
	name string
	rid  *id.ID
}

func definitionSlots(def *definition.Definition) []idSlot {
	return []idSlot{
		{"vendor", &def.Vendor.ID},
		{"address", &def.Vendor.AddressID},
		{"person", &def.Contact.ID},
		{"module", &def.Module.ID},
		{"oe", &def.OE.ID},
		{"oe_software", &def.OE.SoftwareID},
		{"oe_processor", &def.OE.ProcessorID},
	}
}

// PollDefinition resolves outstanding async registration requests for one
// definition. Approved requests are rewritten to their final identifier,
// rejected requests are marked so the next pass renegotiates them, and
// requests still in flight are left untouched. The caller must hold the
// definition lock.
func (r *Reconciler) PollDefinition(ctx context.Context, def *definition.Definition) error {
	var errs []error
	pending := 0

	for _, slot := range definitionSlots(def) {
		rid := *slot.rid
		if rid&(id.PendingSubmission|id.PendingProcessing) == 0 {
			continue
		}

		outcome, err := r.client.RequestStatus(ctx, rid)
		if err != nil {
			pending++
			errs = append(errs, fmt.Errorf("poll %s request %d: %w",
				slot.name, rid.Strip(), err))
			continue
		}

		switch outcome.Status {
		case registry.RequestApproved:
			r.log.Info().Str("slot", slot.name).Uint32("id", uint32(outcome.ApprovedID)).
				Msg("registration request approved")
			*slot.rid = outcome.ApprovedID
		case registry.RequestRejected:
			r.log.Warn().Str("slot", slot.name).Uint32("request", uint32(rid.Strip())).
				Msg("registration request rejected")
			*slot.rid = rid.Strip() | id.Rejected
		case registry.RequestInitial, registry.RequestProcessing:
			pending++
			r.log.Debug().Str("slot", slot.name).Str("status", outcome.Status).
				Msg("registration request still in flight")
		default:
			pending++
			errs = append(errs, fmt.Errorf("poll %s request %d: unknown status %q",
				slot.name, rid.Strip(), outcome.Status))
		}
	}

	observability.SetPendingRequests(def.Name, pending)
	return errors.Join(errs...)
}
