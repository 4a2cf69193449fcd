// Package definition holds the locally declared entities that are
// reconciled against the validation registry: vendor, contact, module and
// the operational environment with its dependencies. It also owns the
// durable identifier store and the per-definition lock manager.
package definition

import (
	"strings"

	"github.com/danmuck/metasync/internal/id"
)

// Address is the postal address registered together with a vendor.
type Address struct {
	Street     string
	Locality   string
	Region     string
	Country    string
	PostalCode string
}

// Vendor describes the organization owning the module under test.
type Vendor struct {
	Name    string
	Website string
	Address Address

	ID        id.ID
	AddressID id.ID
}

// Contact is the person responsible for the validation request.
type Contact struct {
	FullName string
	Emails   []string
	Phones   []string

	ID id.ID
}

// Module identifies the cryptographic module under test.
type Module struct {
	Name        string
	Version     string
	Type        string
	Description string

	ID id.ID
}

// OperationalEnv aggregates the environment the module is tested on: an
// optional software environment and an optional processor, each a
// dependency entity with its own registry identifier.
type OperationalEnv struct {
	EnvName     string
	Description string
	CPE         string
	SWID        string

	Manufacturer string
	ProcFamily   string
	ProcName     string
	ProcSeries   string

	SoftwareID  id.ID
	ProcessorID id.ID
	ID          id.ID
}

// HasSoftware reports whether a software environment is declared. An empty
// environment name means the module runs without one, even when a stale
// software dependency ID is still recorded.
func (o *OperationalEnv) HasSoftware() bool {
	return o.EnvName != ""
}

// HasProcessor reports whether a processor dependency is declared.
func (o *OperationalEnv) HasProcessor() bool {
	return o.Manufacturer != "" || o.ProcFamily != "" ||
		o.ProcName != "" || o.ProcSeries != ""
}

// CompositeName assembles the unique human readable OE name the registry
// requires, without duplicating processor information already implied by
// the series string.
func (o *OperationalEnv) CompositeName() string {
	var b strings.Builder

	if o.EnvName != "" {
		b.WriteString(o.EnvName)
		if o.Manufacturer != "" || o.ProcSeries != "" || o.ProcName != "" {
			b.WriteString(" on")
		}
	}
	if o.Manufacturer != "" {
		b.WriteString(" ")
		b.WriteString(o.Manufacturer)
	}
	if o.ProcSeries != "" {
		b.WriteString(" ")
		b.WriteString(o.ProcSeries)
		if o.ProcName != "" && !strings.HasPrefix(o.ProcSeries, o.ProcName) {
			b.WriteString(" ")
			b.WriteString(o.ProcName)
		}
	} else if o.ProcName != "" {
		b.WriteString(" ")
		b.WriteString(o.ProcName)
	}

	return strings.TrimPrefix(b.String(), " ")
}

// Definition is one local declaration set loaded from a single config
// file. All identifier mutations go through the lock manager.
type Definition struct {
	Name    string
	Path    string
	IDsPath string

	Vendor  Vendor
	Contact Contact
	Module  Module
	OE      OperationalEnv
}
