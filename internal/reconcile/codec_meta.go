package reconcile

import (
	"context"
	"fmt"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/registry"
)

// Collections for the remaining definition entities. They follow the same
// reconciliation pattern as dependencies and OEs.
const (
	VendorsCollection = "vendors"
	PersonsCollection = "persons"
	ModulesCollection = "modules"
)

// Vendor reconciles the vendor organization together with its embedded
// postal address.
type Vendor struct {
	Vendor *definition.Vendor
}

func NewVendor(v *definition.Vendor) *Vendor {
	return &Vendor{Vendor: v}
}

func (v *Vendor) Collection() string   { return VendorsCollection }
func (v *Vendor) Describe() string     { return "vendor " + v.Vendor.Name }
func (v *Vendor) SearchFilter() string { return registry.SearchFilter(v.Vendor.Name) }

func (v *Vendor) Build() (registry.Document, bool) {
	if v.Vendor.Name == "" {
		return nil, false
	}
	addr := v.Vendor.Address
	return registry.Document{
		"name":    v.Vendor.Name,
		"website": v.Vendor.Website,
		"addresses": []any{map[string]any{
			"street1":    addr.Street,
			"locality":   addr.Locality,
			"region":     addr.Region,
			"country":    addr.Country,
			"postalCode": addr.PostalCode,
		}},
	}, true
}

func (v *Vendor) Match(ctx context.Context, doc registry.Document) (Outcome, error) {
	outcome, err := matchAll(
		stringCheck(doc, "name", v.Vendor.Name),
		stringCheck(doc, "website", v.Vendor.Website),
	)
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}

	addresses, err := doc.Array("addresses")
	if err != nil {
		return OutcomeMissing, nil
	}
	if len(addresses) == 0 {
		return OutcomeMismatch, nil
	}
	first, ok := addresses[0].(map[string]any)
	if !ok {
		return OutcomeMismatch, &registry.SchemaError{Field: "addresses"}
	}
	remoteAddr := registry.Document(first)
	addr := v.Vendor.Address
	outcome, err = matchAll(
		stringCheck(remoteAddr, "street1", addr.Street),
		stringCheck(remoteAddr, "locality", addr.Locality),
		stringCheck(remoteAddr, "region", addr.Region),
		stringCheck(remoteAddr, "country", addr.Country),
		stringCheck(remoteAddr, "postalCode", addr.PostalCode),
	)
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}

	if err := adoptSelfID(remoteAddr, func(rid id.ID) { v.Vendor.AddressID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	if err := adoptSelfID(doc, func(rid id.ID) { v.Vendor.ID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	return OutcomeMatch, nil
}

func (v *Vendor) RemoteID() id.ID       { return v.Vendor.ID }
func (v *Vendor) SetRemoteID(rid id.ID) { v.Vendor.ID = rid }

// Person reconciles the contact responsible for the validation request.
// The vendor must already carry a usable identifier for the reference URL
// to be embedded.
type Person struct {
	Contact *definition.Contact
	Vendor  *definition.Vendor
}

func NewPerson(c *definition.Contact, v *definition.Vendor) *Person {
	return &Person{Contact: c, Vendor: v}
}

func (p *Person) Collection() string   { return PersonsCollection }
func (p *Person) Describe() string     { return "contact " + p.Contact.FullName }
func (p *Person) SearchFilter() string { return registry.SearchFilter(p.Contact.FullName) }

func (p *Person) Build() (registry.Document, bool) {
	if p.Contact.FullName == "" {
		return nil, false
	}
	doc := registry.Document{"fullName": p.Contact.FullName}
	if p.Vendor.ID.Usable() {
		doc["vendorUrl"] = fmt.Sprintf("/%s/%d", VendorsCollection, p.Vendor.ID.Strip())
	}
	emails := make([]any, 0, len(p.Contact.Emails))
	for _, email := range p.Contact.Emails {
		emails = append(emails, email)
	}
	doc["emails"] = emails
	phones := make([]any, 0, len(p.Contact.Phones))
	for _, phone := range p.Contact.Phones {
		phones = append(phones, map[string]any{"number": phone, "type": "voice"})
	}
	doc["phoneNumbers"] = phones
	return doc, true
}

func (p *Person) Match(ctx context.Context, doc registry.Document) (Outcome, error) {
	outcome, err := matchString(doc, "fullName", p.Contact.FullName)
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}

	emails, err := doc.Array("emails")
	if err != nil {
		if len(p.Contact.Emails) > 0 {
			return OutcomeMissing, nil
		}
	} else {
		if len(emails) != len(p.Contact.Emails) {
			return OutcomeMismatch, nil
		}
		for i, element := range emails {
			email, ok := element.(string)
			if !ok || email != p.Contact.Emails[i] {
				return OutcomeMismatch, nil
			}
		}
	}

	phones, err := doc.Array("phoneNumbers")
	if err != nil {
		if len(p.Contact.Phones) > 0 {
			return OutcomeMissing, nil
		}
	} else {
		if len(phones) != len(p.Contact.Phones) {
			return OutcomeMismatch, nil
		}
		for i, element := range phones {
			entry, ok := element.(map[string]any)
			if !ok {
				return OutcomeMismatch, &registry.SchemaError{Field: "phoneNumbers"}
			}
			number, ok := entry["number"].(string)
			if !ok || number != p.Contact.Phones[i] {
				return OutcomeMismatch, nil
			}
		}
	}

	if err := adoptSelfID(doc, func(rid id.ID) { p.Contact.ID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	return OutcomeMatch, nil
}

func (p *Person) RemoteID() id.ID       { return p.Contact.ID }
func (p *Person) SetRemoteID(rid id.ID) { p.Contact.ID = rid }

// Module reconciles the cryptographic module entry. Vendor, address and
// contact references are embedded once those carry usable identifiers.
type Module struct {
	Module  *definition.Module
	Vendor  *definition.Vendor
	Contact *definition.Contact
}

func NewModule(m *definition.Module, v *definition.Vendor, c *definition.Contact) *Module {
	return &Module{Module: m, Vendor: v, Contact: c}
}

func (m *Module) Collection() string   { return ModulesCollection }
func (m *Module) Describe() string     { return "module " + m.Module.Name }
func (m *Module) SearchFilter() string { return registry.SearchFilter(m.Module.Name) }

func (m *Module) description() string {
	if m.Module.Description != "" {
		return m.Module.Description
	}
	return m.Module.Name
}

func (m *Module) Build() (registry.Document, bool) {
	if m.Module.Name == "" {
		return nil, false
	}
	doc := registry.Document{
		"name":        m.Module.Name,
		"version":     m.Module.Version,
		"type":        m.Module.Type,
		"description": m.description(),
	}
	if m.Vendor.ID.Usable() {
		doc["vendorUrl"] = fmt.Sprintf("/%s/%d", VendorsCollection, m.Vendor.ID.Strip())
		if m.Vendor.AddressID.Usable() {
			doc["addressUrl"] = fmt.Sprintf("/%s/%d/addresses/%d",
				VendorsCollection, m.Vendor.ID.Strip(), m.Vendor.AddressID.Strip())
		}
	}
	if m.Contact != nil && m.Contact.ID.Usable() {
		doc["contactUrls"] = []any{
			fmt.Sprintf("/%s/%d", PersonsCollection, m.Contact.ID.Strip()),
		}
	}
	return doc, true
}

func (m *Module) Match(ctx context.Context, doc registry.Document) (Outcome, error) {
	outcome, err := matchAll(
		stringCheck(doc, "name", m.Module.Name),
		stringCheck(doc, "version", m.Module.Version),
		stringCheck(doc, "type", m.Module.Type),
		stringCheck(doc, "description", m.description()),
	)
	if err != nil || outcome != OutcomeMatch {
		return outcome, err
	}
	if err := adoptSelfID(doc, func(rid id.ID) { m.Module.ID = rid }); err != nil {
		return OutcomeMismatch, err
	}
	return OutcomeMatch, nil
}

func (m *Module) RemoteID() id.ID       { return m.Module.ID }
func (m *Module) SetRemoteID(rid id.ID) { m.Module.ID = rid }
