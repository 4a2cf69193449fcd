package reconcile

import (
	"context"
	"testing"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/registry"
	"github.com/danmuck/metasync/internal/testutil/testlog"
)

func sampleOE() definition.OperationalEnv {
	return definition.OperationalEnv{
		EnvName:      "Linux 5.4",
		Manufacturer: "Intel",
		ProcFamily:   "X86",
		ProcName:     "Xeon",
		ProcSeries:   "5100",
	}
}

func TestSoftwareDependencyBuild(t *testing.T) {
	oe := sampleOE()
	doc, ok := NewSoftwareDependency(&oe).Build()
	if !ok {
		t.Fatal("expected a document")
	}

	if doc["type"] != "software" || doc["name"] != "Linux 5.4" {
		t.Fatalf("document = %v", doc)
	}
	// Absent tags are reported as explicit nulls, never omitted.
	for _, key := range []string{"cpe", "swid"} {
		value, present := doc[key]
		if !present || value != nil {
			t.Errorf("%s = %v (present=%v), want explicit null", key, value, present)
		}
	}
	if doc["description"] != "Linux 5.4" {
		t.Errorf("description = %v, want environment name fallback", doc["description"])
	}
}

func TestSoftwareDependencyBuildWithCPE(t *testing.T) {
	oe := sampleOE()
	oe.CPE = "cpe:2.3:o:linux:linux_kernel:5.4"
	oe.Description = "Linux kernel 5.4 on x86"

	doc, ok := NewSoftwareDependency(&oe).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	if doc["cpe"] != oe.CPE || doc["swid"] != nil {
		t.Fatalf("cpe = %v, swid = %v", doc["cpe"], doc["swid"])
	}
	if doc["description"] != oe.Description {
		t.Errorf("description = %v", doc["description"])
	}
}

func TestSoftwareDependencyBuildAbsent(t *testing.T) {
	oe := sampleOE()
	oe.EnvName = ""
	if _, ok := NewSoftwareDependency(&oe).Build(); ok {
		t.Fatal("no environment name must yield no document")
	}
}

func TestSoftwareDependencyMatchesOwnBuild(t *testing.T) {
	testlog.Start(t)
	oe := sampleOE()
	sw := NewSoftwareDependency(&oe)

	doc, _ := sw.Build()
	doc["url"] = "/dependencies/12"

	outcome, err := sw.Match(context.Background(), doc)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if outcome != OutcomeMatch {
		t.Fatalf("outcome = %v", outcome)
	}
	if oe.SoftwareID != 12 {
		t.Fatalf("software id = %d, want 12", uint32(oe.SoftwareID))
	}
}

func TestSoftwareDependencyRemoteTagIsDivergence(t *testing.T) {
	oe := sampleOE()
	sw := NewSoftwareDependency(&oe)

	doc, _ := sw.Build()
	doc["cpe"] = "cpe:2.3:o:linux:linux_kernel:5.4"
	doc["url"] = "/dependencies/12"

	outcome, err := sw.Match(context.Background(), doc)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, want mismatch", outcome)
	}
	if oe.SoftwareID != 0 {
		t.Fatalf("mismatch must not adopt an id, got %d", uint32(oe.SoftwareID))
	}
}

func TestSoftwareDependencyEmbeddedDocKeepsIDUnset(t *testing.T) {
	oe := sampleOE()
	sw := NewSoftwareDependency(&oe)

	// Embedded dependency documents carry no self url.
	doc, _ := sw.Build()
	outcome, err := sw.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if oe.SoftwareID != 0 {
		t.Fatalf("software id = %d, want unset", uint32(oe.SoftwareID))
	}
}

func TestProcessorDependencyBuild(t *testing.T) {
	oe := sampleOE()
	doc, ok := NewProcessorDependency(&oe).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	want := "Processor Xeon (processor family X86) from Intel"
	if doc["description"] != want {
		t.Fatalf("description = %q, want %q", doc["description"], want)
	}
	if doc["type"] != "processor" || doc["series"] != "5100" {
		t.Fatalf("document = %v", doc)
	}
}

func TestProcessorDependencyMatchIgnoresDescription(t *testing.T) {
	oe := sampleOE()
	proc := NewProcessorDependency(&oe)

	doc, _ := proc.Build()
	doc["description"] = "operator supplied free text"
	doc["url"] = "/dependencies/31"

	outcome, err := proc.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if oe.ProcessorID != 31 {
		t.Fatalf("processor id = %d, want 31", uint32(oe.ProcessorID))
	}
}

func TestProcessorDependencyFieldMismatch(t *testing.T) {
	oe := sampleOE()
	proc := NewProcessorDependency(&oe)

	doc, _ := proc.Build()
	doc["family"] = "ARM"

	outcome, err := proc.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
}

func sampleVendor() definition.Vendor {
	return definition.Vendor{
		Name:    "Acme Crypto",
		Website: "https://acme.example",
		Address: definition.Address{
			Street:     "1 Main St",
			Locality:   "Springfield",
			Region:     "OR",
			Country:    "US",
			PostalCode: "97477",
		},
	}
}

func TestVendorMatchAdoptsBothIDs(t *testing.T) {
	vendor := sampleVendor()
	entity := NewVendor(&vendor)

	doc := registry.Document{
		"url":     "/vendors/2",
		"name":    vendor.Name,
		"website": vendor.Website,
		"addresses": []any{map[string]any{
			"url":        "/vendors/2/addresses/8",
			"street1":    "1 Main St",
			"locality":   "Springfield",
			"region":     "OR",
			"country":    "US",
			"postalCode": "97477",
		}},
	}

	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if vendor.ID != 2 || vendor.AddressID != 8 {
		t.Fatalf("ids = %d/%d, want 2/8", uint32(vendor.ID), uint32(vendor.AddressID))
	}
}

func TestVendorAddressMismatch(t *testing.T) {
	vendor := sampleVendor()
	entity := NewVendor(&vendor)

	doc, _ := entity.Build()
	doc["addresses"] = []any{map[string]any{
		"street1":    "2 Other St",
		"locality":   "Springfield",
		"region":     "OR",
		"country":    "US",
		"postalCode": "97477",
	}}

	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
}

func TestPersonBuildReferencesVendor(t *testing.T) {
	vendor := sampleVendor()
	vendor.ID = 2
	contact := definition.Contact{
		FullName: "Jane Tester",
		Emails:   []string{"jane@acme.example"},
		Phones:   []string{"+1 555 0100"},
	}

	doc, ok := NewPerson(&contact, &vendor).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	if doc["vendorUrl"] != "/vendors/2" {
		t.Fatalf("vendorUrl = %v", doc["vendorUrl"])
	}
	phones, _ := doc["phoneNumbers"].([]any)
	if len(phones) != 1 {
		t.Fatalf("phoneNumbers = %v", doc["phoneNumbers"])
	}
	phone, _ := phones[0].(map[string]any)
	if phone["number"] != "+1 555 0100" || phone["type"] != "voice" {
		t.Fatalf("phone = %v", phone)
	}
}

func TestPersonEmailListMustMatchExactly(t *testing.T) {
	vendor := sampleVendor()
	contact := definition.Contact{
		FullName: "Jane Tester",
		Emails:   []string{"jane@acme.example"},
	}
	entity := NewPerson(&contact, &vendor)

	doc := registry.Document{
		"url":      "/persons/4",
		"fullName": "Jane Tester",
		"emails":   []any{"jane@acme.example", "ops@acme.example"},
	}
	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
}

func TestPersonPhoneNumberMustMatch(t *testing.T) {
	vendor := sampleVendor()
	contact := definition.Contact{
		FullName: "Jane Tester",
		Phones:   []string{"+1 555 0100"},
	}
	entity := NewPerson(&contact, &vendor)

	doc, _ := entity.Build()
	doc["url"] = "/persons/3"
	doc["phoneNumbers"] = []any{map[string]any{"number": "+49 30 123456", "type": "voice"}}

	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if contact.ID != 0 {
		t.Fatalf("mismatch must not adopt an id, got %d", uint32(contact.ID))
	}

	doc["phoneNumbers"] = []any{map[string]any{"number": "+1 555 0100", "type": "voice"}}
	outcome, err = entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if contact.ID != 3 {
		t.Fatalf("person id = %d, want 3", uint32(contact.ID))
	}
}

func TestModuleBuildReferences(t *testing.T) {
	vendor := sampleVendor()
	vendor.ID = 2
	vendor.AddressID = 8
	contact := definition.Contact{FullName: "Jane Tester", ID: 4}
	module := definition.Module{Name: "Acme FIPS Provider", Version: "3.0.8"}

	doc, ok := NewModule(&module, &vendor, &contact).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	if doc["vendorUrl"] != "/vendors/2" || doc["addressUrl"] != "/vendors/2/addresses/8" {
		t.Fatalf("references = %v / %v", doc["vendorUrl"], doc["addressUrl"])
	}
	contacts, _ := doc["contactUrls"].([]any)
	if len(contacts) != 1 || contacts[0] != "/persons/4" {
		t.Fatalf("contactUrls = %v", doc["contactUrls"])
	}
}

func TestModuleMatch(t *testing.T) {
	vendor := sampleVendor()
	module := definition.Module{
		Name:    "Acme FIPS Provider",
		Version: "3.0.8",
		Type:    "Software",
	}
	entity := NewModule(&module, &vendor, &definition.Contact{})

	doc, _ := entity.Build()
	doc["url"] = "/modules/15"
	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if module.ID != 15 {
		t.Fatalf("module id = %d, want 15", uint32(module.ID))
	}

	doc["version"] = "3.0.9"
	module.ID = 0
	outcome, err = entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
}

type fakeFetcher map[string]registry.Document

func (f fakeFetcher) GetByURL(_ context.Context, ref string) (registry.Document, error) {
	doc, ok := f[ref]
	if !ok {
		return nil, &registry.StatusError{Status: 404, Message: ref}
	}
	return doc, nil
}

func TestOperationalEnvBuildPrefersReferences(t *testing.T) {
	oe := sampleOE()
	oe.SoftwareID = 12
	oe.ProcessorID = 31

	doc, ok := NewOperationalEnv(&oe, fakeFetcher{}).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	if doc["name"] != "Linux 5.4 on Intel 5100 Xeon" {
		t.Fatalf("name = %v", doc["name"])
	}
	refs, _ := doc["dependencyUrls"].([]any)
	if len(refs) != 2 || refs[0] != "/dependencies/31" || refs[1] != "/dependencies/12" {
		t.Fatalf("dependencyUrls = %v", doc["dependencyUrls"])
	}
	if _, present := doc["dependencies"]; present {
		t.Fatal("resolved children must not be embedded")
	}
}

func TestOperationalEnvBuildEmbedsUnresolvedChildren(t *testing.T) {
	testlog.Start(t)
	oe := sampleOE()

	doc, ok := NewOperationalEnv(&oe, fakeFetcher{}).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	embedded, _ := doc["dependencies"].([]any)
	if len(embedded) != 2 {
		t.Fatalf("dependencies = %v", doc["dependencies"])
	}
	if _, present := doc["dependencyUrls"]; present {
		t.Fatal("unresolved children must not be referenced")
	}
}

func TestOperationalEnvMatchReferenced(t *testing.T) {
	testlog.Start(t)
	oe := sampleOE()
	swDoc, _ := NewSoftwareDependency(&oe).Build()
	swDoc["url"] = "/dependencies/12"
	procDoc, _ := NewProcessorDependency(&oe).Build()
	procDoc["url"] = "/dependencies/31"

	fetcher := fakeFetcher{
		"/dependencies/12": swDoc,
		"/dependencies/31": procDoc,
	}
	entity := NewOperationalEnv(&oe, fetcher)

	doc := registry.Document{
		"url":            "/oes/44",
		"name":           oe.CompositeName(),
		"dependencyUrls": []any{"/dependencies/31", "/dependencies/12"},
	}
	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if oe.ID != 44 {
		t.Fatalf("oe id = %d, want 44", uint32(oe.ID))
	}
	if oe.SoftwareID != 12 || oe.ProcessorID != 31 {
		t.Fatalf("child ids = %d/%d", uint32(oe.SoftwareID), uint32(oe.ProcessorID))
	}
}

func TestOperationalEnvMatchEmbeddedDivergence(t *testing.T) {
	testlog.Start(t)
	oe := sampleOE()
	entity := NewOperationalEnv(&oe, fakeFetcher{})

	procDoc, _ := NewProcessorDependency(&oe).Build()
	procDoc["series"] = "7100"

	doc := registry.Document{
		"url":          "/oes/44",
		"name":         oe.CompositeName(),
		"dependencies": []any{map[string]any(procDoc)},
	}
	outcome, err := entity.Match(context.Background(), doc)
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if oe.ID != 0 {
		t.Fatalf("mismatch must not adopt an id, got %d", uint32(oe.ID))
	}
}

func TestOperationalEnvIgnoresStaleSoftwareID(t *testing.T) {
	testlog.Start(t)
	oe := sampleOE()
	oe.EnvName = ""
	oe.SoftwareID = id.ID(12)
	oe.ProcessorID = 31

	doc, ok := NewOperationalEnv(&oe, fakeFetcher{}).Build()
	if !ok {
		t.Fatal("expected a document")
	}
	refs, _ := doc["dependencyUrls"].([]any)
	if len(refs) != 1 || refs[0] != "/dependencies/31" {
		t.Fatalf("dependencyUrls = %v", doc["dependencyUrls"])
	}
	if doc["name"] != "Intel 5100 Xeon" {
		t.Fatalf("name = %v", doc["name"])
	}
}
