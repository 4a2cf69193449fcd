package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/testutil/testlog"
)

// fakeRegistry answers every search with an empty page and assigns
// sequential identifiers on create.
type fakeRegistry struct {
	t *testing.T

	mu      sync.Mutex
	nextID  uint32
	creates map[string]int
	async   bool
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	return &fakeRegistry{t: t, creates: make(map[string]int)}
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	collection := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodGet:
		writeEnveloped(f.t, w, http.StatusOK, emptyPage())
	case http.MethodPost:
		f.mu.Lock()
		f.nextID++
		n := f.nextID
		f.creates[collection]++
		async := f.async
		f.mu.Unlock()
		if async && collection == DependenciesCollection {
			writeEnveloped(f.t, w, http.StatusAccepted, map[string]any{
				"url": fmt.Sprintf("/requests/%d", n),
			})
			return
		}
		writeEnveloped(f.t, w, http.StatusCreated, map[string]any{
			"url": fmt.Sprintf("/%s/%d", collection, n),
		})
	default:
		f.t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func (f *fakeRegistry) created(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[collection]
}

func newTestDefinition(t *testing.T, name string) *definition.Definition {
	t.Helper()
	return &definition.Definition{
		Name:    name,
		IDsPath: filepath.Join(t.TempDir(), name+".ids.toml"),
		Vendor:  sampleVendor(),
		Contact: definition.Contact{
			FullName: "Jane Tester",
			Emails:   []string{"jane@acme.example"},
		},
		Module: definition.Module{
			Name:    "Acme FIPS Provider",
			Version: "3.0.8",
			Type:    "Software",
		},
		OE: sampleOE(),
	}
}

func TestSyncDefinitionRegistersEverything(t *testing.T) {
	testlog.Start(t)
	fake := newFakeRegistry(t)
	server := httptest.NewServer(fake)
	defer server.Close()

	def := newTestDefinition(t, "sample")
	rec := New(newTestClient(t, server.URL), Intent{AutoRegister: true}, nil)
	runner := NewRunner(definition.NewLockManager(), rec, 1)

	if err := runner.SyncDefinition(context.Background(), def); err != nil {
		t.Fatalf("sync: %v", err)
	}

	wantCreates := map[string]int{
		VendorsCollection:      1,
		PersonsCollection:      1,
		ModulesCollection:      1,
		DependenciesCollection: 2,
		OECollection:           1,
	}
	for collection, want := range wantCreates {
		if got := fake.created(collection); got != want {
			t.Errorf("%s creates = %d, want %d", collection, got, want)
		}
	}

	if !def.Vendor.ID.Usable() || !def.Contact.ID.Usable() || !def.Module.ID.Usable() {
		t.Fatal("metadata identifiers must be usable after sync")
	}
	if !def.OE.SoftwareID.Usable() || !def.OE.ProcessorID.Usable() || !def.OE.ID.Usable() {
		t.Fatal("OE identifiers must be usable after sync")
	}

	if _, err := os.Stat(def.IDsPath); err != nil {
		t.Fatalf("ids sidecar not persisted: %v", err)
	}

	// The second pass trusts the persisted identifiers end to end.
	if err := runner.SyncDefinition(context.Background(), def); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	for collection, want := range wantCreates {
		if got := fake.created(collection); got != want {
			t.Errorf("second pass created more %s: %d", collection, got-want)
		}
	}
}

func TestSyncDefinitionDefersOEWhilePending(t *testing.T) {
	testlog.Start(t)
	fake := newFakeRegistry(t)
	fake.async = true
	server := httptest.NewServer(fake)
	defer server.Close()

	def := newTestDefinition(t, "pending")
	rec := New(newTestClient(t, server.URL), Intent{AutoRegister: true}, nil)
	runner := NewRunner(definition.NewLockManager(), rec, 1)

	if err := runner.SyncDefinition(context.Background(), def); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if got := fake.created(OECollection); got != 0 {
		t.Fatalf("OE created with pending dependencies: %d", got)
	}
	if !def.OE.SoftwareID.Pending() || !def.OE.ProcessorID.Pending() {
		t.Fatal("dependency identifiers must carry the pending marker")
	}
	if def.OE.ID != 0 {
		t.Fatalf("oe id = %#x, want unset", uint32(def.OE.ID))
	}
}

func TestSyncRunsDefinitionsIndependently(t *testing.T) {
	testlog.Start(t)
	fake := newFakeRegistry(t)
	server := httptest.NewServer(fake)
	defer server.Close()

	first := newTestDefinition(t, "first")
	second := newTestDefinition(t, "second")
	second.OE.EnvName = "FreeBSD 14"

	rec := New(newTestClient(t, server.URL), Intent{AutoRegister: true}, nil)
	runner := NewRunner(definition.NewLockManager(), rec, 4)

	if err := runner.Sync(context.Background(), []*definition.Definition{first, second}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := fake.created(OECollection); got != 2 {
		t.Fatalf("oe creates = %d, want 2", got)
	}
	if !first.OE.ID.Usable() || !second.OE.ID.Usable() {
		t.Fatal("both OEs must resolve")
	}
}
