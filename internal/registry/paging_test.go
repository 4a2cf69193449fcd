package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSearchFollowsContinuation(t *testing.T) {
	var pages atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/dependencies", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		if got := r.URL.Query().Get("name[0]"); got != "contains:Linux 5.4" {
			t.Errorf("filter = %q", got)
		}
		writeEnveloped(t, w, http.StatusOK, Document{
			"data": []any{
				map[string]any{"url": "/dependencies/1", "name": "other"},
			},
			"links": map[string]any{"next": "/dependencies?page=2"},
		})
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			pages.Add(1)
			writeEnveloped(t, w, http.StatusOK, Document{
				"data": []any{
					map[string]any{"url": "/dependencies/2", "name": "miss"},
					map[string]any{"url": "/dependencies/5", "name": "Linux 5.4"},
					map[string]any{"url": "/dependencies/9", "name": "after"},
				},
			})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	var seen []string
	found, err := client.Search(context.Background(), "dependencies",
		SearchFilter("Linux 5.4"),
		func(doc Document) (bool, error) {
			name, err := doc.String("name")
			if err != nil {
				return false, err
			}
			seen = append(seen, name)
			return name == "Linux 5.4", nil
		})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !found {
		t.Fatalf("expected match")
	}
	if pages.Load() != 2 {
		t.Fatalf("expected 2 page fetches, got %d", pages.Load())
	}
	// Search must stop at the first match.
	if len(seen) != 3 || seen[len(seen)-1] != "Linux 5.4" {
		t.Fatalf("element order wrong: %v", seen)
	}
}

func TestSearchNotFoundAfterFinalPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnveloped(t, w, http.StatusOK, Document{"data": []any{}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	found, err := client.Search(context.Background(), "oes", "", func(Document) (bool, error) {
		t.Fatalf("matcher called on empty collection")
		return false, nil
	})
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
}

func TestSearchAbortsOnTransportFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeEnveloped(t, w, http.StatusOK, Document{
				"data":  []any{},
				"links": map[string]any{"next": "/vendors?page=2"},
			})
			return
		}
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Search(context.Background(), "vendors", "", func(Document) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestSearchMatcherErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnveloped(t, w, http.StatusOK, Document{
			"data": []any{map[string]any{"type": "software"}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	wantErr := &SchemaError{Field: "name"}
	_, err := client.Search(context.Background(), "dependencies", "", func(doc Document) (bool, error) {
		_, err := doc.String("name")
		return false, err
	})
	var schema *SchemaError
	if !errors.As(err, &schema) || schema.Field != wantErr.Field {
		t.Fatalf("expected schema error for name, got %v", err)
	}
}
