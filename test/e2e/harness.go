// Package e2e exercises the whole client stack end to end: a real sqlite
// store, the real HTTP client, and the reconciler, against an in-process
// server speaking the remote store's REST API. The server's connectivity
// can be cut and restored per test to drive offline transitions.
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/ratelimit"
	"github.com/mwhite/fleetsync/internal/remote"
	"github.com/mwhite/fleetsync/internal/store"
	syncengine "github.com/mwhite/fleetsync/internal/sync"
)

// Harness wires one client (store + reconciler) against an in-process
// document server.
type Harness struct {
	Store      *store.Store
	Reconciler *syncengine.Reconciler
	Server     *documentServer

	srv *httptest.Server
}

// documentServer is a minimal in-memory implementation of the remote
// store's REST API.
type documentServer struct {
	mu      sync.Mutex
	records map[string]map[string]models.Record // collection -> id -> record
	nextID  int64

	offline atomic.Bool
	requests atomic.Int64
}

func newDocumentServer() *documentServer {
	return &documentServer{records: make(map[string]map[string]models.Record)}
}

// SetOffline cuts or restores connectivity. While offline every request's
// connection is dropped before a response, which the client sees as a
// transport failure.
func (d *documentServer) SetOffline(offline bool) {
	d.offline.Store(offline)
}

// Count returns the number of records in a collection.
func (d *documentServer) Count(collection models.Collection) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records[string(collection)])
}

// Get returns a stored record by id.
func (d *documentServer) Get(collection models.Collection, id string) (models.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[string(collection)][id]
	return rec, ok
}

// Put stores a record directly, bypassing the API.
func (d *documentServer) Put(collection models.Collection, rec models.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bucket(string(collection))[rec.ID] = rec
}

func (d *documentServer) bucket(collection string) map[string]models.Record {
	if d.records[collection] == nil {
		d.records[collection] = make(map[string]models.Record)
	}
	return d.records[collection]
}

func (d *documentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.requests.Add(1)
	if d.offline.Load() {
		// Drop the connection without a response
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		panic("connection not hijackable")
	}

	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusOK)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/"), "/")
	collection := parts[0]

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		owner := r.URL.Query().Get("owner_id")
		out := []models.Record{}
		for _, rec := range d.bucket(collection) {
			if rec.OwnerID == owner {
				out = append(out, rec)
			}
		}
		json.NewEncoder(w).Encode(out)

	case r.Method == http.MethodPost && len(parts) == 1:
		var rec models.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			apiError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		d.nextID++
		rec.ID = fmt.Sprintf("doc-%d", d.nextID)
		d.bucket(collection)[rec.ID] = rec
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)

	case r.Method == http.MethodPut && len(parts) == 2:
		var rec models.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			apiError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if _, ok := d.bucket(collection)[parts[1]]; !ok {
			apiError(w, http.StatusNotFound, "not_found", "no such record")
			return
		}
		rec.ID = parts[1]
		d.bucket(collection)[rec.ID] = rec
		json.NewEncoder(w).Encode(rec)

	case r.Method == http.MethodDelete && len(parts) == 2:
		if _, ok := d.bucket(collection)[parts[1]]; !ok {
			apiError(w, http.StatusNotFound, "not_found", "no such record")
			return
		}
		delete(d.bucket(collection), parts[1])
		w.WriteHeader(http.StatusNoContent)

	default:
		apiError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method)
	}
}

func apiError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

// Setup builds a harness with a fresh store and a running server.
func Setup(t *testing.T) *Harness {
	t.Helper()

	st, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	doc := newDocumentServer()
	srv := httptest.NewServer(doc)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := remote.New(srv.URL, "test-key", "device-e2e")
	limiter := ratelimit.New(logger, nil)
	rec := syncengine.New(st, client, limiter, logger, syncengine.Options{
		ForegroundTimeout: 2 * time.Second,
		BackgroundTimeout: 5 * time.Second,
	})

	return &Harness{Store: st, Reconciler: rec, Server: doc, srv: srv}
}
