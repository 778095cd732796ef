package hae

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/meltforce/haetable/internal/airtable"
)

const fakeBase = "appTEST"

// fakeAirtable is an in-memory Airtable base served over HTTP.
type fakeAirtable struct {
	t *testing.T

	mu     sync.Mutex
	tables map[string][]airtable.Fields

	created      []string
	schemas      map[string][]airtable.Field
	createCalls  []int
	listRequests int

	failListTables  bool
	failCreateTable bool
	// failListAfter fails record listing once this many pages were served;
	// negative disables it.
	failListAfter int
	// failCreateCall fails the create-records call with this 1-based index.
	failCreateCall int
}

func newFakeAirtable(t *testing.T) *fakeAirtable {
	return &fakeAirtable{
		t:             t,
		tables:        make(map[string][]airtable.Fields),
		schemas:       make(map[string][]airtable.Field),
		failListAfter: -1,
	}
}

// seed adds a table with rows, bypassing the HTTP layer.
func (f *fakeAirtable) seed(name string, rows ...airtable.Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = append(f.tables[name], rows...)
}

func (f *fakeAirtable) rows(name string) []airtable.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]airtable.Fields(nil), f.tables[name]...)
}

func (f *fakeAirtable) hasTable(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tables[name]
	return ok
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta := "/meta/bases/" + fakeBase + "/tables"
	switch {
	case r.URL.Path == meta && r.Method == http.MethodGet:
		f.listTables(w)
	case r.URL.Path == meta && r.Method == http.MethodPost:
		f.createTable(w, r)
	case strings.HasPrefix(r.URL.Path, "/"+fakeBase+"/"):
		table := strings.TrimPrefix(r.URL.Path, "/"+fakeBase+"/")
		switch r.Method {
		case http.MethodGet:
			f.listRecords(w, r, table)
		case http.MethodPost:
			f.createRecords(w, r, table)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func (f *fakeAirtable) listTables(w http.ResponseWriter) {
	if f.failListTables {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "listing unavailable")
		return
	}
	var tables []airtable.Table
	for name := range f.tables {
		tables = append(tables, airtable.Table{ID: "tbl" + name, Name: name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (f *fakeAirtable) createTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string           `json:"name"`
		Fields []airtable.Field `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("decoding create table: %v", err)
	}
	f.created = append(f.created, req.Name)
	f.schemas[req.Name] = req.Fields
	if f.failCreateTable {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST", "cannot create")
		return
	}
	if _, ok := f.tables[req.Name]; ok {
		writeError(w, http.StatusUnprocessableEntity, "DUPLICATE_TABLE_NAME", "exists")
		return
	}
	f.tables[req.Name] = nil
	writeJSON(w, http.StatusOK, airtable.Table{ID: "tbl" + req.Name, Name: req.Name, Fields: req.Fields})
}

func (f *fakeAirtable) listRecords(w http.ResponseWriter, r *http.Request, table string) {
	if f.failListAfter >= 0 && f.listRequests >= f.failListAfter {
		f.listRequests++
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "try later")
		return
	}
	f.listRequests++

	rows, ok := f.tables[table]
	if !ok {
		writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", "no such table")
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if size <= 0 {
		size = airtable.MaxPageSize
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	end := min(start+size, len(rows))

	page := airtable.RecordPage{}
	fields := r.URL.Query()["fields[]"]
	for i := start; i < end; i++ {
		out := airtable.Fields{}
		for _, name := range fields {
			if v, ok := rows[i][name]; ok {
				out[name] = v
			}
		}
		page.Records = append(page.Records, airtable.Record{ID: "rec" + strconv.Itoa(i), Fields: out})
	}
	if end < len(rows) {
		page.Offset = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, page)
}

func (f *fakeAirtable) createRecords(w http.ResponseWriter, r *http.Request, table string) {
	var req struct {
		Records  []airtable.Record `json:"records"`
		Typecast bool              `json:"typecast"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("decoding create records: %v", err)
	}
	if !req.Typecast {
		f.t.Error("create records sent without typecast")
	}
	f.createCalls = append(f.createCalls, len(req.Records))
	if f.failCreateCall == len(f.createCalls) {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_VALUE_FOR_COLUMN", "bad row")
		return
	}
	if _, ok := f.tables[table]; !ok {
		writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", "no such table")
		return
	}
	for _, rec := range req.Records {
		f.tables[table] = append(f.tables[table], rec.Fields)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": req.Records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"type": typ, "message": msg}})
}

// newTestProvider wires a Provider to a fake base through the real client.
func newTestProvider(t *testing.T, fake *fakeAirtable, opts ...Option) *Provider {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	client := airtable.NewClient(airtable.Config{BaseURL: ts.URL, BaseID: fakeBase, APIKey: "key-123"})
	return NewProvider(client, testLogger(), opts...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
