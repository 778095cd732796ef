package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/meltforce/haetable/internal/ingest"
	"github.com/meltforce/haetable/internal/models"
	"github.com/meltforce/haetable/internal/storage"
)

const body = `{"data":{"metrics":[{"name":"step_count","units":"count","data":[{"date":"2025-01-01 00:00:00 +0000","qty":100}]}]}}`

type fakeIngester struct {
	mu       sync.Mutex
	payloads []*models.HAEPayload
}

func (f *fakeIngester) Ingest(_ context.Context, p *models.HAEPayload) *ingest.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	n := 0
	for _, m := range p.Data.Metrics {
		n += len(m.Data)
	}
	return &ingest.Result{MetricsReceived: len(p.Data.Metrics), SamplesReceived: n, RowsWritten: n}
}

type memJournal struct {
	storage.Nop
	entries []storage.Delivery
}

func (j *memJournal) Record(_ context.Context, d storage.Delivery) error {
	j.entries = append(j.entries, d)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestReadFileCompression verifies plain, gzip and zstd files decode to the
// same bytes.
func TestReadFileCompression(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write([]byte(body))
	w.Close()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zs := enc.EncodeAll([]byte(body), nil)
	enc.Close()

	for name, data := range map[string][]byte{
		"plain.json":      []byte(body),
		"export.json.gz":  gz.Bytes(),
		"export.json.zst": zs,
	} {
		got, err := ReadFile(writeFile(t, name, data))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(got) != body {
			t.Errorf("%s: got %q", name, got)
		}
	}
}

// TestReplayFile verifies a file is ingested and journaled as a replay.
func TestReplayFile(t *testing.T) {
	ing := &fakeIngester{}
	j := &memJournal{}
	r := New(ing, j, testLogger())

	res, err := r.ReplayFile(context.Background(), writeFile(t, "export.json", []byte(body)))
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsWritten != 1 || len(ing.payloads) != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(j.entries) != 1 || j.entries[0].Source != "replay:file" || j.entries[0].Status != storage.StatusSuccess {
		t.Errorf("journal = %+v", j.entries)
	}
	if s := r.Stats(); s.Payloads != 1 || s.Total.RowsWritten != 1 {
		t.Errorf("stats = %+v", s)
	}
}

// TestReplayLegacyShape verifies the flat array shape is rejected and
// journaled as malformed.
func TestReplayLegacyShape(t *testing.T) {
	ing := &fakeIngester{}
	j := &memJournal{}
	r := New(ing, j, testLogger())

	_, err := r.Replay(context.Background(), "replay:file", []byte(`{"data":[{"metrics":[]}]}`))
	if !errors.Is(err, models.ErrLegacyShape) {
		t.Errorf("err = %v, want ErrLegacyShape", err)
	}
	if len(ing.payloads) != 0 {
		t.Error("legacy payload was ingested")
	}
	if len(j.entries) != 1 || j.entries[0].Status != storage.StatusMalformed {
		t.Errorf("journal = %+v", j.entries)
	}
}

// TestReplayHAEWindows verifies the range is split into chunks and a failed
// window does not stop the run.
func TestReplayHAEWindows(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []string
	)
	port := startMockTCPServer(t, func(req jsonRPCRequest) []byte {
		params, _ := req.Params.(map[string]any)
		args, _ := params["arguments"].(map[string]any)
		mu.Lock()
		defer mu.Unlock()
		starts = append(starts, args["start"].(string))
		if len(starts) == 2 {
			return nil
		}
		return rpcResult(body)
	})
	hae := NewHAEClient("127.0.0.1", port)
	hae.timeout = 5 * time.Second

	ing := &fakeIngester{}
	r := New(ing, storage.Nop{}, testLogger())

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3*24*time.Hour - time.Hour)
	if err := r.ReplayHAE(context.Background(), hae, start, end, 24*time.Hour, ""); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"2025-01-01 00:00:00 +0000", "2025-01-02 00:00:00 +0000", "2025-01-03 00:00:00 +0000"}
	if len(starts) != len(want) {
		t.Fatalf("windows = %v", starts)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Errorf("window %d start = %s, want %s", i, starts[i], want[i])
		}
	}
	if len(ing.payloads) != 2 {
		t.Errorf("ingested %d payloads, want 2", len(ing.payloads))
	}
	if s := r.Stats(); s.Errors != 1 {
		t.Errorf("errors = %d, want 1", s.Errors)
	}
}

// TestReplayHAEInvalidRange verifies an empty range is rejected.
func TestReplayHAEInvalidRange(t *testing.T) {
	r := New(&fakeIngester{}, storage.Nop{}, testLogger())
	now := time.Now()
	if err := r.ReplayHAE(context.Background(), NewHAEClient("127.0.0.1", 1), now, now, time.Hour, ""); err == nil {
		t.Error("expected error for empty range")
	}
}
