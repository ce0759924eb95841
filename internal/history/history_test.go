package history

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/cmdline/internal/runner"
)

func newRecord(text string) *Record {
	o := runner.NewOutput(text)
	o.RunID = uuid.New().String()
	a := runner.Attempt{Target: "local", Outcome: &o, Started: time.Now(), Duration: time.Millisecond}
	return NewRecord(a, "/bin/echo", []string{text})
}

func TestDiskStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	s := NewDiskStore(dir)

	rec := newRecord("hello")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, rec.ID+".json")); err != nil {
		t.Errorf("record file missing: %v", err)
	}

	got, err := s.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != rec.ID || got.Kind != runner.KindOutput || got.Text != "hello" || got.Target != "local" {
		t.Errorf("Load = %+v, want %+v", got, rec)
	}
	if !reflect.DeepEqual(got.Args, []string{"hello"}) {
		t.Errorf("Args = %v, want [hello]", got.Args)
	}
	if !got.Started.Equal(rec.Started) || got.Duration != rec.Duration {
		t.Errorf("timing = %v (%v), want %v (%v)", got.Started, got.Duration, rec.Started, rec.Duration)
	}
}

func TestDiskStore_TempDir(t *testing.T) {
	s := NewDiskStore("")
	rec := newRecord("x")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	dir, err := s.Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	if !strings.Contains(filepath.Base(dir), "cmdline-runs-") {
		t.Errorf("Dir = %q, want a cmdline-runs temp dir", dir)
	}
}

func TestDiskStore_NotFound(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	_, err := s.Load(uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_InvalidID(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	if _, err := s.Load("../../etc/passwd"); err == nil {
		t.Error("expected error for path-like run id")
	}
	if err := s.Save(&Record{ID: "x/y"}); err == nil {
		t.Error("expected error saving path-like run id")
	}
}

// countingStore records Load calls and keeps records in memory.
type countingStore struct {
	mu    sync.Mutex
	recs  map[string]*Record
	loads int
}

func (c *countingStore) Save(rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recs == nil {
		c.recs = make(map[string]*Record)
	}
	c.recs[rec.ID] = rec
	return nil
}

func (c *countingStore) Load(runID string) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	rec, ok := c.recs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func TestLRUStore_HitAvoidsBackingStore(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)

	rec := newRecord("a")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != rec {
		t.Errorf("Load returned a different record")
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0", back.loads)
	}
}

func TestLRUStore_Eviction(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)

	a, b, c := newRecord("a"), newRecord("b"), newRecord("c")
	for _, r := range []*Record{a, b} {
		if err := s.Save(r); err != nil {
			t.Fatal(err)
		}
	}
	// Touch a so b is the least recently used.
	if _, err := s.Load(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(c); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	if _, err := s.Load(a.ID); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads after hit = %d, want 0", back.loads)
	}

	// b was evicted and comes from the backing store.
	got, err := s.Load(b.ID)
	if err != nil {
		t.Fatalf("Load(b): %v", err)
	}
	if got.Text != "b" || back.loads != 1 {
		t.Errorf("Load(b) = %q with %d backing loads, want b with 1", got.Text, back.loads)
	}
}

func TestLRUStore_ResaveReplacesEntry(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)

	first := newRecord("a")
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	updated := *first
	updated.Text = "a2"
	if err := s.Save(&updated); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	got, err := s.Load(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "a2" {
		t.Errorf("Load().Text = %q, want a2", got.Text)
	}
}

func TestLRUStore_MinimumSize(t *testing.T) {
	s := NewLRUStore(0, &countingStore{})
	for _, r := range []*Record{newRecord("a"), newRecord("b")} {
		if err := s.Save(r); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestLRUStore_MissPropagatesError(t *testing.T) {
	s := NewLRUStore(1, &countingStore{})
	if _, err := s.Load(uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestRecord_Outcome(t *testing.T) {
	o := runner.NewError("bad\n")
	o.RunID = uuid.New().String()
	started := time.Now().Add(-time.Minute)
	rec := NewRecord(runner.Attempt{Target: "build", Outcome: &o, Started: started, Duration: 3 * time.Second}, "make", nil)
	if rec.Outcome() != o {
		t.Errorf("Outcome() = %v, want %v", rec.Outcome(), o)
	}
	if !rec.Started.Equal(started) || rec.Duration != 3*time.Second {
		t.Errorf("timing = %v (%v), want %v (3s)", rec.Started, rec.Duration, started)
	}
	if rec.CommandLine() != "make" {
		t.Errorf("CommandLine() = %q, want make", rec.CommandLine())
	}
}

func TestFormat(t *testing.T) {
	rec := &Record{
		ID:       "0b6d6c2e-8a7e-4e8b-9f0e-8d0c1c3b2a10",
		Command:  "/bin/sh",
		Args:     []string{"-c", "echo oops 1>&2"},
		Target:   "build",
		Kind:     runner.KindError,
		Text:     "oops",
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
	}
	want := `Run: 0b6d6c2e-8a7e-4e8b-9f0e-8d0c1c3b2a10
Target: build
Command: /bin/sh -c echo oops 1>&2
Started: 2026-01-02T03:04:05Z (1.5s)
Result: error

oops
`
	if got := Format(rec); got != want {
		t.Errorf("Format() =\n%s\nwant:\n%s", got, want)
	}
}
