package tripod

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/dataset"
)

// TestBridgeOverDatasetFile runs the whole path: build a dataset file, map it
// through the default engine, search it asynchronously, close.
func TestBridgeOverDatasetFile(t *testing.T) {
	triples := []core.Triple{
		{Subject: "http://ex.org/alice", Predicate: "http://ex.org/knows", Object: "http://ex.org/bob"},
		{Subject: "http://ex.org/alice", Predicate: "http://ex.org/name", Object: `"Alice"@en`},
		{Subject: "http://ex.org/bob", Predicate: "http://ex.org/knows", Object: "http://ex.org/carol"},
		{Subject: "http://ex.org/bob", Predicate: "http://ex.org/name", Object: `"Bob"`},
		{Subject: "_:b0", Predicate: "http://ex.org/knows", Object: "http://ex.org/alice"},
	}

	path := filepath.Join(t.TempDir(), "people.tpd")
	info, err := dataset.BuildFile(context.Background(), path, dataset.NewSliceSource(triples))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if info.NumTriples != len(triples) {
		t.Fatalf("built %d triples, want %d", info.NumTriples, len(triples))
	}

	b := New(WithWorkers(2))
	defer b.Close()

	doc, err := openSync(t, b, path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if got := doc.NumTriples(); got != len(triples) {
		t.Fatalf("NumTriples = %d, want %d", got, len(triples))
	}

	all, err := searchSync(t, doc, "", "", "")
	if err != nil {
		t.Fatalf("full scan failed: %v", err)
	}
	if len(all) != len(triples) {
		t.Fatalf("full scan returned %d triples, want %d", len(all), len(triples))
	}

	knows, err := searchSync(t, doc, "", "http://ex.org/knows", "")
	if err != nil {
		t.Fatalf("predicate search failed: %v", err)
	}
	if len(knows) != 3 {
		t.Fatalf("knows search returned %d triples, want 3", len(knows))
	}
	for _, tr := range knows {
		if tr.Predicate != "http://ex.org/knows" {
			t.Fatalf("predicate search leaked %v", tr)
		}
	}

	name, err := searchSync(t, doc, "http://ex.org/alice", "http://ex.org/name", "")
	if err != nil {
		t.Fatalf("bound search failed: %v", err)
	}
	if len(name) != 1 || name[0].Object != `"Alice"@en` {
		t.Fatalf("bound search = %v, want Alice's name literal", name)
	}

	none, err := searchSync(t, doc, "http://ex.org/nobody", "", "")
	if err != nil {
		t.Fatalf("miss search failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("miss search returned %d triples, want 0", len(none))
	}

	doc.Close()
	if _, err := searchSync(t, doc, "", "", ""); err == nil {
		t.Fatal("search succeeded on a closed document")
	}
}
