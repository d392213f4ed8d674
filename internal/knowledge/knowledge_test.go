package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/relaybot/internal/tool"
)

func newTestKnowledge(t *testing.T, src Source) (*Knowledge, *letterEmbedder, *MemoryStore) {
	t.Helper()
	emb := &letterEmbedder{}
	store := NewMemoryStore()
	kb := New(Config{
		Name:        "Event Knowledge",
		Description: "Grounding docs.",
		MaxResults:  2,
		Embedder:    emb,
		Store:       store,
		Source:      src,
		Metadata:    map[string]string{"source": "local-knowledge"},
		Logger:      discardLogger(),
	})
	return kb, emb, store
}

func TestLoadAndSearch(t *testing.T) {
	t.Parallel()

	src := staticSource{
		{Name: "venue.md", Content: "The venue is in London near the river."},
		{Name: "food.md", Content: "Pizza pizza pizza and zucchini."},
		{Name: "prizes.md", Content: "Prizes: a trip and some hardware."},
	}
	kb, _, store := newTestKnowledge(t, src)

	n, err := kb.Load(context.Background(), src, map[string]string{"source": "test"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Fatalf("Load = %d chunks, want 3", n)
	}
	if c, _ := store.Count(context.Background()); c != 3 {
		t.Fatalf("Count = %d, want 3", c)
	}

	matches, err := kb.Search(context.Background(), "pizza zz", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want MaxResults 2", len(matches))
	}
	if matches[0].Document != "food.md" {
		t.Errorf("top match = %s, want food.md", matches[0].Document)
	}
	if matches[0].Metadata["source"] != "test" {
		t.Errorf("metadata not merged: %v", matches[0].Metadata)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("matches not sorted by score")
	}
}

func TestLoad_ReplacesDocumentChunks(t *testing.T) {
	t.Parallel()

	kb, _, store := newTestKnowledge(t, nil)
	ctx := context.Background()

	long := staticSource{{Name: "a.md", Content: strings.Repeat("x", 2500)}}
	if _, err := kb.Load(ctx, long, nil); err != nil {
		t.Fatal(err)
	}
	short := staticSource{{Name: "a.md", Content: "short"}}
	if _, err := kb.Load(ctx, short, nil); err != nil {
		t.Fatal(err)
	}
	if c, _ := store.Count(ctx); c != 1 {
		t.Fatalf("Count = %d, want stale chunks removed", c)
	}
}

func TestLoad_EmbedError(t *testing.T) {
	t.Parallel()

	kb, emb, _ := newTestKnowledge(t, nil)
	emb.err = errors.New("quota")
	_, err := kb.Load(context.Background(), staticSource{{Name: "a", Content: "x"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("err = %v, want embed failure", err)
	}
}

func TestReload_EmbedFailureKeepsChunks(t *testing.T) {
	t.Parallel()

	src := staticSource{{Name: "venue.md", Content: "The venue is the harbour hall."}}
	kb, emb, store := newTestKnowledge(t, src)
	ctx := context.Background()

	if _, err := kb.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	emb.err = errors.New("embeddings api down")
	if _, err := kb.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	if c, _ := store.Count(ctx); c != 1 {
		t.Fatalf("Count = %d after failed reload, want 1", c)
	}
}

func TestLoad_EmptyDocumentClearsChunks(t *testing.T) {
	t.Parallel()

	kb, _, store := newTestKnowledge(t, nil)
	ctx := context.Background()

	if _, err := kb.Load(ctx, staticSource{{Name: "a.md", Content: "hello"}}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := kb.Load(ctx, staticSource{{Name: "a.md", Content: "  "}}, nil); err != nil {
		t.Fatal(err)
	}
	if c, _ := store.Count(ctx); c != 0 {
		t.Fatalf("Count = %d, want 0", c)
	}
}

func TestSearch_NotConfigured(t *testing.T) {
	t.Parallel()

	kb := New(Config{Logger: discardLogger()})
	if _, err := kb.Search(context.Background(), "q", 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := kb.Reload(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Reload err = %v, want ErrNoSource", err)
	}
}

func TestSearch_UsesCache(t *testing.T) {
	t.Parallel()

	emb := &letterEmbedder{}
	cache := newMapCache()
	kb := New(Config{Embedder: emb, Store: NewMemoryStore(), Cache: cache, CacheTTL: 42, Logger: discardLogger()})

	for range 3 {
		if _, err := kb.Search(context.Background(), "same query", 1); err != nil {
			t.Fatal(err)
		}
	}
	if got := emb.calls.Load(); got != 1 {
		t.Errorf("embed calls = %d, want 1", got)
	}
	if len(cache.ttls) != 1 || cache.ttls[0] != 42 {
		t.Errorf("cache ttls = %v", cache.ttls)
	}
}

func TestDirSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("faq.md", "faq")
	write("sub/agenda.TXT", "agenda")
	write("logo.png", "binary")
	write(".git/notes.md", "hidden")

	docs, err := NewDirSource(dir).Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(docs), docs)
	}
	if docs[0].Name != "faq.md" || docs[1].Name != "sub/agenda.TXT" {
		t.Errorf("names = %s, %s", docs[0].Name, docs[1].Name)
	}
	if docs[1].Metadata["path"] != "sub/agenda.TXT" {
		t.Errorf("metadata = %v", docs[1].Metadata)
	}
}

func TestDirSource_Missing(t *testing.T) {
	t.Parallel()

	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope")).Documents(context.Background())
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestEnsureLoaded(t *testing.T) {
	t.Parallel()

	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "a.md"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	storage := filepath.Join(t.TempDir(), "storage")
	kb, emb, _ := newTestKnowledge(t, NewDirSource(docs))

	loaded, err := kb.EnsureLoaded(context.Background(), storage)
	if err != nil || !loaded {
		t.Fatalf("first EnsureLoaded = %v, %v; want true, nil", loaded, err)
	}
	data, err := os.ReadFile(filepath.Join(storage, MarkerFile))
	if err != nil || string(data) != "initialized" {
		t.Fatalf("marker = %q, %v", data, err)
	}

	calls := emb.calls.Load()
	loaded, err = kb.EnsureLoaded(context.Background(), storage)
	if err != nil || loaded {
		t.Fatalf("second EnsureLoaded = %v, %v; want false, nil", loaded, err)
	}
	if emb.calls.Load() != calls {
		t.Error("second EnsureLoaded must not re-embed")
	}
}

func TestEnsureLoaded_MissingSourceWritesMarker(t *testing.T) {
	t.Parallel()

	storage := t.TempDir()
	kb, _, _ := newTestKnowledge(t, NewDirSource(filepath.Join(storage, "missing")))

	loaded, err := kb.EnsureLoaded(context.Background(), storage)
	if err != nil || loaded {
		t.Fatalf("EnsureLoaded = %v, %v; want false, nil", loaded, err)
	}
	if _, err := os.Stat(filepath.Join(storage, MarkerFile)); err != nil {
		t.Fatalf("marker missing: %v", err)
	}
}

func TestSearchTool(t *testing.T) {
	t.Parallel()

	src := staticSource{{Name: "venue.md", Content: "London venue"}}
	kb, _, _ := newTestKnowledge(t, src)
	if _, err := kb.Load(context.Background(), src, nil); err != nil {
		t.Fatal(err)
	}

	st := NewSearchTool(kb)
	if st.Name() != SearchToolName {
		t.Errorf("Name = %s", st.Name())
	}
	if !json.Valid(st.Schema()) {
		t.Error("schema is not valid JSON")
	}

	out, err := st.Execute(context.Background(), json.RawMessage(`{"query":"london"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var refs []map[string]any
	if err := json.Unmarshal([]byte(out.Content), &refs); err != nil {
		t.Fatalf("output is not a JSON list: %v\n%s", err, out.Content)
	}
	if len(refs) != 1 || refs[0]["name"] != "venue.md" {
		t.Errorf("refs = %v", refs)
	}

	out, err = st.Execute(context.Background(), json.RawMessage(`{"query":"  "}`))
	if err != nil || !out.IsError {
		t.Errorf("blank query = %+v, %v; want error output", out, err)
	}

	_, err = st.Execute(context.Background(), json.RawMessage(`{"query":1}`))
	if !errors.Is(err, tool.ErrInvalidArguments) {
		t.Errorf("err = %v, want ErrInvalidArguments", err)
	}
}

func TestSearchTool_NoDocuments(t *testing.T) {
	t.Parallel()

	kb, _, _ := newTestKnowledge(t, nil)
	out, err := NewSearchTool(kb).Execute(context.Background(), json.RawMessage(`{"query":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != "No documents found" {
		t.Errorf("Content = %q", out.Content)
	}
}
