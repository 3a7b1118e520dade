package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/roach88/pipec/internal/ir"
)

func TestPutGet_RoundTrip(t *testing.T) {
	s, _ := createClockedStore(t)
	ctx := context.Background()
	src := localSource("ci/build.yml")
	content := strings.Repeat("build:\n  script: [make]\n", 50)

	if err := s.Put(ctx, src, fetched("build.yml", content), time.Minute); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, ok, err := s.Get(ctx, src)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !ok {
		t.Fatal("Get() missed a fresh entry")
	}
	if !bytes.Equal(got.Content, []byte(content)) {
		t.Errorf("content = %q, want %q", got.Content, content)
	}
	if got.Name != "build.yml" || got.Identity != "id-"+content {
		t.Errorf("metadata = (%q, %q)", got.Name, got.Identity)
	}
}

func TestGet_MissingEntry(t *testing.T) {
	s := createTestStore(t)

	got, ok, err := s.Get(context.Background(), localSource("nope.yml"))
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ok || got != nil {
		t.Errorf("Get() = (%v, %v), want miss", got, ok)
	}
}

func TestGet_ExpiredEntryIsMiss(t *testing.T) {
	s, clock := createClockedStore(t)
	ctx := context.Background()
	src := localSource("a.yml")

	if err := s.Put(ctx, src, fetched("a.yml", "a"), time.Minute); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, ok, _ := s.Get(ctx, src); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok, _ := s.Get(ctx, src); ok {
		t.Error("expired entry was returned")
	}
}

func TestPut_Overwrites(t *testing.T) {
	s, clock := createClockedStore(t)
	ctx := context.Background()
	src := localSource("a.yml")

	if err := s.Put(ctx, src, fetched("a.yml", "old"), time.Minute); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if err := s.Put(ctx, src, fetched("a.yml", "new"), time.Minute); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	got, ok, err := s.Get(ctx, src)
	if err != nil || !ok {
		t.Fatalf("Get() = (%v, %v)", ok, err)
	}
	if string(got.Content) != "new" {
		t.Errorf("content = %q, want %q", got.Content, "new")
	}
}

func TestPut_DefaultTTL(t *testing.T) {
	s, clock := createClockedStore(t)
	ctx := context.Background()
	src := localSource("a.yml")

	if err := s.Put(ctx, src, fetched("a.yml", "a"), 0); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	clock.Advance(DefaultTTL - time.Second)
	if _, ok, _ := s.Get(ctx, src); !ok {
		t.Error("entry expired before DefaultTTL")
	}
}

func TestPut_NilContent(t *testing.T) {
	s := createTestStore(t)
	if err := s.Put(context.Background(), localSource("a.yml"), nil, 0); err == nil {
		t.Error("expected error for nil content")
	}
}

func TestKeysSeparateSourceKinds(t *testing.T) {
	s, _ := createClockedStore(t)
	ctx := context.Background()
	local := localSource("ci.yml")
	project := ir.IncludeSource{Kind: ir.SourceProject, Project: "group/lib", Location: "ci.yml"}

	if err := s.Put(ctx, local, fetched("ci.yml", "local"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, project); ok {
		t.Error("project source hit the local entry")
	}
}

func TestListAndPurge(t *testing.T) {
	s, clock := createClockedStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, localSource("b.yml"), fetched("b.yml", "b"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, localSource("a.yml"), fetched("a.yml", "a"), time.Hour); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].Key != "local:a.yml" || entries[0].Expired {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Key != "local:b.yml" || !entries[1].Expired {
		t.Errorf("entries[1] = %+v", entries[1])
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("PurgeExpired() = (%d, %v), want (1, nil)", n, err)
	}
	n, err = s.Purge(ctx)
	if err != nil || n != 1 {
		t.Errorf("Purge() = (%d, %v), want (1, nil)", n, err)
	}

	entries, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() after purge = %v, want empty slice", entries)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("stages: [build, test]\n", 100))
	c := compress(data)
	if len(c) >= len(data) {
		t.Errorf("compressed %d bytes into %d", len(data), len(c))
	}
	out, err := decompress(c, len(data))
	if err != nil {
		t.Fatalf("decompress() failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("round trip changed the data")
	}
	if _, err := decompress(c, len(data)+1); err == nil {
		t.Error("expected size mismatch error")
	}
}
