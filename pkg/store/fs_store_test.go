package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFSStore(dir)
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(ctx, "profiles"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}

	doc := []byte(`{"profiles":[]}`)
	if err := s.Set(ctx, "profiles", doc); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, "profiles")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Fatalf("unexpected document %s", got)
	}

	if err := s.Delete(ctx, "profiles"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "profiles"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFSStoreKeySanitization(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFSStore(dir)
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Set(ctx, "../escape/attempt", []byte("x")); err != nil {
		t.Fatalf("set: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one file inside root, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".json" {
		t.Fatalf("unexpected file name %s", entries[0].Name())
	}
}

func TestFSStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Set(ctx, "audit", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "audit", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Get(ctx, "audit")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected latest value, got %s", got)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc := []byte("original")
	if err := s.Set(ctx, "k", doc); err != nil {
		t.Fatalf("set: %v", err)
	}
	doc[0] = 'X'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored value aliased caller slice: %s", got)
	}

	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Fatalf("returned value aliased stored slice: %s", again)
	}
}
