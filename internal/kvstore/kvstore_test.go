package kvstore

import (
	"path/filepath"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := Open(path, "records", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put(1, []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := s.Get(1)
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get(1) = %q, %v, %v; want hello, true, nil", v, ok, err)
	}
	if _, ok, _ := s.Get(2); ok {
		t.Fatalf("Get(2) should not exist")
	}
	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(1); ok {
		t.Fatalf("Get(1) should not exist after Delete")
	}
}

func TestEachIteratesInOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), "records", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	for _, id := range []int64{3, 1, 2} {
		if err := s.Put(id, []byte{byte(id)}); err != nil {
			t.Fatalf("Put(%d): %v", id, err)
		}
	}
	var seen []int64
	err = s.Each(func(id int64, value []byte) error {
		seen = append(seen, id)
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	want := []int64{1, 2, 3}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := Open(path, "records", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put(1, []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	ro, err := Open(path, "records", true)
	if err != nil {
		t.Fatalf("Open readonly: %v", err)
	}
	defer ro.Close()
	if err := ro.Put(2, []byte("y")); err == nil {
		t.Fatalf("expected error writing to read-only store")
	}
}
