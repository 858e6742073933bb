package dumpfile

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteFormatHeaderAndUUID(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFormatHeader(); err != nil {
		t.Fatalf("WriteFormatHeader: %v", err)
	}
	if err := w.WriteUUID("1234-uuid"); err != nil {
		t.Fatalf("WriteUUID: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "SVN-fs-dump-format-version: 2\n\n") {
		t.Fatalf("missing format header, got %q", got)
	}
	if !strings.Contains(got, "UUID: 1234-uuid\n\n") {
		t.Fatalf("missing UUID line, got %q", got)
	}
}

func TestStartRevisionWritesPropsEnd(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.StartRevision(1, map[string]string{"svn:author": "alice", "svn:log": "hi"})
	if err != nil {
		t.Fatalf("StartRevision: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Revision-number: 1\n") {
		t.Fatalf("missing revision number, got %q", got)
	}
	if !strings.Contains(got, "PROPS-END\n") {
		t.Fatalf("missing PROPS-END, got %q", got)
	}
	if !strings.Contains(got, "K 10\nsvn:author\nV 5\nalice\n") {
		t.Fatalf("malformed property block, got %q", got)
	}
}

func TestWriteNodeIncludesMD5AndLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteNode(Node{
		Path:    "trunk/a.txt",
		Kind:    KindFile,
		Action:  ActionAdd,
		Content: []byte("hello"),
	})
	if err != nil {
		t.Fatalf("WriteNode: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Node-path: trunk/a.txt\n") {
		t.Fatalf("missing Node-path, got %q", got)
	}
	if !strings.Contains(got, "Text-content-length: 5\n") {
		t.Fatalf("missing Text-content-length, got %q", got)
	}
	if !strings.Contains(got, "Text-content-md5: 5d41402abc4b2a76b9719d911017c592\n") {
		t.Fatalf("missing/incorrect md5, got %q", got)
	}
	if !strings.Contains(got, "hello") {
		t.Fatalf("missing content body, got %q", got)
	}
}

func TestWriteNodeCopyFromHeaders(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteNode(Node{
		Path:         "tags/T/a.txt",
		Action:       ActionAdd,
		CopyFromPath: "trunk/a.txt",
		CopyFromRev:  4,
	})
	if err != nil {
		t.Fatalf("WriteNode: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Node-copyfrom-rev: 4\n") || !strings.Contains(got, "Node-copyfrom-path: trunk/a.txt\n") {
		t.Fatalf("missing copyfrom headers, got %q", got)
	}
}

func TestDumpfileDelegateProducesWellFormedStream(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDumpfileDelegate(&buf, "uuid-1")
	if err != nil {
		t.Fatalf("NewDumpfileDelegate: %v", err)
	}
	if err := d.StartCommit(1, map[string]string{"svn:log": "init"}); err != nil {
		t.Fatalf("StartCommit: %v", err)
	}
	if err := d.InitializeProject("trunk"); err != nil {
		t.Fatalf("InitializeProject: %v", err)
	}
	if err := d.AddPath("trunk/a.txt", []byte("x")); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if err := d.EndCommit(); err != nil {
		t.Fatalf("EndCommit: %v", err)
	}
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Revision-number: 1\n") {
		t.Fatalf("missing revision, got %q", got)
	}
	if !strings.Contains(got, "Node-path: trunk/a.txt\n") {
		t.Fatalf("missing node, got %q", got)
	}
}

func TestEncodeLogValidUTF8PassesThrough(t *testing.T) {
	s, ok := EncodeLog([]byte("hello world"))
	if !ok || s != "hello world" {
		t.Fatalf("EncodeLog = %q, %v", s, ok)
	}
}

func TestEncodeLogInvalidUTF8FallsBackLossily(t *testing.T) {
	raw := []byte{0x68, 0x69, 0xff, 0x21} // "hi" + invalid byte + "!"
	s, ok := EncodeLog(raw)
	if ok {
		t.Fatalf("expected ok=false for invalid UTF-8 input")
	}
	if !strings.HasPrefix(s, "hi") || !strings.HasSuffix(s, "!") {
		t.Fatalf("EncodeLog lossy fallback = %q", s)
	}
}

func TestEncodePathRejectsInvalidUTF8(t *testing.T) {
	if _, err := EncodePath("trunk/ok.txt"); err != nil {
		t.Fatalf("EncodePath valid: %v", err)
	}
	if _, err := EncodePath(string([]byte{0xff, 0xfe})); err == nil {
		t.Fatalf("expected error for invalid UTF-8 path")
	}
}
