// Package dumpfile implements spec.md §4.7 and §9: an SVN dumpfile
// format v2 writer, and the "mirror delegate" sum type that lets the same
// emission logic target a dumpfile, an already-checked-out repository
// working copy, or stdout. The thin line-oriented wrapping of an
// io.Writer is grounded on journal.Journal's SetWriter/WriteHeader/
// WriteChange/WriteRev pattern, generalized from p4-journal record lines
// to SVN dumpfile header/property/node blocks.
package dumpfile

import (
	"crypto/md5"
	"fmt"
	"io"
	"sort"
)

// Writer emits SVN dumpfile format v2 records to an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w. Call WriteFormatHeader and WriteUUID once before any
// revisions.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// SetWriter replaces the underlying io.Writer, mirroring Journal.SetWriter
// so callers can redirect output (e.g. to a temp file, then to stdout).
func (w *Writer) SetWriter(dest io.Writer) { w.w = dest }

// WriteFormatHeader writes the dumpfile's leading version line, per
// spec §4.7's byte-exact contract.
func (w *Writer) WriteFormatHeader() error {
	_, err := fmt.Fprint(w.w, "SVN-fs-dump-format-version: 2\n\n")
	return err
}

// WriteUUID writes the repository UUID header, present once at the top
// of a dumpfile produced for a fresh repository.
func (w *Writer) WriteUUID(uuid string) error {
	_, err := fmt.Fprintf(w.w, "UUID: %s\n\n", uuid)
	return err
}

func propBlock(props map[string]string) []byte {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	for _, k := range keys {
		v := props[k]
		buf = append(buf, fmt.Sprintf("K %d\n%s\nV %d\n%s\n", len(k), k, len(v), v)...)
	}
	buf = append(buf, "PROPS-END\n"...)
	return buf
}

// StartRevision writes a revision header and its property block. props
// typically carries svn:author, svn:log and svn:date (spec §4.7 step 2).
func (w *Writer) StartRevision(revnum int, props map[string]string) error {
	block := propBlock(props)
	_, err := fmt.Fprintf(w.w,
		"Revision-number: %d\nProp-content-length: %d\nContent-length: %d\n\n%s\n",
		revnum, len(block), len(block), block)
	return err
}

// NodeKind is "file" or "dir" for the Node-kind header.
type NodeKind string

const (
	KindFile NodeKind = "file"
	KindDir  NodeKind = "dir"
)

// NodeAction is the Node-action header value.
type NodeAction string

const (
	ActionAdd    NodeAction = "add"
	ActionChange NodeAction = "change"
	ActionDelete NodeAction = "delete"
	ActionReplace NodeAction = "replace"
)

// Node describes one dumpfile node record (spec §4.7 step 3 / §4.7's
// byte-exact contract). CopyFromPath/CopyFromRev are set only for
// content-free copy operations; Content is set only when the node adds or
// changes file content.
type Node struct {
	Path         string
	Kind         NodeKind
	Action       NodeAction
	CopyFromPath string
	CopyFromRev  int
	Props        map[string]string
	Content      []byte // nil for directory/delete/copy-only nodes
}

// WriteNode emits one node record, including a length prefix and an MD5
// content hash when content is present, per spec §4.7 step 3(ii).
func (w *Writer) WriteNode(n Node) error {
	propBuf := propBlock(n.Props)
	total := len(propBuf) + len(n.Content)

	if _, err := fmt.Fprintf(w.w, "Node-path: %s\n", n.Path); err != nil {
		return err
	}
	if n.Kind != "" {
		if _, err := fmt.Fprintf(w.w, "Node-kind: %s\n", n.Kind); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w.w, "Node-action: %s\n", n.Action); err != nil {
		return err
	}
	if n.CopyFromPath != "" {
		if _, err := fmt.Fprintf(w.w, "Node-copyfrom-rev: %d\nNode-copyfrom-path: %s\n", n.CopyFromRev, n.CopyFromPath); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w.w, "Prop-content-length: %d\n", len(propBuf)); err != nil {
		return err
	}
	if n.Content != nil {
		sum := md5.Sum(n.Content)
		if _, err := fmt.Fprintf(w.w, "Text-content-length: %d\nText-content-md5: %x\n", len(n.Content), sum); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w.w, "Content-length: %d\n\n", total); err != nil {
		return err
	}
	if _, err := w.w.Write(propBuf); err != nil {
		return err
	}
	if n.Content != nil {
		if _, err := w.w.Write(n.Content); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w.w, "\n\n")
	return err
}
