package cvsreader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileVisitor is called once per discovered RCS file during Walk.
type FileVisitor func(path string) error

// Walk descends root looking for RCS master files (suffix ",v"), calling
// visit for each one in lexical order. It mirrors the filepath.Walk
// idiom used elsewhere in the pack for tree traversal, rather than
// hand-rolling directory recursion.
func Walk(root string, visit FileVisitor) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("cvsreader: walking %s: %w", path, err)
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ",v") {
			return nil
		}
		return visit(path)
	})
}

// ParseFile opens path, lexes and parses it, and drives v. It is a
// convenience wrapper around NewLexer/NewParser for the common case of
// one file on disk.
func ParseFile(path string, v Visitor) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cvsreader: opening %s: %w", path, err)
	}
	defer f.Close()
	p := NewParser(NewLexer(f), path)
	return p.Parse(v)
}
