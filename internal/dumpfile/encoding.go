package dumpfile

import (
	"fmt"
	"unicode/utf8"
)

// EncodeLog converts a log message that may be in an arbitrary declared
// byte encoding to UTF-8. Per spec §9/§4.7 step 2, conversion failure is
// lossy: invalid bytes are replaced rather than aborting the run, and the
// caller is expected to log a warning when ok is false.
//
// No example repo or library in the pack imports a non-UTF-8 text
// decoder for this exact declared-encoding-name case (golang.org/x/text/
// encoding/ianaindex family is absent from the import graph), so this
// implements the "assume UTF-8, replace invalid sequences" fallback
// directly against unicode/utf8 rather than reaching for a full charmap
// registry.
func EncodeLog(raw []byte) (s string, ok bool) {
	if utf8.Valid(raw) {
		return string(raw), true
	}
	out := make([]rune, 0, len(raw))
	valid := true
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			out = append(out, utf8.RuneError)
			valid = false
			i++
			continue
		}
		out = append(out, r)
		i += size
	}
	return string(out), valid
}

// EncodePath validates that path is UTF-8; per spec §9, path conversion
// failures abort the run rather than degrade silently, because paths
// become dumpfile record keys Subversion must address byte-exactly.
func EncodePath(path string) (string, error) {
	if !utf8.ValidString(path) {
		return "", fmt.Errorf("dumpfile: path is not valid UTF-8: %q", path)
	}
	return path, nil
}
