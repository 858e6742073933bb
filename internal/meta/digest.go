package meta

import "crypto/md5"

// DigestOf computes the fixed-width (author, log) digest used to group
// CVSRevisions into changesets (spec.md §4.2's same-commit rule keys on
// this digest).
func DigestOf(author, log string) Digest {
	h := md5.New()
	h.Write([]byte(author))
	h.Write([]byte{0})
	h.Write([]byte(log))
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
