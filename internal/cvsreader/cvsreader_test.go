package cvsreader

import (
	"strings"
	"testing"
	"time"
)

// sample is a minimal but structurally complete RCS ",v" file: one head
// revision, one branch revision, one symbol, log/text for each.
const sample = `head	1.2;
access;
symbols
	REL1_0:1.1
	mybranch:1.1.0.2;
locks; strict;
comment	@# @;


1.2
date	2024.03.15.10.30.00;	author alice;	state Exp;
branches;
next	1.1;

1.1
date	2024.03.14.09.00.00;	author bob;	state Exp;
branches
	1.1.2.1;
next	;


desc
@Initial description.
@


1.2
log
@Second revision.
@
text
@line one
line two
@


1.1
log
@First revision.
@
text
@line one
@
`

type recordingVisitor struct {
	principalBranch string
	expansion       string
	tags            map[string]string
	revisions       []string
	revInfo         map[string]struct{ log, text string }
	treeCompleted   bool
	timestamps      map[string]time.Time
	authors         map[string]string
}

func newRecordingVisitor() *recordingVisitor {
	return &recordingVisitor{
		tags:       make(map[string]string),
		revInfo:    make(map[string]struct{ log, text string }),
		timestamps: make(map[string]time.Time),
		authors:    make(map[string]string),
	}
}

func (v *recordingVisitor) SetPrincipalBranch(num string) { v.principalBranch = num }
func (v *recordingVisitor) SetExpansion(mode string)       { v.expansion = mode }
func (v *recordingVisitor) DefineTag(name, rev string)     { v.tags[name] = rev }
func (v *recordingVisitor) DefineRevision(rev string, ts time.Time, author, state string, branches []string, next string) {
	v.revisions = append(v.revisions, rev)
	v.timestamps[rev] = ts
	v.authors[rev] = author
}
func (v *recordingVisitor) TreeCompleted() { v.treeCompleted = true }
func (v *recordingVisitor) SetRevisionInfo(rev, log, text string) {
	v.revInfo[rev] = struct{ log, text string }{log, text}
}

func TestParseDrivesVisitorInOrder(t *testing.T) {
	v := newRecordingVisitor()
	p := NewParser(NewLexer(strings.NewReader(sample)), "test.c,v")
	if err := p.Parse(v); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !v.treeCompleted {
		t.Fatalf("TreeCompleted was never called")
	}
	if got, want := v.tags["REL1_0"], "1.1"; got != want {
		t.Fatalf("tag REL1_0 = %q, want %q", got, want)
	}
	if got, want := v.tags["mybranch"], "1.1.0.2"; got != want {
		t.Fatalf("tag mybranch = %q, want %q", got, want)
	}
	if len(v.revisions) != 2 {
		t.Fatalf("revisions = %v, want 2 entries", v.revisions)
	}
	if v.authors["1.2"] != "alice" || v.authors["1.1"] != "bob" {
		t.Fatalf("authors = %v", v.authors)
	}
	wantTS := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	if !v.timestamps["1.2"].Equal(wantTS) {
		t.Fatalf("timestamp 1.2 = %v, want %v", v.timestamps["1.2"], wantTS)
	}

	info12 := v.revInfo["1.2"]
	if !strings.Contains(info12.log, "Second revision") {
		t.Fatalf("log for 1.2 = %q", info12.log)
	}
	if !strings.Contains(info12.text, "line one\nline two") {
		t.Fatalf("text for 1.2 = %q", info12.text)
	}
	info11 := v.revInfo["1.1"]
	if !strings.Contains(info11.text, "line one") {
		t.Fatalf("text for 1.1 = %q", info11.text)
	}
}

func TestLexerCollapsesDoubledAtEscape(t *testing.T) {
	l := NewLexer(strings.NewReader("@it said @@hello@@ to me@"))
	tok := l.NextToken()
	if tok.Type != TokenString {
		t.Fatalf("type = %v, want string", tok.Type)
	}
	want := "it said @hello@ to me"
	if tok.Value != want {
		t.Fatalf("value = %q, want %q", tok.Value, want)
	}
}

func TestLexerTokenizesRevisionNumbersAndSemicolons(t *testing.T) {
	l := NewLexer(strings.NewReader("1.2.3.4; next 1.1;"))
	tok := l.NextToken()
	if tok.Type != TokenNumber || tok.Value != "1.2.3.4" {
		t.Fatalf("got %v %q", tok.Type, tok.Value)
	}
	tok = l.NextToken()
	if tok.Type != TokenSemicolon {
		t.Fatalf("expected semicolon, got %v", tok.Type)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdent || tok.Value != "next" {
		t.Fatalf("got %v %q", tok.Type, tok.Value)
	}
}

func TestParseRCSDateTwoDigitYearConvention(t *testing.T) {
	got := parseRCSDate("95.03.15.10.30.00")
	if got.Year() != 1995 {
		t.Fatalf("year = %d, want 1995", got.Year())
	}
	got = parseRCSDate("05.03.15.10.30.00")
	if got.Year() != 2005 {
		t.Fatalf("year = %d, want 2005", got.Year())
	}
}

func TestParseRejectsMissingDesc(t *testing.T) {
	broken := "head 1.1;\nsymbols;\n\n1.1\ndate 2024.01.01.00.00.00;\tauthor a;\tstate Exp;\nbranches;\nnext ;\n\nnotdesc\n@x@\n"
	v := newRecordingVisitor()
	p := NewParser(NewLexer(strings.NewReader(broken)), "broken.c,v")
	if err := p.Parse(v); err == nil {
		t.Fatalf("expected parse error for missing desc field")
	}
}
