package main

// cvs2svn-filter program
// Prunes and renames RCS paths in a CVS working copy before P1 runs,
// copying only the ,v files (and Attic siblings) that survive an
// include/exclude path-regex filter into a new tree, generalizing
// cmd/gitfilter's blob/path filtering of a git fast-export stream to a
// filesystem walk over RCS files.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/paulyc/cvs2svn/internal/buildinfo"
)

// humanize renders a byte count the way cmd/gitgraph's Humanize does, for
// the summary line this tool prints when it is done.
func humanize(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}

// FilterOptions mirrors the teacher's GitFilterOptions shape, generalized
// from a single fast-export file's options to a source/dest directory walk.
type FilterOptions struct {
	srcRoot     string
	destRoot    string
	includeRe   string
	excludeRe   string
	renameFrom  string
	renameTo    string
	maxFiles    int
	dryRun      bool
}

// Filter walks srcRoot copying ,v files into destRoot, applying the
// include/exclude regexes and directory rename.
type Filter struct {
	logger      *logrus.Logger
	opts        FilterOptions
	includeRe   *regexp.Regexp
	excludeRe   *regexp.Regexp
	filesCopied int
	bytesCopied int64
	filesSkipped int
}

func NewFilter(logger *logrus.Logger, opts FilterOptions) (*Filter, error) {
	f := &Filter{logger: logger, opts: opts}
	if opts.includeRe != "" {
		re, err := regexp.Compile(opts.includeRe)
		if err != nil {
			return nil, fmt.Errorf("cvs2svn-filter: invalid --include regex: %w", err)
		}
		f.includeRe = re
	}
	if opts.excludeRe != "" {
		re, err := regexp.Compile(opts.excludeRe)
		if err != nil {
			return nil, fmt.Errorf("cvs2svn-filter: invalid --exclude regex: %w", err)
		}
		f.excludeRe = re
	}
	return f, nil
}

// matches reports whether relPath (the file's path relative to srcRoot,
// with the ,v suffix and any Attic component already stripped) survives
// the include/exclude filter.
func (f *Filter) matches(relPath string) bool {
	if f.includeRe != nil && !f.includeRe.MatchString(relPath) {
		return false
	}
	if f.excludeRe != nil && f.excludeRe.MatchString(relPath) {
		return false
	}
	return true
}

// renamed applies the single directory rename this tool supports, the same
// "--rename" shape gitfilter uses for ref renames but applied to a path
// prefix instead of a git ref name.
func (f *Filter) renamed(relPath string) string {
	if f.opts.renameFrom == "" {
		return relPath
	}
	if relPath == f.opts.renameFrom {
		return f.opts.renameTo
	}
	if strings.HasPrefix(relPath, f.opts.renameFrom+"/") {
		return f.opts.renameTo + relPath[len(f.opts.renameFrom):]
	}
	return relPath
}

// Run walks the source tree, copying every ,v file whose logical CVS path
// (Attic-stripped, ,v-stripped) matches the filter.
func (f *Filter) Run() error {
	return filepath.Walk(f.opts.srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ",v") {
			return nil
		}
		rel, err := filepath.Rel(f.opts.srcRoot, path)
		if err != nil {
			return err
		}
		logical := stripAttic(rel)
		if !f.matches(logical) {
			f.filesSkipped++
			f.logger.Debugf("skip: %s", rel)
			return nil
		}
		if f.opts.maxFiles > 0 && f.filesCopied >= f.opts.maxFiles {
			return filepath.SkipDir
		}

		destRel := f.renamed(rel)
		destPath := filepath.Join(f.opts.destRoot, destRel)
		f.logger.Infof("copy: %s -> %s", rel, destRel)
		if f.opts.dryRun {
			f.filesCopied++
			return nil
		}
		n, err := copyFile(path, destPath)
		if err != nil {
			return fmt.Errorf("cvs2svn-filter: copying %s: %w", rel, err)
		}
		f.filesCopied++
		f.bytesCopied += n
		return nil
	})
}

func copyFile(src, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	source, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer source.Close()
	destination, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer destination.Close()
	return io.Copy(destination, source)
}

func main() {
	var (
		srcRoot = kingpin.Arg(
			"cvsroot",
			"CVS repository root directory to filter.",
		).Required().String()
		destRoot = kingpin.Arg(
			"output",
			"Destination directory to write the filtered tree to.",
		).Required().String()
		include = kingpin.Flag(
			"include",
			"Regex matched against each file's logical CVS path (Attic/,v stripped); only matches are kept.",
		).String()
		exclude = kingpin.Flag(
			"exclude",
			"Regex matched against each file's logical CVS path; matches are dropped.",
		).String()
		renameFrom = kingpin.Flag(
			"rename-from",
			"Directory prefix to rename (used together with --rename-to).",
		).String()
		renameTo = kingpin.Flag(
			"rename-to",
			"Replacement for --rename-from.",
		).String()
		maxFiles = kingpin.Flag(
			"max.files",
			"Max number of ,v files to copy (default 0 means all).",
		).Default("0").Short('m').Int()
		dryRun = kingpin.Flag(
			"dry-run",
			"List what would be copied without writing anything.",
		).Short('n').Bool()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Default("0").Int()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(buildinfo.Print("cvs2svn-filter")).Author("cvs2svn")
	kingpin.CommandLine.Help = "Prunes and renames RCS paths in a CVS working copy before conversion\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug > 0 {
		logger.Level = logrus.DebugLevel
	}
	startTime := time.Now()
	logger.Infof("%v", buildinfo.Print("cvs2svn-filter"))
	logger.Infof("Starting %s, cvsroot: %v, output: %v", startTime, *srcRoot, *destRoot)

	f, err := NewFilter(logger, FilterOptions{
		srcRoot:    *srcRoot,
		destRoot:   *destRoot,
		includeRe:  *include,
		excludeRe:  *exclude,
		renameFrom: *renameFrom,
		renameTo:   *renameTo,
		maxFiles:   *maxFiles,
		dryRun:     *dryRun,
	})
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := f.Run(); err != nil {
		logger.Fatalf("%v", err)
	}
	logger.Infof("Copied %d files (%s), skipped %d, in %s", f.filesCopied, humanize(f.bytesCopied), f.filesSkipped, time.Since(startTime))
}
