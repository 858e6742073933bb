package main

// cvs2svn-graph program
// This runs the collect/resync/sort/index/changeset passes over a CVS
// repository and writes the resulting changeset dependency graph as a
// Graphviz dot file, generalizing cmd/gitgraph's git-commit-graph renderer
// to the changeset.Graph this module builds instead of a parsed git
// fast-export stream.

import (
	"fmt"
	"os"
	"runtime"
	"time"

	graphviz "github.com/goccy/go-graphviz"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/paulyc/cvs2svn/internal/buildinfo"
	"github.com/paulyc/cvs2svn/internal/changeset"
	"github.com/paulyc/cvs2svn/internal/config"
	"github.com/paulyc/cvs2svn/internal/passes"
)

func main() {
	var (
		cvsRoot = kingpin.Arg(
			"cvsroot",
			"CVS repository root directory to walk.",
		).Required().String()
		configFile = kingpin.Flag(
			"config",
			"YAML configuration file (defaults are used if omitted).",
		).Short('c').String()
		outputDot = kingpin.Flag(
			"output",
			"Graphviz dot file to write the changeset graph to.",
		).Default("cvs2svn.dot").Short('o').String()
		renderFile = kingpin.Flag(
			"render",
			"Also render the graph to an image file; format is taken from its extension (.png, .svg).",
		).Short('r').String()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Default("0").Int()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(buildinfo.Print("cvs2svn-graph")).Author("cvs2svn")
	kingpin.CommandLine.Help = "Renders the changeset dependency graph of a CVS repository to a Graphviz dot file\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug > 0 {
		logger.Level = logrus.DebugLevel
	}
	startTime := time.Now()
	logger.Infof("%v", buildinfo.Print("cvs2svn-graph"))
	logger.Infof("Starting %s, cvsroot: %v", startTime, *cvsRoot)
	logger.Infof("OS: %s/%s", runtime.GOOS, runtime.GOARCH)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Fatalf("loading configuration: %v", err)
	}

	graph, err := buildGraph(logger, cfg, *cvsRoot)
	if err != nil {
		logger.Fatalf("building changeset graph: %v", err)
	}

	dg := graph.ToDot()
	if err := os.WriteFile(*outputDot, []byte(dg.String()), 0o644); err != nil {
		logger.Fatalf("writing %s: %v", *outputDot, err)
	}
	logger.Infof("wrote dot graph to %s", *outputDot)

	if *renderFile != "" {
		if err := render(dg.String(), *renderFile); err != nil {
			logger.Fatalf("rendering %s: %v", *renderFile, err)
		}
		logger.Infof("rendered graph to %s", *renderFile)
	}

	logger.Infof("Completed in %s", time.Since(startTime))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Unmarshal(nil)
	}
	return config.LoadFile(path)
}

// buildGraph runs P1 through P5 only: a dot render needs the changeset
// dependency graph, not a scheduled or emitted dumpfile.
func buildGraph(logger *logrus.Logger, cfg *config.Config, cvsRoot string) (*changeset.Graph, error) {
	collected, err := passes.Collect(cvsRoot, logger)
	if err != nil {
		return nil, err
	}
	passes.Resync(collected.Revisions)
	sorted := passes.Sort(collected.Revisions)
	return passes.FormChangesets(logger, sorted, collected.Symbols, int64(cfg.CommitThresholdSeconds))
}

func render(dotSrc, path string) error {
	format := graphviz.PNG
	switch ext(path) {
	case ".svg":
		format = graphviz.SVG
	case ".png":
		format = graphviz.PNG
	default:
		return fmt.Errorf("cvs2svn-graph: unrecognized render extension %q (want .png or .svg)", ext(path))
	}
	g := graphviz.New()
	parsed, err := graphviz.ParseBytes([]byte(dotSrc))
	if err != nil {
		return fmt.Errorf("cvs2svn-graph: parsing rendered dot source: %w", err)
	}
	return g.RenderFilename(parsed, format, path)
}

func ext(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
