package passes

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/paulyc/cvs2svn/internal/artifact"
	"github.com/paulyc/cvs2svn/internal/config"
	"github.com/paulyc/cvs2svn/internal/delta"
	"github.com/paulyc/cvs2svn/internal/dumpfile"
	"github.com/paulyc/cvs2svn/internal/meta"
)

// trunkOnlyRevisions drops every revision not on TrunkLOD, for --trunk-only
// runs (spec §6's CLI surface): branch/tag symbols never get a changeset or
// a symbol fill when none of their revisions survive P5.
func trunkOnlyRevisions(revisions []*meta.CVSRevision) []*meta.CVSRevision {
	out := make([]*meta.CVSRevision, 0, len(revisions))
	for _, r := range revisions {
		if r.LOD == meta.TrunkLOD {
			out = append(out, r)
		}
	}
	return out
}

// declarePasses records every pass's produces/requires contract with mgr,
// in pipeline order, so Validate can catch a wiring mistake before any
// pass runs and Consumed can free each artifact once its last reader is
// done (spec.md §5).
func declarePasses(mgr *artifact.Manager) {
	mgr.Register(artifact.Declaration{Pass: "P1-collect", Produces: []artifact.Name{artifact.CVSFileDB, artifact.CVSRevisionStore, artifact.SymbolDB, artifact.MetadataDB, artifact.DefaultBranchDB}})
	mgr.Register(artifact.Declaration{Pass: "P2-resync", Requires: []artifact.Name{artifact.CVSRevisionStore}, Produces: []artifact.Name{artifact.ResyncHints}})
	mgr.Register(artifact.Declaration{Pass: "P3-sort", Requires: []artifact.Name{artifact.CVSRevisionStore, artifact.ResyncHints}, Produces: []artifact.Name{artifact.SortedRecords}})
	mgr.Register(artifact.Declaration{Pass: "P4-index", Requires: []artifact.Name{artifact.SortedRecords, artifact.SymbolDB}, Produces: []artifact.Name{artifact.LastSymbolSource}})
	mgr.Register(artifact.Declaration{Pass: "P5-changesets", Requires: []artifact.Name{artifact.SortedRecords, artifact.SymbolDB}, Produces: []artifact.Name{artifact.ChangesetStore, artifact.ItemToChangeset, artifact.DependencyGraph}})
	mgr.Register(artifact.Declaration{Pass: "P6-schedule", Requires: []artifact.Name{artifact.DependencyGraph}, Produces: []artifact.Name{artifact.SVNCommitDB}})
	mgr.Register(artifact.Declaration{Pass: "build-delta-store", Requires: []artifact.Name{artifact.CVSRevisionStore}, Produces: []artifact.Name{artifact.RCSDeltas}})
	mgr.Register(artifact.Declaration{Pass: "P7-P8-emit", Requires: []artifact.Name{artifact.SVNCommitDB, artifact.LastSymbolSource, artifact.RCSDeltas, artifact.MetadataDB, artifact.DefaultBranchDB}, Produces: []artifact.Name{artifact.SymbolOpenClose, artifact.SymbolOffsetsDB, artifact.Dumpfile, artifact.CVSRevToSVNRev}})
}

// Pipeline wires P1 through P8 over one CVS root, threading an explicit
// *config.Config and *logrus.Logger through each pass instead of relying
// on package state, generalizing how gitp4transfer's main loop threads a
// single *GitP4Transfer through its own pass functions.
type Pipeline struct {
	Config *config.Config
	Logger *logrus.Logger
	Mgr    *artifact.Manager
}

// NewPipeline creates a Pipeline backed by an artifact manager rooted at
// scratchDir.
func NewPipeline(cfg *config.Config, logger *logrus.Logger, scratchDir string, keepArtifacts bool) (*Pipeline, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("passes: creating scratch directory: %w", err)
	}
	return &Pipeline{Config: cfg, Logger: logger, Mgr: artifact.NewManager(scratchDir, keepArtifacts, logger)}, nil
}

// Run converts the CVS repository rooted at cvsRoot into delegate, the
// chosen dumpfile/repository/stdout sink (spec §9).
func (p *Pipeline) Run(cvsRoot string, delegate dumpfile.Delegate) error {
	declarePasses(p.Mgr)
	if err := p.Mgr.Validate(); err != nil {
		return err
	}

	p.Logger.Info("P1: collecting RCS history")
	collected, err := Collect(cvsRoot, p.Logger)
	if err != nil {
		return err
	}

	p.Logger.Info("P2: resyncing commit timestamps")
	Resync(collected.Revisions)
	if err := p.Mgr.Consumed([]artifact.Name{artifact.ResyncHints}); err != nil {
		return err
	}

	p.Logger.Info("P3: sorting the revision stream")
	sorted := Sort(collected.Revisions)
	if err := p.Mgr.Consumed([]artifact.Name{artifact.SortedRecords}); err != nil {
		return err
	}

	symbols := collected.Symbols
	if p.Config.TrunkOnly {
		p.Logger.Info("--trunk-only: dropping branch/tag symbols and non-trunk revisions")
		sorted = trunkOnlyRevisions(sorted)
		symbols = nil
	}

	p.Logger.Info("P4: indexing symbol sources")
	lastSymbolSource := Index(sorted, symbols)

	p.Logger.Info("P5: forming changesets")
	graph, err := FormChangesets(p.Logger, sorted, symbols, int64(p.Config.CommitThresholdSeconds))
	if err != nil {
		return err
	}

	p.Logger.Info("P6: scheduling the emission order")
	entries, err := SchedulePass(graph)
	if err != nil {
		return err
	}
	if err := p.Mgr.Consumed([]artifact.Name{artifact.DependencyGraph}); err != nil {
		return err
	}

	p.Logger.Info("building the delta store")
	store, err := delta.OpenStore(p.Mgr.Path(artifact.RCSDeltas))
	if err != nil {
		return err
	}
	defer store.Close()
	jobs, trees, err := BuildDeltaRecords(collected.Revisions, collected.Deltatext)
	if err != nil {
		return err
	}
	if err := store.RecordAll(jobs, 8); err != nil {
		return err
	}
	for fileID, tree := range trees {
		store.RegisterTree(fileID, tree)
	}
	engine := delta.NewEngine(store)

	p.Logger.Info("P7/P8: emitting the dumpfile stream")
	if err := Emit(delegate, p.Config, collected.Files, collected.Revisions, collected.Symbols, graph, entries, engine, collected.Metadata, lastSymbolSource); err != nil {
		return err
	}
	return p.Mgr.Consumed([]artifact.Name{artifact.RCSDeltas, artifact.LastSymbolSource, artifact.SVNCommitDB, artifact.MetadataDB, artifact.DefaultBranchDB, artifact.Dumpfile, artifact.CVSRevToSVNRev})
}

// NewRepositoryUUID generates a fresh repository UUID for the dumpfile
// header (spec §4.7). No library in the dependency set covers this single
// call, so it is hand-rolled from crypto/rand rather than pulled in for
// one function.
func NewRepositoryUUID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("passes: generating repository uuid: %w", err)
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
