package passes

import (
	"github.com/sirupsen/logrus"

	"github.com/paulyc/cvs2svn/internal/changeset"
	"github.com/paulyc/cvs2svn/internal/meta"
)

// FormChangesets runs P5: form changesets over the sorted revision stream,
// build the dependency graph, and break any cycles it contains.
func FormChangesets(logger *logrus.Logger, sorted []*meta.CVSRevision, symbols []*meta.Symbol, thresholdSeconds int64) (*changeset.Graph, error) {
	g, err := changeset.Build(logger, sorted, symbols, thresholdSeconds)
	if err != nil {
		return nil, err
	}
	if err := g.BreakCycles(); err != nil {
		return nil, err
	}
	return g, nil
}
