package passes

import (
	"github.com/paulyc/cvs2svn/internal/changeset"
	"github.com/paulyc/cvs2svn/internal/schedule"
)

// SchedulePass runs P6: topologically order the changeset graph and
// assign each changeset an SVN revision number and a strictly increasing
// commit timestamp.
func SchedulePass(g *changeset.Graph) ([]schedule.Entry, error) {
	return schedule.Schedule(g)
}
