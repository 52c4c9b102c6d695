package telemetry

import (
	"context"

	"github.com/grafana/pyroscope-go"
)

const maxLabelValueLength = 128

// ProfileLabels slice Pyroscope profiles. Values must stay low-cardinality:
// route templates and task names, never raw paths or ids.
type ProfileLabels struct {
	Area   string // "pos", "flowers", "scheduler"
	Route  string
	Method string
	Task   string
}

func (l ProfileLabels) pairs() []string {
	pairs := make([]string, 0, 8)
	for _, kv := range [][2]string{
		{"area", l.Area},
		{"method", l.Method},
		{"route", l.Route},
		{"task", l.Task},
	} {
		if kv[1] == "" {
			continue
		}
		v := kv[1]
		if len(v) > maxLabelValueLength {
			v = v[:maxLabelValueLength]
		}
		pairs = append(pairs, kv[0], v)
	}
	return pairs
}

// Profile runs fn with pprof labels attached to ctx
func Profile(ctx context.Context, labels ProfileLabels, fn func(context.Context)) {
	pairs := labels.pairs()
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}
