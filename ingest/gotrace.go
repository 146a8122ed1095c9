package ingest

import (
	"io"

	"honnef.co/go/tracehist/histogram"

	"github.com/pkg/errors"
	"golang.org/x/exp/trace"
)

var goTraceKinds = []trace.EventKind{
	trace.EventSync,
	trace.EventMetric,
	trace.EventLabel,
	trace.EventStackSample,
	trace.EventRangeBegin,
	trace.EventRangeActive,
	trace.EventRangeEnd,
	trace.EventTaskBegin,
	trace.EventTaskEnd,
	trace.EventRegionBegin,
	trace.EventRegionEnd,
	trace.EventLog,
	trace.EventStateTransition,
}

// GoTraceSource reads events from a Go execution trace. Events are attributed to their kind, so that a histogram can
// break down activity into state transitions, user annotations, samples and so on.
type GoTraceSource struct {
	r *trace.Reader
}

func NewGoTraceSource(r io.Reader) (*GoTraceSource, error) {
	tr, err := trace.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read trace header")
	}
	return &GoTraceSource{r: tr}, nil
}

func (src *GoTraceSource) Next() (Record, error) {
	ev, err := src.r.ReadEvent()
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, errors.Wrap(err, "couldn't read trace event")
	}
	return Record{
		Kind:   KindEvent,
		Time:   int64(ev.Time()),
		Source: histogram.SourceID(ev.Kind().String()),
	}, nil
}

// Sources implements histogram.Trace.
func (src *GoTraceSource) Sources() []histogram.SourceID {
	out := make([]histogram.SourceID, len(goTraceKinds))
	for i, k := range goTraceKinds {
		out[i] = histogram.SourceID(k.String())
	}
	return out
}
