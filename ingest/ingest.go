// Package ingest feeds histogram models from trace sources.
//
// A Request pulls records from a Source one at a time and counts them in a model. Requests can be cancelled between
// any two records, which leaves the model in a consistent but incomplete state.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"honnef.co/go/tracehist/histogram"

	"github.com/pkg/errors"
)

type RecordKind uint8

const (
	// An event at Time, originating from Source.
	KindEvent RecordKind = iota
	// Count events were lost between Start and End.
	KindLost
	// The source declares the sources its events originate from.
	KindSources
)

type Record struct {
	Kind   RecordKind
	Time   int64
	Source histogram.SourceID

	Start, End, Count int64

	Sources []histogram.SourceID
}

// A Source produces records. Next returns io.EOF once there are no more records.
type Source interface {
	Next() (Record, error)
}

// staticTrace is a histogram.Trace with a fixed list of sources.
type staticTrace []histogram.SourceID

func (tr staticTrace) Sources() []histogram.SourceID { return tr }

// A Request counts all records of a source in a model.
type Request struct {
	Model  *histogram.Model
	Source Source
	// Whether the request covers the whole trace. Lost event ranges then extend the model's time range.
	FullRange bool
	// Defaults to slog.Default.
	Logger *slog.Logger
	// Optional.
	Metrics *Metrics
}

type Result struct {
	// Number of events read from the source, including dropped ones.
	Read int64
	// Number of events the model ignored because of negative timestamps.
	Dropped int64
	// Number of lost events reported by the source.
	Lost int64
	// Whether the request stopped because its context was cancelled.
	Cancelled bool
}

// Run reads records until the source is exhausted, the source fails, or ctx is cancelled. In every case, the model's
// listeners are notified once Run is done. If ctx is cancelled, Run returns the partial result and ctx's error.
func (req *Request) Run(ctx context.Context) (res Result, err error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	t0 := time.Now()
	log.Debug("starting ingestion", "full_range", req.FullRange)
	defer func() {
		req.Model.Complete()

		outcome := outcomeComplete
		switch {
		case res.Cancelled:
			outcome = outcomeCancelled
		case err != nil:
			outcome = outcomeFailed
		}
		req.Metrics.requestDone(outcome)
		log.Info("ingestion finished",
			"outcome", outcome,
			"events", res.Read,
			"dropped", res.Dropped,
			"lost", res.Lost,
			"duration", time.Since(t0))
	}()

	for {
		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			return res, err
		}

		rec, err := req.Source.Next()
		if err != nil {
			if err == io.EOF {
				return res, nil
			}
			return res, errors.Wrapf(err, "reading record %d", res.Read+1)
		}

		switch rec.Kind {
		case KindEvent:
			res.Read++
			if rec.Time < 0 {
				res.Dropped++
				req.Metrics.dropped()
			} else {
				req.Metrics.counted()
			}
			req.Model.CountEvent(res.Read, rec.Time, rec.Source)
		case KindLost:
			if rec.Count > 0 {
				res.Lost += rec.Count
				req.Metrics.lost(rec.Count)
			}
			req.Model.CountLostEvent(rec.Start, rec.End, rec.Count, req.FullRange)
		case KindSources:
			log.Debug("source declared its sources", "sources", rec.Sources)
			req.Model.SetTrace(staticTrace(rec.Sources))
		default:
			return res, errors.Errorf("unknown record kind %d", rec.Kind)
		}
	}
}
