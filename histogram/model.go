// Package histogram implements the data model behind a trace's event density histogram.
//
// A Model counts timestamped events into a fixed number of buckets. Buckets start out covering one time unit
// (a nanosecond) each. When an event doesn't fit into the span covered by the buckets, neighbouring buckets are
// merged and the duration of each bucket doubles. Events may arrive out of order; an event that predates the first
// bucket shifts the buckets to make room for it.
//
// Renderers don't read the buckets directly. Instead they ask for a projection of the model onto their drawing area
// with Model.ScaleTo, typically in response to a notification that the model changed.
package histogram

import (
	"fmt"
	"math"

	"honnef.co/go/tracehist/mysync"

	"golang.org/x/exp/slices"
)

const (
	// DefaultBucketCount is the number of buckets used by NewDefault. It is much larger than typical drawing areas
	// are wide, so that a projection can be recomputed for any width without going back to the trace.
	DefaultBucketCount = 16 * 1000

	// RefreshFrequency controls how often CountEvent notifies listeners. Listeners are notified whenever the
	// sequence number passed to CountEvent is a multiple of RefreshFrequency.
	RefreshFrequency = DefaultBucketCount
)

// SourceID identifies one of the sources events can originate from, for example one trace of an experiment.
type SourceID string

// A Trace is a collection of sources whose events are counted separately.
type Trace interface {
	Sources() []SourceID
}

// Model is a time-bucketed event histogram. It is safe for concurrent use. All of its methods are serialized by a
// single lock, so a projection computed by ScaleTo always reflects a consistent state of the model.
type Model struct {
	state *mysync.Mutex[*store]
	notifier
}

type store struct {
	nbBuckets int
	buckets   []Bucket
	lost      []int64

	// The start time the model was constructed with. Clear resets to it.
	startTime int64
	// Whether firstBucketTime has been established, either explicitly or by the first counted event.
	based bool

	bucketDuration  int64
	firstBucketTime int64
	firstEventTime  int64
	endTime         int64
	// Index of the highest bucket that has been written to, or -1 if no bucket has been.
	lastBucket int
	nbEvents   int64

	selectionBegin int64
	selectionEnd   int64

	trace      Trace
	sourceIdxs map[SourceID]int
	// Number of per-source counters, fixed when the trace is set.
	nbSrcs int
}

// NewDefault returns a model with DefaultBucketCount buckets, starting at time 0.
func NewDefault() *Model {
	return New(0, DefaultBucketCount)
}

// New returns a model with nbBuckets buckets whose first bucket starts at startTime. If startTime is 0, the first
// event counted determines the start of the first bucket. nbBuckets must be a positive, even number.
func New(startTime int64, nbBuckets int) *Model {
	if nbBuckets <= 0 || nbBuckets%2 != 0 {
		panic(fmt.Sprintf("invalid number of buckets %d", nbBuckets))
	}
	s := &store{
		nbBuckets: nbBuckets,
		startTime: startTime,
		buckets:   make([]Bucket, nbBuckets),
		lost:      make([]int64, nbBuckets),
		nbSrcs:    1,
	}
	s.clear()
	return &Model{state: mysync.NewMutex(s)}
}

// Clone returns a deep copy of the model's state. Listeners aren't copied.
func (m *Model) Clone() *Model {
	s, u := m.state.Lock()
	defer u.Unlock()

	ns := *s
	ns.buckets = make([]Bucket, len(s.buckets))
	for i, b := range s.buckets {
		ns.buckets[i] = b.clone()
	}
	ns.lost = slices.Clone(s.lost)
	if s.sourceIdxs != nil {
		ns.sourceIdxs = make(map[SourceID]int, len(s.sourceIdxs))
		for k, v := range s.sourceIdxs {
			ns.sourceIdxs[k] = v
		}
	}
	return &Model{state: mysync.NewMutex(&ns)}
}

// Clear resets the model to its initial, empty state and notifies listeners. The trace set with SetTrace is kept.
func (m *Model) Clear() {
	m.state.With(func(s *store) { s.clear() })
	m.fire()
}

func (s *store) clear() {
	clear(s.buckets)
	clear(s.lost)
	s.bucketDuration = 1
	s.firstBucketTime = s.startTime
	s.firstEventTime = s.startTime
	s.endTime = s.startTime
	s.selectionBegin = 0
	s.selectionEnd = 0
	s.lastBucket = -1
	s.nbEvents = 0
	s.based = s.startTime != 0
}

// SetTimeRange rebases the model at start and grows the bucket duration until end is covered. This is used to size
// the model ahead of time when the time range of the events is known.
func (m *Model) SetTimeRange(start, end int64) {
	m.state.With(func(s *store) {
		s.firstBucketTime = start
		s.firstEventTime = start
		s.endTime = start
		s.bucketDuration = 1
		s.based = true
		for !s.fits(end) {
			s.mergeBuckets()
		}
	})
}

// SetEndTime sets the end of the model's time range without changing any counts. The bucket containing end becomes
// the last bucket, even if it is empty. The index is clamped to the buckets that exist.
func (m *Model) SetEndTime(end int64) {
	m.state.With(func(s *store) {
		s.endTime = end
		if end < s.firstBucketTime {
			s.lastBucket = -1
			return
		}
		s.lastBucket = int(min(s.bucketOffset(end), uint64(s.nbBuckets-1)))
	})
}

// SetSelection stores the currently selected time range. The selection doesn't affect counting; it's carried over
// into projections.
func (m *Model) SetSelection(begin, end int64) {
	m.state.With(func(s *store) {
		s.selectionBegin = begin
		s.selectionEnd = end
	})
}

// SetSelectionNotifyListeners is like SetSelection but also notifies listeners.
func (m *Model) SetSelectionNotifyListeners(begin, end int64) {
	m.SetSelection(begin, end)
	m.fire()
}

// SetTrace sets the trace whose sources are counted separately. Passing nil stops tracking sources. Counts already
// in the model are not redistributed; callers normally call SetTrace on an empty model.
func (m *Model) SetTrace(tr Trace) {
	m.state.With(func(s *store) {
		s.trace = tr
		s.sourceIdxs = nil
		s.nbSrcs = 1
		if tr == nil {
			return
		}
		srcs := tr.Sources()
		s.nbSrcs = max(len(srcs), 1)
		s.sourceIdxs = make(map[SourceID]int, len(srcs))
		for i, src := range srcs {
			if _, ok := s.sourceIdxs[src]; !ok {
				s.sourceIdxs[src] = i
			}
		}
	})
}

// Trace returns the trace set with SetTrace.
func (m *Model) Trace() Trace {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.trace
}

// nbSources returns the number of per-source counters each bucket carries. Without a trace, there is one.
func (s *store) nbSources() int {
	return s.nbSrcs
}

// sourceIndex maps a source to its counter. Unknown sources are attributed to the first counter.
func (s *store) sourceIndex(src SourceID) int {
	if idx, ok := s.sourceIdxs[src]; ok {
		return idx
	}
	return 0
}

// bucketOffset returns the number of whole bucket durations between the start of the first bucket and ts. ts must
// not be smaller than firstBucketTime. firstBucketTime can be negative after a shift, so the distance is computed
// in uint64, where it always fits.
func (s *store) bucketOffset(ts int64) uint64 {
	return (uint64(ts) - uint64(s.firstBucketTime)) / uint64(s.bucketDuration)
}

// fits reports whether ts falls before the end of the last bucket.
func (s *store) fits(ts int64) bool {
	if ts < s.firstBucketTime {
		return true
	}
	return s.bucketOffset(ts) < uint64(s.nbBuckets)
}

func (s *store) timeLimit() int64 {
	room := uint64(math.MaxInt64) - uint64(s.firstBucketTime)
	if uint64(s.bucketDuration) > room/uint64(s.nbBuckets) {
		return math.MaxInt64
	}
	return int64(uint64(s.firstBucketTime) + uint64(s.nbBuckets)*uint64(s.bucketDuration))
}

// NbEvents returns the number of events that have been counted.
func (m *Model) NbEvents() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.nbEvents
}

func (m *Model) NbBuckets() int {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.nbBuckets
}

func (m *Model) BucketDuration() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.bucketDuration
}

func (m *Model) FirstBucketTime() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.firstBucketTime
}

// StartTime returns the time of the earliest event counted.
func (m *Model) StartTime() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.firstEventTime
}

func (m *Model) EndTime() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.endTime
}

func (m *Model) SelectionBegin() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.selectionBegin
}

func (m *Model) SelectionEnd() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.selectionEnd
}

// TimeLimit returns the end of the time span covered by the buckets, saturating at math.MaxInt64.
func (m *Model) TimeLimit() int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.timeLimit()
}

// LastBucket returns the index of the highest bucket in use, or -1 if the model is empty.
func (m *Model) LastBucket() int {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.lastBucket
}

// Bucket returns a copy of the i-th bucket.
func (m *Model) Bucket(i int) Bucket {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.buckets[i].clone()
}

// LostEvents returns the number of lost events attributed to the i-th bucket.
func (m *Model) LostEvents(i int) int64 {
	s, u := m.state.Lock()
	defer u.Unlock()
	return s.lost[i]
}
