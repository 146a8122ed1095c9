package histogram

import (
	"fmt"
	"math"
)

// ScaledData is a projection of a model onto a drawing area. Each of its bars covers BucketDuration nanoseconds.
type ScaledData struct {
	// The dimensions that were passed to ScaleTo.
	Width    int
	Height   int
	BarWidth int

	// Per-bar event counts, including the per-source breakdown.
	Buckets []Bucket
	// Per-bar lost event counts.
	Lost []int64

	// The duration of a bar. It is 0 if the model has a single bucket.
	BucketDuration float64
	// The largest bar, not counting lost events.
	MaxValue int64
	// The largest bar, counting lost events.
	MaxCombinedValue int64
	// Height / MaxValue, or 1 if MaxValue is 0.
	ScalingFactor float64
	// Height / MaxCombinedValue, or 1 if MaxCombinedValue is 0.
	ScalingFactorCombined float64
	// The index of the last bar that has events.
	LastBucket int

	// The bars the model's selection begins and ends in. They may lie outside of the projection.
	SelectionBeginBucket int
	SelectionEndBucket   int

	FirstBucketTime int64
	FirstEventTime  int64
}

// NumBars returns the number of bars in the projection.
func (sd *ScaledData) NumBars() int { return len(sd.Buckets) }

func (sd *ScaledData) BucketStartTime(i int) int64 {
	return sd.FirstBucketTime + int64(float64(i)*sd.BucketDuration)
}

func (sd *ScaledData) BucketEndTime(i int) int64 {
	return sd.BucketStartTime(i + 1)
}

// BucketIndex returns the bar that time t falls into. It doesn't clamp to the projection's bounds.
func (sd *ScaledData) BucketIndex(t int64) int {
	if sd.BucketDuration == 0 {
		return 0
	}
	return int(float64(t-sd.FirstBucketTime) / sd.BucketDuration)
}

// Max returns the largest bar, optionally including lost events.
func (sd *ScaledData) Max(hideLostEvents bool) int64 {
	if hideLostEvents {
		return sd.MaxValue
	}
	return sd.MaxCombinedValue
}

// Scale returns the factor bar values have to be multiplied with to fit the projection's height.
func (sd *ScaledData) Scale(hideLostEvents bool) float64 {
	if hideLostEvents {
		return sd.ScalingFactor
	}
	return sd.ScalingFactorCombined
}

// ScaleTo projects the model onto width/barWidth bars whose values, once scaled, fit into height. The projection
// covers the time between the start of the first bucket and the model's end time.
//
// ScaleTo panics if any of the dimensions isn't positive or if width is smaller than barWidth.
func (m *Model) ScaleTo(width, height, barWidth int) *ScaledData {
	if width <= 0 || height <= 0 || barWidth <= 0 || width < barWidth {
		panic(fmt.Sprintf("invalid histogram dimensions: width=%d height=%d barWidth=%d", width, height, barWidth))
	}

	s, u := m.state.Lock()
	defer u.Unlock()
	return s.scaleTo(width, height, barWidth)
}

func (s *store) scaleTo(width, height, barWidth int) *ScaledData {
	if s.bucketDuration <= 0 {
		panic(fmt.Sprintf("histogram model is corrupt: bucket duration is %d", s.bucketDuration))
	}

	nbBars := width / barWidth
	res := &ScaledData{
		Width:                 width,
		Height:                height,
		BarWidth:              barWidth,
		Buckets:               make([]Bucket, nbBars),
		Lost:                  make([]int64, nbBars),
		ScalingFactor:         1,
		ScalingFactorCombined: 1,
		FirstBucketTime:       s.firstBucketTime,
		FirstEventTime:        s.firstEventTime,
	}

	bucketsPerBar := float64(s.lastBucket) / float64(nbBars)
	// With a single bucket, spread its value over the whole width, but report a duration of 0 so that bar boundaries
	// aren't offset by half a bucket.
	outDuration := max(float64(s.endTime)-float64(s.firstBucketTime), 1) / float64(nbBars)
	if s.lastBucket > 0 {
		res.BucketDuration = outDuration
	}
	offset := int(math.Round(0.5 / outDuration))

	// Sweep over the model's buckets, not the bars. A bucket that straddles the boundary between two bars contributes
	// to both.
	for mi := 0; mi <= s.lastBucket; mi++ {
		b := s.buckets[mi]
		lost := s.lost[mi]
		if b.IsEmpty() && lost == 0 {
			continue
		}

		var start, end int
		if s.lastBucket == 0 {
			start, end = 0, nbBars
		} else {
			start = max(mi*nbBars/s.lastBucket-offset, 0)
			end = min((mi+1)*nbBars/s.lastBucket-offset, nbBars-1)
		}

		idx := start
		for {
			// The last bucket always lands in the last bar.
			idx = min(idx, nbBars-1)
			res.Buckets[idx].addBucket(b)
			res.Lost[idx] += lost
			if !b.IsEmpty() {
				res.LastBucket = idx
			}
			idx++
			if idx >= end {
				break
			}
		}
	}

	for i, b := range res.Buckets {
		res.MaxValue = max(res.MaxValue, b.Count())
		res.MaxCombinedValue = max(res.MaxCombinedValue, b.Count()+res.Lost[i])
	}
	if res.MaxValue > 0 {
		res.ScalingFactor = float64(height) / float64(res.MaxValue)
	}
	if res.MaxCombinedValue > 0 {
		res.ScalingFactorCombined = float64(height) / float64(res.MaxCombinedValue)
	}

	res.SelectionBeginBucket = s.selectionBar(s.selectionBegin, nbBars, bucketsPerBar)
	res.SelectionEndBucket = s.selectionBar(s.selectionEnd, nbBars, bucketsPerBar)

	return res
}

// selectionBar maps a selection boundary to a bar.
func (s *store) selectionBar(t int64, nbBars int, bucketsPerBar float64) int {
	if t == s.endTime {
		// Keep a selection at the very end visible.
		return nbBars - 1
	}
	if bucketsPerBar <= 0 {
		return 0
	}
	return int(math.Round((float64(t) - float64(s.firstBucketTime)) / float64(s.bucketDuration) / bucketsPerBar))
}
