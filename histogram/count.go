package histogram

// CountEvent counts an event that happened at ts. seq is the number of events the caller has read so far; listeners
// are notified every RefreshFrequency events. Events with negative timestamps are ignored.
func (m *Model) CountEvent(seq int64, ts int64, src SourceID) {
	if ts < 0 {
		return
	}

	m.state.With(func(s *store) { s.countEvent(ts, src) })

	if seq%RefreshFrequency == 0 {
		m.fire()
	}
}

func (s *store) countEvent(ts int64, src SourceID) {
	if !s.based && s.lastBucket == -1 && s.buckets[0].IsEmpty() && ts > 0 {
		s.firstBucketTime = ts
		s.firstEventTime = ts
		s.based = true
	}

	if ts < s.firstEventTime {
		s.firstEventTime = ts
	}
	if ts > s.endTime {
		s.endTime = ts
	}

	s.makeRoom(ts)

	idx := int(s.bucketOffset(ts))
	s.buckets[idx].add(s.sourceIndex(src), s.nbSources())
	s.nbEvents++
	if idx > s.lastBucket {
		s.lastBucket = idx
	}
}

// makeRoom compacts or shifts the buckets so that ts falls into one of them.
func (s *store) makeRoom(ts int64) {
	if ts >= s.firstBucketTime {
		for !s.fits(ts) {
			s.mergeBuckets()
		}
		return
	}

	// Merging changes the bucket duration and with it the offset, so keep going until shifting doesn't push any
	// bucket past the end.
	offset := s.shiftOffset(ts)
	for int64(s.lastBucket)+offset >= int64(s.nbBuckets) {
		s.mergeBuckets()
		offset = s.shiftOffset(ts)
	}
	s.shiftBuckets(int(offset))
}

// shiftOffset returns the number of buckets the store has to shift by for ts to fall into the first bucket.
func (s *store) shiftOffset(ts int64) int64 {
	d := s.firstBucketTime - ts
	offset := d / s.bucketDuration
	if d%s.bucketDuration != 0 {
		offset++
	}
	return offset
}

// mergeBuckets merges pairs of neighbouring buckets, halving the number of buckets in use and doubling the
// duration of each bucket.
func (s *store) mergeBuckets() {
	half := s.nbBuckets / 2
	for i := 0; i < half; i++ {
		s.buckets[i] = mergeBuckets(s.buckets[2*i], s.buckets[2*i+1])
		s.lost[i] = s.lost[2*i] + s.lost[2*i+1]
	}
	clear(s.buckets[half:])
	clear(s.lost[half:])
	s.bucketDuration *= 2
	s.lastBucket = half - 1
}

// shiftBuckets moves all buckets offset slots towards the end and moves the first bucket's start time back
// accordingly. The caller guarantees that no bucket in use is shifted past the end.
func (s *store) shiftBuckets(offset int) {
	if offset <= 0 {
		return
	}
	copy(s.buckets[offset:], s.buckets[:s.nbBuckets-offset])
	copy(s.lost[offset:], s.lost[:s.nbBuckets-offset])
	clear(s.buckets[:offset])
	clear(s.lost[:offset])
	s.firstBucketTime -= int64(offset) * s.bucketDuration
	s.lastBucket += offset
}

// CountLostEvent spreads count lost events over the buckets spanned by [start, end]. The count is split as evenly as
// possible, with rounding remainders carried forward so that exactly count lost events are added. If fullRange is
// true, the model grows to cover end; otherwise the range is clipped to the buckets that exist. Listeners are always
// notified.
func (m *Model) CountLostEvent(start, end, count int64, fullRange bool) {
	if start < 0 || end < 0 || count < 0 {
		return
	}
	if end < start {
		start, end = end, start
	}

	m.state.With(func(s *store) { s.countLostEvent(start, end, count, fullRange) })
	m.fire()
}

func (s *store) countLostEvent(start, end, count int64, fullRange bool) {
	if !s.based && s.lastBucket == -1 && s.buckets[0].IsEmpty() && start > 0 {
		s.firstBucketTime = start
		s.firstEventTime = start
		s.based = true
	}

	if fullRange {
		if end >= s.firstBucketTime {
			for !s.fits(end) {
				s.mergeBuckets()
			}
		}
		if end > s.endTime {
			s.endTime = end
		}
	}

	last := int64(s.nbBuckets - 1)
	clamp := func(t int64) int64 {
		if t < s.firstBucketTime {
			return 0
		}
		return int64(min(s.bucketOffset(t), uint64(last)))
	}
	idxStart, idxEnd := clamp(start), clamp(end)
	n := idxEnd - idxStart + 1

	// Every bucket gets q lost events. The remainder r is spread by taking the difference of consecutive floors of
	// k*r/n, which sum up to exactly r and never differ from the ideal share by one or more.
	q, r := count/n, count%n
	for k := int64(0); k < n; k++ {
		s.lost[idxStart+k] += q + (k+1)*r/n - k*r/n
	}

	if fullRange && int(idxEnd) > s.lastBucket {
		s.lastBucket = int(idxEnd)
	}
}

// Complete notifies listeners unconditionally. Ingestion calls it once it has finished, so that the final state of
// the model is drawn even if the number of events isn't a multiple of RefreshFrequency.
func (m *Model) Complete() {
	m.fire()
}
