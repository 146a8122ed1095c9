package histogram

// Bucket holds the number of events that fell into one fixed-duration time interval. When the model tracks
// more than one source, the count is also broken down per source.
type Bucket struct {
	total int64
	// Per-source counts, indexed by source index. Nil until the first event lands in the bucket.
	counts []int64
}

func (b Bucket) Count() int64 { return b.total }

func (b Bucket) IsEmpty() bool { return b.total == 0 }

// SourceCount returns the number of events of the i-th source.
func (b Bucket) SourceCount(i int) int64 {
	if i < 0 || i >= len(b.counts) {
		return 0
	}
	return b.counts[i]
}

// NumSources returns the number of sources the bucket has a breakdown for.
func (b Bucket) NumSources() int { return len(b.counts) }

func (b *Bucket) add(source, nbSources int) {
	if len(b.counts) < nbSources {
		counts := make([]int64, nbSources)
		copy(counts, b.counts)
		b.counts = counts
	}
	b.counts[source]++
	b.total++
}

// addBucket adds all of o's counts to b. b's per-source slice must not be shared with another bucket.
func (b *Bucket) addBucket(o Bucket) {
	if o.total == 0 {
		return
	}
	if b.counts == nil {
		b.counts = make([]int64, len(o.counts))
	} else if len(b.counts) < len(o.counts) {
		counts := make([]int64, len(o.counts))
		copy(counts, b.counts)
		b.counts = counts
	}
	for i, n := range o.counts {
		b.counts[i] += n
	}
	b.total += o.total
}

func (b Bucket) clone() Bucket {
	if b.counts == nil {
		return b
	}
	counts := make([]int64, len(b.counts))
	copy(counts, b.counts)
	return Bucket{total: b.total, counts: counts}
}

// mergeBuckets returns the sum of a and b. The result may share storage with a or b, which the caller must drop.
func mergeBuckets(a, b Bucket) Bucket {
	switch {
	case b.IsEmpty():
		return a
	case a.IsEmpty():
		return b
	}
	out := a.clone()
	out.addBucket(b)
	return out
}
