package histogram

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lostCounts(m *Model) []int64 {
	out := make([]int64, m.NbBuckets())
	for i := range out {
		out[i] = m.LostEvents(i)
	}
	return out
}

func TestCountLostEventSpread(t *testing.T) {
	m := New(0, 16)
	m.SetTimeRange(0, 1599)
	if got := m.BucketDuration(); got != 128 {
		t.Fatalf("BucketDuration()=%d, want %d", got, 128)
	}

	m.CountLostEvent(0, 999, 17, true)

	// [0, 999] spans buckets 0 through 7. 17/8 = 2.125, the remainder goes to the last bucket.
	want := make([]int64, 16)
	for i := 0; i < 8; i++ {
		want[i] = 2
	}
	want[7] = 3
	if diff := cmp.Diff(want, lostCounts(m)); diff != "" {
		t.Errorf("unexpected lost events (-want +got):\n%s", diff)
	}
	if got := m.NbEvents(); got != 0 {
		t.Errorf("NbEvents()=%d, want %d", got, 0)
	}
}

func TestCountLostEventExact(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		m := New(0, 64)
		m.SetTimeRange(0, 64*16-1)

		start := r.Int63n(64 * 16)
		end := start + r.Int63n(64*16-start)
		count := r.Int63n(10_000)
		m.CountLostEvent(start, end, count, false)

		lost := lostCounts(m)
		if got := sum(lost); got != count {
			t.Fatalf("CountLostEvent(%d, %d, %d): distributed %d", start, end, count, got)
		}

		first, last := start/16, end/16
		ideal := float64(count) / float64(last-first+1)
		for idx, n := range lost {
			if int64(idx) < first || int64(idx) > last {
				if n != 0 {
					t.Fatalf("CountLostEvent(%d, %d, %d): bucket %d outside of range got %d", start, end, count, idx, n)
				}
				continue
			}
			if d := float64(n) - ideal; d <= -1 || d >= 1 {
				t.Fatalf("CountLostEvent(%d, %d, %d): bucket %d got %d, ideal share is %f", start, end, count, idx, n, ideal)
			}
		}
	}
}

func TestCountLostEventClipped(t *testing.T) {
	m := New(0, 16)
	m.SetTimeRange(0, 15)
	m.CountLostEvent(10, 100, 7, false)

	if got := m.BucketDuration(); got != 1 {
		t.Errorf("BucketDuration()=%d, want %d", got, 1)
	}
	if got := m.EndTime(); got != 0 {
		t.Errorf("EndTime()=%d, want %d", got, 0)
	}
	if got := m.LastBucket(); got != -1 {
		t.Errorf("LastBucket()=%d, want %d", got, -1)
	}
	lost := lostCounts(m)
	if got := sum(lost[10:]); got != 7 {
		t.Errorf("got %d lost events in buckets 10-15, want %d", got, 7)
	}
}

func TestCountLostEventFullRange(t *testing.T) {
	m := New(0, 16)
	m.SetTimeRange(0, 15)
	m.CountLostEvent(0, 40, 5, true)

	if got := m.BucketDuration(); got != 4 {
		t.Errorf("BucketDuration()=%d, want %d", got, 4)
	}
	if got := m.EndTime(); got != 40 {
		t.Errorf("EndTime()=%d, want %d", got, 40)
	}
	if got := m.LastBucket(); got != 10 {
		t.Errorf("LastBucket()=%d, want %d", got, 10)
	}
	if got := sum(lostCounts(m)); got != 5 {
		t.Errorf("got %d lost events, want %d", got, 5)
	}
}

func TestLostEventsSurviveCompaction(t *testing.T) {
	m := New(0, 16)
	m.CountEvent(1, 1000, "")
	m.CountLostEvent(1000, 1010, 11, false)
	// Forces merges.
	m.CountEvent(2, 100_000, "")
	// Forces a shift.
	m.CountEvent(3, 10, "")

	if got := sum(lostCounts(m)); got != 11 {
		t.Errorf("got %d lost events, want %d", got, 11)
	}
	if got := sum(bucketCounts(m)); got != 3 {
		t.Errorf("got %d events, want %d", got, 3)
	}
}

func TestCountLostEventInvalid(t *testing.T) {
	m := New(0, 16)
	var fired int
	m.AddListener(ListenerFunc(func() { fired++ }))
	m.CountLostEvent(-1, 10, 5, true)
	m.CountLostEvent(1, 10, -5, true)

	if got := sum(lostCounts(m)); got != 0 {
		t.Errorf("got %d lost events, want %d", got, 0)
	}
	if fired != 0 {
		t.Errorf("listener fired %d times, want %d", fired, 0)
	}
}
