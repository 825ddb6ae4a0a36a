package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIncrementalTracker(t *testing.T) {
	tr := NewIncrementalTracker()
	tr.Increment()
	tr.Increment()
	tr.Add(3)
	assert.Equal(t, int64(5), tr.Count())

	other := NewIncrementalTracker()
	other.Add(10)
	tr.Merge(other)
	assert.Equal(t, int64(15), tr.Count())
}

func TestTimeTracker(t *testing.T) {
	tr := NewTimeTracker()
	assert.Equal(t, time.Duration(0), tr.Average())

	tr.Start()
	time.Sleep(time.Millisecond)
	tr.Stop()
	tr.Stop() // unmatched, ignored

	assert.Equal(t, int64(1), tr.Count())
	assert.Greater(t, tr.Total(), time.Duration(0))
	assert.Equal(t, tr.Min(), tr.Max())
}

func TestTimeTrackerMerge(t *testing.T) {
	a := NewTimeTracker()
	a.Start()
	a.Stop()

	b := NewTimeTracker()
	b.Start()
	time.Sleep(time.Millisecond)
	b.Stop()

	a.Merge(b)
	assert.Equal(t, int64(2), a.Count())
	assert.GreaterOrEqual(t, a.Max(), time.Millisecond)

	empty := NewTimeTracker()
	a.Merge(empty)
	assert.Equal(t, int64(2), a.Count())
}

func TestCategoricalTracker(t *testing.T) {
	tr := NewCategoricalTracker()
	tr.Increment("200")
	tr.Increment("200")
	tr.Increment("404")

	assert.Equal(t, int64(2), tr.Count("200"))
	assert.Equal(t, int64(0), tr.Count("500"))
	assert.Equal(t, int64(3), tr.Total())
	assert.Equal(t, []string{"200", "404"}, tr.Categories())

	other := NewCategoricalTracker()
	other.Increment("404")
	other.Increment("500")
	tr.Merge(other)
	assert.Equal(t, int64(2), tr.Count("404"))
	assert.Equal(t, int64(1), tr.Count("500"))

	snap := tr.Snapshot()
	snap["200"] = 99
	assert.Equal(t, int64(2), tr.Count("200"), "snapshot is a copy")
}

func TestValueTracker(t *testing.T) {
	tr := NewValueTracker()
	assert.Equal(t, float64(0), tr.Average())

	tr.Add(10)
	tr.Add(2)
	tr.Add(6)

	assert.Equal(t, int64(3), tr.Count())
	assert.Equal(t, int64(18), tr.Total())
	assert.Equal(t, int64(2), tr.Min())
	assert.Equal(t, int64(10), tr.Max())
	assert.Equal(t, float64(6), tr.Average())

	other := NewValueTracker()
	other.Add(1)
	tr.Merge(other)
	assert.Equal(t, int64(1), tr.Min())
	assert.Equal(t, int64(4), tr.Count())
}
