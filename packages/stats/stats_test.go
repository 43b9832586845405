package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
)

func result(passed bool, remarks runner.Remarks, d time.Duration) runner.Result {
	return runner.Result{Name: "x", Passed: passed, Remarks: remarks, Duration: d}
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()
	c.Record(result(true, nil, 100*time.Millisecond))
	c.Record(result(true, nil, 200*time.Millisecond))
	c.Record(result(false, runner.StatusMismatch{Expected: 200, Received: 500}, 300*time.Millisecond))
	c.Record(result(false, runner.RequestFailed{Cause: "timeout"}, 400*time.Millisecond))

	s := c.Summary()
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Passed)
	assert.Equal(t, int64(2), s.Failed)
	assert.Equal(t, int64(1), s.StatusMismatches)
	assert.Equal(t, int64(1), s.RequestErrors)
	assert.InDelta(t, 0.5, s.PassRate, 0.0001)
}

func TestCollector_Latencies(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.Record(result(true, nil, time.Duration(i)*time.Millisecond))
	}

	s := c.Summary()
	tolerance := float64(time.Millisecond)
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), tolerance)
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), tolerance)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), tolerance)
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), tolerance)
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), tolerance)
	assert.InDelta(t, float64(50500*time.Microsecond), float64(s.Mean), tolerance)
	assert.Greater(t, s.StdDev, time.Duration(0))
}

func TestCollector_ClampsOutOfRange(t *testing.T) {
	c := NewCollector()
	c.Record(result(true, nil, 0))
	c.Record(result(true, nil, 2*time.Minute))

	s := c.Summary()
	assert.Equal(t, int64(2), s.Total)
	assert.LessOrEqual(t, s.Min, 2*time.Microsecond)
	assert.InDelta(t, float64(60*time.Second), float64(s.Max), float64(100*time.Millisecond))
}

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector()
	c.RecordRun(&runner.RunResult{
		Results: []runner.Result{
			result(true, nil, time.Millisecond),
			result(false, runner.RequestFailed{Cause: "x"}, time.Millisecond),
		},
		Skipped: 3,
	})

	s := c.Summary()
	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(3), s.Skipped)
}

func TestCollector_EmptyAndReset(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, Summary{}, c.Summary())

	c.Record(result(true, nil, time.Second))
	c.Reset()
	assert.Equal(t, Summary{}, c.Summary())
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(result(true, nil, 10*time.Millisecond))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Summary().Total)
}
