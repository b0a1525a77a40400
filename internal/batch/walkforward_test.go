package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkForward_GeneratePeriods_RollingSlidesByStep(t *testing.T) {
	w := &WalkForward{cfg: WalkForwardConfig{
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		InSample:   10 * 24 * time.Hour,
		OutOfSample: 5 * 24 * time.Hour,
		Step:       5 * 24 * time.Hour,
	}}

	periods := w.generatePeriods()
	require.NotEmpty(t, periods)

	for i, p := range periods {
		assert.Equal(t, i+1, p.Number)
		assert.True(t, p.InSampleEnd.Equal(p.OutOfSampleStart), "out-of-sample must start where in-sample ends")
		assert.False(t, p.OutOfSampleEnd.After(w.cfg.End), "no period may extend past the configured end")
	}
	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i].InSampleStart.After(periods[i-1].InSampleStart),
			"rolling mode must slide the in-sample window forward each period")
	}
}

func TestWalkForward_GeneratePeriods_AnchoredGrowsInSampleWindow(t *testing.T) {
	w := &WalkForward{cfg: WalkForwardConfig{
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC),
		InSample:    10 * 24 * time.Hour,
		OutOfSample: 5 * 24 * time.Hour,
		Step:        5 * 24 * time.Hour,
		Anchored:    true,
	}}

	periods := w.generatePeriods()
	require.Len(t, periods, 2)

	for _, p := range periods {
		assert.True(t, p.InSampleStart.Equal(w.cfg.Start), "anchored mode always starts in-sample at Start")
	}
	assert.True(t, periods[1].InSampleEnd.After(periods[0].InSampleEnd),
		"anchored mode must widen the in-sample window each period")
}

func TestWalkForward_GeneratePeriods_EmptyWhenWindowExceedsRange(t *testing.T) {
	w := &WalkForward{cfg: WalkForwardConfig{
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		InSample:    10 * 24 * time.Hour,
		OutOfSample: 5 * 24 * time.Hour,
		Step:        5 * 24 * time.Hour,
	}}
	assert.Empty(t, w.generatePeriods())
}

func TestAggregate_EmptyPeriodsReturnsZeroResult(t *testing.T) {
	result := aggregate(nil)
	assert.Empty(t, result.Periods)
	assert.Equal(t, 0.0, result.AvgInSampleMetric)
}

func TestAggregate_AveragesAcrossPeriods(t *testing.T) {
	periods := []Period{
		{InSampleMetric: 1.0, OutOfSampleMetric: 0.5, PerformanceRatio: 0.5},
		{InSampleMetric: 2.0, OutOfSampleMetric: 1.5, PerformanceRatio: 0.75},
	}
	result := aggregate(periods)

	assert.InDelta(t, 1.5, result.AvgInSampleMetric, 1e-9)
	assert.InDelta(t, 1.0, result.AvgOutOfSampleMetric, 1e-9)
	assert.InDelta(t, 0.625, result.AvgPerformanceRatio, 1e-9)
}
