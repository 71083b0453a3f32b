package analysis

import (
	"math"
	"testing"

	"github.com/kozaktomas/face-migrator/internal/constants"
)

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil)
	if stats.RawMatchCount != 0 {
		t.Errorf("expected 0 raw matches, got %d", stats.RawMatchCount)
	}
	if stats.IoU.SuggestedThreshold != constants.DefaultMinIoU {
		t.Errorf("degenerate IoU histogram must suggest the default %f, got %f",
			constants.DefaultMinIoU, stats.IoU.SuggestedThreshold)
	}
	if stats.CenterDist.SuggestedThreshold != constants.DefaultMaxCenterDist {
		t.Errorf("degenerate distance histogram must suggest the default %f, got %f",
			constants.DefaultMaxCenterDist, stats.CenterDist.SuggestedThreshold)
	}
	if len(stats.IoU.Histogram) != constants.HistogramBins {
		t.Errorf("expected %d bins, got %d", constants.HistogramBins, len(stats.IoU.Histogram))
	}
}

func TestHistogramBinning(t *testing.T) {
	bins := histogram([]float64{0.0, 0.049, 0.05, 0.51, 0.99, 1.0})
	if bins[0] != 2 {
		t.Errorf("expected 2 values in bin 0, got %d", bins[0])
	}
	if bins[1] != 1 {
		t.Errorf("0.05 belongs to bin 1, got %d", bins[1])
	}
	if bins[10] != 1 {
		t.Errorf("0.51 belongs to bin 10, got %d", bins[10])
	}
	if bins[19] != 2 {
		t.Errorf("0.99 and 1.0 belong to the last bin, got %d", bins[19])
	}
}

func TestPercentiles(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	p := computePercentiles(values)
	if p.Min != 0.1 || p.Max != 0.5 {
		t.Errorf("min/max = %f/%f, want 0.1/0.5", p.Min, p.Max)
	}
	if p.P50 != 0.3 {
		t.Errorf("median = %f, want 0.3", p.P50)
	}
	if math.Abs(p.Mean-0.3) > 1e-9 {
		t.Errorf("mean = %f, want 0.3", p.Mean)
	}
	// Rank 0.25 * 4 = 1.0, exactly the second element.
	if p.P25 != 0.2 {
		t.Errorf("p25 = %f, want 0.2", p.P25)
	}
	// Rank 0.05 * 4 = 0.2, interpolated between 0.1 and 0.2.
	if math.Abs(p.P5-0.12) > 1e-9 {
		t.Errorf("p5 = %f, want 0.12", p.P5)
	}
}

func TestPercentileSingleValue(t *testing.T) {
	p := computePercentiles([]float64{0.42})
	if p.Min != 0.42 || p.P50 != 0.42 || p.Max != 0.42 || p.Mean != 0.42 {
		t.Errorf("single value percentiles collapsed wrong: %+v", p)
	}
}

func TestCumulativeRetention(t *testing.T) {
	values := []float64{0.15, 0.25, 0.35, 0.45}
	stats := computeMetricStats(values, false, constants.DefaultMinIoU)
	if len(stats.Cumulative) != len(CumulativeThresholds) {
		t.Fatalf("expected %d cumulative points, got %d", len(CumulativeThresholds), len(stats.Cumulative))
	}
	// At 0.2, three of four values pass at-or-above.
	point := stats.Cumulative[1]
	if point.Threshold != 0.2 {
		t.Fatalf("expected threshold 0.2, got %f", point.Threshold)
	}
	if point.PassPercent != 75 {
		t.Errorf("expected 75%% retention at 0.2, got %f", point.PassPercent)
	}

	inverted := computeMetricStats(values, true, constants.DefaultMaxCenterDist)
	// Distances pass at-or-below, so at 0.2 only 0.15 passes.
	if inverted.Cumulative[1].PassPercent != 25 {
		t.Errorf("expected 25%% retention at 0.2 inverted, got %f", inverted.Cumulative[1].PassPercent)
	}
}

func TestOtsuThreshold(t *testing.T) {
	t.Run("bimodal", func(t *testing.T) {
		hist := make([]int, constants.HistogramBins)
		// Mass concentrated near 0.1 and near 0.8.
		hist[2] = 50
		hist[16] = 50
		got := otsuThreshold(hist, constants.DefaultMinIoU)
		if got <= 0.15 || got >= 0.80 {
			t.Errorf("bimodal split should land between the modes, got %f", got)
		}
	})

	t.Run("single nonzero bin falls back", func(t *testing.T) {
		hist := make([]int, constants.HistogramBins)
		hist[5] = 100
		if got := otsuThreshold(hist, 0.30); got != 0.30 {
			t.Errorf("expected fallback 0.30, got %f", got)
		}
	})

	t.Run("empty histogram falls back", func(t *testing.T) {
		hist := make([]int, constants.HistogramBins)
		if got := otsuThreshold(hist, 0.40); got != 0.40 {
			t.Errorf("expected fallback 0.40, got %f", got)
		}
	})
}
