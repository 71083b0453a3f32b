package analysis

import (
	"math"
	"sort"

	"github.com/kozaktomas/face-migrator/internal/constants"
)

// CumulativeThresholds are the candidate thresholds reported on the
// cumulative retention curve.
var CumulativeThresholds = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}

// Percentiles are order statistics of one metric over the raw match list.
type Percentiles struct {
	Min  float64 `json:"min"`
	P5   float64 `json:"p5"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P95  float64 `json:"p95"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// CumulativePoint reports what share of raw matches pass at one candidate threshold.
type CumulativePoint struct {
	Threshold   float64 `json:"threshold"`
	PassPercent float64 `json:"pass_percent"`
}

// MetricStats bundles the descriptive statistics of one metric.
type MetricStats struct {
	Histogram          []int             `json:"histogram"`
	Percentiles        Percentiles       `json:"percentiles"`
	Cumulative         []CumulativePoint `json:"cumulative"`
	SuggestedThreshold float64           `json:"suggested_threshold"`
}

// Statistics is the full descriptive bundle over the raw match list. It is a
// pure function of that list and is recomputed on every analysis call.
type Statistics struct {
	RawMatchCount int         `json:"raw_match_count"`
	IoU           MetricStats `json:"iou"`
	CenterDist    MetricStats `json:"center_dist"`
}

// ComputeStatistics derives histograms, percentiles, cumulative retention and
// an Otsu threshold suggestion for both metrics of the raw match list.
func ComputeStatistics(matches []RawFaceMatch) Statistics {
	ious := make([]float64, len(matches))
	dists := make([]float64, len(matches))
	for i, m := range matches {
		ious[i] = m.IoU
		dists[i] = m.CenterDist
	}

	return Statistics{
		RawMatchCount: len(matches),
		IoU:           computeMetricStats(ious, false, constants.DefaultMinIoU),
		CenterDist:    computeMetricStats(dists, true, constants.DefaultMaxCenterDist),
	}
}

// computeMetricStats computes the stats for one metric. invertPass flips the
// pass direction: IoU passes at-or-above a threshold, center distance passes
// at-or-below. fallback is returned as the suggestion when the histogram is
// degenerate.
func computeMetricStats(values []float64, invertPass bool, fallback float64) MetricStats {
	hist := histogram(values)

	cumulative := make([]CumulativePoint, 0, len(CumulativeThresholds))
	for _, t := range CumulativeThresholds {
		cumulative = append(cumulative, CumulativePoint{
			Threshold:   t,
			PassPercent: passPercent(values, t, invertPass),
		})
	}

	return MetricStats{
		Histogram:          hist,
		Percentiles:        computePercentiles(values),
		Cumulative:         cumulative,
		SuggestedThreshold: otsuThreshold(hist, fallback),
	}
}

// histogram bins values into HistogramBins equal bins over [0, 1]. Bins are
// inclusive of their lower edge and exclusive of the upper, except the last
// bin which is inclusive on both sides.
func histogram(values []float64) []int {
	bins := make([]int, constants.HistogramBins)
	for _, v := range values {
		idx := int(v * float64(constants.HistogramBins))
		if idx >= constants.HistogramBins {
			idx = constants.HistogramBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx]++
	}
	return bins
}

func passPercent(values []float64, threshold float64, invertPass bool) float64 {
	if len(values) == 0 {
		return 0
	}
	passing := 0
	for _, v := range values {
		if invertPass {
			if v <= threshold {
				passing++
			}
		} else if v >= threshold {
			passing++
		}
	}
	return 100 * float64(passing) / float64(len(values))
}

// computePercentiles computes order statistics with linear interpolation
// between neighbors when the rank is non-integral.
func computePercentiles(values []float64) Percentiles {
	if len(values) == 0 {
		return Percentiles{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return Percentiles{
		Min:  sorted[0],
		P5:   percentile(sorted, 5),
		P25:  percentile(sorted, 25),
		P50:  percentile(sorted, 50),
		P75:  percentile(sorted, 75),
		P95:  percentile(sorted, 95),
		Max:  sorted[len(sorted)-1],
		Mean: sum / float64(len(sorted)),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// otsuThreshold picks the bin edge maximizing between-class variance of the
// histogram. Degenerate distributions (fewer than two nonzero bins) return
// the fallback.
func otsuThreshold(hist []int, fallback float64) float64 {
	nonzero := 0
	total := 0
	for _, count := range hist {
		if count > 0 {
			nonzero++
		}
		total += count
	}
	if nonzero < 2 {
		return fallback
	}

	// Bin centers represent each bin's value mass.
	binWidth := 1.0 / float64(len(hist))
	weightedSum := 0.0
	for i, count := range hist {
		center := (float64(i) + 0.5) * binWidth
		weightedSum += center * float64(count)
	}

	bestSplit := 0
	bestVariance := -1.0
	w0 := 0.0
	sum0 := 0.0
	for split := 1; split < len(hist); split++ {
		count := float64(hist[split-1])
		w0 += count
		sum0 += (float64(split-1) + 0.5) * binWidth * count

		w1 := float64(total) - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		mu0 := sum0 / w0
		mu1 := (weightedSum - sum0) / w1
		variance := w0 * w1 * (mu0 - mu1) * (mu0 - mu1)
		if variance > bestVariance {
			bestVariance = variance
			bestSplit = split
		}
	}

	if bestVariance < 0 {
		return fallback
	}
	return float64(bestSplit) * binWidth
}
