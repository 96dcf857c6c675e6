// Package oracle implements the predictive-allocation advisor the kernel's
// allocation path feeds with every allocation size and asks whether an
// allocation is an offload candidate, and the allocation-rate anomaly
// detector the kernel tick consults; nothing here pre-allocates memory
// in internal/memengine. Grounded on
// original_source's oracle/mod.rs TinyMLPredictor and AnomalyDetector.
package oracle

// historySize is the moving-average window, matching TinyMLPredictor's
// fixed 16-entry history.
const historySize = 16

// defaultPredictedSize is returned before any allocation has been
// recorded.
const defaultPredictedSize = 4096

// distributeThreshold is the size above which an allocation is flagged
// as a distribution candidate.
const distributeThreshold = 10 * 1024 * 1024

// Predictor tracks recent allocation sizes and advises the kernel loop on
// the next size to expect, whether to recommend offloading an
// allocation, and where to set the next GC/cleanup threshold.
type Predictor struct {
	history      [historySize]uint64
	historyIndex int
}

// NewPredictor returns an empty predictor; PredictNextSize defaults to
// defaultPredictedSize until an allocation is recorded.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// RecordAllocation folds size into the circular history buffer.
func (p *Predictor) RecordAllocation(size uint64) {
	p.history[p.historyIndex] = size
	p.historyIndex = (p.historyIndex + 1) % historySize
}

// PredictNextSize returns the moving average of recorded non-zero sizes,
// or defaultPredictedSize if nothing has been recorded yet.
func (p *Predictor) PredictNextSize() uint64 {
	var sum, count uint64
	for _, size := range p.history {
		if size > 0 {
			sum += size
			count++
		}
	}
	if count == 0 {
		return defaultPredictedSize
	}
	return sum / count
}

// ShouldDistribute reports whether an allocation of size is large enough
// to recommend offloading to another mesh device.
func (p *Predictor) ShouldDistribute(size uint64) bool {
	return size > distributeThreshold
}

// PredictGCThreshold returns the byte threshold at which the memory
// engine should run a cleanup pass, scaled by current utilization:
// aggressive above 90%, normal above 70%, lazy otherwise.
func (p *Predictor) PredictGCThreshold(currentUsage, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	utilization := currentUsage * 100 / total
	switch {
	case utilization > 90:
		return total * 85 / 100
	case utilization > 70:
		return total * 80 / 100
	default:
		return total * 90 / 100
	}
}

// AnomalyDetector flags allocation-rate spikes against a slowly-adapting
// exponential-moving-average baseline, grounded on oracle/mod.rs's
// AnomalyDetector.
type AnomalyDetector struct {
	baselineRate   uint64
	spikeThreshold uint64
}

// NewAnomalyDetector returns a detector with no established baseline.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{}
}

// UpdateBaseline folds rate into the baseline via a 9:1 exponential
// moving average and recomputes the spike threshold at 5x baseline.
func (a *AnomalyDetector) UpdateBaseline(rate uint64) {
	if a.baselineRate == 0 {
		a.baselineRate = rate
	} else {
		a.baselineRate = (a.baselineRate*9 + rate) / 10
	}
	a.spikeThreshold = a.baselineRate * 5
}

// DetectAnomaly reports whether currentRate exceeds 5x the established
// baseline. Always false until a baseline has been set.
func (a *AnomalyDetector) DetectAnomaly(currentRate uint64) bool {
	if a.baselineRate == 0 {
		return false
	}
	return currentRate > a.baselineRate*5
}
