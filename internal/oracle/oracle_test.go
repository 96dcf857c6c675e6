package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictNextSizeDefaultsBeforeAnyRecord(t *testing.T) {
	p := NewPredictor()
	assert.Equal(t, uint64(defaultPredictedSize), p.PredictNextSize())
}

func TestPredictNextSizeMovingAverage(t *testing.T) {
	p := NewPredictor()
	p.RecordAllocation(1024)
	p.RecordAllocation(2048)
	p.RecordAllocation(1536)

	predicted := p.PredictNextSize()
	assert.Greater(t, predicted, uint64(1000))
	assert.Less(t, predicted, uint64(3000))
}

func TestPredictNextSizeWrapsHistory(t *testing.T) {
	p := NewPredictor()
	for i := 0; i < historySize+4; i++ {
		p.RecordAllocation(100)
	}
	assert.Equal(t, uint64(100), p.PredictNextSize())
}

func TestShouldDistribute(t *testing.T) {
	p := NewPredictor()
	assert.False(t, p.ShouldDistribute(1024))
	assert.True(t, p.ShouldDistribute(20*1024*1024))
}

func TestPredictGCThresholdTiers(t *testing.T) {
	p := NewPredictor()
	assert.Equal(t, uint64(850), p.PredictGCThreshold(950, 1000))
	assert.Equal(t, uint64(800), p.PredictGCThreshold(750, 1000))
	assert.Equal(t, uint64(900), p.PredictGCThreshold(100, 1000))
}

func TestPredictGCThresholdZeroTotal(t *testing.T) {
	p := NewPredictor()
	assert.Equal(t, uint64(0), p.PredictGCThreshold(10, 0))
}

func TestAnomalyDetectorNoBaselineNeverFlags(t *testing.T) {
	a := NewAnomalyDetector()
	assert.False(t, a.DetectAnomaly(10000))
}

func TestAnomalyDetectorFlagsFiveXSpike(t *testing.T) {
	a := NewAnomalyDetector()
	a.UpdateBaseline(1000)
	assert.False(t, a.DetectAnomaly(2000))
	assert.True(t, a.DetectAnomaly(10000))
}

func TestAnomalyDetectorBaselineSmooths(t *testing.T) {
	a := NewAnomalyDetector()
	a.UpdateBaseline(1000)
	a.UpdateBaseline(2000)
	assert.Equal(t, uint64(1100), a.baselineRate)
}
