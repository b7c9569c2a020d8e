package gnss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockDetectorNotReadyUntilWindowFull(t *testing.T) {
	d := NewLockDetector()
	for i := 0; i < CN0EstimationSamples-1; i++ {
		d.Push(complex(1, 0))
		assert.False(t, d.Ready())
	}
	d.Push(complex(1, 0))
	assert.True(t, d.Ready())
}

func TestLockDetectorStrongSignalLocksAndHasHighCN0(t *testing.T) {
	d := NewLockDetector()
	for i := 0; i < CN0EstimationSamples; i++ {
		d.Push(complex(1000, 0))
	}
	cn0, lockTest, lost := d.Evaluate(0.001)
	assert.Greater(t, cn0, MinimumValidCN0)
	assert.Greater(t, lockTest, CarrierLockThreshold)
	assert.False(t, lost)
}

func TestLockDetectorTripsAfterSustainedNoise(t *testing.T) {
	d := NewLockDetector()
	rngState := uint64(12345)
	nextRand := func() float64 {
		rngState = rngState*6364136223846793005 + 1
		return (float64(rngState>>11) / float64(1<<53)) - 0.5
	}
	lost := false
	for period := 0; period < MaximumLockFailCounter+CN0EstimationSamples; period++ {
		d.Push(complex64(complex(nextRand(), nextRand())))
		if d.Ready() {
			_, _, lost = d.Evaluate(0.001)
			if lost {
				break
			}
		}
	}
	assert.True(t, lost)
}

func TestCarrierLockTestBoundedUnitInterval(t *testing.T) {
	d := NewLockDetector()
	for i := 0; i < CN0EstimationSamples; i++ {
		d.Push(complex(float32(math.Cos(float64(i))), float32(math.Sin(float64(i)))))
	}
	lt := d.CarrierLockTest()
	assert.GreaterOrEqual(t, lt, 0.0)
	assert.LessOrEqual(t, lt, 1.0)
}
