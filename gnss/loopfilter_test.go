package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoopFilterRespondsPositivelyToConstantInput(t *testing.T) {
	f := NewLoopFilter(SecondOrder, 25)
	dt := 0.001
	var y float64
	for i := 0; i < 2000; i++ {
		y = f.Update(0.01, dt)
	}
	assert.Greater(t, y, 0.0)
}

func TestLoopFilterInitializeClearsIntegrator(t *testing.T) {
	f := NewLoopFilter(SecondOrder, 25)
	for i := 0; i < 100; i++ {
		f.Update(1, 0.001)
	}
	f.Initialize()
	assert.Equal(t, 0.0, f.integrator)
}

func TestAmplitudeLoopFilterSeedsOnFirstUpdate(t *testing.T) {
	f := NewAmplitudeLoopFilter(AmplitudeLoopBWHz)
	got := f.Update(5.0, 0.001)
	assert.Equal(t, 5.0, got)
}

func TestAmplitudeLoopFilterSmoothsSubsequentUpdates(t *testing.T) {
	f := NewAmplitudeLoopFilter(AmplitudeLoopBWHz)
	f.Update(1.0, 0.001)
	got := f.Update(2.0, 0.001)
	assert.Greater(t, got, 1.0)
	assert.Less(t, got, 2.0)
}
