package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPLLCloopTwoQuadrantAtanZeroOnPureReal(t *testing.T) {
	assert.InDelta(t, 0, PLLCloopTwoQuadrantAtan(complex(1, 0)), 1e-9)
}

func TestPLLCloopTwoQuadrantAtanQuarterCycleOnPureImag(t *testing.T) {
	assert.InDelta(t, 0.25, PLLCloopTwoQuadrantAtan(complex(0, 1)), 1e-9)
}

func TestDLLNCEarlyMinusLateSymmetric(t *testing.T) {
	e := complex64(complex(2, 0))
	l := complex64(complex(2, 0))
	assert.InDelta(t, 0, DLLNCEarlyMinusLateNormalized(e, l), 1e-9)
}

func TestDLLNCEarlyMinusLateSign(t *testing.T) {
	early := complex64(complex(3, 0))
	late := complex64(complex(1, 0))
	assert.Greater(t, DLLNCEarlyMinusLateNormalized(early, late), 0.0)
	assert.Less(t, DLLNCEarlyMinusLateNormalized(late, early), 0.0)
}

func TestDLLNCEarlyMinusLateZeroDenominator(t *testing.T) {
	assert.Equal(t, 0.0, DLLNCEarlyMinusLateNormalized(0, 0))
}
