package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLines(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		total      int
		wantStart  int
		wantEnd    int
	}{
		{"valid range untouched", 3, 7, 10, 3, 7},
		{"zero start raised to one", 0, 5, 10, 1, 5},
		{"negative start raised to one", -4, 2, 10, 1, 2},
		{"end before start collapses to start", 6, 2, 10, 6, 6},
		{"start past file clamps to total", 15, 20, 10, 10, 10},
		{"end past file clamps to total", 8, 15, 10, 8, 10},
		{"unknown total keeps range", 2, 9, 0, 2, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ClampLines(tt.start, tt.end, tt.total)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestComplexityFromCount(t *testing.T) {
	assert.Equal(t, ComplexityLow, ComplexityFromCount(1))
	assert.Equal(t, ComplexityLow, ComplexityFromCount(5))
	assert.Equal(t, ComplexityMedium, ComplexityFromCount(6))
	assert.Equal(t, ComplexityMedium, ComplexityFromCount(10))
	assert.Equal(t, ComplexityHigh, ComplexityFromCount(11))
}