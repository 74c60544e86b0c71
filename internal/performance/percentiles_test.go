package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 5.5},
		{90, 9.1},
		{95, 9.55},
		{100, 10},
		{-5, 1},
		{150, 10},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(values, tt.p), 1e-9, "p%.0f", tt.p)
	}

	assert.Equal(t, []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}, values, "input must not be reordered")
}

func TestPercentileEdgeCases(t *testing.T) {
	assert.Zero(t, Percentile(nil, 50))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 50))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 95))
}

func TestDurationsMS(t *testing.T) {
	got := durationsMS([]time.Duration{3 * time.Millisecond, 1500 * time.Microsecond, time.Second})
	assert.Equal(t, []float64{1.5, 3, 1000}, got)
}

func BenchmarkPercentile(b *testing.B) {
	values := make([]float64, 10000)
	for i := range values {
		values[i] = float64((i * 7919) % 10007)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Percentile(values, 95)
	}
}
