package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		in      float64
		want    int64
		wantErr bool
	}{
		{in: 12.34, want: 1234},
		{in: 0.1 + 0.2, want: 30},
		{in: -5.5, want: -550},
		{in: 0, want: 0},
		{in: math.NaN(), wantErr: true},
		{in: math.Inf(1), wantErr: true},
		{in: 1e17, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ToCents(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidMoney, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestConvert(t *testing.T) {
	got, err := Convert(10, 1.5)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got)

	_, err = Convert(10, 0)
	assert.ErrorIs(t, err, ErrInvalidMoney)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00 €", Format(0, "€"))
	assert.Equal(t, "1,234.56 €", Format(123456, "€"))
	assert.Equal(t, "-1,000,000.05 $", Format(-100000005, "$"))
	assert.Equal(t, "999.99", Format(99999, " "))
}
