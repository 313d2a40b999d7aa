package quota

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit(t *testing.T) {
	tests := []struct {
		name     string
		used     uint64
		incoming uint64
		limit    uint64
		admitted bool
	}{
		{"under", 3, 2, 10, true},
		{"exactly at limit", 3, 2, 5, true},
		{"one over", 4, 2, 5, false},
		{"empty container zero upload", 0, 0, 0, true},
		{"zero limit", 0, 1, 0, false},
		{"already over limit", 11, 0, 10, false},
		{"overflowing sum", math.MaxUint64, 1, math.MaxUint64, false},
		{"huge incoming", 1, math.MaxUint64, math.MaxUint64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Admit(tt.used, tt.incoming, tt.limit)
			assert.Equal(t, tt.admitted, d.Admitted)
			assert.Equal(t, tt.used, d.Used)
			assert.Equal(t, tt.incoming, d.Incoming)
			assert.Equal(t, tt.limit, d.Limit)
		})
	}
}

func TestAdmit_RejectsIffSumExceedsLimit(t *testing.T) {
	for used := uint64(0); used <= 12; used++ {
		for incoming := uint64(0); incoming <= 12; incoming++ {
			d := Admit(used, incoming, 10)
			assert.Equal(t, used+incoming <= 10, d.Admitted, "used=%d incoming=%d", used, incoming)
		}
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(5, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), p.LimitBytes)

	p, err = NewPolicy(2, "GiB")
	require.NoError(t, err)
	assert.Equal(t, uint64(2<<30), p.LimitBytes)

	p, err = NewPolicy(100, "B")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.LimitBytes)

	_, err = NewPolicy(1, "parsecs")
	assert.Error(t, err)

	_, err = NewPolicy(math.MaxUint64, "GB")
	assert.Error(t, err)
}

func TestPolicy_Admit(t *testing.T) {
	p := Policy{LimitBytes: 5}

	assert.False(t, p.Admit(4, 2).Admitted)
	assert.True(t, p.Admit(3, 2).Admitted)
	assert.Equal(t, uint64(2), p.Admit(3, 2).Remaining())
	assert.Equal(t, uint64(0), p.Admit(9, 0).Remaining())
}
