package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacketAllocation(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		retries int
		want    []int
	}{
		{"even split", 20, 3, []int{5, 5, 5, 5}},
		{"remainder on final attempt", 22, 3, []int{5, 5, 5, 7}},
		{"count below attempt budget", 2, 3, []int{1, 1}},
		{"single packet", 1, 3, []int{1}},
		{"no retries", 10, 0, []int{10}},
		{"zero count", 0, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := packetAllocation(tt.count, tt.retries)
			assert.Equal(t, tt.want, got)

			total := 0
			for _, n := range got {
				total += n
			}
			if tt.count > 0 {
				assert.Equal(t, tt.count, total, "full plan must send exactly count packets")
			}
		})
	}
}

func TestEscalate(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, escalate(time.Second, 1.5))
	// factors below 1 never shrink the timeout
	assert.Equal(t, time.Second, escalate(time.Second, 0.5))
	assert.Equal(t, time.Second, escalate(time.Second, 1))
}
