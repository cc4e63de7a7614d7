package service

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/errors"
)

// mustIP parses an IPv4 address or fails the test setup
func mustIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	require.NotNil(t, ip, "invalid test IP %q", s)
	return ip.To4()
}

// mustMAC parses a hardware address or fails the test setup
func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err, "invalid test MAC %q", s)
	return mac
}

// testBackends builds n sequential backends starting at 10.0.0.5, ports from 5
func testBackends(t *testing.T, n int) []domain.Backend {
	t.Helper()
	backends := make([]domain.Backend, 0, n)
	for i := 0; i < n; i++ {
		backends = append(backends, domain.Backend{
			IP:   mustIP(t, fmt.Sprintf("10.0.0.%d", 5+i)),
			MAC:  mustMAC(t, fmt.Sprintf("00:00:00:00:00:%02x", 5+i)),
			Port: uint16(5 + i),
		})
	}
	return backends
}

func TestServerPoolRoundRobin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		backends  int
		picks     int
		expected  []int
		endCursor int
	}{
		{
			name:      "Full cycle over three backends",
			backends:  3,
			picks:     3,
			expected:  []int{0, 1, 2},
			endCursor: 0,
		},
		{
			name:      "Wrap-around after one full cycle",
			backends:  2,
			picks:     5,
			expected:  []int{0, 1, 0, 1, 0},
			endCursor: 1,
		},
		{
			name:      "Single backend always selected",
			backends:  1,
			picks:     3,
			expected:  []int{0, 0, 0},
			endCursor: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool, err := NewServerPool(testBackends(t, tt.backends))
			require.NoError(t, err)

			got := make([]int, 0, tt.picks)
			for i := 0; i < tt.picks; i++ {
				backend, index := pool.Next()
				assert.Equal(t, pool.Backend(index), backend)
				got = append(got, index)
			}

			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.endCursor, pool.Cursor())
		})
	}
}

func TestServerPoolRejectsEmptyPool(t *testing.T) {
	t.Parallel()

	_, err := NewServerPool(nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoBackends, errors.GetErrorCode(err))
}

func TestServerPoolSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	backends := testBackends(t, 2)
	pool, err := NewServerPool(backends)
	require.NoError(t, err)

	snap := pool.Snapshot()
	snap[0].Port = 99

	assert.Equal(t, uint16(5), pool.Backend(0).Port)
	assert.Equal(t, 2, pool.Len())
}
