package capture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMonitoringInterface(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"eth0", true},
		{"wlan0", true},
		{"enp3s0", true},
		{"br0", true},
		{"lo", false},
		{"LO", false},
		{"lo0", false},
		{"loopback", false},
		{"usb0", false},
		{"bluetooth0", false},
		{"docker0", false},
		{"veth1234", false},
		{"vmnet1", false},
		{"vboxnet0", false},
		{"isatap0", false},
		{"teredo0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidMonitoringInterface(tt.name))
		})
	}
}

func TestContainsSensitiveInfo(t *testing.T) {
	assert.True(t, containsSensitiveInfo("MAC Address: aa:bb"))
	assert.True(t, containsSensitiveInfo("Vendor hardware description"))
	assert.False(t, containsSensitiveInfo("Ethernet adapter"))
}

func TestSanitizeDescriptionTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 80)
	got := sanitizeDescription(long)
	assert.Len(t, got, 53) // 50 chars + "..."
	assert.True(t, strings.HasSuffix(got, "..."))
}
