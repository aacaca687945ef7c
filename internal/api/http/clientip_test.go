package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		forwarded string
		realIP    string
		want      string
	}{
		{name: "platform wins", platform: "203.0.113.9", forwarded: "198.51.100.1", realIP: "192.0.2.1", want: "203.0.113.9"},
		{name: "first forwarded hop", forwarded: " 198.51.100.1 , 10.0.0.1", realIP: "192.0.2.1", want: "198.51.100.1"},
		{name: "real ip", realIP: "192.0.2.1", want: "192.0.2.1"},
		{name: "nothing", want: "unknown"},
		{name: "blank values ignored", platform: "  ", forwarded: " ", want: "unknown"},
		{name: "mapped ipv4", forwarded: "::ffff:192.0.2.44", want: "192.0.2.44"},
		{name: "mapped uppercase", platform: "::FFFF:10.1.2.3", want: "10.1.2.3"},
		{name: "mapped invalid quad kept", platform: "::ffff:300.1.2.3", want: "::ffff:300.1.2.3"},
		{name: "mapped hex kept", platform: "::ffff:c000:22c", want: "::ffff:c000:22c"},
		{name: "plain ipv6", realIP: "2001:db8::1", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.platform, tt.forwarded, tt.realIP))
		})
	}
}
