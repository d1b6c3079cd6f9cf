package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamURL(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		location string
		expected string
	}{
		{"localhost:8080", "ws://localhost:8080/events"},
		{"127.0.0.1", "ws://127.0.0.1/events"},
		{"[::1]:9000", "ws://[::1]:9000/events"},
		{"bridge.example.com", "wss://bridge.example.com/events"},
		{"ws://bridge.example.com/stream", "ws://bridge.example.com/stream"},
		{"wss://bridge.example.com/", "wss://bridge.example.com/events"},
		{"http://bridge.example.com:123", "ws://bridge.example.com:123/events"},
		{"https://bridge.example.com/v1/events", "wss://bridge.example.com/v1/events"},
	}
	for _, c := range testCases {
		out, err := StreamURL(c.location, "/events")
		assert.NoError(err, c.location)
		assert.Equal(c.expected, out)
	}

	for _, bad := range []string{"", "ftp://bridge.example.com", "ws://"} {
		_, err := StreamURL(bad, "/events")
		assert.Error(err, bad)
	}
}
