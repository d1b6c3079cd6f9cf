package util

import (
	"fmt"
	"net/url"
	"strings"
)

// StreamURL turns a configured event stream location into a websocket URL. A bare host gets wss://
// (ws:// for loopback), http(s) schemes are converted, and defaultPath is used when the location
// has no path of its own.
func StreamURL(location, defaultPath string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty event stream location")
	}
	switch {
	case strings.HasPrefix(location, "https://"):
		location = "wss://" + strings.TrimPrefix(location, "https://")
	case strings.HasPrefix(location, "http://"):
		location = "ws://" + strings.TrimPrefix(location, "http://")
	case !strings.Contains(location, "://"):
		location = defaultScheme(location) + "://" + location
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid event stream location: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported event stream scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("event stream location has no host: %q", location)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}
	return u.String(), nil
}

func defaultScheme(host string) string {
	if strings.HasPrefix(host, "127.0.0.") || strings.HasPrefix(host, "[::1]") {
		return "ws"
	}
	if strings.SplitN(host, ":", 2)[0] == "localhost" {
		return "ws"
	}
	return "wss"
}
