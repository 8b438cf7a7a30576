package voice

import (
	"fmt"
	"net/url"
	"strings"
)

// Socket paths served by the backend
const (
	VoicePath = "/voice"
	VideoPath = "/video"
)

// SocketURL builds ws(s)://host/<path>?interviewId=..&token=.. from an
// http(s) or ws(s) base URL.
func SocketURL(base, path, interviewID, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", base, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend url %q has no host", base)
	}

	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	q.Set("interviewId", interviewID)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
