package util

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DangerousSchemes lists URI schemes that are never accepted as redirect targets
var DangerousSchemes = []string{"javascript", "data", "file", "vbscript", "about"}

// IsLoopbackHostname checks if a hostname represents a loopback address.
// This includes the entire 127.0.0.0/8 range and IPv6 ::1.
// Expects hostname without port (as returned by url.URL.Hostname()).
// 0.0.0.0 is unspecified, not loopback.
func IsLoopbackHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}

	clean := strings.TrimSuffix(strings.TrimPrefix(hostname, "["), "]")
	if ip := net.ParseIP(clean); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateRedirectURI checks a redirect URI for registration (RFC 6749 Section 3.1.2,
// RFC 8252 Section 7.3):
//   - absolute, without fragment
//   - https, or http only on a loopback host
//   - custom schemes allowed for native apps unless they are dangerous
func ValidateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("redirect_uri is not a valid URI: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("redirect_uri must be absolute")
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain a fragment")
	}

	scheme := strings.ToLower(u.Scheme)
	if Contains(DangerousSchemes, scheme) {
		return fmt.Errorf("redirect_uri scheme %q is not allowed", u.Scheme)
	}

	switch scheme {
	case "https":
		if u.Host == "" {
			return fmt.Errorf("redirect_uri must include a host")
		}
	case "http":
		if !IsLoopbackHostname(u.Hostname()) {
			return fmt.Errorf("http redirect_uri is only allowed for loopback hosts")
		}
	}
	return nil
}
