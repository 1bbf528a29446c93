// Package guard evaluates a request's access claim against a session's
// predicate. It is the only component that looks at network addresses or
// bearer tokens.
package guard

import (
	"crypto/hmac"
	"net"
	"strings"
	"time"

	"github.com/classmark/classmark/internal/session"
)

// Claim is what the transport layer knows about the requester.
type Claim struct {
	RemoteAddr   string // transport-level peer, "ip:port" or bare ip
	ForwardedFor string // raw X-Forwarded-For header value, may be empty
	Token        string // presented bearer token, may be empty
}

// Reason explains a denial. Expired and AccessDenied are deliberately
// distinct: the student's remediation differs ("ask the teacher to re-share"
// vs "join the teacher's network / use the right token").
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonExpired      Reason = "expired"
	ReasonAccessDenied Reason = "access_denied"
)

// Verdict is the guard's binary decision plus the denial reason.
type Verdict struct {
	Allowed bool
	Reason  Reason
}

// Authorize re-checks session liveness and evaluates the predicate. An
// expired session denies regardless of the predicate.
func Authorize(s *session.Session, c Claim, now time.Time) Verdict {
	if !s.Live(now) {
		return Verdict{Allowed: false, Reason: ReasonExpired}
	}

	switch s.Predicate.Mode {
	case session.ModeSubnet:
		prefix := PrefixOf(ClientIP(c.RemoteAddr, c.ForwardedFor))
		if s.Predicate.SubnetPrefix != "" && strings.HasPrefix(prefix, s.Predicate.SubnetPrefix) {
			return Verdict{Allowed: true}
		}
	case session.ModeToken:
		// Constant-time compare; the token is the whole credential.
		if c.Token != "" && hmac.Equal([]byte(c.Token), []byte(s.Predicate.Token)) {
			return Verdict{Allowed: true}
		}
	}
	return Verdict{Allowed: false, Reason: ReasonAccessDenied}
}

// ClientIP resolves the requester's address, preferring the first
// X-Forwarded-For entry so deployments behind a reverse proxy work. The
// header is client-controlled, which is why subnet mode is only a
// convenience filter.
func ClientIP(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.SplitN(forwardedFor, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// PrefixOf reduces an IPv4 address to its subnet prefix, e.g.
// "192.168.1.42" -> "192.168.1.". Inputs that are already prefixes pass
// through unchanged; anything without three dots is returned as-is.
func PrefixOf(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) < 3 {
		return ip
	}
	return strings.Join(parts[:3], ".") + "."
}
