package auth

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Guard protects mutating routes with a shared secret and, optionally, a
// list of allowed client networks. A Guard without a secret lets every
// request through.
type Guard struct {
	secret []byte
	cidrs  []*net.IPNet
}

func New(secret string, allowedCIDRs []string) (*Guard, error) {
	g := &Guard{secret: []byte(strings.TrimSpace(secret))}
	for _, s := range allowedCIDRs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid admin cidr %q: %w", s, err)
		}
		g.cidrs = append(g.cidrs, n)
	}
	return g, nil
}

func (g *Guard) Enabled() bool { return len(g.secret) > 0 }

// AdminOnly wraps next. onDeny writes the rejection so callers control the
// response format.
func (g *Guard) AdminOnly(next http.Handler, onDeny func(w http.ResponseWriter, code int, msg string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if len(g.cidrs) > 0 && !g.allowIP(r.RemoteAddr) {
			onDeny(w, http.StatusForbidden, "forbidden")
			return
		}
		if !g.validSecret(requestSecret(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="hotspot"`)
			onDeny(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestSecret(r *http.Request) string {
	if v := r.Header.Get("X-Admin-Secret"); v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return v
	}
	return ""
}

func (g *Guard) validSecret(v string) bool {
	vb := []byte(strings.TrimSpace(v))
	if len(vb) == 0 || len(vb) != len(g.secret) {
		return false
	}
	return subtle.ConstantTimeCompare(vb, g.secret) == 1
}

func (g *Guard) allowIP(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, cidr := range g.cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
