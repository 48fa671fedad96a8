// Package cookiedomain finds the broadest domain a cookie can be written to.
//
// The probe runs once per process; its result is handed to the storage
// adapter as an immutable option and never recomputed.
package cookiedomain

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pudottapommin/golib/pkg/id"
	"golang.org/x/net/publicsuffix"
)

// Policy decides the result when every candidate accepted the test cookie.
type Policy string

const (
	// PolicyBroadest returns the last candidate tried, the shortest suffix.
	PolicyBroadest Policy = "broadest"
	// PolicyHostOnly returns "", leaving cookies host-only.
	PolicyHostOnly Policy = "host-only"
)

var expired = time.Date(1970, time.January, 1, 0, 0, 1, 0, time.UTC)

// Prober writes and reads cookies the way the client would.
type Prober interface {
	SetCookie(c *http.Cookie)
	Cookie(name string) (string, bool)
}

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyBroadest, "":
		return PolicyBroadest, nil
	case PolicyHostOnly, "hostonly", "host":
		return PolicyHostOnly, nil
	}
	return "", fmt.Errorf("cookiedomain: unknown policy %q", s)
}

// Probe tries host and each of its parent domains in turn, widening one label at
// a time. The first domain that refuses the test cookie ends the probe and the
// previous, still working domain is returned. "" means no domain attribute.
func Probe(host string, p Prober, policy Policy) string {
	host = strings.Trim(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	name := "_gd" + strings.ReplaceAll(id.New().String(), "-", "")

	top := ""
	for i := range labels {
		candidate := strings.Join(labels[i:], ".")
		p.SetCookie(&http.Cookie{Name: name, Value: "1", Path: "/", Domain: candidate})
		if v, ok := p.Cookie(name); !ok || v != "1" {
			return top
		}
		p.SetCookie(&http.Cookie{Name: name, Path: "/", Domain: candidate, Expires: expired, MaxAge: -1})
		top = candidate
	}
	if policy == PolicyHostOnly {
		return ""
	}
	return top
}

// JarProber probes against an in-process cookie jar that applies the public
// suffix list, refusing the same domains a browser would.
type JarProber struct {
	jar *cookiejar.Jar
	u   *url.URL
}

var _ Prober = (*JarProber)(nil)

func NewJarProber(host string) (*JarProber, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookiedomain: error creating jar: %w", err)
	}
	return &JarProber{jar: jar, u: &url.URL{Scheme: "https", Host: host, Path: "/"}}, nil
}

func (p *JarProber) SetCookie(c *http.Cookie) {
	p.jar.SetCookies(p.u, []*http.Cookie{c})
}

func (p *JarProber) Cookie(name string) (string, bool) {
	for _, c := range p.jar.Cookies(p.u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Resolve probes host with a JarProber.
func Resolve(host string, policy Policy) (string, error) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	p, err := NewJarProber(host)
	if err != nil {
		return "", err
	}
	return Probe(host, p, policy), nil
}
