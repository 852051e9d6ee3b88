// Package cors decides which access-control headers a response carries.
// The policy is selected once at configuration time; requests never
// re-inspect the configuration value.
package cors

import (
	"net/http"
	"regexp"

	"example.com/tryserve/internal/config"
)

// Policy appends access-control headers to a response. Implementations
// are safe for concurrent use.
type Policy interface {
	Apply(r *http.Request, h http.Header)
}

// FromMatch builds the policy for a cors_match configuration value:
// empty string disables CORS, "*" answers every origin, anything else
// is compiled as a regular expression matched against the Origin
// header.
func FromMatch(match string) (Policy, error) {
	switch match {
	case config.CORSMatchDisabled:
		return disabled{}, nil
	case config.CORSMatchWildcard:
		return wildcard{}, nil
	default:
		re, err := regexp.Compile(match)
		if err != nil {
			return nil, err
		}
		return &pattern{origin: re}, nil
	}
}

type disabled struct{}

func (disabled) Apply(*http.Request, http.Header) {}

// wildcard is the credential-less public policy.
type wildcard struct{}

func (wildcard) Apply(_ *http.Request, h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
}

// pattern echoes a matching Origin back and allows credentials, so the
// header allow-list must be explicit rather than "*".
type pattern struct {
	origin *regexp.Regexp
}

const (
	patternMethods = "OPTIONS, HEAD, GET, POST, PATCH, PUT, DELETE"
	patternHeaders = "Origin, Accept, Content-Type, Authorization, X-Requested-With"
	// 7 days of preflight caching.
	patternMaxAge = "604800"
)

func (p *pattern) Apply(r *http.Request, h http.Header) {
	origin := r.Header.Get("Origin")
	if origin == "" || !p.origin.MatchString(origin) {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", patternMethods)
	h.Set("Access-Control-Allow-Headers", patternHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", patternMaxAge)
}
