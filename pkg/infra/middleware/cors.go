package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
)

// ValidateCORSOptions rejects an empty origin list, origins that are not
// bare scheme://host[:port], and "*" combined with credentials.
func ValidateCORSOptions(opts mwopts.CORSOptions) error {
	if len(opts.AllowOrigins) == 0 {
		return errors.New("cors: allow-origins must list at least one origin")
	}
	for _, origin := range opts.AllowOrigins {
		if origin == "*" {
			if opts.AllowCredentials {
				return errors.New("cors: wildcard origin cannot be combined with allow-credentials")
			}
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("cors: origin %q needs a scheme and host", origin)
		}
		if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
			return fmt.Errorf("cors: origin %q must not carry a path, query or fragment", origin)
		}
	}
	return nil
}

// corsPolicy 预先拼好的响应头。
type corsPolicy struct {
	origins     map[string]bool
	anyOrigin   bool
	credentials bool
	methods     string
	headers     string
	maxAge      string
}

func newCORSPolicy(opts mwopts.CORSOptions) *corsPolicy {
	methods := opts.AllowMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := opts.AllowHeaders
	if len(headers) == 0 {
		headers = []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderXRequestID}
	}
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = 86400
	}

	p := &corsPolicy{
		origins:     make(map[string]bool, len(opts.AllowOrigins)),
		anyOrigin:   slices.Contains(opts.AllowOrigins, "*"),
		credentials: opts.AllowCredentials,
		methods:     strings.Join(methods, ", "),
		headers:     strings.Join(headers, ", "),
		maxAge:      strconv.Itoa(maxAge),
	}
	for _, o := range opts.AllowOrigins {
		p.origins[o] = true
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.origins[origin]:
		return origin
	case p.anyOrigin:
		return "*"
	}
	return ""
}

// CORSWithOptions returns the CORS middleware. Preflight requests from an
// allowed origin end with 204; invalid options panic.
func CORSWithOptions(opts mwopts.CORSOptions) gin.HandlerFunc {
	if err := ValidateCORSOptions(opts); err != nil {
		panic(err)
	}
	p := newCORSPolicy(opts)

	return func(c *gin.Context) {
		allowed := p.allowOrigin(c.GetHeader("Origin"))
		if allowed == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Expose-Headers", HeaderXRequestID)
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		h.Set("Access-Control-Allow-Methods", p.methods)
		h.Set("Access-Control-Allow-Headers", p.headers)
		h.Set("Access-Control-Max-Age", p.maxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
