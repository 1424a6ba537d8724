package tenant

import (
	"net/http"
	"strings"
)

// Resolver extracts the raw tenant identifier from a request.
// Returns an empty string if the request carries none.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// DefaultHeader is set by the auth gateway in front of the service.
const DefaultHeader = "X-Tenant-ID"

// HeaderResolver reads the identifier from a request header.
type HeaderResolver struct {
	Header string
}

// NewHeaderResolver creates a resolver for header, DefaultHeader if empty.
func NewHeaderResolver(header string) *HeaderResolver {
	if header == "" {
		header = DefaultHeader
	}
	return &HeaderResolver{Header: header}
}

func (r *HeaderResolver) Resolve(req *http.Request) (string, error) {
	return strings.TrimSpace(req.Header.Get(r.Header)), nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// ChainResolver returns the first non-empty identifier.
type ChainResolver struct {
	resolvers []Resolver
}

// NewChainResolver tries resolvers in order.
func NewChainResolver(resolvers ...Resolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

func (c *ChainResolver) Resolve(req *http.Request) (string, error) {
	for _, r := range c.resolvers {
		id, err := r.Resolve(req)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}
