package resolve

import (
	"net/url"
	"strings"

	"github.com/matzehuels/livebundle/pkg/module"
)

// DefaultRegistryBase is the CDN that bare specifiers are resolved against.
const DefaultRegistryBase = "https://unpkg.com/"

// Resolver resolves import specifiers against a fixed registry base URL.
// A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	base    string
	baseURL *url.URL
}

// New creates a Resolver for the given registry base URL.
// An empty base selects [DefaultRegistryBase]. A trailing "/" is added when
// missing so that "https://cdn.example" and "https://cdn.example/" behave the
// same.
func New(registryBase string) (*Resolver, error) {
	if registryBase == "" {
		registryBase = DefaultRegistryBase
	}
	registryBase = withSlash(registryBase)
	u, err := url.Parse(registryBase)
	if err != nil {
		return nil, err
	}
	return &Resolver{base: registryBase, baseURL: u}, nil
}

// RegistryBase returns the normalized registry base URL.
func (r *Resolver) RegistryBase() string { return r.base }

// Resolve maps specifier, imported from the module described by from, to the
// address that should be loaded next.
func (r *Resolver) Resolve(specifier string, from module.Context) module.Resolution {
	switch {
	case specifier == module.EntryName:
		return module.Resolution{Address: module.EntryAddress, Namespace: module.NamespaceEntry}
	case isRelative(specifier):
		return module.Resolution{Address: r.join(from.Base, specifier), Namespace: module.NamespaceRemote}
	case IsBuiltin(specifier):
		return module.Resolution{Address: module.Address(specifier), Namespace: module.NamespaceStub}
	default:
		return module.Resolution{Address: module.Address(r.base + specifier), Namespace: module.NamespaceRemote}
	}
}

// IsRegistryAddress reports whether addr lives under the registry base.
func (r *Resolver) IsRegistryAddress(addr module.Address) bool {
	return strings.HasPrefix(string(addr), r.base)
}

func (r *Resolver) join(base, rel string) module.Address {
	b := r.baseURL
	if base != "" {
		u, err := url.Parse(withSlash(base))
		if err != nil {
			// Fall back to plain concatenation so resolution stays total.
			return module.Address(withSlash(base) + rel)
		}
		b = u
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return module.Address(b.String() + rel)
	}
	return module.Address(b.ResolveReference(ref).String())
}

func isRelative(s string) bool {
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
