package authbridge

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultCredentialField is the JSON key the credential travels under.
const DefaultCredentialField = "access_token"

// Provider describes one identity provider the backend knows how to exchange.
type Provider struct {
	Name            string
	CredentialField string
}

// Registry holds the providers Exchange accepts.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds a registry seeded with google.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	r.Register(Provider{Name: "google", CredentialField: DefaultCredentialField})
	return r
}

// ParseRegistry builds a registry from "name[:field]" entries.
func ParseRegistry(entries []string) (*Registry, error) {
	r := NewRegistry()
	for _, entry := range entries {
		name, field, _ := strings.Cut(strings.TrimSpace(entry), ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fmt.Errorf("provider entry %q has no name", entry)
		}
		field = strings.TrimSpace(field)
		if field == "" {
			field = DefaultCredentialField
		}
		r.Register(Provider{Name: name, CredentialField: field})
	}
	return r, nil
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	if p.CredentialField == "" {
		p.CredentialField = DefaultCredentialField
	}
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name] = p
}

// Lookup finds a provider by name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists registered providers in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
