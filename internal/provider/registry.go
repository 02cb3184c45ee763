// Package provider assembles the closed set of rate sources and resolves
// them by id.
package provider

import (
	"errors"
	"fmt"
	"sort"

	"ratewatch/internal/rate"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Registry maps a provider id to its adapter. The set is fixed at
// construction; there is no runtime registration.
type Registry struct {
	byID map[string]rate.Provider
	ids  []string
}

func NewRegistry(providers ...rate.Provider) *Registry {
	r := &Registry{byID: make(map[string]rate.Provider, len(providers))}
	for _, p := range providers {
		r.byID[p.Name()] = p
	}
	for id := range r.byID {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r
}

func (r *Registry) Resolve(id string) (rate.Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// IDs returns all provider ids in sorted order, for menu construction.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) All() []rate.Provider {
	out := make([]rate.Provider, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}
