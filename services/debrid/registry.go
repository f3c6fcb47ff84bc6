package debrid

import (
	"github.com/pkg/errors"
)

type Options struct {
	APIKey string
	IP     string
}

type Factory func(o Options) Provider

type Descriptor struct {
	Meta Meta
	New  Factory
}

// Registry maps provider ids to their factories.
type Registry struct {
	order []string
	descs map[string]Descriptor
}

func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{
		descs: map[string]Descriptor{},
	}
	for _, d := range descs {
		if _, ok := r.descs[d.Meta.ID]; !ok {
			r.order = append(r.order, d.Meta.ID)
		}
		r.descs[d.Meta.ID] = d
	}
	return r
}

// New returns nil without error when id is empty, no provider is configured then.
func (r *Registry) New(id string, o Options) (Provider, error) {
	if id == "" {
		return nil, nil
	}
	d, ok := r.descs[id]
	if !ok {
		return nil, errors.Errorf("debrid service %v does not exist", id)
	}
	return d.New(o), nil
}

func (r *Registry) List() []Meta {
	res := make([]Meta, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.descs[id].Meta)
	}
	return res
}
