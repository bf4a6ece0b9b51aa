package service

import (
	"strings"

	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/domain/backend"
)

// Registry maps model ids to backends. It is built once from config and is
// read-only afterwards, so concurrent Resolve calls need no locking.
type Registry struct {
	local    backend.Descriptor
	agents   []backend.Descriptor
	byName   map[string]backend.Descriptor
	exact    map[string]backend.Descriptor
	families []string
	models   []backend.ModelInfo
}

// NewRegistry builds the routing table. Agent order is significant: the
// first agent receives models that match nothing else.
func NewRegistry(ollama config.Ollama, agents []config.Agent) *Registry {
	r := &Registry{
		local: backend.Descriptor{
			Name:     "ollama",
			Kind:     backend.KindLocal,
			Address:  ollama.URL,
			Protocol: backend.ProtocolNDJSONGenerate,
		},
		byName:   make(map[string]backend.Descriptor, len(agents)),
		exact:    make(map[string]backend.Descriptor),
		families: ollama.Families,
	}

	for _, id := range ollama.Models {
		if _, dup := r.exact[id]; dup {
			continue
		}
		r.exact[id] = r.local.WithModel(id)
		r.models = append(r.models, backend.ModelInfo{ID: id, Provider: "ollama", Type: backend.TypeLocal})
	}

	for _, a := range agents {
		d := backend.Descriptor{
			Name:     a.Name,
			Kind:     backend.KindAgent,
			Address:  a.Address,
			Protocol: backend.ProtocolSSEChat,
		}
		r.agents = append(r.agents, d)
		r.byName[a.Name] = d
		for _, m := range a.Models {
			if _, dup := r.exact[m.ID]; dup {
				continue
			}
			r.exact[m.ID] = d.WithModel(m.ID)
			r.models = append(r.models, backend.ModelInfo{ID: m.ID, Provider: m.Provider, Type: backend.TypeCloud})
		}
	}

	return r
}

// Resolve picks the backend for model. It never fails:
//  1. an exact id from the table wins;
//  2. an id containing a local family token goes to local inference as-is;
//  3. anything else goes to the first registered agent.
func (r *Registry) Resolve(model string) backend.Descriptor {
	if d, ok := r.exact[model]; ok {
		return d
	}
	for _, fam := range r.families {
		if fam != "" && strings.Contains(model, fam) {
			return r.local.WithModel(model)
		}
	}
	if len(r.agents) == 0 {
		return r.local.WithModel(model)
	}
	return r.agents[0].WithModel(model)
}

// Models returns every statically known model in registration order.
func (r *Registry) Models() []backend.ModelInfo {
	out := make([]backend.ModelInfo, len(r.models))
	copy(out, r.models)
	return out
}

// Local returns the local inference descriptor.
func (r *Registry) Local() backend.Descriptor {
	return r.local
}

// Agents returns the agent descriptors in registration order.
func (r *Registry) Agents() []backend.Descriptor {
	out := make([]backend.Descriptor, len(r.agents))
	copy(out, r.agents)
	return out
}

// Agent looks up an agent by name.
func (r *Registry) Agent(name string) (backend.Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}
