package obinary

import "fmt"

// Registry is the process-wide set of loaded modules, keyed by name
// with every version loaded under that name kept side by side — two
// versions of the same module may be loaded at once, same as the
// source's module cache permits.
type Registry struct {
	byName map[string][]*Module
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string][]*Module)}
}

// ErrDuplicateModule is returned by Add when a module of the same name
// and version has already been registered.
type ErrDuplicateModule struct {
	Name    string
	Version Version
}

func (e *ErrDuplicateModule) Error() string {
	return fmt.Sprintf("obinary: module %q version %s already loaded", e.Name, e.Version)
}

// Add registers a loaded module.
func (r *Registry) Add(m *Module) error {
	for _, existing := range r.byName[m.Name] {
		if existing.Version == m.Version {
			return &ErrDuplicateModule{Name: m.Name, Version: m.Version}
		}
	}
	r.byName[m.Name] = append(r.byName[m.Name], m)
	return nil
}

// FindModule resolves a module by name and an optional minimum
// version, mirroring FindModule from the original interface: when
// floor is nil, the first loaded module under that name is returned;
// otherwise the highest loaded version satisfying floor is preferred.
func (r *Registry) FindModule(name string, floor *Version) (*Module, bool) {
	candidates := r.byName[name]
	if len(candidates) == 0 {
		return nil, false
	}
	if floor == nil {
		return candidates[0], true
	}

	var best *Module
	for _, m := range candidates {
		if !m.Version.AtLeast(*floor) {
			continue
		}
		if best == nil || m.Version.Compare(best.Version) > 0 {
			best = m
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// All returns every loaded module, across every name and version, for
// diagnostics. The GC does not call it.
func (r *Registry) All() []*Module {
	var out []*Module
	for _, ms := range r.byName {
		out = append(out, ms...)
	}
	return out
}
