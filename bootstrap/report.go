package bootstrap

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/injectkit/component"
	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/version"
)

// Report is a snapshot of an application's injector: its bindings in
// registration order and the health of its started components.
type Report struct {
	Name       string             `yaml:"name"`
	Version    string             `yaml:"version,omitempty"`
	Stage      string             `yaml:"stage"`
	Bindings   []BindingInfo      `yaml:"bindings"`
	Components []component.Health `yaml:"components,omitempty"`
	Build      *version.Info      `yaml:"build,omitempty"`
}

// BindingInfo describes one binding.
type BindingInfo struct {
	Key          string   `yaml:"key"`
	Kind         string   `yaml:"kind"`
	Scope        string   `yaml:"scope"`
	Target       string   `yaml:"target,omitempty"`
	Source       string   `yaml:"source"`
	Eager        bool     `yaml:"eager,omitempty"`
	Intercepted  bool     `yaml:"intercepted,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// NewReport describes inj.
func NewReport(name, version string, inj *di.Injector, health []component.Health) *Report {
	r := &Report{
		Name:       name,
		Version:    version,
		Stage:      inj.Stage().String(),
		Components: health,
	}
	for _, b := range inj.Bindings() {
		r.Bindings = append(r.Bindings, describeBinding(b))
	}
	return r
}

func describeBinding(b *di.Binding) BindingInfo {
	info := BindingInfo{
		Key:         b.Key().String(),
		Kind:        b.Kind().String(),
		Scope:       b.Scope().String(),
		Source:      b.Source(),
		Eager:       b.Eager(),
		Intercepted: b.Intercepted(),
	}
	if target, ok := b.Target(); ok {
		info.Target = target.String()
	}
	for _, d := range b.Dependencies() {
		dep := d.Key.String()
		if d.Optional {
			dep += " (optional)"
		}
		info.Dependencies = append(info.Dependencies, dep)
	}
	return info
}

// YAML renders the report as a YAML document.
func (r *Report) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
