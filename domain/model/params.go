package model

import (
	"fmt"
	"math"
)

// Parameter is a single named model parameter with box bounds.
// Nominal holds the reference value the parameter was declared with;
// generators (Asimov, toys) evaluate the model at nominal values, not at
// whatever a previous fit left behind.
type Parameter struct {
	Name    string
	Value   float64
	Nominal float64
	Min     float64
	Max     float64
	Frozen  bool
}

// InBounds reports whether the current value lies inside the declared bounds.
func (p *Parameter) InBounds() bool {
	return p.Value >= p.Min && p.Value <= p.Max
}

// ParameterSet is an ordered collection of named parameters.
// Order is declaration order and is stable, so free-parameter vectors
// handed to an optimizer always line up with the same parameters.
type ParameterSet struct {
	order  []string
	byName map[string]*Parameter
}

// NewParameterSet creates an empty parameter set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{byName: make(map[string]*Parameter)}
}

// Add declares a new parameter. The current value starts at nominal.
func (ps *ParameterSet) Add(name string, nominal, min, max float64, frozen bool) error {
	if name == "" {
		return fmt.Errorf("parameter name must be set")
	}
	if _, exists := ps.byName[name]; exists {
		return fmt.Errorf("parameter %q already declared", name)
	}
	if math.IsNaN(nominal) || min > max {
		return fmt.Errorf("parameter %q has invalid nominal/bounds (nominal=%v, min=%v, max=%v)", name, nominal, min, max)
	}
	if nominal < min || nominal > max {
		return fmt.Errorf("parameter %q nominal %v outside bounds [%v, %v]", name, nominal, min, max)
	}
	ps.order = append(ps.order, name)
	ps.byName[name] = &Parameter{
		Name:    name,
		Value:   nominal,
		Nominal: nominal,
		Min:     min,
		Max:     max,
		Frozen:  frozen,
	}
	return nil
}

// Get returns the parameter with the given name.
func (ps *ParameterSet) Get(name string) (*Parameter, bool) {
	p, ok := ps.byName[name]
	return p, ok
}

// Names returns parameter names in declaration order.
func (ps *ParameterSet) Names() []string {
	out := make([]string, len(ps.order))
	copy(out, ps.order)
	return out
}

// Free returns the non-frozen parameters in declaration order.
func (ps *ParameterSet) Free() []*Parameter {
	var free []*Parameter
	for _, name := range ps.order {
		if p := ps.byName[name]; !p.Frozen {
			free = append(free, p)
		}
	}
	return free
}

// Values returns a name -> current value snapshot of all parameters.
func (ps *ParameterSet) Values() map[string]float64 {
	out := make(map[string]float64, len(ps.order))
	for name, p := range ps.byName {
		out[name] = p.Value
	}
	return out
}

// SetValue updates a parameter's current value.
func (ps *ParameterSet) SetValue(name string, value float64) error {
	p, ok := ps.byName[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	p.Value = value
	return nil
}

// Restore overwrites current values from a snapshot taken with Values.
func (ps *ParameterSet) Restore(snapshot map[string]float64) {
	for name, v := range snapshot {
		if p, ok := ps.byName[name]; ok {
			p.Value = v
		}
	}
}

// ResetToNominal sets every parameter back to its declared nominal value.
func (ps *ParameterSet) ResetToNominal() {
	for _, p := range ps.byName {
		p.Value = p.Nominal
	}
}

// Clone deep-copies the set, including current values and frozen flags.
func (ps *ParameterSet) Clone() *ParameterSet {
	out := NewParameterSet()
	out.order = make([]string, len(ps.order))
	copy(out.order, ps.order)
	for name, p := range ps.byName {
		cp := *p
		out.byName[name] = &cp
	}
	return out
}
