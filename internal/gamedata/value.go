package gamedata

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/corrreia/nativehook/internal/shared"
)

// Platformed is a value that is either shared by every platform or given
// per platform as a mapping of platform name to value.
type Platformed[T any] struct {
	all *T
	per map[shared.Platform]T
}

// Of returns a Platformed holding v for every platform.
func Of[T any](v T) Platformed[T] {
	return Platformed[T]{all: &v}
}

func (p *Platformed[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		var v T
		if err := n.Decode(&v); err != nil {
			return err
		}
		p.all = &v
		return nil
	}
	var m map[string]T
	if err := n.Decode(&m); err != nil {
		return err
	}
	p.per = make(map[shared.Platform]T, len(m))
	for k, v := range m {
		pl, ok := shared.ParsePlatform(k)
		if !ok || k == "" {
			return fmt.Errorf("line %d: unknown platform %q", n.Line, k)
		}
		p.per[pl] = v
	}
	return nil
}

// For returns the value for pl.
func (p Platformed[T]) For(pl shared.Platform) (T, bool) {
	if v, ok := p.per[pl]; ok {
		return v, true
	}
	if p.all != nil {
		return *p.all, true
	}
	var zero T
	return zero, false
}

// IsSet reports whether any value was given.
func (p Platformed[T]) IsSet() bool {
	return p.all != nil || len(p.per) > 0
}
