package sim

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrganType is the coarse organ category. Parameter sets are registered per
// (OrganType, subtype) pair.
type OrganType int

const (
	// OrganTypeAny matches every organ type in organ queries.
	OrganTypeAny OrganType = iota
	OrganTypeSeed
	OrganTypeRoot
	OrganTypeStem
	OrganTypeLeaf
)

var organTypeNames = map[OrganType]string{
	OrganTypeAny:  "any",
	OrganTypeSeed: "seed",
	OrganTypeRoot: "root",
	OrganTypeStem: "stem",
	OrganTypeLeaf: "leaf",
}

func (t OrganType) String() string {
	if name, ok := organTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("organtype(%d)", int(t))
}

// ParseOrganType converts a name ("seed", "root", "stem", "leaf") into an OrganType.
func ParseOrganType(name string) (OrganType, error) {
	for t, n := range organTypeNames {
		if n == name && t != OrganTypeAny {
			return t, nil
		}
	}
	return OrganTypeAny, fmt.Errorf("%w: unknown organ type %q", ErrInvalidArgument, name)
}

// MarshalYAML writes the organ type by name.
func (t OrganType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML accepts organ type names.
func (t *OrganType) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseOrganType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
