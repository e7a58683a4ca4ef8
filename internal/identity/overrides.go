package identity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// Overrides is the human-reviewed alias mapping: raw identity key to
// canonical group label. Two identities mapped to the same label are
// merged unconditionally; identities mapped to different labels are kept
// apart even if the automatic phases would merge them.
type Overrides struct {
	byKey map[string]string
}

// overrideFile is the on-disk YAML shape:
//
//	groups:
//	  jdoe:
//	    - name: John Doe
//	      email: jdoe@corp.com
//	    - name: john doe
//	      email: john.doe@gmail.com
type overrideFile struct {
	Groups map[string][]models.RawIdentity `yaml:"groups"`
}

// LoadOverrides reads an override mapping from a YAML file. A missing
// path returns empty overrides, not an error: the mapping is optional.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{byKey: map[string]string{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overrides{byKey: map[string]string{}}, nil
		}
		return Overrides{}, fmt.Errorf("read overrides %s: %w", path, err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Overrides{}, fmt.Errorf("parse overrides %s: %w", path, err)
	}

	byKey := make(map[string]string)
	for label, identities := range file.Groups {
		for _, id := range identities {
			key := id.Key()
			if existing, ok := byKey[key]; ok && existing != label {
				return Overrides{}, fmt.Errorf(
					"overrides %s: identity %q mapped to both %q and %q",
					path, key, existing, label)
			}
			byKey[key] = label
		}
	}
	return Overrides{byKey: byKey}, nil
}

// Lookup returns the override group label for a raw identity key.
func (o Overrides) Lookup(key string) (string, bool) {
	if o.byKey == nil {
		return "", false
	}
	label, ok := o.byKey[key]
	return label, ok
}

// Len reports how many raw identities are covered by overrides.
func (o Overrides) Len() int {
	return len(o.byKey)
}
