package matching

import (
	"fmt"
	"os"

	"github.com/crossvenue/arbscan/pkg/types"
	"gopkg.in/yaml.v3"
)

type mappingsFile struct {
	Mappings []types.ManualMapping `yaml:"mappings"`
}

// LoadMappings reads the manual mapping file. An empty path means no
// manual tier; a configured path that cannot be read or parsed is fatal,
// since a silently ignored mapping file is worse than none.
func LoadMappings(path string) ([]types.ManualMapping, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read mappings file %s: %v", types.ErrConfig, path, err)
	}

	var file mappingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse mappings file %s: %v", types.ErrConfig, path, err)
	}

	for i, mapping := range file.Mappings {
		if mapping.Slug == "" {
			return nil, fmt.Errorf("%w: mapping %d has no slug", types.ErrConfig, i)
		}
		if len(mapping.Outcomes) == 0 {
			return nil, fmt.Errorf("%w: mapping %s has no outcomes", types.ErrConfig, mapping.Slug)
		}
		for key, outcome := range mapping.Outcomes {
			for venue, ref := range outcome {
				if ref.VenueMarketID == "" {
					return nil, fmt.Errorf("%w: mapping %s outcome %s has an empty %s market id",
						types.ErrConfig, mapping.Slug, key, venue)
				}
			}
		}
	}

	return file.Mappings, nil
}
