package sim

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/louisbranch/combatsim/internal/catalog"
)

// LoadCatalog returns the embedded catalog, overlaid with the file at path
// when one is given.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	base, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	overlay, err := catalog.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog %s does not exist", path)
		}
		return nil, err
	}
	return base.Merge(overlay), nil
}
