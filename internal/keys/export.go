// export.go - The tagging-secret export blob.
//
// Wallets hand the prover a structured export of the recipient's tagging
// secrets at run time. The core persists nothing itself; this file format
// is the only stored input.

package keys

import (
	"encoding/json"
	"fmt"
	"os"

	"pnlprover/internal/tagging"
)

// Export is a recipient's tagging-secret bundle.
type Export struct {
	Account string                  `json:"account"`
	Secrets []tagging.TaggingSecret `json:"secrets"`
}

// Load reads an export blob from a JSON file.
func Load(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var e Export
	if err := json.NewDecoder(f).Decode(&e); err != nil {
		return nil, fmt.Errorf("keys: decode export %s: %w", path, err)
	}
	return &e, nil
}

// Save writes the export blob to a JSON file.
func (e *Export) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// FindSecret returns the first secret tagged for the given app and
// direction, or an error when the export has none.
func (e *Export) FindSecret(app string, dir tagging.Direction) (tagging.TaggingSecret, error) {
	for _, s := range e.Secrets {
		if s.Direction != dir {
			continue
		}
		if app == "" || s.App.String() == app {
			return s, nil
		}
	}
	return tagging.TaggingSecret{}, fmt.Errorf("keys: no %s secret for app %q in export", dir, app)
}
