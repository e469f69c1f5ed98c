// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderSpec describes one supported SSO provider and the credential
// fields an operator must supply to configure it.
type ProviderSpec struct {
	ID          string   `json:"id" yaml:"id"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Credentials []string `json:"credentials" yaml:"credentials"`
	DocsURL     string   `json:"docs_url,omitempty" yaml:"docs_url,omitempty"`
}

// Catalog is the read-only set of providers served to the dashboard.
type Catalog struct {
	providers []ProviderSpec
}

// defaultProviders covers the built-in Entra ID integration so the
// dashboard works without any catalog directory configured.
var defaultProviders = []ProviderSpec{
	{
		ID:          "entra_id",
		DisplayName: "Microsoft Entra ID",
		Credentials: []string{"tenant_id", "client_id", "client_secret"},
		DocsURL:     "https://learn.microsoft.com/entra/identity-platform/",
	},
}

// Load reads provider specs from dir (yaml/yml/json files). An empty dir
// or a dir with no usable specs yields the built-in defaults.
func Load(dir string) (*Catalog, error) {
	if dir == "" {
		return &Catalog{providers: defaultProviders}, nil
	}
	out := []ProviderSpec{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var spec ProviderSpec
		if ext == ".json" {
			if err := json.Unmarshal(b, &spec); err != nil {
				return err
			}
		} else {
			if err := yaml.Unmarshal(b, &spec); err != nil {
				return fmt.Errorf("yaml parse: %w", err)
			}
		}
		if spec.ID != "" {
			out = append(out, spec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		out = defaultProviders
	}
	return &Catalog{providers: out}, nil
}

// Providers returns all known provider specs.
func (c *Catalog) Providers() []ProviderSpec { return c.providers }

// Get returns the spec with the given id.
func (c *Catalog) Get(id string) (ProviderSpec, bool) {
	for _, p := range c.providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderSpec{}, false
}
