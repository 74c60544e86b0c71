package audit

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Consumer is a known HTML-rendering code path that has been reviewed.
type Consumer struct {
	Name      string   `toml:"name"`
	Owner     string   `toml:"owner"`
	Sanitizer string   `toml:"sanitizer"`
	Paths     []string `toml:"paths"`
}

// Registry lists the reviewed HTML-rendering consumers.
type Registry struct {
	Consumers []Consumer `toml:"consumer"`
}

// LoadRegistry reads a TOML consumer registry. A missing file yields an
// empty registry, so every discovered sink is unregistered.
func LoadRegistry(file string) (*Registry, error) {
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var r Registry
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing consumer registry %s: %w", file, err)
	}

	for i, c := range r.Consumers {
		if c.Name == "" {
			return nil, fmt.Errorf("consumer %d in %s has no name", i, file)
		}
		if len(c.Paths) == 0 {
			return nil, fmt.Errorf("consumer %q in %s lists no paths", c.Name, file)
		}
		for _, p := range c.Paths {
			if _, err := path.Match(p, ""); err != nil {
				return nil, fmt.Errorf("consumer %q: bad path pattern %q: %w", c.Name, p, err)
			}
		}
	}
	return &r, nil
}

// Covers returns the consumer registered for file, if any. file is a
// slash-separated path relative to the scan root.
func (r *Registry) Covers(file string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, c := range r.Consumers {
		for _, p := range c.Paths {
			if matchPath(p, file) {
				return c.Name, true
			}
		}
	}
	return "", false
}

// matchPath matches a path.Match pattern. A pattern ending in "/..."
// matches everything below that directory.
func matchPath(pattern, file string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/..."); ok {
		return file == dir || strings.HasPrefix(file, dir+"/")
	}
	ok, err := path.Match(pattern, file)
	return err == nil && ok
}
