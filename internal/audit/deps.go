package audit

import (
	"fmt"
	"os"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// Unpinned is a dependency that does not resolve to a released version.
type Unpinned struct {
	Module  string `json:"module" yaml:"module"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Reason  string `json:"reason" yaml:"reason"`
}

func (u Unpinned) String() string {
	if u.Version == "" {
		return fmt.Sprintf("%s: %s", u.Module, u.Reason)
	}
	return fmt.Sprintf("%s %s: %s", u.Module, u.Version, u.Reason)
}

// UnpinnedDependencies reports pseudo-version requirements and replace
// directives that point at local directories. A missing go.mod reports
// nothing.
func UnpinnedDependencies(goModPath string) ([]Unpinned, error) {
	data, err := os.ReadFile(goModPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return nil, err
	}

	var out []Unpinned
	for _, r := range f.Require {
		if !module.IsPseudoVersion(r.Mod.Version) {
			continue
		}
		reason := "pseudo-version"
		if r.Indirect {
			reason += " (indirect)"
		}
		out = append(out, Unpinned{Module: r.Mod.Path, Version: r.Mod.Version, Reason: reason})
	}
	for _, r := range f.Replace {
		if r.New.Version == "" && modfile.IsDirectoryPath(r.New.Path) {
			out = append(out, Unpinned{Module: r.Old.Path, Reason: "replaced by local path " + r.New.Path})
		}
	}
	return out, nil
}
