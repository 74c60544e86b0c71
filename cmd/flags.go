package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poutila/doxstrux/internal/collectors"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/validation"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// formatValue is a pflag.Value restricted to a fixed set of names.
type formatValue struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*formatValue)(nil)

func newFormatValue(allowed ...string) *formatValue {
	return &formatValue{allowed: allowed}
}

func (f *formatValue) String() string { return f.value }
func (f *formatValue) Type() string   { return "format" }

func (f *formatValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range f.allowed {
		if s == a {
			f.value = s
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(f.allowed, ", "))
}

// resolve returns the flag value or fallback when the flag was not given.
func (f *formatValue) resolve(fallback string) string {
	if f.value == "" {
		return fallback
	}
	return f.value
}

// kindsValue parses a comma-separated collector list.
type kindsValue struct {
	kinds []collectors.Kind
}

var _ pflag.Value = (*kindsValue)(nil)

func (k *kindsValue) String() string {
	names := make([]string, len(k.kinds))
	for i, kind := range k.kinds {
		names[i] = string(kind)
	}
	return strings.Join(names, ",")
}

func (k *kindsValue) Type() string { return "collectors" }

func (k *kindsValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, err := collectors.ParseKind(part)
		if err != nil {
			return err
		}
		k.kinds = append(k.kinds, kind)
	}
	return nil
}

// resetFlags restores every flag of cmd to its default. Command values
// live in package variables, so repeated executions in one process need it.
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		switch v := f.Value.(type) {
		case pflag.SliceValue:
			_ = v.Replace(nil)
		case *formatValue:
			v.value = ""
		case *kindsValue:
			v.kinds = nil
		default:
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

// writeOutput encodes v as JSON or YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// markdownFiles expands args into markdown files. Directories are walked;
// hidden and vendor directories are skipped. The result is sorted.
func markdownFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if err := validation.ValidatePath(arg); err != nil {
			return nil, errors.NewValidationError("ERR_INVALID_PATH", err.Error())
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot read "+arg)
		}
		if !info.IsDir() {
			if err := validation.ValidateDocumentPath(arg); err != nil {
				return nil, errors.NewValidationError("ERR_INVALID_PATH", err.Error())
			}
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if p != arg && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if validation.ValidateFileExtension(p, validation.MarkdownExtensions) == nil {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "walk "+arg)
		}
	}
	sort.Strings(files)
	return files, nil
}
