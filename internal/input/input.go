// Package input discovers IaC files and decodes them into generic trees for
// the resource model.
package input

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl"
	"gopkg.in/yaml.v3"

	"iacsift/internal/logging"
	"iacsift/internal/resource"
)

// ErrUnsupportedFormat is returned for files whose extension has no decoder
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Format identifies a decoder
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// skipDirs are never descended into
var skipDirs = map[string]bool{
	".terraform":   true,
	".git":         true,
	"node_modules": true,
}

// FormatOf returns the decoder for path based on its extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tf", ".hcl":
		return FormatHCL, nil
	case ".json", ".tfstate":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Discover expands paths into a sorted, de-duplicated list of supported files.
// Directories are walked recursively; files named explicitly must exist but
// are returned even when their extension is unsupported, so the caller can
// report them.
func Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if _, err := FormatOf(path); err == nil {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// ReadFile decodes path into a generic tree
func ReadFile(path string) (map[string]interface{}, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data, format)
}

// Decode parses data in format. A top-level list is treated as a list of
// resource records.
func Decode(data []byte, format Format) (map[string]interface{}, error) {
	var tree interface{}
	switch format {
	case FormatHCL:
		var out map[string]interface{}
		if err := hcl.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse HCL: %w", err)
		}
		tree = out
	case FormatJSON:
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	switch t := tree.(type) {
	case map[string]interface{}:
		if plan, ok := planResources(t); ok {
			return plan, nil
		}
		return t, nil
	case []interface{}:
		return map[string]interface{}{"resources": t}, nil
	case nil:
		return map[string]interface{}{}, nil
	}
	return nil, fmt.Errorf("%w: top level is %T", resource.ErrUnrecognizedDocument, tree)
}

// LoadResult is the outcome of loading a set of input files
type LoadResult struct {
	Files        []string
	Declarations []*resource.Declaration
	Errors       map[string]error
}

// Load reads every file and converts it to declarations. A file that cannot
// be read or parsed is logged and recorded in Errors; the others still load.
func Load(files []string) LoadResult {
	res := LoadResult{Errors: make(map[string]error)}

	for _, path := range files {
		tree, err := ReadFile(path)
		if err == nil {
			var decls []*resource.Declaration
			decls, err = resource.FromDocument(tree, path)
			res.Declarations = append(res.Declarations, decls...)
		}
		if err != nil {
			logging.InputError(path, err)
			res.Errors[path] = err
			continue
		}
		res.Files = append(res.Files, path)
	}

	return res
}
