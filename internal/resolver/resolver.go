// Package resolver expands command-line inputs into stub files and finds
// the module they belong to.
package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/olehluchkiv/llimpl/internal/errkind"
)

const (
	// StubSuffix names files holding llimpl declarations.
	StubSuffix = "_llimpl.go"
	// GenSuffix names the files llimpl writes.
	GenSuffix = "_llimpl_gen.go"
)

// Target is the set of stub files to process.
type Target struct {
	// ModuleRoot is the directory of the nearest go.mod above the first
	// input, or empty when there is none.
	ModuleRoot string
	// Files are absolute stub paths, sorted and without duplicates.
	Files []string
}

// Resolve expands inputs. Each input is a stub file, a directory scanned
// non-recursively, or a directory followed by "/..." scanned recursively.
// No inputs means the current directory.
func Resolve(inputs []string, logger *zap.Logger) (*Target, error) {
	if len(inputs) == 0 {
		inputs = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	var rootDir string
	for _, input := range inputs {
		path, recursive := splitRecursive(input)
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, errkind.Mark(errors.Wrapf(err, "resolving path %s", input), errkind.Config)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, errkind.Mark(errors.Wrapf(err, "stat %s", input), errkind.Config)
		}

		var found []string
		switch {
		case !info.IsDir():
			if recursive {
				return nil, errkind.Configf("%s is not a directory", input)
			}
			if !IsStub(absPath) {
				return nil, errkind.Configf("%s is not a stub file (want *%s)", input, StubSuffix)
			}
			found = []string{absPath}
		case recursive:
			found, err = walkStubs(absPath)
		default:
			found, err = dirStubs(absPath)
		}
		if err != nil {
			return nil, errkind.Mark(errors.Wrapf(err, "scan %s", input), errkind.Config)
		}

		if rootDir == "" {
			rootDir = absPath
			if !info.IsDir() {
				rootDir = filepath.Dir(absPath)
			}
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)

	modRoot, err := FindModuleRoot(rootDir)
	if err != nil {
		logger.Debug("no module root", zap.String("dir", rootDir), zap.Error(err))
		modRoot = ""
	}

	logger.Info("resolved inputs",
		zap.Strings("inputs", inputs), zap.Int("stubs", len(files)), zap.String("module_root", modRoot))
	return &Target{ModuleRoot: modRoot, Files: files}, nil
}

// IsStub reports whether path names a stub file.
func IsStub(path string) bool {
	return strings.HasSuffix(filepath.Base(path), StubSuffix)
}

// OutputPath returns the generated file written for a stub.
func OutputPath(stub string) string {
	return strings.TrimSuffix(stub, StubSuffix) + GenSuffix
}

// FindModuleRoot returns the nearest directory at or above dir holding a
// go.mod file.
func FindModuleRoot(dir string) (string, error) {
	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.Newf("no go.mod found in %s or any parent directory", dir)
		}
		current = parent
	}
}

func splitRecursive(input string) (string, bool) {
	switch {
	case input == "...":
		return ".", true
	case strings.HasSuffix(input, "/..."):
		path := strings.TrimSuffix(input, "/...")
		if path == "" {
			path = "/"
		}
		return path, true
	default:
		return input, false
	}
}

func dirStubs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && IsStub(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// walkStubs skips the directories the go tool ignores for "./...":
// hidden ones, those starting with "_", testdata and vendor.
func walkStubs(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsStub(path) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
