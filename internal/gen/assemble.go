package gen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/imports"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
)

const (
	// Header marks generated files so tools and reviewers skip them.
	Header = "// Code generated by llimpl. DO NOT EDIT."
	// BuildConstraint keeps the generated file out of builds that compile
	// the stub file.
	BuildConstraint = "//go:build !llimpl"
)

// Assemble builds the generated file for f: header, package clause, the
// stub's imports, its other declarations, then each synthesized declaration
// in file order. Imports are added or pruned with goimports.
func Assemble(outPath string, f *decl.File, sources []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(Header + "\n\n")
	b.WriteString(BuildConstraint + "\n\n")
	fmt.Fprintf(&b, "package %s\n", f.Package)
	for _, imp := range f.Imports {
		b.WriteString("\n" + imp + "\n")
	}
	for _, p := range f.Passthrough {
		b.WriteString("\n" + p + "\n")
	}
	for _, src := range sources {
		b.WriteString("\n" + src)
		if len(src) > 0 && src[len(src)-1] != '\n' {
			b.WriteString("\n")
		}
	}

	out, err := imports.Process(outPath, b.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, errkind.Mark(errors.Wrapf(err, "format %s", outPath), errkind.Validation)
	}
	return out, nil
}

// writeFile replaces path atomically. It reports false without touching
// the file when the content is unchanged.
func writeFile(path string, data []byte) (bool, error) {
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return false, errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return false, errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, errors.Wrapf(err, "rename to %s", path)
	}
	return true, nil
}
