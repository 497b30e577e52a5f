package synth

import (
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
)

// Synthesize splices frags into the skeleton of d and returns gofmt-ed
// source: the type declaration followed by every method in its original
// order. Stub methods get their fragment; passthrough methods are copied
// as written.
func Synthesize(d *decl.Declaration, frags []Fragment) (string, error) {
	if len(frags) != len(d.Context.Methods) {
		return "", errkind.Mark(
			errors.Wrapf(ErrCountMismatch, "%d fragments for %d methods of %s", len(frags), len(d.Context.Methods), d.Name()),
			errkind.Validation)
	}

	var b strings.Builder
	b.WriteString(d.TypeDecl)
	b.WriteString("\n")
	for _, it := range d.Items {
		b.WriteString("\n")
		if it.Stub {
			b.WriteString(it.Header)
			b.WriteString(" ")
			b.WriteString(string(frags[it.MethodIndex]))
		} else {
			b.WriteString(it.Source)
		}
		b.WriteString("\n")
	}

	out, err := format.Source([]byte(b.String()))
	if err != nil {
		return "", errkind.Mark(errors.Wrapf(err, "format %s", d.Name()), errkind.Validation)
	}
	if err := checkParses(string(out), len(d.Items)+1); err != nil {
		return "", errkind.Mark(errors.Wrapf(err, "synthesized %s", d.Name()), errkind.Validation)
	}
	return string(out), nil
}

// checkParses re-parses synthesized text inside a package clause and checks
// it still holds the expected number of top-level declarations.
func checkParses(src string, want int) error {
	f, err := parser.ParseFile(token.NewFileSet(), "synth.go", "package p\n\n"+src, parser.SkipObjectResolution)
	if err != nil {
		return errors.Wrap(err, "re-parse")
	}
	if len(f.Decls) != want {
		return errors.Newf("re-parse found %d declarations, want %d", len(f.Decls), want)
	}
	for _, d := range f.Decls[1:] {
		if fd, ok := d.(*ast.FuncDecl); !ok || fd.Body == nil {
			return errors.New("re-parse found a method without a body")
		}
	}
	return nil
}
