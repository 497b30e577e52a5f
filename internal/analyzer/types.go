package analyzer

import (
	"go/token"
	"strings"

	"github.com/olehluchkiv/llimpl/internal/decl"
)

// Expectation is a generated type that must satisfy its declared interface.
type Expectation struct {
	Type      string // base type name, without type parameters
	Interface string // "Greeter", "io.Reader" or "error"
	Pos       token.Position
}

// Relation records that a type satisfies an interface.
type Relation struct {
	Type       string
	Interface  string
	ViaPointer bool // true if only *T (not T) satisfies the interface
}

// Finding is one problem in the analyzed package.
type Finding struct {
	Pos     string
	Message string
}

// Result holds the analysis of one package directory.
type Result struct {
	Dir       string
	PkgPath   string
	Relations []Relation
	Findings  []Finding
	Skipped   []string // expectations that could not be checked, with reason
}

// OK reports whether the package compiled and every checked type satisfies
// its interface.
func (r *Result) OK() bool { return len(r.Findings) == 0 }

// ExpectationsFor returns one expectation per declaration naming an
// interface. Anonymous declarations have nothing to satisfy.
func ExpectationsFor(decls []*decl.Declaration) []Expectation {
	var out []Expectation
	for _, d := range decls {
		if d.Context.Interface == "" {
			continue
		}
		name, _, _ := strings.Cut(d.Context.Type, "[")
		out = append(out, Expectation{Type: name, Interface: d.Context.Interface, Pos: d.Pos})
	}
	return out
}
