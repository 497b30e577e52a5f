package decl

import "go/token"

// Method is one stub method, identified by its printed header.
type Method struct {
	Name      string
	Signature string // e.g. "func (s Simple) Greet(name string) string"
}

// Context is the identity of a declaration: what gets hashed into the cache
// key and described to the backend. Interface and Hint are empty when absent.
//
// Skeleton is the gofmt-ed source of the type declaration and all of its
// methods, stubs without bodies. It covers every byte of the synthesized
// text that does not come from the backend.
type Context struct {
	Interface string
	Type      string
	Methods   []Method
	Hint      string
	Skeleton  string
}

// MethodNames returns the method names in declaration order.
func (c Context) MethodNames() []string {
	names := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		names[i] = m.Name
	}
	return names
}

// Item is one method of the declaration skeleton. Stub items carry the
// source text of the header (doc comment included) and the index of the
// matching Context method; passthrough items carry their full source.
type Item struct {
	Stub        bool
	MethodIndex int
	Header      string
	Source      string
}

// Declaration is an annotated type together with its methods.
type Declaration struct {
	Context  Context
	Model    string // per-declaration model override, empty for default
	Pos      token.Position
	TypeDecl string // source of the type declaration, directive line removed
	Items    []Item
}

// Name is a short human label for logs and errors.
func (d *Declaration) Name() string {
	if d.Context.Interface == "" {
		return d.Context.Type
	}
	return d.Context.Type + " (" + d.Context.Interface + ")"
}

// File is a parsed stub file.
type File struct {
	Path        string
	Package     string
	Imports     []string // import declarations, verbatim
	Passthrough []string // other top-level declarations, verbatim
	Decls       []*Declaration
}
