package decl

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/olehluchkiv/llimpl/internal/errkind"
)

// ParseFile reads a stub file and extracts its annotated declarations.
func ParseFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Mark(errors.Wrapf(err, "read %s", path), errkind.Parse)
	}
	return ParseSource(path, src)
}

// ParseSource extracts annotated declarations from src. path is only used
// for positions in error messages.
func ParseSource(path string, src []byte) (*File, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, errkind.Mark(errors.Wrapf(err, "parse %s", path), errkind.Parse)
	}

	x := &extractor{fset: fset, src: src}
	out, err := x.extract(f)
	if err != nil {
		return nil, errkind.Mark(err, errkind.Parse)
	}
	out.Path = path
	return out, nil
}

type extractor struct {
	fset *token.FileSet
	src  []byte
}

func (x *extractor) extract(f *ast.File) (*File, error) {
	out := &File{Package: f.Name.Name}
	byType := make(map[string]*Declaration)

	// Annotated types first so methods declared above their type still attach.
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		decl, err := x.typeDecl(gd)
		if err != nil {
			return nil, err
		}
		if decl == nil {
			continue
		}
		name := decl.typeName
		if _, dup := byType[name]; dup {
			return nil, errkind.Parsef("%s: type %s annotated twice", decl.Pos, name)
		}
		byType[name] = decl.Declaration
		out.Decls = append(out.Decls, decl.Declaration)
	}

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				out.Imports = append(out.Imports, x.text(d, d.Doc))
				continue
			}
			if d.Tok == token.TYPE && hasDirective(d.Doc) {
				continue
			}
			out.Passthrough = append(out.Passthrough, x.text(d, d.Doc))
		case *ast.FuncDecl:
			if d.Recv == nil || len(d.Recv.List) == 0 {
				out.Passthrough = append(out.Passthrough, x.text(d, d.Doc))
				continue
			}
			base := receiverBase(d.Recv.List[0].Type)
			decl, annotated := byType[base]
			if !annotated {
				if d.Body == nil {
					return nil, errkind.Parsef("%s: method %s.%s has no body but %s has no %s directive",
						x.pos(d.Pos()), base, d.Name.Name, base, DirectivePrefix)
				}
				out.Passthrough = append(out.Passthrough, x.text(d, d.Doc))
				continue
			}
			if err := x.addMethod(decl, d); err != nil {
				return nil, err
			}
		}
	}

	for _, decl := range out.Decls {
		if len(decl.Context.Methods) == 0 {
			return nil, errkind.Parsef("%s: %s is annotated with %s but declares no method stubs",
				decl.Pos, decl.Context.Type, DirectivePrefix)
		}
		skel, err := skeleton(decl)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: format %s", decl.Pos, decl.Context.Type)
		}
		decl.Context.Skeleton = skel
	}
	return out, nil
}

// skeleton renders the type declaration followed by its methods in file
// order, stub methods without a body.
func skeleton(d *Declaration) (string, error) {
	parts := []string{d.TypeDecl}
	for _, it := range d.Items {
		if it.Stub {
			parts = append(parts, it.Header)
		} else {
			parts = append(parts, it.Source)
		}
	}
	out, err := format.Source([]byte(strings.Join(parts, "\n\n") + "\n"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

type annotated struct {
	*Declaration
	typeName string
}

func (x *extractor) typeDecl(gd *ast.GenDecl) (*annotated, error) {
	for _, spec := range gd.Specs {
		if ts, ok := spec.(*ast.TypeSpec); ok && hasDirective(ts.Doc) && gd.Lparen.IsValid() {
			return nil, errkind.Parsef("%s: %s must annotate an ungrouped type declaration", x.pos(ts.Pos()), DirectivePrefix)
		}
	}
	if !hasDirective(gd.Doc) {
		return nil, nil
	}
	if gd.Lparen.IsValid() || len(gd.Specs) != 1 {
		return nil, errkind.Parsef("%s: %s must annotate an ungrouped type declaration", x.pos(gd.Pos()), DirectivePrefix)
	}
	ts := gd.Specs[0].(*ast.TypeSpec)

	var lines []string
	for _, c := range gd.Doc.List {
		if isDirective(c.Text) {
			lines = append(lines, c.Text)
		}
	}
	if len(lines) > 1 {
		return nil, errkind.Parsef("%s: type %s has %d %s directives", x.pos(gd.Pos()), ts.Name.Name, len(lines), DirectivePrefix)
	}
	dir, err := parseDirective(lines[0])
	if err != nil {
		return nil, errors.Wrapf(err, "%s: type %s", x.pos(gd.Doc.Pos()), ts.Name.Name)
	}

	typeEnd := ts.Name.End()
	if ts.TypeParams != nil {
		typeEnd = ts.TypeParams.End()
	}

	return &annotated{
		typeName: ts.Name.Name,
		Declaration: &Declaration{
			Context: Context{
				Interface: dir.Interface,
				Type:      x.slice(ts.Name.Pos(), typeEnd),
				Hint:      dir.Hint,
			},
			Model:    dir.Model,
			Pos:      x.fset.Position(gd.Pos()),
			TypeDecl: stripDirective(x.text(gd, gd.Doc)),
		},
	}, nil
}

func (x *extractor) addMethod(d *Declaration, fd *ast.FuncDecl) error {
	if fd.Body != nil && len(fd.Body.List) > 0 {
		d.Items = append(d.Items, Item{Source: x.text(fd, fd.Doc)})
		return nil
	}

	sig, err := x.signature(fd)
	if err != nil {
		return errors.Wrapf(err, "%s: print signature of %s", x.pos(fd.Pos()), fd.Name.Name)
	}
	start := fd.Pos()
	if fd.Doc != nil {
		start = fd.Doc.Pos()
	}
	d.Items = append(d.Items, Item{
		Stub:        true,
		MethodIndex: len(d.Context.Methods),
		Header:      x.slice(start, fd.Type.End()),
	})
	d.Context.Methods = append(d.Context.Methods, Method{Name: fd.Name.Name, Signature: sig})
	return nil
}

// signature prints the method header without doc comment or body and
// collapses whitespace, so formatting-only edits do not change the key.
func (x *extractor) signature(fd *ast.FuncDecl) (string, error) {
	header := &ast.FuncDecl{Recv: fd.Recv, Name: fd.Name, Type: fd.Type}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, x.fset, header); err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(buf.String()), " "), nil
}

func (x *extractor) text(node ast.Node, doc *ast.CommentGroup) string {
	start := node.Pos()
	if doc != nil {
		start = doc.Pos()
	}
	return x.slice(start, node.End())
}

func (x *extractor) slice(from, to token.Pos) string {
	return string(x.src[x.fset.Position(from).Offset:x.fset.Position(to).Offset])
}

func (x *extractor) pos(p token.Pos) string {
	return x.fset.Position(p).String()
}

func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if isDirective(c.Text) {
			return true
		}
	}
	return false
}

func stripDirective(src string) string {
	lines := strings.Split(src, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if isDirective(strings.TrimSpace(l)) {
			continue
		}
		kept = append(kept, l)
	}
	// A "//" separator left directly above the type line is dropped too.
	for i, l := range kept {
		if strings.HasPrefix(strings.TrimSpace(l), "//") {
			continue
		}
		for i > 0 && strings.TrimSpace(kept[i-1]) == "//" {
			kept = append(kept[:i-1], kept[i:]...)
			i--
		}
		break
	}
	return strings.Join(kept, "\n")
}

func receiverBase(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}
