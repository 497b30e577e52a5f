// Package analyzer type-checks a package after generation and verifies that
// each generated type implements the interface its declaration names.
package analyzer

import (
	"context"
	"go/types"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/olehluchkiv/llimpl/internal/errkind"
)

// Analyze loads the package in dir as a normal build sees it (stub files
// excluded, generated files included) and checks expect against it.
func Analyze(ctx context.Context, dir string, expect []Expectation, logger *zap.Logger) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedImports,
		Dir:     dir,
		Context: ctx,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, errkind.Mark(errors.Wrapf(err, "loading package in %s", dir), errkind.Config)
	}
	if len(pkgs) != 1 {
		return nil, errkind.Configf("expected one package in %s, found %d", dir, len(pkgs))
	}
	pkg := pkgs[0]
	logger.Debug("package loaded", zap.String("package", pkg.PkgPath), zap.Int("files", len(pkg.GoFiles)))

	res := &Result{Dir: dir, PkgPath: pkg.PkgPath}
	for _, e := range pkg.Errors {
		res.Findings = append(res.Findings, Finding{Pos: e.Pos, Message: e.Msg})
	}
	if pkg.Types == nil {
		return res, nil
	}

	scope := pkg.Types.Scope()
	for _, exp := range expect {
		tn, ok := scope.Lookup(exp.Type).(*types.TypeName)
		if !ok {
			res.Findings = append(res.Findings, Finding{
				Pos:     exp.Pos.String(),
				Message: "type " + exp.Type + " is not declared in the built package",
			})
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok {
			res.Skipped = append(res.Skipped, exp.Type+": alias types are not checked")
			continue
		}
		if named.TypeParams().Len() > 0 {
			res.Skipped = append(res.Skipped, exp.Type+": generic types are not checked")
			continue
		}

		iface, err := lookupInterface(pkg.Types, exp.Interface)
		if err != nil {
			logger.Warn("interface not checked", zap.String("type", exp.Type), zap.Error(err))
			res.Skipped = append(res.Skipped, exp.Type+": "+err.Error())
			continue
		}

		switch {
		case types.Implements(named, iface):
			res.Relations = append(res.Relations, Relation{Type: exp.Type, Interface: exp.Interface})
		case types.Implements(types.NewPointer(named), iface):
			res.Relations = append(res.Relations, Relation{Type: exp.Type, Interface: exp.Interface, ViaPointer: true})
		default:
			res.Findings = append(res.Findings, Finding{
				Pos:     exp.Pos.String(),
				Message: notImplemented(named, iface, exp),
			})
		}
	}

	logger.Info("analysis complete",
		zap.String("package", pkg.PkgPath),
		zap.Int("relations", len(res.Relations)),
		zap.Int("findings", len(res.Findings)))
	return res, nil
}

// lookupInterface resolves "Name", "pkg.Name" (through the package's own
// imports) or "error".
func lookupInterface(pkg *types.Package, name string) (*types.Interface, error) {
	scope := pkg.Scope()
	objName := name
	if qual, sel, found := strings.Cut(name, "."); found {
		scope = nil
		for _, imp := range pkg.Imports() {
			if imp.Name() == qual {
				scope = imp.Scope()
				break
			}
		}
		if scope == nil {
			return nil, errors.Newf("package %s is not imported by %s", qual, pkg.Path())
		}
		objName = sel
	}

	obj := scope.Lookup(objName)
	if obj == nil && objName == name {
		obj = types.Universe.Lookup(name)
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, errors.Newf("interface %s not found", name)
	}
	iface, ok := tn.Type().Underlying().(*types.Interface)
	if !ok {
		return nil, errors.Newf("%s is not an interface", name)
	}
	return iface, nil
}

func notImplemented(named *types.Named, iface *types.Interface, exp Expectation) string {
	m, wrongType := types.MissingMethod(types.NewPointer(named), iface, true)
	switch {
	case m == nil:
		return exp.Type + " does not implement " + exp.Interface
	case wrongType:
		return exp.Type + " does not implement " + exp.Interface + " (wrong type for method " + m.Name() + ")"
	default:
		return exp.Type + " does not implement " + exp.Interface + " (missing method " + m.Name() + ")"
	}
}
