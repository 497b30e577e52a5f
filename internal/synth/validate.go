// Package synth checks generated method bodies and splices them into the
// declaration skeleton.
package synth

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/llm"
)

// FallbackPolicy decides what happens to a response whose content is not a
// bodies object.
type FallbackPolicy int

const (
	// FallbackStrict rejects unstructured responses.
	FallbackStrict FallbackPolicy = iota
	// FallbackSingle accepts the raw content as the only body of a
	// one-method declaration.
	FallbackSingle
)

func (p FallbackPolicy) String() string {
	if p == FallbackSingle {
		return "single"
	}
	return "strict"
}

// ParseFallbackPolicy maps a configuration value to a policy.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return FallbackStrict, nil
	case "single":
		return FallbackSingle, nil
	default:
		return FallbackStrict, errkind.Configf("unknown fallback policy %q (want strict or single)", s)
	}
}

var (
	ErrCountMismatch = errors.New("body count does not match method count")
	ErrUnstructured  = errors.New("response is not a bodies object")
)

// Fragment is a validated method body: a single Go block including its
// braces.
type Fragment string

// MethodError reports the body of one method that failed to parse.
type MethodError struct {
	Index  int
	Method string
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("body %d for method %s is not a valid Go block: %v", e.Index, e.Method, e.Err)
}

func (e *MethodError) Unwrap() error { return e.Err }

// Validate turns a backend response into one fragment per method of dc, in
// order. It never truncates or pads.
func Validate(dc decl.Context, resp *llm.Response, policy FallbackPolicy) ([]Fragment, error) {
	if resp == nil {
		return nil, errkind.Mark(errors.New("no response"), errkind.Validation)
	}
	if !resp.Structured && (policy != FallbackSingle || len(dc.Methods) != 1) {
		err := errors.Wrapf(ErrUnstructured, "%d methods, fallback policy %s", len(dc.Methods), policy)
		if resp.FormatErr != nil {
			err = errors.WithSecondaryError(err, resp.FormatErr)
		}
		return nil, errkind.Mark(err, errkind.Validation)
	}

	if len(resp.Bodies) != len(dc.Methods) {
		return nil, errkind.Mark(
			errors.Wrapf(ErrCountMismatch, "got %d bodies for %d methods", len(resp.Bodies), len(dc.Methods)),
			errkind.Validation)
	}

	frags := make([]Fragment, len(resp.Bodies))
	for i, body := range resp.Bodies {
		frag, err := ValidateBody(body)
		if err != nil {
			return nil, errkind.Mark(&MethodError{Index: i, Method: dc.Methods[i].Name, Err: err}, errkind.Validation)
		}
		frags[i] = frag
	}
	return frags, nil
}

const fragmentPrefix = "package p\n\nfunc _() "

// ValidateBody normalizes a body string into a Fragment. A surrounding
// markdown fence is stripped and bare statements are wrapped in braces. The
// result must parse as the body of exactly one function and span the whole
// fragment, so text that closes the block early and declares something else
// is rejected.
func ValidateBody(body string) (Fragment, error) {
	text := llm.StripCodeFence(body)
	if text == "" {
		return "", errors.New("empty body")
	}
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return parseBlock("{\n" + text + "\n}")
	}
	frag, err := parseBlock(text)
	if err != nil {
		// Statements that merely start and end with braces, like "{ a }\n{ b }".
		if wrapped, werr := parseBlock("{\n" + text + "\n}"); werr == nil {
			return wrapped, nil
		}
		return "", err
	}
	return frag, nil
}

func parseBlock(text string) (Fragment, error) {
	src := fragmentPrefix + text + "\n"
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "body.go", src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return "", errors.Wrap(err, "parse body")
	}
	if len(f.Decls) != 1 {
		return "", errors.Newf("body declares %d top-level declarations, want 1", len(f.Decls))
	}
	fd, ok := f.Decls[0].(*ast.FuncDecl)
	if !ok || fd.Body == nil {
		return "", errors.New("body is not a block")
	}
	lbrace := fset.Position(fd.Body.Lbrace).Offset
	rbrace := fset.Position(fd.Body.Rbrace).Offset
	if lbrace != len(fragmentPrefix) || rbrace != len(fragmentPrefix)+len(text)-1 {
		return "", errors.New("block does not span the whole body")
	}
	return Fragment(text), nil
}
