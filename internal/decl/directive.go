package decl

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// DirectivePrefix marks a type declaration for generation.
const DirectivePrefix = "//llimpl:impl"

// directive is the parsed form of
//
//	//llimpl:impl [Interface] [model=NAME] [prompt="free text"]
type directive struct {
	Interface string
	Model     string
	Hint      string
}

// isDirective reports whether a comment line is an llimpl directive.
func isDirective(text string) bool {
	if !strings.HasPrefix(text, DirectivePrefix) {
		return false
	}
	rest := text[len(DirectivePrefix):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func parseDirective(text string) (directive, error) {
	var d directive
	words, err := shellquote.Split(strings.TrimPrefix(text, DirectivePrefix))
	if err != nil {
		return d, errors.Wrap(err, "split directive arguments")
	}

	seen := make(map[string]bool)
	for _, w := range words {
		key, value, isOpt := strings.Cut(w, "=")
		if !isOpt {
			if d.Interface != "" {
				return d, errors.Newf("unexpected argument %q: interface already set to %q", w, d.Interface)
			}
			if !isInterfaceName(w) {
				return d, errors.Newf("invalid interface name %q", w)
			}
			d.Interface = w
			continue
		}
		if seen[key] {
			return d, errors.Newf("duplicate option %q", key)
		}
		seen[key] = true
		switch key {
		case "model":
			if value == "" {
				return d, errors.New("model must not be empty")
			}
			d.Model = value
		case "prompt", "hint":
			if seen["prompt"] && seen["hint"] {
				return d, errors.New("prompt and hint are the same option")
			}
			d.Hint = value
		default:
			return d, errors.Newf("unknown option %q (valid: model, prompt)", key)
		}
	}
	return d, nil
}

// isInterfaceName accepts Name or pkg.Name.
func isInterfaceName(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !isIdent(p) {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := r == '_' || unicode.IsLetter(r)
		if i == 0 && !letter {
			return false
		}
		if !letter && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
