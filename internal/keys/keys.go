// Package keys derives the content address of a declaration.
//
// The canonical form is one field per line, in this order:
//
//	interface=<quoted name | <none>>
//	type=<quoted name>
//	methods=<count>
//	method[<i>]=<quoted signature>   (one line per method, in order)
//	hint=<quoted hint | <none>>
//	skeleton=<quoted skeleton | <none>>
//
// Signatures are compared verbatim except that runs of whitespace collapse
// to a single space. The skeleton is the gofmt-ed declaration source (fields,
// doc comments, hand-written methods), so any edit that would change the
// synthesized text changes the key while reformatting does not. The key is the lowercase hex SHA-256 of that text, so
// it is stable across processes and machines.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/olehluchkiv/llimpl/internal/decl"
)

// Len is the length of a key in hex characters.
const Len = sha256.Size * 2

const absent = "<none>"

// Key is a hex-encoded SHA-256 digest.
type Key string

func (k Key) String() string { return string(k) }

// Short returns the first 12 characters, for logs.
func (k Key) Short() string {
	if len(k) < 12 {
		return string(k)
	}
	return string(k[:12])
}

// Valid reports whether s is a well-formed key.
func Valid(s string) bool {
	if len(s) != Len {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// Canonical renders ctx in the fixed form hashed by Derive.
func Canonical(ctx decl.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface=%s\n", optional(ctx.Interface))
	fmt.Fprintf(&b, "type=%s\n", strconv.Quote(ctx.Type))
	fmt.Fprintf(&b, "methods=%d\n", len(ctx.Methods))
	for i, m := range ctx.Methods {
		fmt.Fprintf(&b, "method[%d]=%s\n", i, strconv.Quote(collapse(m.Signature)))
	}
	fmt.Fprintf(&b, "hint=%s\n", optional(ctx.Hint))
	fmt.Fprintf(&b, "skeleton=%s\n", optional(ctx.Skeleton))
	return b.String()
}

// Derive returns the cache key for ctx.
func Derive(ctx decl.Context) Key {
	sum := sha256.Sum256([]byte(Canonical(ctx)))
	return Key(hex.EncodeToString(sum[:]))
}

func optional(s string) string {
	if s == "" {
		return absent
	}
	return strconv.Quote(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
