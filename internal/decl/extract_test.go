package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olehluchkiv/llimpl/internal/errkind"
)

const greeterStub = `//go:build llimpl

package greet

import "strings"

// Greeter says things.
type Greeter interface {
	Greet(name string) string
	Exclaim(text string) string
}

// Simple is generated.
//
//llimpl:impl Greeter prompt="be terse"
type Simple struct{}

// Greet greets.
func (s Simple) Greet(name string) string

func (s Simple) Exclaim(text string) string {
	/* filled by llimpl */
}

func (s Simple) upper(v string) string {
	return strings.ToUpper(v)
}
`

func TestParseSource_Greeter(t *testing.T) {
	f, err := ParseSource("greeter_llimpl.go", []byte(greeterStub))
	require.NoError(t, err)

	assert.Equal(t, "greet", f.Package)
	assert.Equal(t, []string{`import "strings"`}, f.Imports)
	require.Len(t, f.Passthrough, 1)
	assert.Contains(t, f.Passthrough[0], "type Greeter interface")

	require.Len(t, f.Decls, 1)
	d := f.Decls[0]
	assert.Equal(t, "Greeter", d.Context.Interface)
	assert.Equal(t, "Simple", d.Context.Type)
	assert.Equal(t, "be terse", d.Context.Hint)
	assert.Empty(t, d.Model)
	assert.Equal(t, "Simple (Greeter)", d.Name())

	assert.Equal(t, []string{"Greet", "Exclaim"}, d.Context.MethodNames())
	assert.Equal(t, "func (s Simple) Greet(name string) string", d.Context.Methods[0].Signature)
	assert.Equal(t, "func (s Simple) Exclaim(text string) string", d.Context.Methods[1].Signature)

	assert.NotContains(t, d.TypeDecl, "llimpl:impl")
	assert.Equal(t, "// Simple is generated.\ntype Simple struct{}", d.TypeDecl)
	assert.Contains(t, d.TypeDecl, "// Simple is generated.")
	assert.Contains(t, d.TypeDecl, "type Simple struct{}")

	require.Len(t, d.Items, 3)
	assert.True(t, d.Items[0].Stub)
	assert.Equal(t, 0, d.Items[0].MethodIndex)
	assert.Equal(t, "// Greet greets.\nfunc (s Simple) Greet(name string) string", d.Items[0].Header)
	assert.True(t, d.Items[1].Stub)
	assert.Equal(t, 1, d.Items[1].MethodIndex)
	assert.Equal(t, "func (s Simple) Exclaim(text string) string", d.Items[1].Header)
	assert.False(t, d.Items[2].Stub)
	assert.Contains(t, d.Items[2].Source, "strings.ToUpper(v)")
	assert.Equal(t, "// Simple is generated.\n"+
		"type Simple struct{}\n\n"+
		"// Greet greets.\n"+
		"func (s Simple) Greet(name string) string\n\n"+
		"func (s Simple) Exclaim(text string) string\n\n"+
		"func (s Simple) upper(v string) string {\n"+
		"\treturn strings.ToUpper(v)\n"+
		"}", d.Context.Skeleton)
}

func TestParseSource_AnonymousAndModel(t *testing.T) {
	src := `package p

//llimpl:impl model=gpt-4o
type Counter struct{ n int }

func (c *Counter) Inc()
`
	f, err := ParseSource("c.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, f.Decls, 1)
	d := f.Decls[0]
	assert.Empty(t, d.Context.Interface)
	assert.Equal(t, "gpt-4o", d.Model)
	assert.Equal(t, "Counter", d.Name())
	assert.Equal(t, "func (c *Counter) Inc()", d.Context.Methods[0].Signature)
}

func TestParseSource_GenericType(t *testing.T) {
	src := `package p

//llimpl:impl
type Box[T any] struct{ v T }

func (b *Box[T]) Get() T
func (b *Box[T]) Set(v T)
`
	f, err := ParseSource("b.go", []byte(src))
	require.NoError(t, err)
	d := f.Decls[0]
	assert.Equal(t, "Box[T any]", d.Context.Type)
	assert.Equal(t, []string{"Get", "Set"}, d.Context.MethodNames())
}

func TestParseSource_MethodsBeforeType(t *testing.T) {
	src := `package p

func (s S) A() int

//llimpl:impl
type S struct{}

func (s S) B() int
`
	f, err := ParseSource("s.go", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, f.Decls[0].Context.MethodNames())
}

func TestParseSource_WhitespaceInSignatureCollapsed(t *testing.T) {
	src := "package p\n\n//llimpl:impl\ntype S struct{}\n\nfunc (s S)   Sum(a,   b int) (  int )\n"
	f, err := ParseSource("s.go", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "func (s S) Sum(a, b int) int", f.Decls[0].Context.Methods[0].Signature)
}

func TestParseSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "syntax error",
			src:     "package p\nfunc (",
			wantMsg: "parse",
		},
		{
			name:    "no stubs",
			src:     "package p\n//llimpl:impl\ntype S struct{}\nfunc (s S) A() int { return 1 }\n",
			wantMsg: "declares no method stubs",
		},
		{
			name:    "stub on unannotated type",
			src:     "package p\ntype S struct{}\nfunc (s S) A() int\n",
			wantMsg: "has no body",
		},
		{
			name:    "grouped type",
			src:     "package p\ntype (\n//llimpl:impl\nS struct{}\n)\nfunc (s S) A() int\n",
			wantMsg: "ungrouped",
		},
		{
			name:    "unknown option",
			src:     "package p\n//llimpl:impl Foo temperature=1\ntype S struct{}\nfunc (s S) A() int\n",
			wantMsg: "unknown option",
		},
		{
			name:    "two interfaces",
			src:     "package p\n//llimpl:impl Foo Bar\ntype S struct{}\nfunc (s S) A() int\n",
			wantMsg: "interface already set",
		},
		{
			name:    "two directives",
			src:     "package p\n//llimpl:impl Foo\n//llimpl:impl Bar\ntype S struct{}\nfunc (s S) A() int\n",
			wantMsg: "2 //llimpl:impl directives",
		},
		{
			name:    "unterminated quote",
			src:     "package p\n//llimpl:impl prompt=\"oops\ntype S struct{}\nfunc (s S) A() int\n",
			wantMsg: "split directive arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource("x.go", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, errkind.Parse, errkind.Of(err))
		})
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile("does/not/exist_llimpl.go")
	require.Error(t, err)
	assert.Equal(t, errkind.Parse, errkind.Of(err))
}
