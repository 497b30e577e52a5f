package synth

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const greeterStub = `//go:build llimpl

package greet

import "strings"

// Simple is generated.
//
//llimpl:impl Greeter prompt="be terse"
type Simple struct{}

// Greet greets.
func (s Simple) Greet(name string) string

func (s Simple) upper(v string) string {
	return strings.ToUpper(v)
}

func (s Simple) Exclaim(text string) string {}
`

func parseGreeter(t *testing.T) *decl.Declaration {
	t.Helper()
	f, err := decl.ParseSource("greeter_llimpl.go", []byte(greeterStub))
	require.NoError(t, err)
	require.Len(t, f.Decls, 1)
	return f.Decls[0]
}

func structured(bodies ...string) *llm.Response {
	return &llm.Response{Bodies: bodies, Structured: true}
}

func TestGreeter_EndToEnd(t *testing.T) {
	d := parseGreeter(t)

	frags, err := Validate(d.Context, structured(
		"{\n\treturn \"Hi \" + name\n}",
		"```go\n{\n\treturn text + \"!\"\n}\n```",
	), FallbackStrict)
	require.NoError(t, err)

	got, err := Synthesize(d, frags)
	require.NoError(t, err)

	want := `// Simple is generated.
type Simple struct{}

// Greet greets.
func (s Simple) Greet(name string) string {
	return "Hi " + name
}

func (s Simple) upper(v string) string {
	return strings.ToUpper(v)
}

func (s Simple) Exclaim(text string) string {
	return text + "!"
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synthesize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_PreservesOrderAndBodies(t *testing.T) {
	d := parseGreeter(t)
	frags := []Fragment{"{\n\treturn \"A\"\n}", "{\n\treturn \"B\"\n}"}

	got, err := Synthesize(d, frags)
	require.NoError(t, err)

	greet := indexOf(t, got, "Greet(name string) string {\n\treturn \"A\"")
	upper := indexOf(t, got, "upper(v string)")
	exclaim := indexOf(t, got, "Exclaim(text string) string {\n\treturn \"B\"")
	assert.Less(t, greet, upper)
	assert.Less(t, upper, exclaim)
}

func TestSynthesize_CountMismatch(t *testing.T) {
	d := parseGreeter(t)
	_, err := Synthesize(d, []Fragment{"{}"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCountMismatch))
}

func TestValidate_CountMismatch(t *testing.T) {
	d := parseGreeter(t)

	for _, bodies := range [][]string{{"{}"}, {"{}", "{}", "{}"}, {}} {
		_, err := Validate(d.Context, structured(bodies...), FallbackStrict)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCountMismatch))
		assert.Equal(t, errkind.Validation, errkind.Of(err))
	}
}

func TestValidate_MethodError(t *testing.T) {
	d := parseGreeter(t)

	_, err := Validate(d.Context, structured("{ return name }", "{ return ( }"), FallbackStrict)
	require.Error(t, err)
	var me *MethodError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 1, me.Index)
	assert.Equal(t, "Exclaim", me.Method)
	assert.Equal(t, errkind.Validation, errkind.Of(err))
}

func TestValidate_Unstructured(t *testing.T) {
	single := decl.Context{
		Type:    "Counter",
		Methods: []decl.Method{{Name: "Inc", Signature: "func (c *Counter) Inc() int"}},
	}
	raw := &llm.Response{Bodies: []string{"c.n++\nreturn c.n"}, Raw: "c.n++\nreturn c.n"}

	t.Run("strict rejects", func(t *testing.T) {
		_, err := Validate(single, raw, FallbackStrict)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnstructured))
		assert.Equal(t, errkind.Validation, errkind.Of(err))
	})

	t.Run("single accepts one method", func(t *testing.T) {
		frags, err := Validate(single, raw, FallbackSingle)
		require.NoError(t, err)
		assert.Equal(t, []Fragment{"{\nc.n++\nreturn c.n\n}"}, frags)
	})

	t.Run("single rejects several methods", func(t *testing.T) {
		_, err := Validate(parseGreeter(t).Context, raw, FallbackSingle)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnstructured))
	})
}

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Fragment
		wantErr bool
	}{
		{name: "block", body: "{ return 1 }", want: "{ return 1 }"},
		{name: "bare statements", body: "x := 1\nreturn x", want: "{\nx := 1\nreturn x\n}"},
		{name: "fenced", body: "```go\nreturn 1\n```", want: "{\nreturn 1\n}"},
		{name: "trailing comment", body: "return 1 // done", want: "{\nreturn 1 // done\n}"},
		{name: "two blocks", body: "{ a() }\n{ b() }", want: "{\n{ a() }\n{ b() }\n}"},
		{name: "empty block", body: "{}", want: "{}"},
		{name: "empty", body: "  ", wantErr: true},
		{name: "syntax error", body: "return (", wantErr: true},
		{name: "injected func", body: "{ return 1 }\nfunc evil() {}", wantErr: true},
		{name: "early close", body: "return 1\n}\nfunc evil() {", wantErr: true},
		{name: "unbalanced", body: "{ return 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBody(tt.body)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	p, err := ParseFallbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FallbackStrict, p)

	p, err = ParseFallbackPolicy("Single")
	require.NoError(t, err)
	assert.Equal(t, FallbackSingle, p)
	assert.Equal(t, "single", p.String())

	_, err = ParseFallbackPolicy("loose")
	require.Error(t, err)
	assert.Equal(t, errkind.Config, errkind.Of(err))
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	t.Fatalf("%q not found in:\n%s", sub, s)
	return -1
}
