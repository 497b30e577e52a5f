package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDirective(t *testing.T) {
	assert.True(t, isDirective("//llimpl:impl"))
	assert.True(t, isDirective("//llimpl:impl Greeter"))
	assert.False(t, isDirective("//llimpl:implement"))
	assert.False(t, isDirective("// llimpl:impl"))
}

func TestParseDirective(t *testing.T) {
	d, err := parseDirective(`//llimpl:impl io.Reader model=gpt-4o prompt='read "all" of it'`)
	require.NoError(t, err)
	assert.Equal(t, directive{Interface: "io.Reader", Model: "gpt-4o", Hint: `read "all" of it`}, d)

	d, err = parseDirective(`//llimpl:impl hint="short"`)
	require.NoError(t, err)
	assert.Equal(t, directive{Hint: "short"}, d)

	_, err = parseDirective(`//llimpl:impl model=`)
	assert.Error(t, err)

	_, err = parseDirective(`//llimpl:impl model=a model=b`)
	assert.ErrorContains(t, err, "duplicate")

	_, err = parseDirective(`//llimpl:impl prompt=a hint=b`)
	assert.Error(t, err)

	_, err = parseDirective(`//llimpl:impl a.b.C`)
	assert.ErrorContains(t, err, "invalid interface name")
}
