package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olehluchkiv/llimpl/internal/config"
	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/keys"
	"github.com/olehluchkiv/llimpl/internal/pipeline"
)

const greeterStub = `//go:build llimpl

package greet

// Greeter says things.
type Greeter interface {
	Greet(name string) string
	Exclaim(text string) string
}

//llimpl:impl Greeter prompt="be terse"
type Simple struct{}

func (s Simple) Greet(name string) string

func (s Simple) Exclaim(text string) string
`

// module creates a temporary module holding the greeter stub and makes it
// the working directory. Environment that could leak into the
// configuration is cleared.
func module(t *testing.T) string {
	t.Helper()
	for _, env := range []string{
		"LLIMPL_API_KEY", "OPENAI_API_KEY", "LLIMPL_BASE_URL", "OPENAI_BASE_URL",
		"LLIMPL_OFFLINE", "OPENAI_OFFLINE", "LLIMPL_CACHE_DIR", "LLIMPL_CACHE_BACKEND",
		"LLIMPL_MODEL", "LLIMPL_FALLBACK", "LLIMPL_JOBS", "LLIMPL_LOG_FILE", "LLIMPL_LOG_LEVEL",
	} {
		t.Setenv(env, "")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/greet\n\ngo 1.24\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter_llimpl.go"), []byte(greeterStub), 0o644))
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root, a := newRootCmd(&out)
	defer a.close()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// backend serves a fixed greeter answer and counts requests.
func backend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		content, err := json.Marshal(map[string][]string{"bodies": {
			`{ return "Hi " + name }`,
			`{ return text + "!" }`,
		}})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": string(content)}}},
		}))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func greeterKey(t *testing.T) keys.Key {
	t.Helper()
	f, err := decl.ParseSource("greeter_llimpl.go", []byte(greeterStub))
	require.NoError(t, err)
	return keys.Derive(f.Decls[0].Context)
}

func TestKeyCmd(t *testing.T) {
	module(t)

	out, err := run(t, "key", "--canonical", ".")
	require.NoError(t, err)
	assert.Contains(t, out, greeterKey(t).String()+"  greeter_llimpl.go:12  Simple (Greeter)")
	assert.Contains(t, out, `interface="Greeter"`)
	assert.Contains(t, out, `hint="be terse"`)
}

func TestGenerateCmd_ThenOffline(t *testing.T) {
	if pipeline.ResolveMode(config.Config{}).Offline {
		t.Skip("binary built with llimpl_nonet")
	}
	dir := module(t)
	srv, hits := backend(t)
	t.Setenv("LLIMPL_API_KEY", "test-key")

	out, err := run(t, "generate", "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote     greeter_llimpl_gen.go (1 generated, 0 cached)")

	gen, err := os.ReadFile(filepath.Join(dir, "greeter_llimpl_gen.go"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(gen), "// Code generated by llimpl. DO NOT EDIT."))
	assert.Contains(t, string(gen), `return "Hi " + name`)
	assert.FileExists(t, filepath.Join(dir, ".llimpl", "cache", greeterKey(t).String()+".llimpl"))

	// The cache now answers without the backend, even offline.
	out, err = run(t, "generate", "--offline", "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "ok        greeter_llimpl_gen.go (0 generated, 1 cached)")
	assert.Equal(t, int32(1), hits.Load())

	out, err = run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok        example.com/greet (1 interfaces satisfied)")
}

func TestCheckCmd_Fails(t *testing.T) {
	dir := module(t)
	// A generated file that forgot Exclaim.
	partial := "//go:build !llimpl\n\npackage greet\n\ntype Greeter interface {\n\tGreet(name string) string\n\tExclaim(text string) string\n}\n\n" +
		"type Simple struct{}\n\nfunc (s Simple) Greet(name string) string { return name }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter_llimpl_gen.go"), []byte(partial), 0o644))

	out, err := run(t, "check", ".")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckFailed))
	assert.Equal(t, errkind.Validation, errkind.Of(err))
	assert.Contains(t, out, "missing method Exclaim")
}

func TestGenerateCmd_OfflineMiss(t *testing.T) {
	module(t)

	_, err := run(t, "generate", "--offline")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrNoCachedGeneration))

	var msg bytes.Buffer
	printError(&msg, err)
	assert.Contains(t, msg.String(), "llimpl: config error:")
	assert.Contains(t, msg.String(), "no cached generation available in offline mode")
	assert.Contains(t, msg.String(), "hint:")
}

func TestGenerateCmd_MissingAPIKey(t *testing.T) {
	if pipeline.ResolveMode(config.Config{}).Offline {
		t.Skip("binary built with llimpl_nonet")
	}
	module(t)

	_, err := run(t, "generate")
	require.Error(t, err)
	assert.Equal(t, errkind.Config, errkind.Of(err))
	assert.Contains(t, err.Error(), "LLIMPL_API_KEY")
}

func TestGenerateCmd_InvalidFlag(t *testing.T) {
	module(t)

	_, err := run(t, "generate", "--offline", "--fallback", "loose")
	require.Error(t, err)
	assert.Equal(t, errkind.Config, errkind.Of(err))
}

func TestGenerateCmd_NoStubs(t *testing.T) {
	dir := module(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "greeter_llimpl.go")))

	out, err := run(t, "generate", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "no stub files found")
}

func TestCacheCmds(t *testing.T) {
	dir := module(t)
	key := greeterKey(t)
	cacheDir := filepath.Join(dir, ".llimpl", "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, key.String()+".llimpl"), []byte("type Simple struct{}\n"), 0o644))

	out, err := run(t, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, cacheDir+"\n", out)

	out, err = run(t, "cache", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, key.String())
	assert.Contains(t, out, "1 entries")

	out, err = run(t, "cache", "show", key.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, "type Simple struct{}\n", out)

	_, err = run(t, "cache", "show", "ffffffff")
	require.Error(t, err)

	out, err = run(t, "cache", "rm", key.String())
	require.NoError(t, err)
	assert.Contains(t, out, "removed "+key.String())
	assert.NoFileExists(t, filepath.Join(cacheDir, key.String()+".llimpl"))
}

func TestCacheCmds_SQLiteBackend(t *testing.T) {
	module(t)
	t.Setenv("LLIMPL_CACHE_BACKEND", "sqlite")

	out, err := run(t, "cache", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "0 entries")
}
