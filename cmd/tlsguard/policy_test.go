package main

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/csmith/tlsguard/cmd/tlsguard/testdata"
	"github.com/csmith/tlsguard/enforce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PolicySource_DefaultsToXForwardedProto(t *testing.T) {
	settings, err := newPolicySource("", nil, nil).Load()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, enforce.Redirect, enforce.Decide(settings, req).Kind)

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, enforce.Proceed, enforce.Decide(settings, req).Kind)
}

func Test_PolicySource_LoadsFile(t *testing.T) {
	settings, err := newPolicySource(testdata.Path("temporary.conf"), nil, nil).Load()
	require.NoError(t, err)

	assert.True(t, settings.Temporary)
	assert.Equal(t, 8443, settings.Port)
}

func Test_PolicySource_WrapsResolverWithTrustedDownstreams(t *testing.T) {
	_, trusted, _ := net.ParseCIDR("10.0.0.0/8")
	settings, err := newPolicySource(testdata.Path("forwarded.conf"), []net.IPNet{*trusted}, nil).Load()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Forwarded", "proto=https")

	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, enforce.Redirect, enforce.Decide(settings, req).Kind)

	req.RemoteAddr = "10.1.1.1:1234"
	assert.Equal(t, enforce.Proceed, enforce.Decide(settings, req).Kind)
}

func Test_PolicySource_SetsObserver(t *testing.T) {
	var observed []enforce.Outcome
	settings, err := newPolicySource("", nil, func(_ *http.Request, outcome enforce.Outcome) {
		observed = append(observed, outcome)
	}).Load()
	require.NoError(t, err)

	enforce.Middleware(settings)(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, observed, 1)
}

func Test_PolicySource_LoadErrors(t *testing.T) {
	_, err := newPolicySource("/does/not/exist.conf", nil, nil).Load()
	assert.ErrorContains(t, err, "failed to open config file")

	_, err = newPolicySource(testdata.Path("badly-formatted.conf"), nil, nil).Load()
	assert.ErrorContains(t, err, "failed to parse config file")
}

func Test_PolicySource_Validate(t *testing.T) {
	assert.NoError(t, newPolicySource(testdata.Path("forwarded.conf"), nil, nil).Validate())
	assert.ErrorContains(t, newPolicySource("", nil, nil).Validate(), "no policy file specified")
	assert.ErrorContains(t, newPolicySource("/does/not/exist.conf", nil, nil).Validate(), "failed to open config file")
	assert.ErrorContains(t, newPolicySource(testdata.Path("badly-formatted.conf"), nil, nil).Validate(), "failed to parse config file")
}

func Test_Reload_KeepsPreviousPolicyOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.conf")
	require.NoError(t, os.WriteFile(path, []byte("temporary true\n"), 0600))

	policy := newPolicySource(path, nil, nil)
	settings, err := policy.Load()
	require.NoError(t, err)
	guard := enforce.NewGuard(settings)

	require.NoError(t, os.WriteFile(path, []byte("port 8443\n"), 0600))
	reload(policy, guard)
	assert.Equal(t, 8443, guard.Settings().Port)
	assert.False(t, guard.Settings().Temporary)

	require.NoError(t, os.WriteFile(path, []byte("port nope\n"), 0600))
	reload(policy, guard)
	assert.Equal(t, 8443, guard.Settings().Port)
}
