package authgate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testCookie = "session_token"

func testConfig() Config {
	return Config{
		SecuredPrefixes: []string{"/dashboard", "/profile", "/admin", "/api/dashboard", "/api/profile", "/api/admin"},
		SessionCookie:   testCookie,
		APIPrefix:       "/api/",
		SignInPath:      "/auth/signin",
	}
}

func serve(g *Gate, req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, req)
	return rec, reached
}

func TestGate_PageWithoutCookieRedirects(t *testing.T) {
	g := New(testConfig(), zap.NewNop())

	rec, reached := serve(g, httptest.NewRequest(http.MethodGet, "/dashboard/x?tab=jobs", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/signin", loc.Path)
	assert.Equal(t, "/dashboard/x?tab=jobs", loc.Query().Get("callbackUrl"))
}

func TestGate_APIWithoutCookieIsUnauthorized(t *testing.T) {
	g := New(testConfig(), zap.NewNop())

	rec, reached := serve(g, httptest.NewRequest(http.MethodGet, "/api/dashboard/x", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "Unauthorized"}, body)
}

func TestGate_OpenPathAllowedWithoutCookie(t *testing.T) {
	g := New(testConfig(), zap.NewNop())

	rec, reached := serve(g, httptest.NewRequest(http.MethodGet, "/about", nil))

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_CookiePresenceIsSufficient(t *testing.T) {
	g := New(testConfig(), zap.NewNop())

	for _, path := range []string{"/dashboard/x", "/api/admin/users", "/profile"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: testCookie, Value: "not-validated-here"})

		rec, reached := serve(g, req)
		assert.True(t, reached, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestGate_EmptyOrForeignCookieDenied(t *testing.T) {
	g := New(testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: ""})
	req.AddCookie(&http.Cookie{Name: "other", Value: "abc"})

	rec, reached := serve(g, req)
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGate_BypassAllowsEverything(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := testConfig()
	cfg.Bypass = true
	g := New(cfg, zap.New(core))

	require.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len(), "bypass must be logged at warn")

	for _, path := range []string{"/dashboard/x", "/api/dashboard/x", "/admin", "/about"} {
		for _, withCookie := range []bool{false, true} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if withCookie {
				req.AddCookie(&http.Cookie{Name: testCookie, Value: "v"})
			}
			d := g.Decide(req)
			assert.True(t, d.Allowed(), path)
			assert.True(t, d.Bypassed, path)

			_, reached := serve(g, req)
			assert.True(t, reached, path)
		}
	}
}

func TestGate_DenyHookCalledOnlyOnDeny(t *testing.T) {
	var denied []Decision
	g := New(testConfig(), zap.NewNop(), WithDenyHook(func(_ *http.Request, d Decision) {
		denied = append(denied, d)
	}))

	serve(g, httptest.NewRequest(http.MethodGet, "/about", nil))
	serve(g, httptest.NewRequest(http.MethodGet, "/admin/payouts", nil))
	serve(g, httptest.NewRequest(http.MethodGet, "/api/admin/payouts", nil))

	require.Len(t, denied, 2)
	assert.Equal(t, OutcomeRedirect, denied[0].Outcome)
	assert.Equal(t, "/admin", denied[0].Prefix)
	assert.Equal(t, OutcomeUnauthorized, denied[1].Outcome)
}

func TestGate_UninspectableRequestDenied(t *testing.T) {
	g := New(testConfig(), zap.NewNop())

	assert.Equal(t, OutcomeUnauthorized, g.Decide(nil).Outcome)
	assert.Equal(t, OutcomeUnauthorized, g.Decide(&http.Request{}).Outcome)
}

func TestCredentialFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := CredentialFrom(req, testCookie)
	assert.False(t, ok)

	req.AddCookie(&http.Cookie{Name: testCookie, Value: "tok"})
	cred, ok := CredentialFrom(req, testCookie)
	assert.True(t, ok)
	assert.Equal(t, "tok", cred.Value())

	_, ok = CredentialFrom(nil, testCookie)
	assert.False(t, ok)
}
