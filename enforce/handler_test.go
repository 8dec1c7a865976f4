package enforce

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockNextHandler struct {
	called bool
}

func (m *mockNextHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	m.called = true
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("OK"))
}

func serveThrough(handler func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, *mockNextHandler) {
	next := &mockNextHandler{}
	rec := httptest.NewRecorder()
	handler(next).ServeHTTP(rec, req)
	return rec, next
}

func Test_Middleware_PassesSecureRequestsOn(t *testing.T) {
	req := insecureRequest(http.MethodPost, "/non-ssl")
	req.Header.Set("Forwarded", "by=foo; for=baz; host=localhost; proto=https")

	rec, next := serveThrough(Middleware(Resolve(Options{Resolver: ForwardedResolver()})), req)

	assert.True(t, next.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func Test_Middleware_RedirectsInsecureGet(t *testing.T) {
	rec, next := serveThrough(Middleware(Resolve(Options{})), insecureRequest(http.MethodGet, "/ssl"))

	assert.False(t, next.called)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://example.com/ssl", rec.Header().Get("Location"))
	assert.Empty(t, rec.Body.String())
}

func Test_Middleware_TemporaryRedirect(t *testing.T) {
	rec, _ := serveThrough(Middleware(Resolve(Options{Temporary: ptr(true)})), insecureRequest(http.MethodGet, "/ssl"))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/ssl", rec.Header().Get("Location"))
}

func Test_Middleware_DisallowsPost(t *testing.T) {
	rec, next := serveThrough(Middleware(Resolve(Options{})), insecureRequest(http.MethodPost, "/x"))

	assert.False(t, next.called)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD, OPTIONS", rec.Header().Get("Allow"))
	assert.Empty(t, rec.Body.String())
}

func Test_Middleware_AnswersOptions(t *testing.T) {
	rec, next := serveThrough(Middleware(Resolve(Options{})), insecureRequest(http.MethodOptions, "/x"))

	assert.False(t, next.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, HEAD, OPTIONS", rec.Header().Get("Allow"))
	assert.Empty(t, rec.Body.String())
}

func Test_Middleware_AnswersOptionsWithNoRedirectMethods(t *testing.T) {
	rec, next := serveThrough(Middleware(Resolve(Options{RedirectMethods: []string{}})), insecureRequest(http.MethodOptions, "/x"))

	assert.False(t, next.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OPTIONS", rec.Header().Get("Allow"))
}

func Test_Middleware_InternalRedirectsPost(t *testing.T) {
	rec, _ := serveThrough(
		Middleware(Resolve(Options{InternalRedirectMethods: []string{"POST"}})),
		insecureRequest(http.MethodPost, "/ssl"),
	)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com/ssl", rec.Header().Get("Location"))
}

func Test_Middleware_IgnoresURL(t *testing.T) {
	rec, _ := serveThrough(Middleware(Resolve(Options{IgnoreURL: ptr(true)})), insecureRequest(http.MethodGet, "/a/b?c=1"))

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
}

func Test_Middleware_NotifiesObserver(t *testing.T) {
	var outcomes []Outcome
	settings := Resolve(Options{
		Observer: func(req *http.Request, outcome Outcome) {
			outcomes = append(outcomes, outcome)
		},
	})

	serveThrough(Middleware(settings), insecureRequest(http.MethodGet, "/ssl"))
	serveThrough(Middleware(settings), insecureRequest(http.MethodPost, "/ssl"))

	assert.Len(t, outcomes, 2)
	assert.Equal(t, Redirect, outcomes[0].Kind)
	assert.Equal(t, Disallow, outcomes[1].Kind)
}

func Test_Guard_UsesDefaultsForNilSettings(t *testing.T) {
	guard := NewGuard(nil)

	rec, _ := serveThrough(guard.Middleware, insecureRequest(http.MethodGet, "/ssl"))

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, 443, guard.Settings().Port)
}

func Test_Guard_UpdateAppliesToSubsequentRequests(t *testing.T) {
	guard := NewGuard(Resolve(Options{}))
	handler := guard.Middleware(&mockNextHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, insecureRequest(http.MethodGet, "/ssl"))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)

	guard.Update(Resolve(Options{Temporary: ptr(true), Port: ptr(8443)}))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, insecureRequest(http.MethodGet, "/ssl"))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com:8443/ssl", rec.Header().Get("Location"))
}

func Test_Guard_ConcurrentRequestsAndUpdates(t *testing.T) {
	guard := NewGuard(Resolve(Options{}))
	handler := guard.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, insecureRequest(http.MethodGet, "/ssl"))
			assert.Contains(t, []int{http.StatusMovedPermanently, http.StatusFound}, rec.Code)
		}()
		go func() {
			defer wg.Done()
			guard.Update(Resolve(Options{Temporary: ptr(true)}))
		}()
	}
	wg.Wait()
}
