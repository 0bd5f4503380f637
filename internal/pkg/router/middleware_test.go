package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChainOrdersFirstMiddlewareOutermost(t *testing.T) {
	// Arrange
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})

	// Act
	Chain(h, tag("first"), tag("second")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChainWithoutMiddlewares(t *testing.T) {
	// Arrange
	called := false
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	// Act
	Chain(h).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if !called {
		t.Fatalf("expected the handler to run")
	}
}
