package pubtrack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// testRegistry builds a small resource set with one nested relation.
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, res := range []Resource{
		{Name: "books", Children: []string{"authors"}},
		{Name: "authors"},
	} {
		if err := r.Add(res); err != nil {
			t.Fatalf("Add(%q) error = %v", res.Name, err)
		}
	}
	if err := r.Resolve(); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return r
}

func testEndpoint(t *testing.T, base, name string, opts ...EndpointOption) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint(base, testRegistry(t), name, opts...)
	if err != nil {
		t.Fatalf("NewEndpoint(%q) error = %v", name, err)
	}
	return ep
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		keys []string
		want string
	}{
		{
			name: "bare base",
			base: "http://test.local/api",
			want: "http://test.local/api/books/",
		},
		{
			name: "base with trailing slash",
			base: "http://test.local/api/",
			want: "http://test.local/api/books/",
		},
		{
			name: "single key",
			base: "http://test.local/api",
			keys: []string{"t1"},
			want: "http://test.local/api/books/t1/",
		},
		{
			name: "composite key",
			base: "http://test.local/api",
			keys: []string{"t1", "2nd-edition"},
			want: "http://test.local/api/books/t1/2nd-edition/",
		},
		{
			name: "key with stray slashes",
			base: "http://test.local/api",
			keys: []string{"/t1/"},
			want: "http://test.local/api/books/t1/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := testEndpoint(t, tt.base, "books")
			if got := ep.Key(tt.keys...).URL(); got != tt.want {
				t.Errorf("URL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEndpointChild(t *testing.T) {
	ep := testEndpoint(t, "http://test.com/api", "books")

	child, err := ep.Key("title").Child("authors")
	if err != nil {
		t.Fatalf("Child() error = %v", err)
	}
	want := "http://test.com/api/books/title/authors/"
	if got := child.URL(); got != want {
		t.Errorf("Child().URL() = %v, want %v", got, want)
	}

	// A child of the unkeyed endpoint sits directly under the collection.
	child, err = ep.Child("authors")
	if err != nil {
		t.Fatalf("Child() error = %v", err)
	}
	want = "http://test.com/api/books/authors/"
	if got := child.URL(); got != want {
		t.Errorf("Child().URL() = %v, want %v", got, want)
	}
}

func TestEndpointChildUnknown(t *testing.T) {
	ep := testEndpoint(t, "http://test.com/api", "authors")

	if _, err := ep.Child("books"); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("Child() error = %v, want ErrUnknownResource", err)
	}
}

func TestEndpointNavigationConstructsFreshInstances(t *testing.T) {
	ep := testEndpoint(t, "http://test.com/api", "books")

	first, err := ep.Child("authors")
	if err != nil {
		t.Fatalf("Child() error = %v", err)
	}
	second, err := ep.Child("authors")
	if err != nil {
		t.Fatalf("Child() error = %v", err)
	}

	if first == second {
		t.Error("Child() returned the same instance twice")
	}
	if first.URL() != second.URL() {
		t.Errorf("Child() URLs diverged: %v vs %v", first.URL(), second.URL())
	}

	// Narrowing the parent must not leak into previously derived children.
	narrowed, err := ep.Key("t1").Child("authors")
	if err != nil {
		t.Fatalf("Child() error = %v", err)
	}
	if narrowed.URL() == first.URL() {
		t.Error("keyed child shares URL with unkeyed child")
	}
	if want := "http://test.com/api/books/t1/authors/"; narrowed.URL() != want {
		t.Errorf("narrowed URL = %v, want %v", narrowed.URL(), want)
	}
	// The original endpoint is untouched by all of the above.
	if want := "http://test.com/api/books/"; ep.URL() != want {
		t.Errorf("parent URL = %v, want %v", ep.URL(), want)
	}
}

func TestEndpointGet(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"title": "t1"})
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL+"/api", "books",
		WithEndpointHTTPClient(srv.Client()),
		WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
	)

	rec, err := ep.Get(context.Background(), nil, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := rec.String("title"); got != "t1" {
		t.Errorf("title = %v, want t1", got)
	}
	if gotPath != "/api/books/t1/" {
		t.Errorf("request path = %v, want /api/books/t1/", gotPath)
	}
	if gotAuth != "TOKEN secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "TOKEN secret")
	}

	params := url.Values{}
	params.Set("doi", "10.1000/x1")
	if _, err := ep.Get(context.Background(), params); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotPath != "/api/books/" {
		t.Errorf("request path = %v, want /api/books/", gotPath)
	}
	if gotQuery != "doi=10.1000%2Fx1" {
		t.Errorf("request query = %v", gotQuery)
	}
}

func TestEndpointGetNormalizesListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"title": "a"}, {"title": "b"}})
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL, "books",
		WithEndpointHTTPClient(srv.Client()),
		WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
	)

	rec, err := ep.Get(context.Background(), nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	results, err := rec.Results()
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if got := results[0].String("title"); got != "a" {
		t.Errorf("results[0].title = %v, want a", got)
	}
}

func TestEndpointPost(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"uuid": "u-1", "title": gotBody["title"]})
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL, "books",
		WithEndpointHTTPClient(srv.Client()),
		WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
	)

	rec, err := ep.Post(context.Background(), map[string]any{"title": "t1"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if got := rec.String("uuid"); got != "u-1" {
		t.Errorf("uuid = %v, want u-1", got)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", gotContentType)
	}
	if gotBody["title"] != "t1" {
		t.Errorf("posted title = %v, want t1", gotBody["title"])
	}
}

func TestEndpointUpdatesRequireKey(t *testing.T) {
	ep := testEndpoint(t, "http://test.local/api", "books")

	if _, err := ep.Put(context.Background(), map[string]any{}); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Put() error = %v, want ErrMissingKey", err)
	}
	if _, err := ep.Patch(context.Background(), map[string]any{}); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Patch() error = %v, want ErrMissingKey", err)
	}
	if err := ep.Delete(context.Background()); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Delete() error = %v, want ErrMissingKey", err)
	}
}

func TestEndpointPatch(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"uuid": "u-1", "on_kitopen": true})
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL, "books",
		WithEndpointHTTPClient(srv.Client()),
		WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
	)

	// Key accumulated through navigation counts the same as an explicit pk.
	if _, err := ep.Key("u-1").Patch(context.Background(), map[string]any{"on_kitopen": true}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %v, want PATCH", gotMethod)
	}
	if gotPath != "/books/u-1/" {
		t.Errorf("path = %v, want /books/u-1/", gotPath)
	}
}

func TestEndpointDelete(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL, "books",
		WithEndpointHTTPClient(srv.Client()),
		WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
	)

	if err := ep.Delete(context.Background(), "u-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %v, want DELETE", gotMethod)
	}
}

func TestEndpointStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"detail":"invalid token"}`)
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL, "books",
		WithEndpointHTTPClient(srv.Client()),
		WithEndpointAuthenticator(NewTokenAuthenticator("bad")),
	)

	_, err := ep.Get(context.Background(), nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Get() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", statusErr.StatusCode)
	}
	if statusErr.Method != http.MethodGet {
		t.Errorf("Method = %v, want GET", statusErr.Method)
	}
	if statusErr.Body != `{"detail":"invalid token"}` {
		t.Errorf("Body = %q", statusErr.Body)
	}
	if !IsRejection(err) {
		t.Error("IsRejection() = false, want true")
	}
	if !IsAuthError(err) {
		t.Error("IsAuthError() = false, want true")
	}
	if IsStatus(err, 400) {
		t.Error("IsStatus(400) = true for a 403")
	}
}

func TestEndpointWithoutAuthenticator(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ep := testEndpoint(t, srv.URL, "books", WithEndpointHTTPClient(srv.Client()))

	_, err := ep.Get(context.Background(), nil)
	if !errors.Is(err, ErrAuthNotConfigured) {
		t.Errorf("Get() error = %v, want ErrAuthNotConfigured", err)
	}
	if called {
		t.Error("request reached the server without credentials")
	}
}

func TestEndpointGetBy(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  error
	}{
		{
			name:     "paginated envelope",
			response: `{"count":2,"results":[{"title":"first"},{"title":"second"}]}`,
			want:     "first",
		},
		{
			name:     "bare list",
			response: `[{"title":"only"}]`,
			want:     "only",
		},
		{
			name:     "no match",
			response: `{"count":0,"results":[]}`,
			wantErr:  ErrNoResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				io.WriteString(w, tt.response)
			}))
			defer srv.Close()

			ep := testEndpoint(t, srv.URL, "books",
				WithEndpointHTTPClient(srv.Client()),
				WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
			)

			filters := url.Values{}
			filters.Set("doi", "10.1000/x1")
			rec, err := ep.GetBy(context.Background(), filters)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetBy() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetBy() error = %v", err)
			}
			if got := rec.String("title"); got != tt.want {
				t.Errorf("title = %v, want %v", got, tt.want)
			}
			if gotQuery != "doi=10.1000%2Fx1" {
				t.Errorf("query = %v", gotQuery)
			}
		})
	}
}

func TestEndpointPostOrGet(t *testing.T) {
	t.Run("post succeeds", func(t *testing.T) {
		var gets int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				gets++
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"slug": "new-author"})
		}))
		defer srv.Close()

		ep := testEndpoint(t, srv.URL, "authors",
			WithEndpointHTTPClient(srv.Client()),
			WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
		)

		rec, err := ep.PostOrGet(context.Background(), map[string]any{"last_name": "Mustermann"}, url.Values{})
		if err != nil {
			t.Fatalf("PostOrGet() error = %v", err)
		}
		if got := rec.String("slug"); got != "new-author" {
			t.Errorf("slug = %v, want new-author", got)
		}
		if gets != 0 {
			t.Errorf("fallback GET issued after successful POST")
		}
	})

	t.Run("rejected post falls back to lookup", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"external_author_id":["already exists"]}`)
				return
			}
			if got := r.URL.Query().Get("external_author_id"); got != "777" {
				t.Errorf("filter external_author_id = %v, want 777", got)
			}
			io.WriteString(w, `{"results":[{"slug":"existing-author"}]}`)
		}))
		defer srv.Close()

		ep := testEndpoint(t, srv.URL, "authors",
			WithEndpointHTTPClient(srv.Client()),
			WithEndpointAuthenticator(NewTokenAuthenticator("secret")),
		)

		filters := url.Values{}
		filters.Set("external_author_id", "777")
		rec, err := ep.PostOrGet(context.Background(), map[string]any{"last_name": "Mustermann"}, filters)
		if err != nil {
			t.Fatalf("PostOrGet() error = %v", err)
		}
		if got := rec.String("slug"); got != "existing-author" {
			t.Errorf("slug = %v, want existing-author", got)
		}
	})

	t.Run("authorization failure is not retried", func(t *testing.T) {
		var gets int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				gets++
			}
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		ep := testEndpoint(t, srv.URL, "authors",
			WithEndpointHTTPClient(srv.Client()),
			WithEndpointAuthenticator(NewTokenAuthenticator("bad")),
		)

		_, err := ep.PostOrGet(context.Background(), map[string]any{"last_name": "Mustermann"}, url.Values{})
		if !IsStatus(err, http.StatusForbidden) {
			t.Fatalf("PostOrGet() error = %v, want 403 StatusError", err)
		}
		if gets != 0 {
			t.Errorf("fallback GET issued after 403")
		}
	})
}
