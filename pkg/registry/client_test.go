package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
)

func TestClientFetch(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("export default 1;"))
	}))
	defer server.Close()

	c := NewClient(Options{HTTPClient: server.Client()})
	resp, err := c.Fetch(context.Background(), server.URL+"/pkg/index.js")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(resp.Body) != "export default 1;" {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.URL != server.URL+"/pkg/index.js" {
		t.Errorf("URL = %q", resp.URL)
	}
	if gotUA != userAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, userAgent)
	}
}

func TestClientFetch_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/react", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/react@18.2.0/index.js", http.StatusFound)
	})
	mux.HandleFunc("/react@18.2.0/index.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("module.exports = {};"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(Options{HTTPClient: server.Client()})
	resp, err := c.Fetch(context.Background(), server.URL+"/react")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if resp.URL != server.URL+"/react@18.2.0/index.js" {
		t.Errorf("final URL = %q", resp.URL)
	}
}

func TestClientFetch_Headers(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Custom")
	}))
	defer server.Close()

	c := NewClient(Options{HTTPClient: server.Client(), Headers: map[string]string{"X-Custom": "yes"}})
	if _, err := c.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if got != "yes" {
		t.Errorf("X-Custom = %q, want yes", got)
	}
}

func TestClientFetch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   lberrors.Code
	}{
		{"notFound", http.StatusNotFound, lberrors.ErrCodeNotFound},
		{"gone", http.StatusGone, lberrors.ErrCodeNotFound},
		{"serverError", http.StatusInternalServerError, lberrors.ErrCodeNetwork},
		{"forbidden", http.StatusForbidden, lberrors.ErrCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := NewClient(Options{HTTPClient: server.Client()})
			_, err := c.Fetch(context.Background(), server.URL)
			if !lberrors.Is(err, tt.code) {
				t.Errorf("Fetch() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestClientFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Options{HTTPClient: server.Client(), Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Fetch(context.Background(), server.URL)
	if !lberrors.Is(err, lberrors.ErrCodeTimeout) {
		t.Errorf("Fetch() error = %v, want TIMEOUT", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestClientFetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(Options{})
	_, err := c.Fetch(context.Background(), url)
	if !lberrors.Is(err, lberrors.ErrCodeNetwork) {
		t.Errorf("Fetch() error = %v, want NETWORK_ERROR", err)
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	if got := NewClient(Options{}).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, DefaultTimeout)
	}
}
