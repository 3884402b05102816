package recon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRedirectFollower_Chain(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			gotAccept = r.Header.Get("Accept")
			http.Redirect(w, r, "/step", http.StatusMovedPermanently)
		case "/step":
			http.Redirect(w, r, final.URL+"/landing", http.StatusFound)
		}
	}))
	defer srv.Close()

	f := NewRedirectFollower(2*time.Second, "test-agent", nil)
	chain := f.Follow(context.Background(), srv.URL+"/")

	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3: %+v", len(chain), chain)
	}
	if chain[0].StatusCode != 301 || chain[0].Location != "/step" {
		t.Errorf("hop 0 = %+v", chain[0])
	}
	if chain[1].StatusCode != 302 || chain[1].Location != final.URL+"/landing" {
		t.Errorf("hop 1 = %+v", chain[1])
	}
	if chain[2].URL != final.URL+"/landing" || chain[2].StatusCode != 200 || chain[2].Location != "" {
		t.Errorf("hop 2 = %+v", chain[2])
	}
	if gotAccept != htmlAccept {
		t.Errorf("Accept = %q", gotAccept)
	}
}

func TestRedirectFollower_StopsOnLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a" {
			http.Redirect(w, r, "/b", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/a", http.StatusFound)
	}))
	defer srv.Close()

	chain := NewRedirectFollower(2*time.Second, "", nil).Follow(context.Background(), srv.URL+"/a")
	if len(chain) != 2 {
		t.Errorf("chain length = %d, want 2", len(chain))
	}
}

func TestRedirectFollower_MaxHops(t *testing.T) {
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
	}))
	defer srv.Close()

	f := NewRedirectFollower(2*time.Second, "", nil)
	f.MaxHops = 4
	chain := f.Follow(context.Background(), srv.URL+"/")
	if len(chain) != 4 || n != 4 {
		t.Errorf("chain length = %d, requests = %d, want 4", len(chain), n)
	}
}

func TestRedirectFollower_NonHTTPTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "ftp://files.example.com/")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	chain := NewRedirectFollower(2*time.Second, "", nil).Follow(context.Background(), srv.URL+"/")
	if len(chain) != 1 || chain[0].Location != "ftp://files.example.com/" {
		t.Errorf("chain = %+v", chain)
	}
}

func TestRedirectFollower_NetworkError(t *testing.T) {
	chain := NewRedirectFollower(500*time.Millisecond, "", nil).Follow(context.Background(), "http://127.0.0.1:1/")
	if len(chain) != 0 {
		t.Errorf("chain = %+v, want empty", chain)
	}
}
