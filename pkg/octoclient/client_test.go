package octoclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/octoscrape/pkg/scrapeerrors"
)

func TestPostSendsCookieAndUserAgent(t *testing.T) {
	var gotCookie, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := New(server.URL, "octoscrape-test/1.0", "abc123")
	body, err := client.Post(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(body) != `{"data":{}}` {
		t.Errorf("body = %q", body)
	}
	if gotCookie != "_px=abc123" {
		t.Errorf("Cookie = %q, want _px=abc123", gotCookie)
	}
	if gotUA != "octoscrape-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestPostServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "ua", "px")
	_, err := client.Post(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if code := scrapeerrors.GetCode(err); code != scrapeerrors.ErrCodeFetchTransient {
		t.Errorf("GetCode(err) = %v, want ErrCodeFetchTransient", code)
	}
}

func TestPostUnauthorizedIsCredentialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, "ua", "stale-cookie")
	_, err := client.Post(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if scrapeerrors.GetCode(err) != scrapeerrors.ErrCodeCredentialRefreshFailed {
		t.Errorf("GetCode(err) = %v, want ErrCodeCredentialRefreshFailed", scrapeerrors.GetCode(err))
	}
	if code := scrapeerrors.GetCode(err); scrapeerrors.IsTransient(code) {
		t.Errorf("GetCode(err) = %v, want a non-transient code for a credential failure", code)
	}
}

func TestSetCredentialUpdatesCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, "ua", "old")
	client.SetCredential("new")
	if _, err := client.Post(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotCookie != "_px=new" {
		t.Errorf("Cookie = %q, want _px=new", gotCookie)
	}
}
