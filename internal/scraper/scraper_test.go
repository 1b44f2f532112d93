package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func noWait() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>和光市</h1></body></html>`)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithUserAgent("test-agent"), WithBackOff(noWait))
	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "和光市", doc.Find("h1").Text())
	assert.Equal(t, "test-agent", gotUA)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<html><body><p>ok</p></body></html>`)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithRetries(2), WithBackOff(noWait))
	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "ok", doc.Find("p").Text())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithRetries(1), WithBackOff(noWait))
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithRetries(3), WithBackOff(noWait))
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_DecodesShiftJIS(t *testing.T) {
	body, err := japanese.ShiftJIS.NewEncoder().String(`<html><body><p>和光市商工会</p></body></html>`)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithBackOff(noWait))
	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "和光市商工会", doc.Find("p").Text())
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithTimeout(20*time.Millisecond), WithRetries(0), WithBackOff(noWait))
	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	base, err := url.Parse("https://www.city.wako.lg.jp/event_calendar.html")
	require.NoError(t, err)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"relative path", "/kyoiku/a.html", "https://www.city.wako.lg.jp/kyoiku/a.html", false},
		{"sibling", "b.html", "https://www.city.wako.lg.jp/b.html", false},
		{"absolute", "http://example.com/x", "http://example.com/x", false},
		{"protocol relative", "//cdn.example.com/img.jpg", "https://cdn.example.com/img.jpg", false},
		{"surrounding space", "  /c.html ", "https://www.city.wako.lg.jp/c.html", false},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveURL(base, tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "2025/1/20 創業セミナー", collapseSpace("  2025/1/20　\n\t創業セミナー "))
	assert.Equal(t, "", collapseSpace(" 　 "))
}
