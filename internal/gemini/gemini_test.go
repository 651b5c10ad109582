package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorded struct {
	method      string
	path        string
	key         string
	contentType string
	body        []byte
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.calls = append(rec.calls, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			key:         r.URL.Query().Get("key"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestGenerateSendsRequest(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`)
	c := New("secret", WithEndpoint(srv.URL+"/v1beta/models/gemini-pro:generateContent"))

	text, err := c.Generate(context.Background(), `say "hi" & <bye>`)
	require.NoError(t, err)
	require.Equal(t, "hello", text)

	all := calls.all()
	require.Len(t, all, 1)
	got := all[0]
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/v1beta/models/gemini-pro:generateContent", got.path)
	require.Equal(t, "secret", got.key)
	require.Equal(t, "application/json", got.contentType)

	var req Request
	require.NoError(t, json.Unmarshal(got.body, &req))
	require.Equal(t, NewRequest(`say "hi" & <bye>`), req)
}

func TestRequestShape(t *testing.T) {
	b, err := json.Marshal(NewRequest("hello"))
	require.NoError(t, err)
	require.JSONEq(t, `{"contents":[{"parts":[{"text":"hello"}]}]}`, string(b))
}

func TestGenerateRawBodyFallback(t *testing.T) {
	replies := []string{
		`{"candidates":[]}`,
		`{}`,
		`{"candidates":[{}]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":42}]}}]}`,
		`[1,2,3]`,
	}
	for _, reply := range replies {
		t.Run(reply, func(t *testing.T) {
			srv, _ := newServer(t, http.StatusOK, reply)
			text, err := New("k", WithEndpoint(srv.URL)).Generate(context.Background(), "p")
			require.NoError(t, err)
			require.Equal(t, reply, text)
		})
	}
}

func TestGenerateEmptyText(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`)
	text, err := New("k", WithEndpoint(srv.URL)).Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestGenerateInvalidJSON(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `not json`)
	_, err := New("k", WithEndpoint(srv.URL)).Generate(context.Background(), "p")

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, "decode response", terr.Op)
}

func TestGenerateHTTPError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`)
	_, err := New("k", WithEndpoint(srv.URL)).Generate(context.Background(), "p")

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, http.StatusBadRequest, terr.StatusCode)
	require.Equal(t, "HTTP Error 400: Bad Request (API key not valid.)", err.Error())
}

func TestGenerateHTTPErrorWithoutMessage(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `oops`)
	_, err := New("k", WithEndpoint(srv.URL)).Generate(context.Background(), "p")
	require.EqualError(t, err, "HTTP Error 500: Internal Server Error")
}

type failingDoer struct {
	calls int
	err   error
}

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, d.err
}

func TestGenerateNetworkFailureNoRetry(t *testing.T) {
	doer := &failingDoer{err: errors.New("connection refused")}
	_, err := New("k", WithDoer(doer)).Generate(context.Background(), "p")

	require.Equal(t, 1, doer.calls)
	require.EqualError(t, err, "gemini request: connection refused")
}

func TestGenerateDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := New("top-secret", WithEndpoint(endpoint)).Generate(context.Background(), "p")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "top-secret")
	require.True(t, strings.HasPrefix(err.Error(), "gemini request: "))
}

func TestGenerateCanceledContext(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("k", WithEndpoint(srv.URL)).Generate(ctx, "p")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, calls.all())
}

func TestExtractText(t *testing.T) {
	text, ok := ExtractText([]byte(`{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}},{"content":{"parts":[{"text":"c"}]}}]}`))
	require.True(t, ok)
	require.Equal(t, "a", text)

	text, ok = ExtractText([]byte(`{"candidates":[]}`))
	require.False(t, ok)
	require.Equal(t, `{"candidates":[]}`, text)
}
