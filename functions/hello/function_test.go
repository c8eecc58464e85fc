package hello

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/janisto/http-v2-cloud-function/internal/platform/logging"
)

// invoke sends req through Handler with an observed logger on its context.
func invoke(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()

	core, recorded := observer.New(zapcore.DebugLevel)
	req = req.WithContext(logging.WithLogger(req.Context(), zap.New(core)))
	resp := httptest.NewRecorder()
	Handler().ServeHTTP(resp, req)
	return resp, recorded
}

func assertHello(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "Hello" {
		t.Fatalf("expected body %q, got %q", "Hello", body)
	}
}

func assertOneStartEntry(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 log entry, got %d", len(entries))
	}
	if entries[0].Message != "Function Execution Started" {
		t.Fatalf("unexpected log message: %q", entries[0].Message)
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected info level, got %s", entries[0].Level)
	}
	return entries[0]
}

func TestHelloGetRoot(t *testing.T) {
	resp, recorded := invoke(t, httptest.NewRequest(http.MethodGet, "/", nil))

	assertHello(t, resp)
	assertOneStartEntry(t, recorded)
	if ct := resp.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("expected sniffed text/plain, got %q", ct)
	}
}

func TestHelloPostJSONIgnoresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/anything", strings.NewReader(`{"name":"ignored","nested":{"n":1}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, recorded := invoke(t, req)

	assertHello(t, resp)
	assertOneStartEntry(t, recorded)
}

func TestHelloWithoutHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header = nil

	resp, recorded := invoke(t, req)

	assertHello(t, resp)
	assertOneStartEntry(t, recorded)
}

func TestHelloAnyRequest(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		headers map[string]string
	}{
		{name: "put nested path", method: http.MethodPut, target: "/a/b/c", body: "plain text"},
		{name: "patch with query", method: http.MethodPatch, target: "/?name=World", body: `{}`},
		{name: "delete", method: http.MethodDelete, target: "/items/42"},
		{name: "options preflight", method: http.MethodOptions, target: "/", headers: map[string]string{
			"Origin":                        "https://example.com",
			"Access-Control-Request-Method": "POST",
		}},
		{name: "non-standard method", method: "PROPFIND", target: "/dav"},
		{name: "malformed json", method: http.MethodPost, target: "/", body: `{"broken":`, headers: map[string]string{
			"Content-Type": "application/json",
		}},
		{name: "binary body", method: http.MethodPost, target: "/upload", body: "\x00\x01\x02\xff", headers: map[string]string{
			"Content-Type": "application/octet-stream",
		}},
		{name: "auth header ignored", method: http.MethodGet, target: "/secret", headers: map[string]string{
			"Authorization": "Bearer nope",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.target, body)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, recorded := invoke(t, req)

			assertHello(t, resp)
			assertOneStartEntry(t, recorded)
		})
	}
}

func TestHelloSetsNoExtraHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-abc")

	resp, _ := invoke(t, req)

	for key := range resp.Header() {
		if key != "Content-Type" {
			t.Fatalf("unexpected response header %q", key)
		}
	}
}

func TestHelloLogCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Function-Execution-Id", "exec-123")

	_, recorded := invoke(t, req)

	entry := assertOneStartEntry(t, recorded)
	for _, f := range entry.Context {
		if f.Key == "requestId" && f.String == "exec-123" {
			return
		}
	}
	t.Fatalf("requestId field not found: %+v", entry.Context)
}

func TestHelloWritesOneJSONLinePerInvocationToStdout(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	defer func() { _ = r.Close() }()
	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	handler := Handler()
	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodPost, "/anything", strings.NewReader(`{"a":1}`)),
		httptest.NewRequest("PROPFIND", "/dav", nil),
	}
	for _, req := range requests {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		assertHello(t, resp)
	}

	os.Stdout = origStdout
	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("failed to close writer: %v", closeErr)
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var payload map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", scanner.Text(), err)
		}
		lines = append(lines, payload)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("failed to read stdout: %v", err)
	}

	if len(lines) != len(requests) {
		t.Fatalf("expected %d log lines, got %d", len(requests), len(lines))
	}
	for _, payload := range lines {
		if payload["message"] != "Function Execution Started" {
			t.Fatalf("unexpected message: %v", payload["message"])
		}
		if payload["severity"] != "INFO" {
			t.Fatalf("unexpected severity: %v", payload["severity"])
		}
		if caller, _ := payload["caller"].(string); !strings.HasPrefix(caller, "hello/function.go:") {
			t.Fatalf("expected caller in hello/function.go, got %v", payload["caller"])
		}
		if id, _ := payload["requestId"].(string); id == "" {
			t.Fatalf("expected requestId on log line: %v", payload)
		}
	}
}

func TestHelloConcurrentInvocations(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	handler := Handler()

	const n = 50
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(logging.WithLogger(req.Context(), zap.New(core)))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Body.String() != "Hello" {
				codes <- -1
				return
			}
			codes <- resp.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		if code != http.StatusOK {
			t.Fatalf("unexpected result code %d", code)
		}
	}
	if got := recorded.FilterMessage("Function Execution Started").Len(); got != n {
		t.Fatalf("expected %d log entries, got %d", n, got)
	}
}

func TestHelloOverHTTP(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			req, err := http.NewRequest(method, srv.URL+"/any/path", strings.NewReader(`{"x":1}`))
			if err != nil {
				t.Fatalf("failed to build request: %v", err)
			}
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			want := "Hello"
			if method == http.MethodHead {
				want = ""
			}
			if string(data) != want {
				t.Fatalf("expected body %q, got %q", want, data)
			}
		})
	}
}
