package appium

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// request is one call received by fakeAppium.
type request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeAppium is a scripted W3C endpoint. Elements maps "strategy=value" to
// an element id; Texts maps element id to its text.
type fakeAppium struct {
	mu       sync.Mutex
	Requests []request
	Elements map[string]string
	Texts    map[string]string
	Shot     []byte
}

func newFakeAppium(t *testing.T) (*fakeAppium, *httptest.Server) {
	t.Helper()
	f := &fakeAppium{Elements: map[string]string{}, Texts: map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeAppium) paths(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.Requests {
		if r.Method == method {
			out = append(out, r.Path)
		}
	}
	return out
}

func (f *fakeAppium) last(path string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Requests) - 1; i >= 0; i-- {
		if f.Requests[i].Path == path {
			return f.Requests[i].Body
		}
	}
	return nil
}

func (f *fakeAppium) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.Requests = append(f.Requests, request{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	const prefix = "/session/s-1"
	switch {
	case r.URL.Path == "/session" && r.Method == http.MethodPost:
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{
				"sessionId":    "s-1",
				"capabilities": map[string]interface{}{"platformName": "Android"},
			},
		})
	case r.URL.Path == prefix && r.Method == http.MethodDelete:
		writeJSON(w, map[string]interface{}{"value": nil})
	case r.URL.Path == prefix+"/element":
		key, _ := body["using"].(string)
		val, _ := body["value"].(string)
		id, ok := f.Elements[key+"="+val]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{"error": "no such element", "message": "not found: " + val},
			})
			return
		}
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{w3cElementKey: id}})
	case strings.HasSuffix(r.URL.Path, "/text"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix+"/element/"), "/text")
		writeJSON(w, map[string]interface{}{"value": f.Texts[id]})
	case r.URL.Path == prefix+"/screenshot":
		writeJSON(w, map[string]interface{}{"value": base64.StdEncoding.EncodeToString(f.Shot)})
	case strings.HasPrefix(r.URL.Path, prefix):
		writeJSON(w, map[string]interface{}{"value": nil})
	default:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"error": "invalid session id", "message": r.URL.Path},
		})
	}
}

func connectedClient(t *testing.T) (*Client, *fakeAppium) {
	t.Helper()
	f, server := newFakeAppium(t)
	c := NewClient(server.URL, 0)
	if err := c.Connect(context.Background(), map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c, f
}

func TestClient_Connect(t *testing.T) {
	c, f := connectedClient(t)

	if !c.Connected() {
		t.Fatal("Connected() = false after Connect")
	}
	if c.Platform() != "android" {
		t.Errorf("Platform() = %q, want android", c.Platform())
	}
	caps := f.last("/session")["capabilities"].(map[string]interface{})
	if _, ok := caps["alwaysMatch"]; !ok {
		t.Errorf("capabilities = %v, want alwaysMatch", caps)
	}
}

func TestClient_Disconnect(t *testing.T) {
	c, f := connectedClient(t)

	if err := c.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
	if got := f.paths(http.MethodDelete); len(got) != 1 || got[0] != "/session/s-1" {
		t.Errorf("DELETE calls = %v", got)
	}
	// Second disconnect is a no-op.
	if err := c.Disconnect(context.Background()); err != nil {
		t.Errorf("second Disconnect() error = %v", err)
	}
}

func TestClient_FindElement(t *testing.T) {
	c, f := connectedClient(t)
	f.Elements["accessibility id=login"] = "el-7"

	id, err := c.FindElement(context.Background(), "accessibility id", "login")
	if err != nil {
		t.Fatalf("FindElement() error = %v", err)
	}
	if id != "el-7" {
		t.Errorf("id = %q, want el-7", id)
	}
}

func TestClient_FindElement_NotFound(t *testing.T) {
	c, _ := connectedClient(t)

	_, err := c.FindElement(context.Background(), "id", "missing")
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		t.Fatalf("error = %v, want *WebDriverError", err)
	}
	if wdErr.Code != "no such element" {
		t.Errorf("Code = %q", wdErr.Code)
	}
}

func TestClient_SendElementKeys(t *testing.T) {
	c, f := connectedClient(t)

	if err := c.SendElementKeys(context.Background(), "el-1", "hello"); err != nil {
		t.Fatalf("SendElementKeys() error = %v", err)
	}
	if got := f.last("/session/s-1/element/el-1/value")["text"]; got != "hello" {
		t.Errorf("text = %v, want hello", got)
	}
}

func TestClient_Swipe(t *testing.T) {
	c, f := connectedClient(t)

	if err := c.Swipe(context.Background(), 10, 20, 30, 40, 250); err != nil {
		t.Fatalf("Swipe() error = %v", err)
	}
	body := f.last("/session/s-1/actions")
	pointers := body["actions"].([]interface{})
	steps := pointers[0].(map[string]interface{})["actions"].([]interface{})
	if len(steps) != 4 {
		t.Fatalf("got %d pointer steps, want 4", len(steps))
	}
	move := steps[2].(map[string]interface{})
	if move["duration"] != 250.0 || move["x"] != 30.0 || move["y"] != 40.0 {
		t.Errorf("final move = %v", move)
	}
}

func TestClient_Screenshot(t *testing.T) {
	c, f := connectedClient(t)
	f.Shot = []byte("png-bytes")

	data, err := c.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("Screenshot() error = %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 0)
	if err := c.Connect(context.Background(), nil); err == nil {
		t.Fatal("expected error connecting to closed port")
	}
	if c.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
}
