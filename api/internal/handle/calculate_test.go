package handle

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var canvasPNG = "data:image/png;base64," + base64.StdEncoding.EncodeToString(
	[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00})

type fakeEngine struct {
	mu      sync.Mutex
	name    string
	reply   string
	err     error
	prompts []string
}

func (f *fakeEngine) Name() string     { return f.name }
func (f *fakeEngine) GetModel() string { return f.name + "-model" }
func (f *fakeEngine) Complete(_ context.Context, prompt string, _ calc.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newTestHandler(gemini *fakeEngine) http.Handler {
	engs := &llm.Engines{Default: "gemini", Gemini: gemini}
	return New(engs, nil, nil, 1<<20).Routes([]string{"*"})
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func body(img string, vars string) string {
	return `{"image": "` + img + `", "dict_of_vars": ` + vars + `}`
}

func TestCalculate_Success(t *testing.T) {
	eng := &fakeEngine{name: "gemini", reply: `[{'expr': '2 + 3 * 4', 'result': 14}]`}
	rec := post(t, newTestHandler(eng), body(canvasPNG, `{}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{
		"msg": "Data received successfully",
		"data": [{"expr": "2 + 3 * 4", "result": 14, "assign": false}],
		"image": "`+canvasPNG+`"
	}`, rec.Body.String())
}

func TestCalculate_VariablesReachPrompt(t *testing.T) {
	eng := &fakeEngine{name: "gemini", reply: `[{"expr": "x + 3", "result": 7}]`}
	rec := post(t, newTestHandler(eng), body(canvasPNG, `{"x": 4, "name": "\\alpha"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, eng.calls())
	assert.Contains(t, eng.prompts[0], `"x": 4`)
	assert.Contains(t, eng.prompts[0], `"name": "\\alpha"`)
}

func TestCalculate_AssignFlag(t *testing.T) {
	eng := &fakeEngine{name: "gemini", reply: `[{'expr':'x','result':2,'assign':true},{'expr':'y','result':5,'assign':'yes'}]`}
	rec := post(t, newTestHandler(eng), body(canvasPNG, `{}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var out CalculateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 2)
	assert.Equal(t, "x", out.Data[0].Expr)
	assert.True(t, out.Data[0].Assign)
	assert.Equal(t, "y", out.Data[1].Expr)
	assert.True(t, out.Data[1].Assign)
}

func TestCalculate_MissingInput(t *testing.T) {
	for name, b := range map[string]string{
		"no vars":   `{"image": "` + canvasPNG + `"}`,
		"null vars": `{"image": "` + canvasPNG + `", "dict_of_vars": null}`,
		"no image":  `{"dict_of_vars": {}}`,
		"empty":     `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			eng := &fakeEngine{name: "gemini", reply: "[]"}
			rec := post(t, newTestHandler(eng), b)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error": "Missing image or dict_of_vars"}`, rec.Body.String())
			assert.Zero(t, eng.calls())
		})
	}
}

func TestCalculate_BadRequests(t *testing.T) {
	eng := &fakeEngine{name: "gemini", reply: "[]"}
	h := newTestHandler(eng)

	rec := post(t, h, `{"image": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad json")

	rec = post(t, h, body("data:image/png;base64,@@@", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid image")

	rec = post(t, h, `{"image": "`+canvasPNG+`", "dict_of_vars": {}, "llm_name": "openai"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown llm_name")

	rec = post(t, h, `{"image": "`+strings.Repeat("A", 2<<20)+`", "dict_of_vars": {}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Zero(t, eng.calls())
}

func TestCalculate_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeEngine{name: "gemini"}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCalculate_UpstreamFailure(t *testing.T) {
	eng := &fakeEngine{name: "gemini", err: errors.New("rpc error: code = ResourceExhausted")}
	rec := post(t, newTestHandler(eng), body(canvasPNG, `{}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Error processing the request", out.Error)
	assert.Contains(t, out.Details, "ResourceExhausted")
	assert.Equal(t, 1, eng.calls())
}

func TestCalculate_DegradedParse(t *testing.T) {
	eng := &fakeEngine{name: "gemini", reply: "not valid json"}
	rec := post(t, newTestHandler(eng), body(canvasPNG, `{}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"msg": "Data received successfully",
		"data": [],
		"image": "`+canvasPNG+`",
		"degraded": true
	}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	engs := &llm.Engines{Default: "gemini", Gemini: &fakeEngine{name: "gemini"}}
	h := New(engs, nil, nil, 0).Routes([]string{"https://canvas.example"})

	req := httptest.NewRequest(http.MethodOptions, "/calculate", nil)
	req.Header.Set("Origin", "https://canvas.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://canvas.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/calculate", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	engs := &llm.Engines{Default: "gemini", Gemini: &fakeEngine{name: "gemini"}}
	hd := New(engs, nil, nil, 0)

	rec := httptest.NewRecorder()
	hd.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	hd.Ping = func(context.Context) error { return errors.New("connection refused") }
	rec = httptest.NewRecorder()
	hd.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRecoverTurnsPanicIntoJSON(t *testing.T) {
	hd := New(&llm.Engines{}, nil, nil, 0)
	h := hd.withRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calculate", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
