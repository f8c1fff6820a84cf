package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain runs before all tests and loads .env if available
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	os.Exit(m.Run())
}

const orderJSON = `{
	"_id": {"$oid": "o1"},
	"TrackingNumber": "TRK-77",
	"OrderStatus": "processing",
	"companyName": "Acme",
	"candidates": [{
		"_id": "c1",
		"fullName": "Jane Roe",
		"email": "jane@example.com",
		"services": [{"_id": "s1"}, {"_id": "s2", "title": "Education"}],
		"serviceResults": [{"serviceId": "s2", "resultNotes": "clear", "resultStatus": "Pass"}]
	}]
}`

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{G: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// isolate clears the environment the config layer reads.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{"BACKEND_URL", "DATABASE_URL", "BACKEND_JWT_SECRET", "REPORT_LOGO_PATH", "SUMMARY_LABEL", "UPLOAD_CONCURRENCY", "MAX_UPLOAD_BYTES", "LOG_FORMAT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	nowFunc = func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = time.Now })
}

// workspace writes an order file and a session file that attaches scan.png to s1.
func workspace(t *testing.T, session string) (dir, sessionPath, orderPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.png"), testPNG(t), 0644))
	orderPath = filepath.Join(dir, "order.json")
	require.NoError(t, os.WriteFile(orderPath, []byte(orderJSON), 0644))
	sessionPath = filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(sessionPath, []byte(session), 0644))
	return dir, sessionPath, orderPath
}

const defaultSession = `{
	"order_id": "o1",
	"candidate_id": "c1",
	"services": [{"service_id": "s1", "file": "scan.png", "status": "fail", "note": "record found"}]
}`

// execute runs the root command. Flag values persist between runs, so tests
// pass every flag they rely on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--log-format", "console", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestValidateSessionCommand(t *testing.T) {
	isolate(t)
	_, sessionPath, _ := workspace(t, defaultSession)

	output, err := execute(t, "validate-session", sessionPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Validation passed")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"order_id": "o1", "extra": 1}`), 0644))
	output, err = execute(t, "validate-session", bad)
	assert.Error(t, err)
	assert.Contains(t, output, "Validation failed")
}

func TestValidateCommand(t *testing.T) {
	isolate(t)
	_, _, orderPath := workspace(t, defaultSession)
	schemaPath := filepath.Join("..", "..", "schemas", "order.schema.json")

	output, err := execute(t, "validate", "--schema", schemaPath, "--json", orderPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Validation passed")
}

func TestCoverCommand(t *testing.T) {
	isolate(t)
	dir, sessionPath, orderPath := workspace(t, defaultSession)
	out := filepath.Join(dir, "cover.png")

	output, err := execute(t, "cover", "--session", sessionPath, "--order", orderPath, "--catalog", "", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "2 services")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestComposeCommand(t *testing.T) {
	isolate(t)
	dir, sessionPath, orderPath := workspace(t, defaultSession)
	catalogPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`{"s1": {"title": "Criminal"}}`), 0644))
	out := filepath.Join(dir, "report.pdf")

	output, err := execute(t, "compose", "--session", sessionPath, "--order", orderPath, "--catalog", catalogPath, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "(2 pages)")
	assert.Contains(t, output, "Skipped: Education", "s2 has a persisted result without a file")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestComposeCommand_OrderMismatch(t *testing.T) {
	isolate(t)
	dir, sessionPath, _ := workspace(t, `{"order_id": "o2", "candidate_id": "c1"}`)
	orderPath := filepath.Join(dir, "order.json")

	_, err := execute(t, "compose", "--session", sessionPath, "--order", orderPath, "--catalog", "", "--out", filepath.Join(dir, "r.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order file holds order o1")
}

func TestComposeCommand_RequiresOrderSource(t *testing.T) {
	isolate(t)
	dir, sessionPath, _ := workspace(t, defaultSession)

	_, err := execute(t, "compose", "--session", sessionPath, "--order", "", "--catalog", "", "--out", filepath.Join(dir, "r.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --order or a backend URL is required")
}

func TestSubmitCommand_RequiresBackend(t *testing.T) {
	isolate(t)
	_, sessionPath, _ := workspace(t, defaultSession)

	_, err := execute(t, "submit", "--session", sessionPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend URL is required")
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "ok", "data": data})
}

func TestSubmitCommand(t *testing.T) {
	isolate(t)

	var (
		mu    sync.Mutex
		paths []string
	)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/orders/o1":
			writeEnvelope(w, json.RawMessage(orderJSON))
		case r.Method == http.MethodGet && r.URL.Path == "/services":
			writeEnvelope(w, []map[string]string{{"_id": "s1", "title": "Criminal"}, {"_id": "s2", "title": "Education"}})
		case r.Method == http.MethodPost:
			assert.NoError(t, r.ParseMultipartForm(10<<20))
			writeEnvelope(w, nil)
		default:
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()
	t.Setenv("BACKEND_URL", backend.URL)

	_, sessionPath, _ := workspace(t, `{
		"order_id": "o1",
		"candidate_id": "c1",
		"with_summary": true,
		"summary_notes": "one record",
		"services": [{"service_id": "s1", "file": "scan.png", "status": "fail"}]
	}`)

	output, err := execute(t, "submit", "--session", sessionPath)
	require.NoError(t, err, output)
	assert.Contains(t, output, "State: success")
	assert.Contains(t, output, "✓ Criminal")
	assert.Contains(t, output, "Report uploaded: Summary_Jane Roe.pdf")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"GET /orders/o1",
		"GET /services",
		"POST /candidates/c1/services/s1/result",
		"POST /candidates/c1/summary",
	}, paths)
}

func TestHashKeyCommand(t *testing.T) {
	isolate(t)
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("API_KEY_PEPPER", "")

	output, err := execute(t, "hash-key", "--key", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(output), "$2a$04$"), output)
}
