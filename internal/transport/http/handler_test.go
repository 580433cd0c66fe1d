package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/segmenter/internal/artifact"
	"github.com/xiaot623/gogo/segmenter/internal/config"
	"github.com/xiaot623/gogo/segmenter/internal/domain"
	"github.com/xiaot623/gogo/segmenter/internal/hub"
	"github.com/xiaot623/gogo/segmenter/internal/invoker"
	"github.com/xiaot623/gogo/segmenter/internal/service"
	"github.com/xiaot623/gogo/segmenter/internal/testhelpers"
	"github.com/xiaot623/gogo/segmenter/internal/upload"
	"github.com/xiaot623/gogo/segmenter/policy"
)

type testServer struct {
	cfg    *config.Config
	echo   *echo.Echo
	hub    *hub.Hub
	worker *service.Worker
	runner *invoker.FakeRunner
	stop   context.CancelFunc
}

func newTestServer(t *testing.T, runner *invoker.FakeRunner) *testServer {
	t.Helper()

	cfg := testhelpers.NewTestConfig(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	h := hub.NewHub()
	worker := service.NewWorker(runner, cfg.WorkerQueueSize)
	svc := service.New(
		cfg,
		upload.NewStore(cfg.UploadsDir),
		artifact.NewStore(cfg.OutputDir, cfg.RunDirPrefix, cfg.ArtifactExtensions),
		worker,
		engine,
		h,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.RunWorker(ctx)
	go h.Run(ctx)

	return &testServer{
		cfg:    cfg,
		echo:   NewServer(cfg, svc, h),
		hub:    h,
		worker: worker,
		runner: runner,
		stop:   cancel,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploadfile/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

// writesResult simulates the tool writing <project>/exp3/result.jpg.
func writesResult(_ context.Context, call invoker.Call) error {
	var project string
	for i, arg := range call.Args {
		if arg == "--project" && i+1 < len(call.Args) {
			project = call.Args[i+1]
		}
	}
	dir := filepath.Join(project, "exp3")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "result.jpg"), []byte("segmented"), 0644)
}

func TestUploadThenQuery(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{OnRun: writesResult})

	rec := s.do(multipartRequest(t, "file_upload", "image.jpg", []byte("jpeg bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message": "Processing successful."}`, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(HeaderRunID), "run_"))
	assert.Equal(t, "http://192.168.1.238:8000/images/exp3/result.jpg", rec.Header().Get(HeaderFileURL))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/outputfile/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.OutputFileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	u, err := url.Parse(resp.File)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "192.168.1.238:8000", u.Host)
	assert.True(t, strings.HasSuffix(u.Path, "exp3/result.jpg"), u.Path)

	// The URL resolves through the static mount.
	rec = s.do(httptest.NewRequest(http.MethodGet, u.Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "segmented", rec.Body.String())
}

func TestUploadPersistsFileVerbatim(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{OnRun: writesResult})
	content := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}

	rec := s.do(multipartRequest(t, "file_upload", "x.png", content))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	runID := rec.Header().Get("X-Run-Id")
	got, err := os.ReadFile(filepath.Join(s.cfg.UploadsDir, runID, "x.png"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadAcceptsFileField(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{OnRun: writesResult})

	rec := s.do(multipartRequest(t, "file", "image.jpg", []byte("jpeg")))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{})

	req := httptest.NewRequest(http.MethodPost, "/uploadfile/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := s.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.runner.Calls())
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name       string
		runner     *invoker.FakeRunner
		filename   string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "no output directory",
			runner:     &invoker.FakeRunner{},
			filename:   "image.jpg",
			wantStatus: http.StatusInternalServerError,
			wantDetail: DetailProcessingFailed,
		},
		{
			name: "empty run directory",
			runner: &invoker.FakeRunner{OnRun: func(ctx context.Context, call invoker.Call) error {
				return os.MkdirAll(filepath.Join(call.Args[len(call.Args)-1], "exp"), 0755)
			}},
			filename:   "image.jpg",
			wantStatus: http.StatusInternalServerError,
			wantDetail: DetailNoProcessed,
		},
		{
			name:       "tool exits non-zero",
			runner:     &invoker.FakeRunner{ExitCode: 2},
			filename:   "image.jpg",
			wantStatus: http.StatusInternalServerError,
			wantDetail: "segmentation tool exited with code 2",
		},
		{
			name:       "unsupported type",
			runner:     &invoker.FakeRunner{},
			filename:   "payload.sh",
			wantStatus: http.StatusBadRequest,
			wantDetail: `upload rejected: unsupported file type ".sh"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.runner)

			rec := s.do(multipartRequest(t, "file_upload", tt.filename, []byte("bytes")))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp domain.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantDetail, resp.Detail)
		})
	}
}

func TestUploadTimeout(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{OnRun: func(ctx context.Context, _ invoker.Call) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	s.cfg.ToolTimeout = 50 * time.Millisecond

	rec := s.do(multipartRequest(t, "file_upload", "image.jpg", []byte("bytes")))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestUploadAfterWorkerStopped(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{OnRun: writesResult})
	s.stop()
	select {
	case <-s.worker.Stopped():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	rec := s.do(multipartRequest(t, "file_upload", "image.jpg", []byte("bytes")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderFileURL))
	assert.Empty(t, s.runner.Calls())
}

func TestOutputFileNotFound(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/outputfile/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail": "No output directories found."}`, rec.Body.String())

	testhelpers.MakeRun(t, s.cfg.OutputDir, "exp", time.Now())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/outputfile/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail": "No processed images found in the latest directory."}`, rec.Body.String())
}

func TestOutputFileIsIdempotent(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{})
	base := time.Now().Add(-time.Hour)
	testhelpers.WriteArtifact(t, s.cfg.OutputDir, "exp", "a.jpg", []byte("a"), base)
	testhelpers.MakeRun(t, s.cfg.OutputDir, "exp", base)
	testhelpers.WriteArtifact(t, s.cfg.OutputDir, "exp2", "b.jpg", []byte("b"), base.Add(time.Minute))
	testhelpers.MakeRun(t, s.cfg.OutputDir, "exp2", base.Add(time.Minute))

	first := s.do(httptest.NewRequest(http.MethodGet, "/outputfile", nil))
	second := s.do(httptest.NewRequest(http.MethodGet, "/outputfile/", nil))

	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"file": "http://192.168.1.238:8000/images/exp2/b.jpg"}`, first.Body.String())
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Empty(t, s.runner.Calls())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &invoker.FakeRunner{})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}
