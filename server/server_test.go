package server

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/tutorder"
	"github.com/poiesic/tutorder/ai/mock"
	"github.com/poiesic/tutorder/config"
	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/geo"
	"github.com/poiesic/tutorder/jobs"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/tabular"
)

type harness struct {
	srv    *httptest.Server
	ws     *tutorder.Workspace
	runner *jobs.Runner
}

func setup(t *testing.T, opts ...tutorder.WorkspaceOption) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	cfg.Artifacts.Dir = filepath.Join(t.TempDir(), "exports")
	cfg.Server.UploadDir = filepath.Join(t.TempDir(), "uploads")

	ws, err := tutorder.OpenWorkspace(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	runner, err := jobs.NewRunner(jobs.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(runner.Release)

	s, err := New(ws, runner)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, ws: ws, runner: runner}
}

func withMockProvider() tutorder.WorkspaceOption {
	return tutorder.WithProvider(mock.NewMockProvider())
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// awaitJob decodes a 202 response and waits for the queued job.
func (h *harness) awaitJob(t *testing.T, resp *http.Response) jobs.Job {
	t.Helper()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body struct{ Job jobs.Job }
	decode(t, resp, &body)
	assert.Equal(t, "/jobs/"+body.Job.ID, resp.Header.Get("Location"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := h.runner.Wait(ctx, body.Job.ID)
	require.NoError(t, err)
	return job
}

func TestSubmitOrders_Text(t *testing.T) {
	h := setup(t, withMockProvider())

	resp, err := http.PostForm(h.srv.URL+"/orders", url.Values{"order_text": {"甲单\n乙单\n甲单"}})
	require.NoError(t, err)
	job := h.awaitJob(t, resp)
	assert.Equal(t, jobs.StatusSucceeded, job.Status, job.Error)
	assert.Contains(t, job.Summary, "removed 1 duplicates")

	resp, err = http.Get(h.srv.URL + "/batches")
	require.NoError(t, err)
	var body struct {
		Batches []struct {
			BatchID string `json:"batch_id"`
			Count   int    `json:"count"`
		}
	}
	decode(t, resp, &body)
	require.Len(t, body.Batches, 1)
	assert.Equal(t, 2, body.Batches[0].Count)
}

func TestSubmitOrders_Rejections(t *testing.T) {
	h := setup(t, withMockProvider())

	resp, err := http.PostForm(h.srv.URL+"/orders", url.Values{"order_text": {"   "}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType := multipartBody(t, nil, "file", "orders.pdf", []byte("%PDF"))
	resp, err = http.Post(h.srv.URL+"/orders", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitOrders_WithoutProvider(t *testing.T) {
	h := setup(t)

	resp, err := http.PostForm(h.srv.URL+"/orders", url.Values{"order_text": {"x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSubmitOrders_Docx(t *testing.T) {
	h := setup(t, withMockProvider())

	var doc bytes.Buffer
	zw := zip.NewWriter(&doc)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>第一单</w:t></w:r></w:p><w:p><w:r><w:t>第二单</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	body, contentType := multipartBody(t, nil, "file", "orders.docx", doc.Bytes())
	resp, err := http.Post(h.srv.URL+"/orders", contentType, body)
	require.NoError(t, err)
	job := h.awaitJob(t, resp)
	require.Equal(t, jobs.StatusSucceeded, job.Status, job.Error)

	all, err := h.ws.Orders().QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "第一单", all[0].OriginalText)
}

func TestEnrichAndDownload(t *testing.T) {
	h := setup(t, withMockProvider())
	require.NoError(t, h.ws.Orders().Insert(context.Background(),
		&core.OrderRecord{BatchID: "b1", OriginalText: "海淀区 数学"},
		&core.OrderRecord{BatchID: "b2", OriginalText: "朝阳区 英语"}))

	resp, err := http.PostForm(h.srv.URL+"/enrich", url.Values{"batch_id": {"b1"}})
	require.NoError(t, err)
	job := h.awaitJob(t, resp)
	require.Equal(t, jobs.StatusSucceeded, job.Status, job.Error)
	require.NotEmpty(t, job.Artifact)
	assert.Equal(t, 100.0, job.Percent)

	resp, err = http.Get(h.srv.URL + "/artifacts/" + job.Artifact)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), job.Artifact)

	table, err := tabular.ReadXLSX(resp.Body)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "海淀区 数学", table.Value(0, core.FieldOriginalText))

	resp, err = http.Get(h.srv.URL + "/artifacts")
	require.NoError(t, err)
	var list struct{ Artifacts []struct{ Name string } }
	decode(t, resp, &list)
	require.Len(t, list.Artifacts, 1)
	assert.Equal(t, job.Artifact, list.Artifacts[0].Name)
}

func TestArtifact_Errors(t *testing.T) {
	h := setup(t)

	resp, err := http.Get(h.srv.URL + "/artifacts/missing.xlsx")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/artifacts/..")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestDedup(t *testing.T) {
	h := setup(t)
	require.NoError(t, h.ws.Orders().Insert(context.Background(),
		&core.OrderRecord{BatchID: "b", OriginalText: "A"},
		&core.OrderRecord{BatchID: "b", OriginalText: "A"}))

	resp, err := http.Post(h.srv.URL+"/dedup", "", nil)
	require.NoError(t, err)
	job := h.awaitJob(t, resp)
	assert.Equal(t, "removed 1 duplicates", job.Summary)
}

func TestCommute(t *testing.T) {
	geocoder := geo.GeocoderFunc(func(ctx context.Context, address string) (geo.Coordinates, error) {
		if address == "北京站" || address == "海淀区" {
			return geo.Coordinates{Lat: 39.9, Lng: 116.4}, nil
		}
		return geo.Coordinates{}, geo.ErrNoResult
	})
	router := geo.RouterFunc(func(ctx context.Context, o, d geo.Coordinates, m geo.Mode) (time.Duration, error) {
		return 5 * time.Minute, nil
	})
	h := setup(t, tutorder.WithGeo(geocoder, router))

	table := tabular.New(core.ExportColumns()...)
	table.Append([]string{"海淀区", "数学", "", "", "", "", "", "原文"})
	var csvData bytes.Buffer
	require.NoError(t, tabular.WriteCSV(&csvData, table))

	body, contentType := multipartBody(t, map[string]string{"target": "北京站"}, "file", "orders.csv", csvData.Bytes())
	resp, err := http.Post(h.srv.URL+"/commute", contentType, body)
	require.NoError(t, err)
	job := h.awaitJob(t, resp)
	require.Equal(t, jobs.StatusSucceeded, job.Status, job.Error)
	assert.True(t, strings.HasPrefix(job.Artifact, "commute_times_"))

	body, contentType = multipartBody(t, nil, "file", "orders.csv", csvData.Bytes())
	resp, err = http.Post(h.srv.URL+"/commute", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "target is required")
}

func TestCommute_NotConfigured(t *testing.T) {
	h := setup(t)

	body, contentType := multipartBody(t, map[string]string{"target": "x"}, "file", "orders.csv", []byte("a\n"))
	resp, err := http.Post(h.srv.URL+"/commute", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestJobs(t *testing.T) {
	h := setup(t)

	resp, err := http.Get(h.srv.URL + "/jobs/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	release := make(chan struct{})
	job, err := h.runner.Submit("dedup", func(ctx context.Context, sink progress.Sink) (jobs.Outcome, error) {
		<-release
		sink.Report(50, "halfway")
		sink.Report(100, "done")
		return jobs.Outcome{Summary: "ok"}, nil
	})
	require.NoError(t, err)

	resp, err = http.Get(h.srv.URL + "/jobs/" + job.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	close(release)

	var names []string
	var last string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			last = data
		}
	}
	assert.Equal(t, []string{"progress", "progress", "status"}, names)
	var final jobs.Job
	require.NoError(t, json.Unmarshal([]byte(last), &final))
	assert.Equal(t, jobs.StatusSucceeded, final.Status)

	resp, err = http.Get(h.srv.URL + "/jobs/" + job.ID)
	require.NoError(t, err)
	var body struct{ Job jobs.Job }
	decode(t, resp, &body)
	assert.Equal(t, "ok", body.Job.Summary)

	resp, err = http.Get(h.srv.URL + "/jobs")
	require.NoError(t, err)
	var list struct{ Jobs []jobs.Job }
	decode(t, resp, &list)
	assert.Len(t, list.Jobs, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	h := setup(t)

	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tutorder_jobs_running")
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(fileField, fileName)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
