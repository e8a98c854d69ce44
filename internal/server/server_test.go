package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"patentwatch/internal/config"
)

type fakeAnalyzer struct {
	report string
	err    error
	gotTxt string
}

func (f *fakeAnalyzer) AnalyzePatent(_ context.Context, patentText string) (string, error) {
	f.gotTxt = patentText
	if f.err != nil {
		return "", f.err
	}
	return f.report, nil
}

func newTestServer(t *testing.T, analyzer Analyzer, extractFn func(string) (string, error)) (http.Handler, *Store) {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cfg := config.ServerConfig{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}
	if extractFn == nil {
		extractFn = func(string) (string, error) { return "提取的专利文本", nil }
	}
	return newServer(analyzer, store, cfg, extractFn), store
}

func uploadPDF(t *testing.T, handler http.Handler, filename string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(fw, "%PDF-1.4 fake content")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("upload failed: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("upload returned no token")
	}
	return body.Token
}

func postAnalyze(handler http.Handler, token string) *httptest.ResponseRecorder {
	form := strings.NewReader("token=" + token)
	req := httptest.NewRequest(http.MethodPost, "/analyze", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadAnalyzeReportFlow(t *testing.T) {
	analyzer := &fakeAnalyzer{report: "## 分析结果\n存在高风险线索\n\n"}
	handler, _ := newTestServer(t, analyzer, nil)

	token := uploadPDF(t, handler, "patent.pdf")

	rec := postAnalyze(handler, token)
	if rec.Code != 200 {
		t.Fatalf("analyze failed: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ReportID string `json:"report_id"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode analyze response: %v", err)
	}
	if body.Status != StatusDone {
		t.Fatalf("unexpected status %q", body.Status)
	}
	if !regexp.MustCompile(`^PW-PAT-\d{4}-\d{4}$`).MatchString(body.ReportID) {
		t.Fatalf("malformed report id %q", body.ReportID)
	}
	if analyzer.gotTxt != "提取的专利文本" {
		t.Fatalf("extracted text not passed to analyzer: %q", analyzer.gotTxt)
	}

	rep := httptest.NewRecorder()
	handler.ServeHTTP(rep, httptest.NewRequest(http.MethodGet, "/report/"+token, nil))
	if rep.Code != 200 {
		t.Fatalf("report failed: %d %s", rep.Code, rep.Body.String())
	}
	page := rep.Body.String()
	if !strings.Contains(page, body.ReportID) || !strings.Contains(page, "存在高风险线索") {
		t.Fatalf("report page incomplete:\n%s", page)
	}
}

func TestUploadURLSource(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "网页上的专利文本")
	}))
	defer remote.Close()

	analyzer := &fakeAnalyzer{report: "## 分析结果\nok\n\n"}
	handler, _ := newTestServer(t, analyzer, nil)

	form := strings.NewReader("url=" + remote.URL)
	req := httptest.NewRequest(http.MethodPost, "/upload", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("url upload failed: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)

	if rec := postAnalyze(handler, body.Token); rec.Code != 200 {
		t.Fatalf("analyze failed: %d %s", rec.Code, rec.Body.String())
	}
	if analyzer.gotTxt != "网页上的专利文本" {
		t.Fatalf("url fetch text not passed to analyzer: %q", analyzer.gotTxt)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	handler, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.docx")
	fmt.Fprint(fw, "content")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for non-pdf upload, got %d", rec.Code)
	}
}

func TestUploadRequiresFileOrURL(t *testing.T) {
	handler, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for empty submission, got %d", rec.Code)
	}
}

func TestAnalyzeExtractionFailure(t *testing.T) {
	handler, store := newTestServer(t, &fakeAnalyzer{}, func(string) (string, error) {
		return "", errors.New("corrupt pdf")
	})
	token := uploadPDF(t, handler, "broken.pdf")
	if rec := postAnalyze(handler, token); rec.Code != 422 {
		t.Fatalf("expected 422 for extraction failure, got %d", rec.Code)
	}
	a, err := store.Get(token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Status != StatusFailed || a.Error == "" {
		t.Fatalf("failure not recorded: %+v", a)
	}
}

func TestStatusLifecycle(t *testing.T) {
	handler, _ := newTestServer(t, &fakeAnalyzer{report: "## 分析结果\nok\n\n"}, nil)
	token := uploadPDF(t, handler, "patent.pdf")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+token, nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), StatusPending) {
		t.Fatalf("unexpected pending status: %d %s", rec.Code, rec.Body.String())
	}

	postAnalyze(handler, token)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+token, nil))
	if !strings.Contains(rec.Body.String(), StatusDone) || !strings.Contains(rec.Body.String(), "report_id") {
		t.Fatalf("unexpected done status: %s", rec.Body.String())
	}
}

func TestStatusUnknownToken(t *testing.T) {
	handler, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/no-such-token", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReportNotReady(t *testing.T) {
	handler, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	token := uploadPDF(t, handler, "patent.pdf")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/"+token, nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 before analysis, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"patent.pdf":          "patent.pdf",
		"../../etc/passwd":    "passwd",
		"专利 文件 (1).pdf":       "_______1_.pdf",
		"report v2_final.PDF": "report_v2_final.PDF",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
