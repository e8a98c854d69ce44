package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"patentwatch/internal/config"
	"patentwatch/internal/extract"
	"patentwatch/internal/infringement"
	"patentwatch/internal/logger"
)

// Analyzer runs the analysis pipeline over extracted patent text.
type Analyzer interface {
	AnalyzePatent(ctx context.Context, patentText string) (string, error)
}

type Server struct {
	analyzer       Analyzer
	store          *Store
	uploadDir      string
	maxUploadBytes int64
	fetchClient    *http.Client
	extractText    func(path string) (string, error)
}

// NewServer builds the HTTP front end: upload form, analysis trigger, and
// report views.
func NewServer(analyzer Analyzer, store *Store, cfg config.ServerConfig) http.Handler {
	return newServer(analyzer, store, cfg, extract.PDFText)
}

func newServer(analyzer Analyzer, store *Store, cfg config.ServerConfig, extractText func(string) (string, error)) http.Handler {
	s := &Server{
		analyzer:       analyzer,
		store:          store,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		fetchClient:    &http.Client{Timeout: 10 * time.Second},
		extractText:    extractText,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/report/", s.handleReport)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	renderUploadPage(w)
}

// handleUpload accepts either a PDF file or a patent page URL and registers a
// pending analysis. The client triggers the actual run via /analyze.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	multipart := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
	if multipart {
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			writeError(w, 400, "invalid multipart form")
			return
		}
	} else if err := r.ParseForm(); err != nil {
		writeError(w, 400, "invalid form")
		return
	}

	if multipart {
		if ok := s.acceptFileUpload(w, r); ok {
			return
		}
	}

	if url := strings.TrimSpace(r.FormValue("url")); url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			writeError(w, 400, "url must be http or https")
			return
		}
		a, err := s.store.Create("url", url)
		if err != nil {
			logger.Log.Errorf("创建分析记录失败: %v", err)
			writeError(w, 500, "failed to create analysis")
			return
		}
		writeJSON(w, 200, map[string]any{"token": a.Token, "status": a.Status})
		return
	}

	writeError(w, 400, "either a file or a url is required")
}

// acceptFileUpload saves an uploaded PDF and registers the analysis. It
// reports whether the request carried a file (the response is written either
// way when it did).
func (s *Server) acceptFileUpload(w http.ResponseWriter, r *http.Request) bool {
	file, header, err := r.FormFile("file")
	if err != nil {
		return false
	}
	defer file.Close()

	if header.Size > s.maxUploadBytes {
		writeError(w, 400, "uploaded file too large")
		return true
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, 400, "only PDF uploads are supported")
		return true
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, 500, "failed to prepare upload directory")
		return true
	}
	dst := filepath.Join(s.uploadDir, sanitizeFilename(header.Filename))
	out, err := os.Create(dst)
	if err != nil {
		writeError(w, 500, "failed to save uploaded file")
		return true
	}
	if _, err := io.Copy(out, io.LimitReader(file, s.maxUploadBytes)); err != nil {
		out.Close()
		writeError(w, 500, "failed to write uploaded file")
		return true
	}
	out.Close()

	a, err := s.store.Create("file", dst)
	if err != nil {
		logger.Log.Errorf("创建分析记录失败: %v", err)
		writeError(w, 500, "failed to create analysis")
		return true
	}
	writeJSON(w, 200, map[string]any{"token": a.Token, "status": a.Status})
	return true
}

// handleAnalyze runs the pipeline for a registered analysis. The run is
// synchronous; the response carries the finished report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimSpace(r.FormValue("token"))
	if token == "" {
		writeError(w, 400, "token is required")
		return
	}
	a, err := s.store.Get(token)
	if err != nil {
		writeError(w, 404, "analysis not found")
		return
	}
	if a.Status == StatusDone {
		writeJSON(w, 200, map[string]any{"token": a.Token, "report_id": a.ReportID, "status": a.Status})
		return
	}

	patentText, err := s.loadPatentText(r.Context(), a)
	if err != nil {
		logger.Log.Errorf("无法提取专利文本 token=%s: %v", token, err)
		_ = s.store.SetFailed(token, err.Error())
		writeError(w, 422, fmt.Sprintf("无法提取有效文本内容: %v", err))
		return
	}

	_ = s.store.MarkRunning(token)
	report, err := s.analyzer.AnalyzePatent(r.Context(), patentText)
	if err != nil {
		logger.Log.Errorf("分析过程中出错 token=%s: %v", token, err)
		_ = s.store.SetFailed(token, err.Error())
		writeError(w, 500, "分析过程中出错")
		return
	}

	html, err := infringement.RenderHTML(report)
	if err != nil {
		logger.Log.Errorf("渲染报告失败 token=%s: %v", token, err)
		_ = s.store.SetFailed(token, err.Error())
		writeError(w, 500, "failed to render report")
		return
	}

	reportID := newReportID()
	if err := s.store.SetResult(token, reportID, report, html); err != nil {
		logger.Log.Errorf("保存报告失败 token=%s: %v", token, err)
		writeError(w, 500, "failed to store report")
		return
	}
	writeJSON(w, 200, map[string]any{"token": token, "report_id": reportID, "status": StatusDone})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/status/"), "/")
	if token == "" {
		writeError(w, 400, "token is required")
		return
	}
	a, err := s.store.Get(token)
	if err != nil {
		writeError(w, 404, "analysis not found")
		return
	}
	payload := map[string]any{"token": a.Token, "status": a.Status}
	if a.Status == StatusDone {
		payload["report_id"] = a.ReportID
	}
	if a.Status == StatusFailed {
		payload["error"] = a.Error
	}
	writeJSON(w, 200, payload)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/report/"), "/")
	if token == "" {
		writeError(w, 400, "token is required")
		return
	}
	a, err := s.store.Get(token)
	if err != nil {
		writeError(w, 404, "analysis not found")
		return
	}
	if a.Status != StatusDone {
		writeError(w, 404, "report not ready")
		return
	}
	renderReportPage(w, a)
}

// loadPatentText resolves the analysis source into raw patent text: PDF
// extraction for uploads, a plain GET for URLs.
func (s *Server) loadPatentText(ctx context.Context, a *Analysis) (string, error) {
	switch a.SourceType {
	case "file":
		return s.extractText(a.Source)
	case "url":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Source, nil)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		resp, err := s.fetchClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("无法下载网页内容: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("无法下载网页内容: status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxUploadBytes))
		if err != nil {
			return "", fmt.Errorf("read page: %w", err)
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", fmt.Errorf("page is empty")
		}
		return text, nil
	default:
		return "", fmt.Errorf("unknown source type %q", a.SourceType)
	}
}

func newReportID() string {
	return fmt.Sprintf("PW-PAT-%d-%04d", time.Now().Year(), 1000+rand.Intn(9000))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
