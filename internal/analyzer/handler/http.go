package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"cyber-monitor/backend/internal/analyzer"
	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/platform/httpjson"
)

// DefaultMaxCaptureBytes caps an uploaded capture file.
const DefaultMaxCaptureBytes = 100 << 20

const multipartMemory = 8 << 20

// Analyzer is the engine capability used by the handler.
type Analyzer interface {
	AnalyzeCapture(ctx context.Context, path string) (*analyzer.CaptureReport, error)
	ScanNetwork(ctx context.Context) (*analyzer.NetworkScan, error)
	ScanPorts(ctx context.Context, target string) (*analyzer.PortScan, error)
}

// FileStore holds uploaded captures for the duration of one analysis.
type FileStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error)
	Remove(path string) error
}

type Handler struct {
	analyzer        Analyzer
	files           FileStore
	maxCaptureBytes int64
}

// NewHandler returns an analysis handler. maxCaptureBytes <= 0 means DefaultMaxCaptureBytes.
func NewHandler(a Analyzer, files FileStore, maxCaptureBytes int64) *Handler {
	if maxCaptureBytes <= 0 {
		maxCaptureBytes = DefaultMaxCaptureBytes
	}
	return &Handler{analyzer: a, files: files, maxCaptureBytes: maxCaptureBytes}
}

// Routes mounts POST /packet, POST /network and POST /ports.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/packet", h.packet)
	r.Post("/network", h.network)
	r.Post("/ports", h.ports)
}

func (h *Handler) packet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxCaptureBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpjson.Error(w, r, err)
			return
		}
		httpjson.Error(w, r, domain.Invalid("file", "no file uploaded"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpjson.Error(w, r, domain.Invalid("file", "no file uploaded"))
		return
	}
	defer f.Close()
	if err := analyzer.ValidateCaptureName(hdr.Filename); err != nil {
		httpjson.Error(w, r, err)
		return
	}

	path, _, err := h.files.Save(r.Context(), hdr.Filename, f)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	defer func() {
		if err := h.files.Remove(path); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("path", path).Msg("capture file not removed")
		}
	}()

	report, err := h.analyzer.AnalyzeCapture(r.Context(), path)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, report)
}

func (h *Handler) network(w http.ResponseWriter, r *http.Request) {
	scan, err := h.analyzer.ScanNetwork(r.Context())
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, scan)
}

type portsRequest struct {
	Target string `json:"target"`
}

func (h *Handler) ports(w http.ResponseWriter, r *http.Request) {
	var req portsRequest
	if err := httpjson.Decode(w, r, &req, 0); err != nil {
		httpjson.Error(w, r, err)
		return
	}
	scan, err := h.analyzer.ScanPorts(r.Context(), req.Target)
	if err != nil {
		httpjson.Error(w, r, err)
		return
	}
	httpjson.OK(w, scan)
}
