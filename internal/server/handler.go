package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"readmegen/internal/github"
	"readmegen/internal/keyfiles"
	"readmegen/internal/llmclient"
	"readmegen/internal/pipeline"
	"readmegen/internal/publish"
	"readmegen/internal/scan"
	"readmegen/internal/source"
)

// DefaultMaxUploadBytes caps multipart and archive request bodies.
const DefaultMaxUploadBytes = 50 << 20

// GeneratorFactory builds the generator for one request. model may be empty.
type GeneratorFactory func(ctx context.Context, model string) (llmclient.Generator, error)

// Deps wires a Handler.
type Deps struct {
	Pipeline pipeline.Options
	// Source is the per-request template; ProjectName is replaced by the request's name.
	Source    source.Options
	Generator GeneratorFactory
	// Provider is reported by /v1/models.
	Provider llmclient.Provider
	// Sink receives READMEs for requests with publish=true; nil disables publishing.
	Sink publish.Sink
	// AllowLocal permits mode=local, which reads the server's filesystem.
	AllowLocal     bool
	MaxUploadBytes int64
	Logger         *log.Logger
}

type Handler struct {
	deps Deps
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Source.Logger == nil {
		d.Source.Logger = d.Logger
	}
	if d.Pipeline.Logger == nil {
		d.Pipeline.Logger = d.Logger
	}
	if d.Pipeline.Classifier == nil {
		cls, err := keyfiles.New(0)
		if err != nil {
			return nil, err
		}
		d.Pipeline.Classifier = cls
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if d.Provider == "" {
		d.Provider = llmclient.ProviderGroq
	}
	return &Handler{deps: d}, nil
}

// Routes returns the API mux wrapped in CORS.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/readme", h.HandleReadme)
	mux.HandleFunc("GET /v1/readme/ws", h.HandleReadmeWS)
	mux.HandleFunc("GET /v1/models", h.HandleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return CORS(mux)
}

type readmeRequest struct {
	Mode        string            `json:"mode"`
	URL         string            `json:"url,omitempty"`
	Token       string            `json:"token,omitempty"`
	Path        string            `json:"path,omitempty"`
	Files       map[string]string `json:"files,omitempty"`
	Archive     []byte            `json:"archive,omitempty"`
	ArchiveName string            `json:"archive_name,omitempty"`
	Name        string            `json:"name,omitempty"`
	Model       string            `json:"model,omitempty"`
	Publish     bool              `json:"publish,omitempty"`

	uploads []source.Upload
}

type readmeResponse struct {
	Name      string         `json:"name"`
	Readme    string         `json:"readme"`
	KeyFiles  keyfiles.Index `json:"key_files"`
	Structure string         `json:"structure"`
	Fallback  bool           `json:"fallback"`
	Error     string         `json:"error,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Truncated bool           `json:"truncated"`
	Location  string         `json:"location,omitempty"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// requestError is a malformed request; it maps to 400.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeError keeps *http.MaxBytesError visible so oversized bodies map to 413.
func decodeError(what string, err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return badRequest("%s: %v", what, err)
}

var errLocalDisabled = errors.New("local mode is disabled on this server")

func (h *Handler) source(req readmeRequest) (source.Source, error) {
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "github", "remote":
		return source.Remote{URL: req.URL, Token: req.Token}, nil
	case "local":
		if !h.deps.AllowLocal {
			return nil, errLocalDisabled
		}
		if strings.TrimSpace(req.Path) == "" {
			return nil, badRequest("path is required for mode local")
		}
		return source.Local{Path: req.Path}, nil
	case "files":
		if len(req.uploads) > 0 {
			return source.Files{Uploads: req.uploads}, nil
		}
		if len(req.Files) == 0 {
			return nil, badRequest("files is required for mode files")
		}
		return source.FilesFromMap(req.Files), nil
	case "archive", "zip":
		if len(req.Archive) == 0 {
			return nil, badRequest("archive is required for mode archive")
		}
		return source.Archive{FileName: req.ArchiveName, Data: req.Archive}, nil
	case "":
		return nil, badRequest("mode is required (github, local, files or archive)")
	default:
		return nil, badRequest("unsupported mode %q", req.Mode)
	}
}

// generate runs the whole pipeline for req and optionally publishes the result.
func (h *Handler) generate(ctx context.Context, req readmeRequest, obs pipeline.Observer) (*readmeResponse, error) {
	src, err := h.source(req)
	if err != nil {
		return nil, err
	}

	gen, genErr := h.generator(ctx, req.Model)
	p, err := pipeline.New(llmclient.NewWriter(gen, h.deps.Logger), h.deps.Pipeline)
	if err != nil {
		return nil, err
	}

	opts := h.deps.Source
	opts.ProjectName = strings.TrimSpace(req.Name)
	res, err := p.Run(ctx, src, pipeline.RunOptions{Source: opts, Observer: obs})
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		h.deps.Logger.Printf("warning: generator unavailable: %v", genErr)
	}

	out := &readmeResponse{
		Name:      res.Snapshot.Name(),
		Readme:    res.Readme,
		KeyFiles:  res.KeyFiles,
		Structure: res.Structure,
		Fallback:  res.Fallback,
		Warnings:  res.Snapshot.Warnings(),
		Truncated: res.Snapshot.Truncated(),
	}
	if res.GenerationErr != nil {
		out.Error = res.GenerationErr.Error()
	}
	if req.Publish {
		if h.deps.Sink == nil {
			out.Warnings = append(out.Warnings, "publishing is not configured")
		} else if loc, err := h.deps.Sink.Publish(ctx, out.Name, []byte(out.Readme)); err != nil {
			h.deps.Logger.Printf("warning: publish %q: %v", out.Name, err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("publish failed: %v", err))
		} else {
			out.Location = loc
		}
	}
	return out, nil
}

func (h *Handler) generator(ctx context.Context, model string) (llmclient.Generator, error) {
	if h.deps.Generator == nil {
		return nil, errors.New("no generator configured")
	}
	gen, err := h.deps.Generator(ctx, strings.TrimSpace(model))
	if err != nil {
		return llmclient.Unavailable(err), err
	}
	return gen, nil
}

// HandleReadme accepts a JSON body or a multipart form with an "archive" file
// or one or more "files" parts.
func (h *Handler) HandleReadme(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes)

	var (
		req readmeRequest
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = h.decodeMultipart(r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			err = decodeError("decode request", err)
		}
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.generate(r.Context(), req, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) decodeMultipart(r *http.Request) (readmeRequest, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return readmeRequest{}, decodeError("parse form", err)
	}
	req := readmeRequest{
		Mode:    r.FormValue("mode"),
		URL:     r.FormValue("url"),
		Token:   r.FormValue("token"),
		Name:    r.FormValue("name"),
		Model:   r.FormValue("model"),
		Publish: r.FormValue("publish") == "true",
	}

	if fh := firstFile(r.MultipartForm, "archive"); fh != nil {
		data, err := readPart(fh)
		if err != nil {
			return readmeRequest{}, err
		}
		req.Mode = "archive"
		req.Archive = data
		req.ArchiveName = fh.Filename
		return req, nil
	}
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			data, err := readPart(fh)
			if err != nil {
				return readmeRequest{}, err
			}
			req.uploads = append(req.uploads, source.Upload{Name: fh.Filename, Content: string(data)})
		}
	}
	if len(req.uploads) > 0 {
		req.Mode = "files"
	}
	return req, nil
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest("open %s: %v", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest("read %s: %v", fh.Filename, err)
	}
	return data, nil
}

type modelsResponse struct {
	Provider  llmclient.Provider              `json:"provider"`
	Default   string                          `json:"default"`
	Providers map[llmclient.Provider][]string `json:"providers"`
}

func (h *Handler) HandleModels(w http.ResponseWriter, _ *http.Request) {
	out := modelsResponse{
		Provider:  h.deps.Provider,
		Default:   llmclient.DefaultModel(h.deps.Provider),
		Providers: map[llmclient.Provider][]string{},
	}
	for _, p := range llmclient.Providers() {
		out.Providers[p] = llmclient.Models(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// classify maps a run error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var (
		invalid *github.InvalidURLError
		reqErr  *requestError
		collect *pipeline.CollectError
		failure *pipeline.Error
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid_url"
	case errors.Is(err, errLocalDisabled):
		return http.StatusForbidden, "local_disabled"
	case errors.As(err, &tooBig), errors.Is(err, scan.ErrArchiveTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	case errors.As(err, &collect):
		return http.StatusUnprocessableEntity, "collect_failed"
	case errors.As(err, &failure):
		return http.StatusInternalServerError, "pipeline_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.deps.Logger.Printf("readme request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
