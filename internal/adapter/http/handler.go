package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/transq/internal/adapter/http/validation"
	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/service"
)

// Pipeline is the part of the job pipeline exposed over HTTP.
type Pipeline interface {
	CancelPending(name string) (bool, error)
	DeleteCompleted(ctx context.Context, name string) error
	OpenCompleted(ctx context.Context, name string) (domain.Download, error)
	Pause(ctx context.Context) (domain.ControlResult, error)
	Resume(ctx context.Context) (domain.ControlResult, error)
	Terminate(ctx context.Context) (domain.ControlResult, error)
	Status() domain.Status
}

// Uploader takes ownership of an uploaded file and queues it.
type Uploader interface {
	Accept(tempPath, originalName, additionalArgs string) (domain.Job, error)
}

// Fetcher downloads a file from a URL in the background and queues it.
type Fetcher interface {
	Fetch(rawURL, filename, additionalArgs string) error
}

type Handlers struct {
	pipeline  Pipeline
	uploader  Uploader
	fetcher   Fetcher
	tempDir   string
	maxSizeMB int
}

func NewHandlers(pipeline Pipeline, uploader Uploader, fetcher Fetcher, tempDir string, maxSizeMB int) *Handlers {
	return &Handlers{
		pipeline:  pipeline,
		uploader:  uploader,
		fetcher:   fetcher,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Upload accepts a single multipart file and queues it for conversion.
func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := int64(h.maxSizeMB) * 1024 * 1024
		if r.ContentLength > limit {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", h.maxSizeMB))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", h.maxSizeMB))
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll() //nolint:errcheck

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file")
			return
		}
		defer file.Close() //nolint:errcheck

		name, err := validation.CleanUploadName(header.Filename)
		if err != nil {
			logger.Warn.Printf("rejected upload %s: %v", logger.SanitizeForLog(header.Filename), err)
			writeError(w, http.StatusBadRequest, "only .mp4, .avi and .mkv files are accepted")
			return
		}

		tmpPath, err := h.spool(file)
		if errors.Is(err, validation.ErrDisallowedFileType) {
			logger.Warn.Printf("rejected upload %s: content is not a supported video", logger.SanitizeForLog(name))
			writeError(w, http.StatusUnsupportedMediaType, "file content is not a supported video")
			return
		}
		if err != nil {
			logger.Error.Printf("upload %s: %v", logger.SanitizeForLog(name), err)
			writeError(w, http.StatusInternalServerError, uploadFailure(err))
			return
		}

		job, err := h.uploader.Accept(tmpPath, name, r.FormValue("additional_args"))
		switch {
		case errors.Is(err, domain.ErrDuplicateJob):
			writeError(w, http.StatusConflict, fmt.Sprintf("%s is already queued", name))
		case errors.Is(err, domain.ErrInvalidJob):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, uploadFailure(err))
		default:
			writeJSON(w, http.StatusAccepted, job)
		}
	}
}

// spool copies the upload next to the upload directory after checking its
// magic bytes, so the final move is a rename.
func (h *Handlers) spool(src io.ReadSeeker) (string, error) {
	_, allowed, err := validation.ValidateMagicBytes(src)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", validation.ErrDisallowedFileType
	}

	if err := os.MkdirAll(h.tempDir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(h.tempDir, ".incoming-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func uploadFailure(err error) string {
	switch {
	case strings.Contains(err.Error(), "no space left"):
		return "upload failed: disk full"
	case strings.Contains(err.Error(), "permission denied"):
		return "upload failed: permission error"
	default:
		return "upload failed"
	}
}

type fetchRequest struct {
	URL            string `json:"url"`
	Filename       string `json:"filename"`
	AdditionalArgs string `json:"additional_args"`
}

// FetchURL queues a file the server downloads itself. The job only appears
// once the download has finished, so the response is 202 without a job.
func (h *Handlers) FetchURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		var req fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		filename := req.Filename
		if filename == "" {
			filename = service.NameFromURL(req.URL)
		}
		name, err := validation.CleanUploadName(filename)
		if err != nil {
			logger.Warn.Printf("rejected fetch %s: %v", logger.SanitizeForLog(filename), err)
			writeError(w, http.StatusBadRequest, "only .mp4, .avi and .mkv files are accepted")
			return
		}

		err = h.fetcher.Fetch(req.URL, name, req.AdditionalArgs)
		switch {
		case errors.Is(err, domain.ErrInvalidJob):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			logger.Error.Printf("fetch %s: %v", logger.SanitizeForLog(name), err)
			writeError(w, http.StatusServiceUnavailable, "cannot start download")
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{"filename": name, "message": "download started"})
		}
	}
}

// Download sends a completed output, or redirects to a presigned URL when
// the content store hands one out.
func (h *Handlers) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		dl, err := h.pipeline.OpenCompleted(r.Context(), name)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no completed output with that name")
			return
		case err != nil:
			logger.Error.Printf("download %s: %v", logger.SanitizeForLog(name), err)
			writeError(w, http.StatusInternalServerError, "download failed")
			return
		}

		if dl.URL != "" {
			http.Redirect(w, r, dl.URL, http.StatusFound)
			return
		}
		defer dl.Body.Close() //nolint:errcheck

		// large outputs outlast the server write timeout
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))

		if rs, ok := dl.Body.(io.ReadSeeker); ok {
			http.ServeContent(w, r, dl.Name, dl.Object.Modified, rs)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if dl.Object.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(dl.Object.Size, 10))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, dl.Body); err != nil {
			logger.Debug.Printf("download %s interrupted: %v", logger.SanitizeForLog(name), err)
		}
	}
}

// CancelJob removes a job that has not started yet.
func (h *Handlers) CancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		removed, err := h.pipeline.CancelPending(name)
		if err != nil {
			logger.Error.Printf("cancel %s: %v", logger.SanitizeForLog(name), err)
			writeError(w, http.StatusInternalServerError, "cancel failed")
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "no pending job with that name")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"removed": name})
	}
}

func (h *Handlers) DeleteCompleted() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		err := h.pipeline.DeleteCompleted(r.Context(), name)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no completed output with that name")
		case err != nil:
			logger.Error.Printf("delete completed %s: %v", logger.SanitizeForLog(name), err)
			writeError(w, http.StatusInternalServerError, "delete failed")
		default:
			writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
		}
	}
}

// Control wraps pause, resume and terminate. A request with no job running is
// a client error; a tree the controller could not signal at all is a server
// error.
func (h *Handlers) Control(action string, op func(context.Context) (domain.ControlResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := op(r.Context())
		if err != nil {
			logger.Error.Printf("%s: %v", action, err)
			writeError(w, http.StatusInternalServerError, action+" failed")
			return
		}

		status := http.StatusOK
		switch res.Outcome {
		case domain.OutcomeNoActiveJob:
			status = http.StatusBadRequest
		case domain.OutcomeFailed:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, res)
	}
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.pipeline.Status())
	}
}
