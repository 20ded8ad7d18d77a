package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/f5ttsapi/internal/synthesis"
)

const (
	outputFilename = "generated_audio.wav"

	// Uploads above this size spill from memory to disk while parsing.
	multipartMemory = 8 << 20
)

// Synthesizer is the part of synthesis.Service the handler depends on.
type Synthesizer interface {
	Generate(ctx context.Context, req synthesis.Request) (*synthesis.Result, error)
	Release(result *synthesis.Result)
}

type TTSHandler struct {
	svc            Synthesizer
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewTTSHandler(svc Synthesizer, maxUploadBytes int64, logger *slog.Logger) *TTSHandler {
	return &TTSHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

type formError struct{ msg string }

func (e *formError) Error() string { return e.msg }

// Generate handles POST /tts/generate.
func (h *TTSHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req, upload, err := parseGenerateForm(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if upload != nil {
		defer upload.Close()
	}

	result, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("generate failed", "error", err)
		}
		writeDetail(w, status, err.Error())
		return
	}
	defer h.svc.Release(result)

	f, err := os.Open(result.Path)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputFilename))
	http.ServeContent(w, r, outputFilename, fi.ModTime(), f)
}

func parseGenerateForm(r *http.Request) (synthesis.Request, multipart.File, error) {
	req := synthesis.Request{
		ReferenceURL:  strings.TrimSpace(r.PostFormValue("reference_audio_url")),
		ReferenceText: r.PostFormValue("reference_text"),
		Text:          r.PostFormValue("text"),
		Speed:         1.0,
	}

	if req.Text == "" {
		return req, nil, &formError{"text is required"}
	}

	if raw := r.PostFormValue("remove_silence"); raw != "" {
		v, err := parseFormBool(raw)
		if err != nil {
			return req, nil, err
		}
		req.RemoveSilence = v
	}

	if raw := strings.TrimSpace(r.PostFormValue("speed")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return req, nil, &formError{fmt.Sprintf("speed must be a number, got %q", raw)}
		}
		req.Speed = v
	}

	var upload multipart.File
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["reference_audio"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				return req, nil, &formError{"unreadable reference_audio: " + err.Error()}
			}
			upload = f
			req.Upload = f
			req.UploadName = files[0].Filename
		}
	}

	return req, upload, nil
}

func parseFormBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, &formError{fmt.Sprintf("remove_silence must be a boolean, got %q", raw)}
}

func statusFor(err error) int {
	var fetchErr *synthesis.FetchError
	switch {
	case errors.Is(err, synthesis.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, synthesis.ErrMissingReference), errors.As(err, &fetchErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
