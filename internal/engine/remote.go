package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RemoteConfig holds configuration for an inference sidecar reached over HTTP.
type RemoteConfig struct {
	BaseURL string // default: "http://localhost:7860"
	Model   string
	Vocoder string
	Timeout time.Duration // 0: no client timeout
}

// Remote forwards inference to a sidecar process that keeps the model
// resident. The sidecar exposes GET /health and POST /infer.
type Remote struct {
	cfg        RemoteConfig
	device     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRemote checks the sidecar's health endpoint. The device it reports is
// cached for the lifetime of the backend.
func NewRemote(ctx context.Context, cfg RemoteConfig, logger *slog.Logger) (*Remote, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:7860"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	r := &Remote{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	device, err := r.health(ctx)
	if err != nil {
		return nil, err
	}
	r.device = device
	return r, nil
}

func (r *Remote) Name() string { return "f5-tts-remote" }

func (r *Remote) Device() string { return r.device }

func (r *Remote) health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/health", nil)
	if err != nil {
		return "", err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("engine sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine sidecar not ready (status %d)", resp.StatusCode)
	}

	var body struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("parse sidecar health: %w", err)
	}
	if body.Device == "" {
		return "", errors.New("engine sidecar did not report a device")
	}
	return body.Device, nil
}

// Infer uploads the reference clip and writes the returned WAV to req.OutputPath.
// The multipart body is streamed, so the clip is never held in memory.
func (r *Remote) Infer(ctx context.Context, req InferRequest) error {
	f, err := os.Open(req.RefAudioPath)
	if err != nil {
		return fmt.Errorf("open reference audio: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		pw.CloseWithError(r.writeForm(mw, f, req))
	}()
	defer pr.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/infer", pr)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference failed (status %d): %s", resp.StatusCode, sidecarDetail(resp.Body))
	}

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write output audio: %w", err)
	}
	if n == 0 {
		return errors.New("engine sidecar returned no audio")
	}

	r.logger.Debug("sidecar inference finished", "output_bytes", n, "elapsed", time.Since(start))
	return nil
}

func (r *Remote) writeForm(mw *multipart.Writer, ref io.Reader, req InferRequest) error {
	fw, err := mw.CreateFormFile("ref_audio", filepath.Base(req.RefAudioPath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, ref); err != nil {
		return fmt.Errorf("copy reference audio: %w", err)
	}

	fields := []struct{ name, value string }{
		{"ref_text", req.RefText},
		{"gen_text", req.GenText},
		{"speed", strconv.FormatFloat(req.Speed, 'f', -1, 64)},
		{"remove_silence", strconv.FormatBool(req.RemoveSilence)},
		{"model", r.cfg.Model},
		{"vocoder", r.cfg.Vocoder},
	}
	for _, field := range fields {
		if err := mw.WriteField(field.name, field.value); err != nil {
			return fmt.Errorf("write field %s: %w", field.name, err)
		}
	}
	return mw.Close()
}

func sidecarDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, outputTailBytes))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}
