package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/f5ttsapi/internal/audio"
)

func newSidecar(t *testing.T, infer http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"device": "cuda"})
	})
	mux.HandleFunc("POST /infer", infer)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteInfer(t *testing.T) {
	wav := audio.Silence(2400, 24000, 1, 16)

	srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "hello", r.FormValue("gen_text"))
		assert.Equal(t, "", r.FormValue("ref_text"))
		assert.Equal(t, "0.8", r.FormValue("speed"))
		assert.Equal(t, "true", r.FormValue("remove_silence"))
		assert.Equal(t, "F5-TTS", r.FormValue("model"))
		assert.Equal(t, "vocos", r.FormValue("vocoder"))

		f, _, err := r.FormFile("ref_audio")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		ref, _ := io.ReadAll(f)
		assert.Equal(t, "reference-bytes", string(ref))

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	})

	r, err := NewRemote(context.Background(), RemoteConfig{BaseURL: srv.URL + "/", Model: "F5-TTS", Vocoder: "vocos"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "cuda", r.Device())

	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	require.NoError(t, os.WriteFile(ref, []byte("reference-bytes"), 0o600))
	out := filepath.Join(dir, "out.wav")

	require.NoError(t, r.Infer(context.Background(), InferRequest{
		RefAudioPath:  ref,
		GenText:       "hello",
		Speed:         0.8,
		RemoveSilence: true,
		OutputPath:    out,
	}))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

func TestRemoteInferError(t *testing.T) {
	srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "reference audio is empty"})
	})

	r, err := NewRemote(context.Background(), RemoteConfig{BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)

	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	require.NoError(t, os.WriteFile(ref, []byte("x"), 0o600))

	err = r.Infer(context.Background(), InferRequest{RefAudioPath: ref, GenText: "x", Speed: 1, OutputPath: filepath.Join(dir, "out.wav")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "reference audio is empty")
}

func TestRemoteInferMissingReference(t *testing.T) {
	srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("sidecar should not be called")
	})

	r, err := NewRemote(context.Background(), RemoteConfig{BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)

	err = r.Infer(context.Background(), InferRequest{RefAudioPath: filepath.Join(t.TempDir(), "nope.wav"), GenText: "x", Speed: 1})
	require.Error(t, err)
}

func TestNewRemoteUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemote(context.Background(), RemoteConfig{BaseURL: srv.URL}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSidecarDetailFallsBackToBody(t *testing.T) {
	assert.Equal(t, "plain failure", sidecarDetail(strings.NewReader("plain failure\n")))
	assert.Equal(t, "bad", sidecarDetail(strings.NewReader(`{"detail":"bad"}`)))
}

func TestRemoteInferStreamsReference(t *testing.T) {
	ref := bytes.Repeat([]byte("0123456789abcdef"), 256*1024) // 4 MiB

	srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(-1), r.ContentLength, "body should be streamed, not pre-sized")

		mr, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		part, err := mr.NextPart()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "ref_audio", part.FormName())
		got, _ := io.ReadAll(part)
		assert.Equal(t, len(ref), len(got))
		assert.True(t, bytes.Equal(ref, got))

		_, _ = w.Write(audio.Silence(240, 24000, 1, 16))
	})

	r, err := NewRemote(context.Background(), RemoteConfig{BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)

	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.wav")
	require.NoError(t, os.WriteFile(refPath, ref, 0o600))

	require.NoError(t, r.Infer(context.Background(), InferRequest{
		RefAudioPath: refPath,
		GenText:      "x",
		Speed:        1,
		OutputPath:   filepath.Join(dir, "out.wav"),
	}))
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestRemoteWriteFormReportsErrors(t *testing.T) {
	r := &Remote{cfg: RemoteConfig{Model: "F5-TTS", Vocoder: "vocos"}, logger: discardLogger()}

	err := r.writeForm(multipart.NewWriter(brokenWriter{}), strings.NewReader("clip"), InferRequest{RefAudioPath: "ref.wav"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe closed")
}
