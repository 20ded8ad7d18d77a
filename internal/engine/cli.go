package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const outputTailBytes = 2048

// CLIConfig holds configuration for the F5-TTS command-line backend.
type CLIConfig struct {
	Command string // default: "f5-tts_infer-cli"; may carry leading args ("python -m f5_tts.infer.infer_cli")
	Model   string
	Vocoder string
	Device  string // empty: detect
}

// CLI runs one F5-TTS inference process per request.
type CLI struct {
	cfg    CLIConfig
	bin    string
	args   []string
	device string
	logger *slog.Logger
}

// NewCLI resolves the inference command and the compute device.
func NewCLI(cfg CLIConfig, logger *slog.Logger) (*CLI, error) {
	if cfg.Command == "" {
		cfg.Command = "f5-tts_infer-cli"
	}
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return nil, errors.New("engine command is empty")
	}

	bin, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("engine command %q not found: %w", fields[0], err)
	}

	device := cfg.Device
	if device == "" {
		device = DetectDevice()
	}

	return &CLI{
		cfg:    cfg,
		bin:    bin,
		args:   fields[1:],
		device: device,
		logger: logger,
	}, nil
}

func (c *CLI) Name() string { return "f5-tts-cli" }

func (c *CLI) Device() string { return c.device }

// Infer runs the inference command and checks that it left audio behind.
func (c *CLI) Infer(ctx context.Context, req InferRequest) error {
	args := append(append([]string{}, c.args...), c.buildArgs(req)...)

	// #nosec G204 -- binary is fixed at startup, request data only reaches argv values
	cmd := exec.CommandContext(ctx, c.bin, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	c.logger.Debug("running engine",
		"binary", c.bin,
		"model", c.cfg.Model,
		"device", c.device,
		"text_length", len(req.GenText),
		"auto_transcribe", req.RefText == "",
	)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("engine interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("%s failed: %w (output: %s)", filepath.Base(c.bin), err, tail(output.String(), outputTailBytes))
	}

	fi, err := os.Stat(req.OutputPath)
	if err != nil {
		return fmt.Errorf("engine produced no output: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("engine produced an empty output file (output: %s)", tail(output.String(), outputTailBytes))
	}

	c.logger.Debug("engine finished", "output_bytes", fi.Size(), "elapsed", time.Since(start))
	return nil
}

func (c *CLI) buildArgs(req InferRequest) []string {
	args := []string{
		"--model", c.cfg.Model,
		"--vocoder_name", c.cfg.Vocoder,
		"--ref_audio", req.RefAudioPath,
		"--ref_text", req.RefText,
		"--gen_text", req.GenText,
		"--speed", strconv.FormatFloat(req.Speed, 'f', -1, 64),
		"--output_dir", filepath.Dir(req.OutputPath),
		"--output_file", filepath.Base(req.OutputPath),
		"--device", c.device,
	}
	if req.RemoveSilence {
		args = append(args, "--remove_silence")
	}
	return args
}

// DetectDevice mirrors the engine's own preference: CUDA, then Apple MPS, then CPU.
func DetectDevice() string {
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return "cuda"
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "mps"
	}
	return "cpu"
}

// tail keeps at most the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
