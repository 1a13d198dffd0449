// Package scripts wraps the external tools the engine shells out to:
// the whisper transcription script, yt-dlp, and ffmpeg. Every failure
// comes back as a ProcessError carrying a FailureClass so the caller
// can decide whether a retry is worthwhile.
package scripts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"transcriptd/config"
)

type Runner struct {
	config config.ScriptsConfig
	logger *logrus.Logger
}

func NewRunner(cfg config.ScriptsConfig, logger *logrus.Logger) (*Runner, error) {
	if cfg.ScriptsPath != "" {
		if _, err := os.Stat(cfg.ScriptsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("scripts directory does not exist: %s", cfg.ScriptsPath)
		}
	}
	return &Runner{config: cfg, logger: logger}, nil
}

// runScript executes a python script and returns its stdout. The
// scripts print a single JSON document on success.
func (r *Runner) runScript(ctx context.Context, op, scriptName string, args ...string) ([]byte, error) {
	scriptPath := filepath.Join(r.config.ScriptsPath, scriptName)
	cmdArgs := append([]string{scriptPath}, args...)

	r.logger.WithFields(logrus.Fields{
		"script": scriptName,
		"args":   args,
	}).Debug("Executing script")

	cmd := exec.CommandContext(ctx, r.config.PythonPath, cmdArgs...)
	cmd.Dir = r.config.ScriptsPath
	return r.execute(ctx, op, cmd, true)
}

// runTool executes a standalone binary such as yt-dlp or ffmpeg.
func (r *Runner) runTool(ctx context.Context, op, binary string, parseJSON bool, args ...string) ([]byte, error) {
	r.logger.WithFields(logrus.Fields{
		"binary": binary,
		"args":   args,
	}).Debug("Executing tool")

	cmd := exec.CommandContext(ctx, binary, args...)
	return r.execute(ctx, op, cmd, parseJSON)
}

func (r *Runner) execute(ctx context.Context, op string, cmd *exec.Cmd, parseJSON bool) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		combined := stderr.String() + stdout.String()
		class := classifyOutput(combined)
		if ctx.Err() == context.DeadlineExceeded {
			class = FailureTransient
		}

		r.logger.WithFields(logrus.Fields{
			"error":  err,
			"class":  class,
			"stderr": truncate(stderr.String(), 2000),
		}).Error("Command failed")

		return nil, newProcessError(op, class, err,
			fmt.Sprintf("command failed: %s", truncate(combined, 500)))
	}

	output := stdout.Bytes()
	if parseJSON {
		if err := validateJSON(output); err != nil {
			return nil, newProcessError(op, FailureTransient, err, "command produced invalid JSON")
		}
	}
	return output, nil
}

func validateJSON(output []byte) error {
	var probe interface{}
	if err := json.Unmarshal(output, &probe); err != nil {
		return fmt.Errorf("invalid JSON output: %v", err)
	}
	return nil
}

func unmarshalResult(op string, data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return newProcessError(op, FailureTransient, err, "failed to decode result")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
