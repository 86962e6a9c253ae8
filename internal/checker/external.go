package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"jepsengo/internal/history"
	"jepsengo/internal/logging"
)

// ExternalChecker bridges to an out-of-process consistency analyzer: it
// dumps the history and options to opt.Directory, invokes binary, and
// parses the analyzer's JSON verdict from stdout.
type ExternalChecker struct {
	binary string
	logger *slog.Logger
}

// NewExternalChecker builds an ExternalChecker invoking binary. A nil
// logger discards output.
func NewExternalChecker(binary string, logger *slog.Logger) *ExternalChecker {
	logger = logging.Default(logger)
	return &ExternalChecker{binary: binary, logger: logger.With("component", "checker")}
}

// Check dumps h and opt to disk and runs the external analyzer against
// them, returning its parsed verdict.
func (c *ExternalChecker) Check(ctx context.Context, h *history.History, opt CheckOption) (CheckResult, error) {
	if opt.Directory == "" {
		opt.Directory = "./out"
	}
	if err := os.MkdirAll(opt.Directory, 0o755); err != nil {
		return CheckResult{}, fmt.Errorf("checker: create directory: %w", err)
	}

	historyPath := filepath.Join(opt.Directory, "history.json.zst")
	if err := dumpHistoryCompressed(historyPath, h); err != nil {
		return CheckResult{}, err
	}

	optPath := filepath.Join(opt.Directory, "check-option.json")
	optBytes, err := json.Marshal(opt)
	if err != nil {
		return CheckResult{}, fmt.Errorf("checker: marshal options: %w", err)
	}
	if err := os.WriteFile(optPath, optBytes, 0o644); err != nil {
		return CheckResult{}, fmt.Errorf("checker: write options: %w", err)
	}

	c.logger.Info("running external analyzer", "binary", c.binary, "history", historyPath)
	cmd := exec.CommandContext(ctx, c.binary, "--history", historyPath, "--options", optPath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return CheckResult{}, fmt.Errorf("checker: external analyzer: %w", err)
	}

	var result CheckResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return CheckResult{}, fmt.Errorf("checker: parse analyzer output: %w", err)
	}
	return result, nil
}

func dumpHistoryCompressed(path string, h *history.History) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checker: create history dump: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("checker: zstd writer: %w", err)
	}
	defer zw.Close()

	if err := json.NewEncoder(zw).Encode(h.Entries()); err != nil {
		return fmt.Errorf("checker: encode history: %w", err)
	}
	return nil
}

// DumpInvariantViolation writes the in-flight history, compressed, next
// to a plain-text note describing cause, under directory. Called when an
// internal invariant (history shape, generator id accounting) is
// violated mid-run, so the failure is reproducible from disk.
func DumpInvariantViolation(directory string, cause error, h *history.History) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("checker: create directory: %w", err)
	}
	if err := dumpHistoryCompressed(filepath.Join(directory, "invariant-violation-history.json.zst"), h); err != nil {
		return err
	}
	notePath := filepath.Join(directory, "invariant-violation.txt")
	return os.WriteFile(notePath, []byte(cause.Error()+"\n"), 0o644)
}
