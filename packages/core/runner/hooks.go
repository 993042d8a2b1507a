package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// executeBeforeHooks runs the before commands, stopping at the first failure
func (r *Runner) executeBeforeHooks(ctx context.Context, commands []string, baseDir string) error {
	for _, command := range commands {
		if err := r.executeHook(ctx, command, baseDir); err != nil {
			return fmt.Errorf("before command failed: %w", err)
		}
	}
	return nil
}

// executeAfterHooks runs every after command and returns the first failure
func (r *Runner) executeAfterHooks(ctx context.Context, commands []string, baseDir string) error {
	var firstErr error
	for _, command := range commands {
		if err := r.executeHook(ctx, command, baseDir); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("after command failed: %w", err)
			}
			// After commands are cleanup, so the rest still run.
		}
	}
	return firstErr
}

// executeHook runs one command through sh -c in baseDir.
func (r *Runner) executeHook(ctx context.Context, command, baseDir string) error {
	cmdStr := strings.TrimSpace(command)
	if cmdStr == "" {
		return nil
	}

	// A leading ./ or ../ executable, or a bare name that is a script in
	// baseDir rather than on PATH, runs relative to baseDir.
	parts := strings.Fields(cmdStr)
	if len(parts) > 0 && baseDir != "" {
		executable := parts[0]
		if strings.HasPrefix(executable, "./") || strings.HasPrefix(executable, "../") {
			parts[0] = filepath.Join(baseDir, executable)
			cmdStr = strings.Join(parts, " ")
		} else if !filepath.IsAbs(executable) && !isInPath(executable) {
			potentialPath := filepath.Join(baseDir, executable)
			if _, err := os.Stat(potentialPath); err == nil {
				parts[0] = potentialPath
				cmdStr = strings.Join(parts, " ")
			}
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	cmd.Dir = baseDir
	cmd.Env = os.Environ()

	r.log.Debug().Str("command", cmdStr).Msg("running hook")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %q failed: %v\nOutput: %s", command, err, string(output))
	}

	if len(output) > 0 {
		r.log.Info().Str("command", command).Msg(strings.TrimRight(string(output), "\n"))
	}
	return nil
}

// isInPath checks if a command is available in the system PATH
func isInPath(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
