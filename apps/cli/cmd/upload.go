package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	"github.com/abdul-hamid-achik/hitupload/packages/notify"
	"github.com/abdul-hamid-achik/hitupload/packages/output"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	outputFlag    string
	dryRunFlag    bool
	watchFlag     bool
	noHistoryFlag bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [<host> <port> <target> <file> [1.0|1.1]]",
	Short: "Upload files as multipart/form-data",
	Long: `Upload files to an HTTP endpoint as multipart/form-data and print the
response.

The positional form sends only the file part under "files". Add the classic
comment=Larry field and fixed boundary yourself when a server expects them:
  hitupload upload localhost 8080 /upload report.pdf -F comment=Larry --boundary AaB03x

Examples:
  hitupload upload localhost 8080 /upload report.pdf
  hitupload upload localhost 8080 /upload report.pdf 1.0
  hitupload upload -u https://api.example.com/files -f a.png -f b.png -F comment=Larry
  hitupload upload -u {{baseUrl}}/files -f a.png --env-file .env --expect-status 201
  hitupload upload -u http://localhost:8080/upload -f data.csv --dry-run --boundary AaB03x
  hitupload upload -u http://internal:8080/upload -f a.bin --ssh deploy@bastion`,
	Args: targetArgs,
	RunE: uploadCommand,
}

func init() {
	addRequestFlags(uploadCmd.Flags(), &reqFlags)

	uploadCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITUPLOAD_OUTPUT", ""), "Output format: raw, console, json (env: HITUPLOAD_OUTPUT)")
	uploadCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the request that would be sent without connecting")
	uploadCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Upload again whenever one of the files changes")
	uploadCmd.Flags().BoolVar(&noHistoryFlag, "no-history", getEnvBool("HITUPLOAD_NO_HISTORY", false), "Do not record this upload (env: HITUPLOAD_NO_HISTORY)")
}

func uploadCommand(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, &reqFlags)
	if err != nil {
		return err
	}
	if outputFlag != "" {
		cfg.Output = outputFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if noHistoryFlag || dryRunFlag {
		cfg.History = config.BoolPtr(false)
	}

	notifier, err := reqFlags.notifier()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := newSession(ctx, cfg, &reqFlags, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	if dryRunFlag {
		prepared, err := sess.runner.Prepare(sess.job)
		if err != nil {
			return err
		}
		return sess.runner.DryRun(cmd.OutOrStdout(), prepared)
	}

	formatter, err := output.New(cfg.Output, cmd.OutOrStdout(), verboseFlag > 0, noColorFlag || cfg.GetNoColor())
	if err != nil {
		return err
	}

	upload := func() error {
		result, err := sess.runner.Upload(ctx, sess.job)
		if result != nil {
			if ferr := formatter.FormatResult(result); ferr != nil && err == nil {
				err = ferr
			}
		}
		sendNotification(ctx, notifier, notify.FromUpload(result, err))
		return err
	}

	err = upload()
	if !watchFlag {
		return err
	}
	if err != nil {
		reportWatchError(cmd, formatter, err)
	}
	// Watch the paths the upload reads, with placeholders resolved.
	prepared, err := sess.runner.Prepare(sess.job)
	if err != nil {
		return err
	}
	return watchFiles(ctx, prepared.Files, prepared.BaseDir, func() {
		if err := upload(); err != nil {
			reportWatchError(cmd, formatter, err)
		}
	})
}

// reportWatchError prints an upload error that does not end --watch, inline
// with the results when the formatter supports it.
func reportWatchError(cmd *cobra.Command, formatter output.Formatter, err error) {
	if ef, ok := formatter.(output.ErrorFormatter); ok {
		ef.FormatError(err)
		return
	}
	reportError(cmd.ErrOrStderr(), err)
}

// watchFiles calls fn after any of files is written, debounced, until ctx
// ends.
func watchFiles(ctx context.Context, files []string, baseDir string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		if !filepath.IsAbs(f) && baseDir != "" {
			f = filepath.Join(baseDir, f)
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true

		// Watch the directory so editors that replace the file are seen.
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	log.Info().Int("files", len(watched)).Msg("watching for changes, press Ctrl+C to stop")

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if !watched[abs] || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			fn()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}
