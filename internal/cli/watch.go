package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/atomicfu/internal/config"
	"github.com/roach88/atomicfu/internal/source"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	TransformOptions
	Debounce time.Duration // quiet period before a batch of changes is transformed
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{TransformOptions: TransformOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-transform units as they change",
		Long: `Transform every unit under a directory, then watch the directory
and re-transform units that are created or written.

Changes are batched: a batch is transformed once no further change has
arrived for the debounce period. With a journal, rewritten files whose
content did not change are skipped. Stops on interrupt.

Examples:
  atomicfu watch ./units -o out/
  atomicfu watch ./units -o out/ --journal atomicfu.db --debounce 250ms`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	addPipelineFlags(cmd, &opts.TransformOptions)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "quiet period before transforming changed units")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings(cmd)
	if err := cfg.Validate(); err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", dir))
	}

	ctx := commandContext(cmd)
	logger := opts.logger()
	p, err := newPipeline(ctx, cfg, false, logger)
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}
	defer p.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}

	// Initial pass. An empty directory is not an error here.
	if files, err := FindUnitFiles([]string{dir}); err == nil {
		if err := transformBatch(ctx, p, formatter, cfg, files); err != nil {
			return err
		}
	}
	fmt.Fprintf(formatter.GetErrWriter(), "Watching %s\n", dir)

	pending := make(map[string]bool)
	timer := time.NewTimer(opts.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, ev.Name); err != nil {
						logger.Warn("directory not watched", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isWatchedUnit(ev.Name) {
				continue
			}
			logger.Debug("unit changed", "path", ev.Name, "op", ev.Op.String())
			pending[filepath.Clean(ev.Name)] = true
			timer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Keep watching; a dropped event only delays the next rebuild.
			logger.Warn("watcher error", "error", err)

		case <-timer.C:
			files := make([]string, 0, len(pending))
			for path := range pending {
				if _, err := os.Stat(path); err == nil {
					files = append(files, path)
				}
			}
			clear(pending)
			if len(files) == 0 {
				continue
			}
			sort.Strings(files)
			if err := transformBatch(ctx, p, formatter, cfg, files); err != nil {
				return err
			}
		}
	}
}

// transformBatch runs the pipeline over files and prints the results. Unit
// failures are printed and otherwise ignored; only output and journal
// failures stop the watch.
func transformBatch(ctx context.Context, p *pipeline, formatter *OutputFormatter, cfg config.Config, files []string) error {
	results, err := p.run(ctx, files)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return outputCommandError(formatter, ErrorCode(err), err)
	}
	_ = outputTransformResult(formatter, summarize(results), cfg.Output == "-")
	return nil
}

// watchTree adds dir and every directory below it to the watcher.
func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func isWatchedUnit(path string) bool {
	return source.IsUnitFile(path) && filepath.Base(path) != config.FileName
}
