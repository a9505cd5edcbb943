package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/preproc/internal/transform"
)

// DefaultDebounce is how long watch waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	OutDir   string
	Debounce time.Duration

	// RunIDs allows overriding the journal run id generator (for testing).
	RunIDs transform.RunIDGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <path>...",
		Short: "Transform files and re-run on change",
		Long: `Transform files into --out, then watch the inputs and re-transform
every file that is written or created.

Changes are debounced. The condition registry lives as long as the
watch: a directive defined by one rebuild stays defined for the next.
When --db is set, every rebuild is journaled under one run.

Examples:
  preproc watch --out dist src
  preproc watch --out dist --debounce 250ms --db ./preproc.db src`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory (required)")
	_ = cmd.MarkFlagRequired("out")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period before rebuilding")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runWatch(opts *WatchOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger().Named("watch")

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	inputs, err := CollectInputs(paths)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to collect inputs", err)
	}

	sess, err := openSession(ctx, opts.RootOptions, opts.OutDir, opts.RunIDs)
	if err != nil {
		return sessionError(formatter, err)
	}
	defer sess.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer w.Close()

	res, err := newResolver(paths, inputs, opts.OutDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve inputs", err)
	}
	for _, dir := range res.dirs {
		if err := w.Add(dir); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", dir), err)
		}
	}

	rebuild := func(batch []Input) {
		failed := 0
		for _, in := range batch {
			sum := sess.process(ctx, in)
			if sum.Error != "" {
				failed++
			}
			writeSummaryText(formatter, cmd, opts.OutDir, sum)
			if formatter.JSON() {
				_ = formatter.Success(sum)
			}
		}
		logger.Info("rebuilt", zap.Int("artifacts", len(batch)), zap.Int("failed", failed))
	}

	rebuild(inputs)
	formatter.Textf("Watching %d directories. Press Ctrl-C to stop.", len(res.dirs))

	err = debounce(ctx, w.Events, w.Errors, opts.Debounce, logger, func(changed []string) {
		var batch []Input
		for _, p := range changed {
			if in, ok := res.resolve(p); ok {
				batch = append(batch, in)
			}
		}
		if len(batch) > 0 {
			rebuild(batch)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	logger.Info("watch stopped")
	return nil
}

// debounce collects written and created paths from events and calls flush
// with the sorted, de-duplicated batch once delay passes with no new
// event. It returns when ctx ends or events is closed.
func debounce(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, delay time.Duration, logger *zap.Logger, flush func([]string)) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			sort.Strings(batch)
			flush(batch)
		}
	}
}

// resolver maps changed paths back to artifacts.
type resolver struct {
	known  map[string]Input // by absolute path
	roots  []string         // directory arguments, absolute
	rootOf map[string]string
	outDir string // absolute; writes under it are ignored
	dirs   []string
}

func newResolver(paths []string, inputs []Input, outDir string) (*resolver, error) {
	r := &resolver{known: make(map[string]Input), rootOf: make(map[string]string)}
	if outDir != "" {
		abs, err := filepath.Abs(outDir)
		if err != nil {
			return nil, err
		}
		r.outDir = abs
	}
	for _, in := range inputs {
		abs, err := filepath.Abs(in.Path)
		if err != nil {
			return nil, err
		}
		r.known[abs] = in
	}

	seen := make(map[string]bool)
	addDir := func(dir string) {
		if !seen[dir] && !r.ignored(dir) {
			seen[dir] = true
			r.dirs = append(r.dirs, dir)
		}
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			addDir(filepath.Dir(abs))
			continue
		}
		r.roots = append(r.roots, abs)
		r.rootOf[abs] = p
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				addDir(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ignored reports whether path is the output directory or inside it.
func (r *resolver) ignored(path string) bool {
	if r.outDir == "" {
		return false
	}
	return path == r.outDir || strings.HasPrefix(path, r.outDir+string(filepath.Separator))
}

// resolve returns the artifact for a changed path: a known input, or a
// new regular file under a directory argument.
func (r *resolver) resolve(path string) (Input, bool) {
	abs, err := filepath.Abs(path)
	if err != nil || r.ignored(abs) {
		return Input{}, false
	}
	if in, ok := r.known[abs]; ok {
		return in, true
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return Input{}, false
	}
	for _, root := range r.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		in := Input{Path: abs, ID: filepath.ToSlash(rel), Root: r.rootOf[root]}
		r.known[abs] = in
		return in, true
	}
	return Input{}, false
}
