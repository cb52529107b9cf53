package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/argot-dev/argot/pkg/console"
	"github.com/argot-dev/argot/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

var compileWatchLog = logger.New("cli:compile_watch")

// watchDebounce coalesces the editor write bursts that save a file as
// several filesystem events.
const watchDebounce = 200 * time.Millisecond

// watchAndCompile compiles every script once, then recompiles scripts as
// they change until the process is interrupted. A failing compile keeps
// the previous manifest on disk and keeps watching.
func watchAndCompile(scripts []string, opts *CompileOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch parent directories rather than the files themselves: editors
	// that save via rename would otherwise drop the watch.
	watched := make(map[string]bool, len(scripts))
	for _, script := range scripts {
		abs, err := filepath.Abs(script)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	for _, script := range scripts {
		// Errors are reported per file; watch mode never aborts on them.
		_, _ = compileOne(script, opts)
	}
	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(
		fmt.Sprintf("watching %d script(s) for changes, press Ctrl+C to stop", len(scripts))))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pending := make(map[string]bool)
	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, console.FormatInfoMessage("stopping watch"))
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			compileWatchLog.Printf("change detected: %s (%s)", abs, event.Op)
			pending[abs] = true
			timer.Reset(watchDebounce)

		case <-timer.C:
			for script := range pending {
				delete(pending, script)
				if _, err := os.Stat(script); err != nil {
					fmt.Fprintln(os.Stderr, console.FormatWarningMessage(
						fmt.Sprintf("%s disappeared, still watching", console.ToRelativePath(script))))
					continue
				}
				_, _ = compileOne(script, opts)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("watch error: %v", err)))
		}
	}
}
