package cli

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/argot-dev/argot/pkg/console"
	"github.com/argot-dev/argot/pkg/envutil"
	"github.com/argot-dev/argot/pkg/logger"
	"github.com/sourcegraph/conc/pool"
)

var compileBatchLog = logger.New("cli:compile_batch")

// MaxConcurrentCompilesEnv caps the batch compile worker pool. Scripts are
// independent, so the default of 4 workers mostly bounds peak memory.
const MaxConcurrentCompilesEnv = "ARGOT_MAX_CONCURRENT_COMPILES"

type batchOutcome struct {
	script string
	steps  int
	stages int
	err    error
}

// runCompileBatch compiles scripts concurrently and prints a summary
// table. Every script is attempted even when earlier ones fail; the
// returned error reports the total failure count.
func runCompileBatch(scripts []string, opts *CompileOptions) error {
	workers := envutil.GetIntFromEnv(MaxConcurrentCompilesEnv, 4, 1, 32, compileBatchLog)
	compileBatchLog.Printf("compiling %d scripts with %d workers", len(scripts), workers)

	outcomes := make([]batchOutcome, len(scripts))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(workers)
	for i, script := range scripts {
		p.Go(func() {
			result, err := compileOne(script, opts)
			outcome := batchOutcome{script: script, err: err}
			if err == nil {
				outcome.steps = result.Steps
				outcome.stages = result.Stages
			}
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
		})
	}
	p.Wait()

	failed := 0
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		status := "ok"
		steps, stages := strconv.Itoa(o.steps), strconv.Itoa(o.stages)
		if o.err != nil {
			failed++
			status = "failed"
			steps, stages = "-", "-"
		}
		rows = append(rows, []string{console.ToRelativePath(o.script), status, steps, stages})
	}

	fmt.Fprint(os.Stderr, console.RenderTable(console.TableConfig{
		Title:   fmt.Sprintf("Compiled %d of %d scripts", len(scripts)-failed, len(scripts)),
		Headers: []string{"Script", "Status", "Steps", "Stages"},
		Rows:    rows,
	}))

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed to compile", failed, len(scripts))
	}
	return nil
}
