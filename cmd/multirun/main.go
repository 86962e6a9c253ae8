// Command multirun starts one cluster-under-test node process per server
// named in a harness config, concurrently in one terminal, with colored,
// line-prefixed output per node. It has no notion of raft, leadership, or
// the register protocol itself — it just supervises whatever command
// template it's given, once per node, and shuts nodes down in reverse
// start order so quorum survives as long as possible during teardown.
//
// Usage:
//
//	go run ./cmd/multirun --config harness.yaml --node-cmd "./node --id {id} --addr 127.0.0.1:{port}" [--grace 60s]
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jepsengo/internal/config"
)

// ANSI colors readable on dark terminals.
var colors = []string{
	"\033[36m", // cyan
	"\033[35m", // magenta
	"\033[33m", // yellow
	"\033[32m", // green
	"\033[34m", // blue
	"\033[31m", // red
}

const reset = "\033[0m"

// basePort is the first port offered to {port} substitution; node i binds
// basePort+i.
const basePort = 17000

// lineWriter serializes colored, prefixed line output across goroutines.
type lineWriter struct {
	mu sync.Mutex
}

func (lw *lineWriter) writeTo(w *os.File, prefix, color, line string) {
	lw.mu.Lock()
	_, _ = fmt.Fprintf(w, "%s[%s]%s %s\n", color, prefix, reset, line)
	lw.mu.Unlock()
}

// childProc tracks a running child process alongside its display metadata
// and a channel that is closed once the process has exited and its output
// has been fully flushed.
type childProc struct {
	name     string
	color    string
	proc     *os.Process  // nil if start failed
	done     chan struct{} // closed after exit + output flush
	exitCode int           // valid after done is closed
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "multirun --node-cmd \"template\" [flags]",
		Short: "Launch a cluster-under-test, one node process per harness server",
		Long: `multirun reads a harness config's cluster size and launches that many
copies of a node command template, substituting {id} (0-based server index)
and {port} (a per-node listen port) into the template. Output from every
node is prefixed with a colored label. On SIGINT/SIGTERM, multirun signals
nodes one at a time in reverse start order, waiting for each to exit before
signaling the next, so the cluster keeps quorum as long as possible while
it drains.`,
		Args:              cobra.NoArgs,
		RunE:              runMulti,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	rootCmd.Flags().String("config", "", "path to a harness YAML config (built-in defaults if omitted)")
	rootCmd.Flags().String("node-cmd", "", "shell command template for one node; {id} and {port} are substituted (required)")
	rootCmd.Flags().Duration("grace", 60*time.Second, "grace period before SIGKILL after SIGTERM")

	if err := rootCmd.MarkFlagRequired("node-cmd"); err != nil {
		panic(err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMulti(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	nodeCmdTemplate, _ := cmd.Flags().GetString("node-cmd")
	grace, _ := cmd.Flags().GetDuration("grace")

	harness := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("multirun: %w", err)
		}
		harness = loaded
	}
	if harness.ClusterSize < 1 {
		return fmt.Errorf("multirun: harness cluster-size %d is not launchable", harness.ClusterSize)
	}

	names := make([]string, harness.ClusterSize)
	cmdStrs := make([]string, harness.ClusterSize)
	for i := range names {
		names[i] = "node-" + strconv.Itoa(i)
		r := strings.NewReplacer(
			"{id}", strconv.Itoa(i),
			"{port}", strconv.Itoa(basePort+i),
		)
		cmdStrs[i] = r.Replace(nodeCmdTemplate)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		lw       lineWriter
		exitCode int
		exitMu   sync.Mutex
	)

	failFast := func(code int) {
		exitMu.Lock()
		if code != 0 && exitCode == 0 {
			exitCode = code
		}
		exitMu.Unlock()
		if code != 0 {
			stop()
		}
	}

	// Start nodes sequentially so children[i] always corresponds to
	// names[i]. They all run concurrently once started.
	children := make([]*childProc, len(cmdStrs))
	var wg sync.WaitGroup
	for i, cmdStr := range cmdStrs {
		cp := startChild(&lw, names[i], colors[i%len(colors)], cmdStr)
		children[i] = cp
		wg.Add(1)
		go func(cp *childProc) {
			defer wg.Done()
			<-cp.done
			failFast(cp.exitCode)
		}(cp)
	}

	go forwardSignals(ctx, &lw, children, grace)

	wg.Wait()

	exitMu.Lock()
	code := exitCode
	exitMu.Unlock()
	if code != 0 {
		// Return a non-zero exit directly from main, not from RunE,
		// so Cobra doesn't print its own error message.
		os.Exit(code) //nolint:gocritic // intentional exit-after-defer; defers are cleanup-only
	}
	return nil
}

// startChild starts a child process, wires up output scanners, and returns
// a childProc whose done channel closes when the process exits and output
// is fully flushed. Only one goroutine calls Wait on the underlying process,
// eliminating the race that occurs when multiple callers reap the same child.
func startChild(lw *lineWriter, name, color, cmdStr string) *childProc {
	cp := &childProc{
		name:  name,
		color: color,
		done:  make(chan struct{}),
	}

	child := exec.Command("sh", "-c", cmdStr) //nolint:gosec // the node command template is operator-supplied, same trust boundary as the harness config
	child.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	child.Stdout = outW
	child.Stderr = errW

	if err := child.Start(); err != nil {
		lw.writeTo(os.Stderr, name, color, fmt.Sprintf("error: %v", err))
		cp.exitCode = 1
		close(cp.done)
		return cp
	}
	cp.proc = child.Process

	// Stream stdout and stderr in separate goroutines.
	var scanWg sync.WaitGroup
	scanWg.Add(2)
	go scanLines(lw, &scanWg, outR, os.Stdout, name, color)
	go scanLines(lw, &scanWg, errR, os.Stderr, name, color)

	// Single Wait goroutine: reaps the process, closes pipes so scanners
	// finish, then signals completion via cp.done.
	go func() {
		err := child.Wait()
		_ = outW.Close()
		_ = errW.Close()
		scanWg.Wait()

		if err == nil {
			lw.writeTo(os.Stderr, name, color, "exited")
		} else {
			code := 1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			cp.exitCode = code
			lw.writeTo(os.Stderr, name, color, fmt.Sprintf("exited with code %d", code))
		}
		close(cp.done)
	}()

	return cp
}

func scanLines(lw *lineWriter, wg *sync.WaitGroup, r *io.PipeReader, dest *os.File, name, color string) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lw.writeTo(dest, name, color, scanner.Text())
	}
}

// forwardSignals shuts down nodes one at a time in reverse order. This
// lets the raft cluster maintain quorum while peers shut down, so each
// node gets a chance to complete a clean snapshot/drain before the next
// one is signaled.
func forwardSignals(ctx context.Context, lw *lineWriter, children []*childProc, grace time.Duration) {
	<-ctx.Done()

	// Shut down in reverse order (last started -> first stopped).
	for i := len(children) - 1; i >= 0; i-- {
		cp := children[i]
		if cp.proc == nil {
			continue
		}

		_ = syscall.Kill(-cp.proc.Pid, syscall.SIGTERM)

		select {
		case <-cp.done:
			lw.writeTo(os.Stderr, "multirun", "\033[90m", cp.name+" stopped, continuing shutdown...")
		case <-time.After(grace):
			_ = syscall.Kill(-cp.proc.Pid, syscall.SIGKILL)
			<-cp.done
		}
	}
}
