package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/projectdiscovery/gcache"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/utils/conversion"
	fileutil "github.com/projectdiscovery/utils/file"
)

// DefaultTimeout bounds a single tool invocation
const DefaultTimeout = 10 * time.Minute

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrTimeout      = errors.New("tool timed out")
)

// writeFile is replaced in tests to simulate write failures
var writeFile = os.WriteFile

var lookups = gcache.New[string, string](64).
	LRU().
	Expiration(time.Minute).
	Build()

// LookPath resolves a binary, caching successful lookups
func LookPath(binary string) (string, error) {
	if path, err := lookups.Get(binary); err == nil {
		return path, nil
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, binary)
	}
	_ = lookups.Set(binary, path)
	return path, nil
}

// Executor runs an external tool and captures its stdout
type Executor struct {
	Binary  string
	Timeout time.Duration
	// AcceptExitCodes lists non-zero exit codes that still count as success
	AcceptExitCodes []int
}

// Execute runs the binary with args. Missing binaries, timeouts and exit
// codes outside AcceptExitCodes are errors.
func (e *Executor) Execute(ctx context.Context, args ...string) ([]byte, error) {
	path, err := LookPath(e.Binary)
	if err != nil {
		return nil, err
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children holding the pipes open must not outlive the timeout
	cmd.WaitDelay = time.Second

	gologger.Debug().Msgf("running %s %s", e.Binary, strings.Join(args, " "))

	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, e.Binary, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && e.accepts(exitErr.ExitCode()) {
			return stdout.Bytes(), nil
		}
		return nil, fmt.Errorf("failed to execute tool '%s': %w\nStderr: %s", e.Binary, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

func (e *Executor) accepts(code int) bool {
	for _, accepted := range e.AcceptExitCodes {
		if code == accepted {
			return true
		}
	}
	return false
}

// writeTargetFile stores a host list one address per line and returns its
// path along with a cleanup func
func writeTargetFile(hosts []string) (string, func(), error) {
	tmpFile, err := fileutil.GetTempFileName()
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	allTargets := strings.Join(hosts, "\n")
	if err := writeFile(tmpFile, conversion.Bytes(allTargets), 0600); err != nil {
		_ = os.RemoveAll(tmpFile)
		return "", nil, fmt.Errorf("failed to write to temp file: %w", err)
	}
	return tmpFile, func() { _ = os.RemoveAll(tmpFile) }, nil
}

// targetArgs returns the args pointing a tool at spec: the CIDR itself, or
// listFlag followed by a temp file holding the hosts
func targetArgs(spec netrange.TargetSpec, listFlag string) ([]string, func(), error) {
	if !spec.IsList() {
		return []string{spec.CIDR}, func() {}, nil
	}
	file, cleanup, err := writeTargetFile(spec.Hosts)
	if err != nil {
		return nil, nil, err
	}
	return []string{listFlag, file}, cleanup, nil
}
