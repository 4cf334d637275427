package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// rclone exit code for "directory not found" and "file not found".
const (
	rcloneDirNotFound  = 3
	rcloneFileNotFound = 4
)

// Rclone is a Backend driving the rclone CLI.
//
// Remote definitions are passed as RCLONE_CONFIG_<REMOTE>_<KEY> variables so
// no config file is written.
type Rclone struct {
	bin string
	env []string
}

// NewRclone returns a Backend for remotes defined in conf.
func NewRclone(bin string, conf map[string]map[string]string) *Rclone {
	if bin == "" {
		bin = "rclone"
	}
	return &Rclone{bin: bin, env: rcloneEnv(conf)}
}

func rcloneEnv(conf map[string]map[string]string) []string {
	var env []string
	for remote, settings := range conf {
		prefix := "RCLONE_CONFIG_" + envName(remote) + "_"
		for k, v := range settings {
			env = append(env, prefix+envName(k)+"="+v)
		}
	}
	sort.Strings(env)
	return env
}

func envName(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(s))
}

func (r *Rclone) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Env = append(os.Environ(), r.env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return stdout.Bytes(), &rcloneError{args: args, stderr: strings.TrimSpace(stderr.String()), err: err}
	}
	return stdout.Bytes(), nil
}

type rcloneError struct {
	args   []string
	stderr string
	err    error
}

func (e *rcloneError) Error() string {
	return fmt.Sprintf("rclone %s failed: %v: %s", strings.Join(e.args, " "), e.err, e.stderr)
}

func (e *rcloneError) Unwrap() error { return e.err }

func isNotFound(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return code == rcloneDirNotFound || code == rcloneFileNotFound
	}
	return false
}

// Ls implements Backend.
func (r *Rclone) Ls(ctx context.Context, dir string) ([]string, error) {
	out, err := r.run(ctx, nil, "lsf", "--files-only", dir)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			names = append(names, line)
		}
	}
	return names, sc.Err()
}

// ReadFile implements Backend.
func (r *Rclone) ReadFile(ctx context.Context, p string) ([]byte, error) {
	exists, err := r.Exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	return r.run(ctx, nil, "cat", p)
}

// WriteFile implements Backend.
func (r *Rclone) WriteFile(ctx context.Context, p string, data []byte) error {
	_, err := r.run(ctx, data, "rcat", p)
	return err
}

// Exists implements Backend.
func (r *Rclone) Exists(ctx context.Context, p string) (bool, error) {
	out, err := r.run(ctx, nil, "lsf", p)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// MkdirAll implements Backend.
func (r *Rclone) MkdirAll(ctx context.Context, dir string) error {
	_, err := r.run(ctx, nil, "mkdir", dir)
	return err
}

// String implements Backend.
func (r *Rclone) String() string {
	return "rclone"
}
