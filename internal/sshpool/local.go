package sshpool

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/nexus-fleet/nexus/internal/provider"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// LocalSession runs commands in a local subshell, bypassing the pool
// entirely, for tasks targeting the reserved `local` host (spec §4.B).
type LocalSession struct{}

// NewLocalSession returns a session satisfying provider.Session by
// shelling out on the machine Nexus runs on.
func NewLocalSession() *LocalSession { return &LocalSession{} }

func (LocalSession) Exec(ctx context.Context, cmd string, opts provider.ExecOptions) (provider.ExecResult, error) {
	return runLocal(ctx, cmd, false, opts)
}

func (LocalSession) ExecSudo(ctx context.Context, cmd string, opts provider.ExecOptions) (provider.ExecResult, error) {
	return runLocal(ctx, cmd, true, opts)
}

func runLocal(ctx context.Context, cmd string, sudo bool, opts provider.ExecOptions) (provider.ExecResult, error) {
	full := buildCommand(cmd, sudo, opts)
	c := exec.CommandContext(ctx, "/bin/sh", "-c", full)
	if opts.Cwd != "" {
		c.Dir = opts.Cwd
	}

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return provider.ExecResult{Output: out.String()}, streamyerrors.NewCommandError(-1, out.String())
		}
	}
	return provider.ExecResult{Output: out.String(), ExitCode: exitCode}, nil
}

func (LocalSession) Stat(_ context.Context, path string) (provider.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return provider.FileInfo{Exists: false}, nil
	}
	if err != nil {
		return provider.FileInfo{}, err
	}
	return provider.FileInfo{Exists: true, Mode: info.Mode(), Size: info.Size()}, nil
}

func (LocalSession) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (LocalSession) WriteFile(_ context.Context, path string, content []byte, mode os.FileMode) error {
	return os.WriteFile(path, content, mode)
}

func (LocalSession) Upload(_ context.Context, local io.Reader, remotePath string, mode os.FileMode) error {
	f, err := os.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, local)
	return err
}

func (LocalSession) Download(_ context.Context, remotePath, localPath string) error {
	data, err := os.ReadFile(remotePath)
	if err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (LocalSession) MkdirAll(_ context.Context, path string, mode os.FileMode) error {
	return os.MkdirAll(path, mode)
}

func (LocalSession) Remove(_ context.Context, path string) error {
	return os.RemoveAll(path)
}

func (LocalSession) Alive() bool { return true }
