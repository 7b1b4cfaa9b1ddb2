package sshpool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/nexus-fleet/nexus/internal/provider"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// Session wraps an established ssh.Client (plus a lazily-created SFTP
// client) with the command/file-transfer contract spec §4.B defines,
// satisfying provider.Session so resource providers run identically
// against pooled remote sessions. ID correlates this session's exec/SFTP
// calls across telemetry events and log lines for its lifetime.
type Session struct {
	id        string
	host      string
	client    *ssh.Client
	sftp      *sftp.Client
	createdAt time.Time
	lastUsed  time.Time
}

func newSession(host string, client *ssh.Client) *Session {
	now := time.Now()
	return &Session{id: uuid.NewString(), host: host, client: client, createdAt: now, lastUsed: now}
}

// ID returns the session's run-scoped correlation identifier.
func (s *Session) ID() string { return s.id }

// Alive reports whether the underlying transport still answers a
// keepalive request.
func (s *Session) Alive() bool {
	if s == nil || s.client == nil {
		return false
	}
	_, _, err := s.client.SendRequest("keepalive@nexus", true, nil)
	return err == nil
}

func (s *Session) touch() { s.lastUsed = time.Now() }

// Exec runs cmd in a fresh SSH session and returns its combined output and
// exit code.
func (s *Session) Exec(ctx context.Context, cmd string, opts provider.ExecOptions) (provider.ExecResult, error) {
	return s.run(ctx, cmd, false, opts)
}

// ExecSudo wraps cmd with non-interactive privilege escalation, failing
// fast if the remote host would require an interactive password.
func (s *Session) ExecSudo(ctx context.Context, cmd string, opts provider.ExecOptions) (provider.ExecResult, error) {
	return s.run(ctx, cmd, true, opts)
}

func (s *Session) run(ctx context.Context, cmd string, sudo bool, opts provider.ExecOptions) (provider.ExecResult, error) {
	s.touch()

	session, err := s.client.NewSession()
	if err != nil {
		return provider.ExecResult{}, streamyerrors.NewConnectionError(s.host, err.Error(), false, err)
	}
	defer session.Close()

	full := buildCommand(cmd, sudo, opts)

	var stdout bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stdout

	done := make(chan error, 1)
	go func() { done <- session.Run(full) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return provider.ExecResult{}, streamyerrors.NewCancelledError(cmd)
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return provider.ExecResult{Output: stdout.String()}, streamyerrors.NewCommandError(-1, stdout.String())
			}
		}
		return provider.ExecResult{Output: stdout.String(), ExitCode: exitCode}, nil
	}
}

func buildCommand(cmd string, sudo bool, opts provider.ExecOptions) string {
	var b strings.Builder
	if opts.Cwd != "" {
		b.WriteString("cd ")
		b.WriteString(opts.Cwd)
		b.WriteString(" && ")
	}
	for k, v := range opts.Env {
		fmt.Fprintf(&b, "%s=%s ", k, v)
	}
	if sudo {
		b.WriteString("sudo -n -- ")
	}
	b.WriteString(cmd)
	return b.String()
}

// ExecStreaming runs cmd and invokes onChunk as output becomes available.
// It is lazy (onChunk is called incrementally) and not restartable.
func (s *Session) ExecStreaming(ctx context.Context, cmd string, onChunk func([]byte)) error {
	s.touch()

	session, err := s.client.NewSession()
	if err != nil {
		return streamyerrors.NewConnectionError(s.host, err.Error(), false, err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return err
	}
	if err := session.Start(cmd); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
			return streamyerrors.NewCancelledError(cmd)
		default:
		}
		n, rerr := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onChunk(chunk)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return session.Wait()
}

func (s *Session) sftpClient() (*sftp.Client, error) {
	if s.sftp != nil {
		return s.sftp, nil
	}
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, err
	}
	s.sftp = client
	return client, nil
}

// Stat reports whether path exists on the remote host and its mode/size.
func (s *Session) Stat(ctx context.Context, path string) (provider.FileInfo, error) {
	sc, err := s.sftpClient()
	if err != nil {
		return provider.FileInfo{}, err
	}
	info, err := sc.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return provider.FileInfo{Exists: false}, nil
		}
		return provider.FileInfo{}, err
	}
	return provider.FileInfo{Exists: true, Mode: info.Mode(), Size: info.Size()}, nil
}

// ReadFile reads the full remote file at path.
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	sc, err := s.sftpClient()
	if err != nil {
		return nil, err
	}
	f, err := sc.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile writes content to the remote path with the given mode.
func (s *Session) WriteFile(ctx context.Context, path string, content []byte, mode os.FileMode) error {
	return s.Upload(ctx, bytes.NewReader(content), path, mode)
}

// Upload copies local's contents to remotePath over SFTP.
func (s *Session) Upload(ctx context.Context, local io.Reader, remotePath string, mode os.FileMode) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	f, err := sc.Create(remotePath)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, local); err != nil {
		return err
	}
	return sc.Chmod(remotePath, mode)
}

// Download copies remotePath to a local file at localPath.
func (s *Session) Download(ctx context.Context, remotePath, localPath string) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	rf, err := sc.Open(remotePath)
	if err != nil {
		return err
	}
	defer rf.Close()

	lf, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer lf.Close()

	_, err = io.Copy(lf, rf)
	return err
}

// MkdirAll recursively creates path on the remote host.
func (s *Session) MkdirAll(ctx context.Context, path string, mode os.FileMode) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	if err := sc.MkdirAll(path); err != nil {
		return err
	}
	return sc.Chmod(path, mode)
}

// Remove deletes path on the remote host (file or empty directory).
func (s *Session) Remove(ctx context.Context, path string) error {
	sc, err := s.sftpClient()
	if err != nil {
		return err
	}
	return sc.Remove(path)
}

// Close terminates the SFTP client (if created) and the underlying
// transport.
func (s *Session) Close() error {
	if s.sftp != nil {
		_ = s.sftp.Close()
	}
	return s.client.Close()
}
