package taskrunner

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"text/template"
	"time"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/provider"
)

func readLocalFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// runUpload copies a local file to the remote destination over the
// session's transfer methods.
func runUpload(ctx context.Context, step *config.UploadStep, session provider.Session) CommandOutcome {
	start := time.Now()
	content, err := readLocalFile(step.Source)
	if err != nil {
		return errorOutcome("upload "+step.Source, err, start)
	}

	mode := uint32ToMode(step.Mode, 0o644)
	if err := session.WriteFile(ctx, step.Destination, content, mode); err != nil {
		return errorOutcome("upload "+step.Source, err, start)
	}
	return CommandOutcome{Cmd: "upload " + step.Source, Status: CommandChanged, DurationMS: time.Since(start).Milliseconds()}
}

// runDownload copies a remote file to the local destination.
func runDownload(ctx context.Context, step *config.DownloadStep, session provider.Session) CommandOutcome {
	start := time.Now()
	if err := session.Download(ctx, step.Source, step.Destination); err != nil {
		return errorOutcome("download "+step.Source, err, start)
	}
	return CommandOutcome{Cmd: "download " + step.Source, Status: CommandChanged, DurationMS: time.Since(start).Milliseconds()}
}

// runTemplate renders a local text/template file with Vars and writes the
// result to the remote destination.
func runTemplate(ctx context.Context, step *config.TemplateStep, session provider.Session) CommandOutcome {
	start := time.Now()
	raw, err := readLocalFile(step.Source)
	if err != nil {
		return errorOutcome("template "+step.Source, err, start)
	}

	tmpl, err := template.New(step.Source).Parse(string(raw))
	if err != nil {
		return errorOutcome("template "+step.Source, err, start)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, step.Vars); err != nil {
		return errorOutcome("template "+step.Source, err, start)
	}

	mode := uint32ToMode(step.Mode, 0o644)
	if err := session.WriteFile(ctx, step.Destination, out.Bytes(), mode); err != nil {
		return errorOutcome("template "+step.Source, err, start)
	}
	return CommandOutcome{Cmd: "template " + step.Source, Status: CommandChanged, DurationMS: time.Since(start).Milliseconds()}
}

// runWaitFor polls a target until it becomes healthy or the timeout
// expires, supporting HTTP (2xx or expect_status), TCP connect, and shell
// command exit-0 probes.
func runWaitFor(ctx context.Context, step *config.WaitForStep, session provider.Session) CommandOutcome {
	start := time.Now()
	interval := durationOr(step.IntervalMillis, 500*time.Millisecond)
	timeout := durationOr(step.TimeoutMillis, 30*time.Second)

	deadline := time.Now().Add(timeout)
	for {
		ok, err := probeOnce(ctx, step, session)
		if ok {
			return CommandOutcome{Cmd: "wait_for " + step.Target, Status: CommandOK, DurationMS: time.Since(start).Milliseconds()}
		}
		if time.Now().After(deadline) {
			reason := "timeout"
			if err != nil {
				reason = err.Error()
			}
			return CommandOutcome{Cmd: "wait_for " + step.Target, Status: CommandError, Output: reason, DurationMS: time.Since(start).Milliseconds()}
		}
		select {
		case <-ctx.Done():
			return CommandOutcome{Cmd: "wait_for " + step.Target, Status: CommandError, Output: "cancelled", DurationMS: time.Since(start).Milliseconds()}
		case <-time.After(interval):
		}
	}
}

func probeOnce(ctx context.Context, step *config.WaitForStep, session provider.Session) (bool, error) {
	switch step.Kind {
	case config.WaitForHTTP:
		return probeHTTP(ctx, step)
	case config.WaitForTCP:
		return probeTCP(ctx, step.Target)
	case config.WaitForCommand:
		res, err := session.Exec(ctx, step.Target, provider.ExecOptions{})
		if err != nil {
			return false, err
		}
		return res.Ok(), nil
	default:
		return false, fmt.Errorf("unknown wait_for kind %q", step.Kind)
	}
}

func probeHTTP(ctx context.Context, step *config.WaitForStep) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, step.Target, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	want := step.ExpectStatus
	if want != 0 {
		return resp.StatusCode == want, nil
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func probeTCP(ctx context.Context, target string) (bool, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return false, err
	}
	_ = conn.Close()
	return true, nil
}

func durationOr(millis int, fallback time.Duration) time.Duration {
	if millis <= 0 {
		return fallback
	}
	return time.Duration(millis) * time.Millisecond
}

func uint32ToMode(mode *uint32, fallback uint32) uint32 {
	if mode != nil {
		return *mode
	}
	return fallback
}

func errorOutcome(cmd string, err error, start time.Time) CommandOutcome {
	return CommandOutcome{Cmd: cmd, Status: CommandError, Output: err.Error(), DurationMS: time.Since(start).Milliseconds()}
}
