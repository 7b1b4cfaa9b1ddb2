package provider

import (
	"context"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/nexus-fleet/nexus/internal/config"
)

// unixFileProvider manages File and Directory resources on POSIX hosts,
// rendering content diffs with pmezard/go-difflib the way the teacher's
// lineinfile plugin renders its ChangeSet (internal/plugins/lineinfile/differ.go).
type unixFileProvider struct{}

func (unixFileProvider) Check(ctx context.Context, resource config.Resource, session Session, _ Context) (string, error) {
	path := resourcePath(resource)
	info, err := session.Stat(ctx, path)
	if err != nil {
		return "", err
	}
	if !info.Exists {
		return "absent", nil
	}
	if resource.Kind == config.ResourceFile {
		content, err := session.ReadFile(ctx, path)
		if err != nil {
			return "", err
		}
		return "present\x00" + string(content), nil
	}
	return "present", nil
}

func (unixFileProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	if resource.Kind == config.ResourceDirectory {
		return diffDirectory(resource.Directory, current)
	}
	return diffFile(resource.File, current)
}

func (unixFileProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}

	if resource.Kind == config.ResourceDirectory {
		return diff, applyDirectory(ctx, resource.Directory, session)
	}
	return diff, applyFile(ctx, resource.File, session)
}

func (unixFileProvider) Describe(resource config.Resource) string { return resource.Describe() }

func resourcePath(resource config.Resource) string {
	if resource.Kind == config.ResourceDirectory {
		return resource.Directory.Path
	}
	return resource.File.Path
}

func diffFile(file *config.FileResource, current string) (Diff, error) {
	wantAbsent := file.State == "absent"
	existed := strings.HasPrefix(current, "present")

	if wantAbsent {
		return Diff{Changed: existed, Before: current, After: "absent",
			Changes: changesIf(existed, "remove "+file.Path)}, nil
	}

	var before string
	if existed {
		if _, content, ok := strings.Cut(current, "\x00"); ok {
			before = content
		}
	}

	if !existed {
		return Diff{
			Changed: true,
			Before:  "",
			After:   file.Content,
			Changes: []string{"create " + file.Path},
		}, nil
	}

	if before == file.Content {
		return Diff{Changed: false, Before: before, After: before}, nil
	}

	udiff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(file.Content),
		FromFile: file.Path + " (current)",
		ToFile:   file.Path + " (desired)",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(udiff)

	return Diff{
		Changed: true,
		Before:  before,
		After:   file.Content,
		Changes: []string{strings.TrimSpace(text)},
	}, nil
}

func diffDirectory(dir *config.DirectoryResource, current string) (Diff, error) {
	wantAbsent := dir.State == "absent"
	existed := current == "present"

	if wantAbsent {
		return Diff{Changed: existed, Before: current, After: "absent",
			Changes: changesIf(existed, "remove "+dir.Path)}, nil
	}
	return Diff{Changed: !existed, Before: current, After: "present",
		Changes: changesIf(!existed, "create "+dir.Path)}, nil
}

func changesIf(cond bool, msg string) []string {
	if cond {
		return []string{msg}
	}
	return nil
}

func applyFile(ctx context.Context, file *config.FileResource, session Session) error {
	if file.State == "absent" {
		return session.Remove(ctx, file.Path)
	}
	mode := defaultMode(file.Mode, 0o644)
	return session.WriteFile(ctx, file.Path, []byte(file.Content), mode)
}

func applyDirectory(ctx context.Context, dir *config.DirectoryResource, session Session) error {
	if dir.State == "absent" {
		return session.Remove(ctx, dir.Path)
	}
	mode := defaultMode(dir.Mode, 0o755)
	return session.MkdirAll(ctx, dir.Path, mode)
}

func defaultMode(mode *uint32, fallback uint32) os.FileMode {
	if mode != nil {
		return os.FileMode(*mode)
	}
	return os.FileMode(fallback)
}
