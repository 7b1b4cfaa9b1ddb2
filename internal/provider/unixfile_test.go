package provider

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-fleet/nexus/internal/config"
)

type fileContentSession struct {
	baseSession
	info    FileInfo
	content []byte
	written []byte
}

func (s *fileContentSession) Stat(context.Context, string) (FileInfo, error) { return s.info, nil }
func (s *fileContentSession) ReadFile(context.Context, string) ([]byte, error) {
	return s.content, nil
}
func (s *fileContentSession) WriteFile(_ context.Context, _ string, content []byte, _ os.FileMode) error {
	s.written = content
	return nil
}

func TestUnixFileProviderCreatesAbsentFile(t *testing.T) {
	t.Parallel()

	session := &fileContentSession{info: FileInfo{Exists: false}}
	res := config.Resource{Kind: config.ResourceFile, File: &config.FileResource{Path: "/etc/app.conf", Content: "hello\n"}}

	current, err := unixFileProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := unixFileProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed)
	require.Equal(t, "create /etc/app.conf", diff.Changes[0])
}

func TestUnixFileProviderNoChangeWhenContentMatches(t *testing.T) {
	t.Parallel()

	session := &fileContentSession{info: FileInfo{Exists: true}, content: []byte("hello\n")}
	res := config.Resource{Kind: config.ResourceFile, File: &config.FileResource{Path: "/etc/app.conf", Content: "hello\n"}}

	current, err := unixFileProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := unixFileProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.False(t, diff.Changed)
}

func TestUnixFileProviderProducesUnifiedDiffOnContentChange(t *testing.T) {
	t.Parallel()

	session := &fileContentSession{info: FileInfo{Exists: true}, content: []byte("old\n")}
	res := config.Resource{Kind: config.ResourceFile, File: &config.FileResource{Path: "/etc/app.conf", Content: "new\n"}}

	current, err := unixFileProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := unixFileProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed)
	require.Contains(t, diff.Changes[0], "-old")
	require.Contains(t, diff.Changes[0], "+new")
}

func TestUnixFileProviderRemovesWhenStateAbsent(t *testing.T) {
	t.Parallel()

	session := &fileContentSession{info: FileInfo{Exists: true}, content: []byte("x")}
	res := config.Resource{Kind: config.ResourceFile, File: &config.FileResource{Path: "/etc/app.conf", State: "absent"}}

	current, err := unixFileProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := unixFileProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed)
	require.Equal(t, "remove /etc/app.conf", diff.Changes[0])
}
