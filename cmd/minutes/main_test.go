package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// run executes the app against a fresh knowledge base with vectors disabled
// so no model server is needed.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	full := append([]string{"minutes", "--log-level", "error", "--db", dir, "--project", "alpha", "--no-embeddings"}, args...)
	err := app.Run(full)
	return out.String(), err
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"process", "batch", "search", "reembed", "repair", "sessions", "stats"}, names)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "search")

	tests := []struct {
		name string
		want any
	}{
		{"mode", "hybrid"},
		{"limit", 10},
		{"category", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, flag := range cmd.Flags {
				switch f := flag.(type) {
				case *cli.StringFlag:
					if f.Name == tt.name {
						assert.Equal(t, tt.want, f.Value)
						return
					}
				case *cli.IntFlag:
					if f.Name == tt.name {
						assert.Equal(t, tt.want, f.Value)
						return
					}
				}
			}
			t.Fatalf("flag %q not found", tt.name)
		})
	}
}

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "2025-01-07.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("same words"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same words!"), 0o644))

	src, err := readSource(a, "", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-07", src.SessionID)
	assert.Equal(t, "alpha", src.Project)
	assert.Equal(t, "same words", src.Text)
	assert.Equal(t, int64(10), src.Size)
	assert.Len(t, src.FileHash, 64)

	want, err := hashContent([]byte(src.Text))
	require.NoError(t, err)
	assert.Equal(t, want, src.FileHash, "hash covers the bytes that were read")

	named, err := readSource(a, "standup", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "standup", named.SessionID)
	assert.Equal(t, src.FileHash, named.FileHash)

	other, err := readSource(b, "", "alpha")
	require.NoError(t, err)
	assert.NotEqual(t, src.FileHash, other.FileHash)

	_, err = readSource(filepath.Join(dir, "missing.txt"), "", "alpha")
	assert.Error(t, err)
}

func TestSessionIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes/2025-01-07.txt", "2025-01-07"},
		{"/abs/standup.md", "standup"},
		{"plain", "plain"},
		{"archive.tar.gz", "archive.tar"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionIDFromPath(tt.path))
		})
	}
}

func TestOfflineCommands(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{"stats on empty base", []string{"stats"}, []string{"Project: alpha", "decision", "total", "Pending vectors (all projects): 0"}},
		{"sessions on empty base", []string{"sessions"}, []string{"SEQ", "SESSION", "HASH"}},
		{"repair on empty base", []string{"repair"}, []string{"Indexes are consistent"}},
		{"keyword search", []string{"search", "--mode", "keyword", "postgres"}, []string{"Found 0 results"}},
		{"hybrid degrades without vectors", []string{"search", "postgres", "migration"}, []string{"Found 0 results"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, dir, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"process needs a file", []string{"process"}, "exactly one"},
		{"process missing file", []string{"process", filepath.Join(dir, "nope.txt")}, "failed to read transcript"},
		{"batch needs files", []string{"batch"}, "at least one"},
		{"search needs a query", []string{"search"}, "query is required"},
		{"search unknown mode", []string{"search", "--mode", "fuzzy", "x"}, "fuzzy"},
		{"search unknown category", []string{"search", "--category", "gossip", "x"}, "gossip"},
		{"vector search without embeddings", []string{"search", "--mode", "vector", "x"}, "disabled"},
		{"reembed without embeddings", []string{"reembed"}, "disabled"},
		{"reembed bad batch size", []string{"reembed", "--batch-size", "0"}, "batch-size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						assert.True(t, slog.Default().Enabled(c.Context, tc.expected))
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := newApp()
		app.Writer = io.Discard
		app.ErrWriter = io.Discard

		err := app.Run([]string{"minutes", "--log-level", "invalid", "stats"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.Equal(t, "debug", c.String("log-level"))
				return nil
			},
		}

		err := app.Run([]string{"test", "-l", "debug"})
		require.NoError(t, err)
	})
}
