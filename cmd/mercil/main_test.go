package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, name string) *cli.Command {
	t.Helper()
	for _, cmd := range newApp().Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findStringFlag(t *testing.T, flags []cli.Flag, name string) *cli.StringFlag {
	t.Helper()
	for _, flag := range flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("string flag %q not found", name)
	return nil
}

func findIntFlag(t *testing.T, flags []cli.Flag, name string) *cli.IntFlag {
	t.Helper()
	for _, flag := range flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("int flag %q not found", name)
	return nil
}

func TestNewApp(t *testing.T) {
	app := newApp()

	t.Run("defines every command", func(t *testing.T) {
		expected := []string{
			"load", "search", "search-image", "upload", "images",
			"remove-image", "stats", "reembed", "regeocode",
		}
		var names []string
		for _, cmd := range app.Commands {
			names = append(names, cmd.Name)
		}
		assert.Equal(t, expected, names)
	})

	t.Run("log-level flag has alias -l and defaults to info", func(t *testing.T) {
		flag := findStringFlag(t, app.Flags, "log-level")
		assert.Equal(t, []string{"l"}, flag.Aliases)
		assert.Equal(t, "info", flag.Value)
		assert.Empty(t, flag.EnvVars)
	})
}

func TestStorageFlags(t *testing.T) {
	cmd := findCommand(t, "stats")

	t.Run("db has alias d and no default value", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "db")
		assert.Equal(t, []string{"d"}, flag.Aliases)
		assert.Empty(t, flag.Value)
		assert.False(t, flag.Required)
	})

	t.Run("postgres has no default value", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "postgres")
		assert.Empty(t, flag.Value)
		assert.False(t, flag.Required)
	})

	t.Run("uploads has default value", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "uploads")
		assert.Equal(t, "uploads", flag.Value)
	})

	t.Run("db has no EnvVars", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "db")
		assert.Empty(t, flag.EnvVars)
	})
}

func TestAIFlags(t *testing.T) {
	cmd := findCommand(t, "search")

	t.Run("host has default value", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "host")
		assert.Equal(t, "http://localhost:11434/v1", flag.Value)
	})

	t.Run("embedding-model has default value", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "embedding-model")
		assert.Equal(t, "clip-vit-b-32", flag.Value)
	})

	t.Run("vision-model has default value", func(t *testing.T) {
		flag := findStringFlag(t, cmd.Flags, "vision-model")
		assert.Equal(t, "qwen2.5vl:7b", flag.Value)
	})

	t.Run("dimension has default value of 384", func(t *testing.T) {
		flag := findIntFlag(t, cmd.Flags, "dimension")
		assert.Equal(t, 384, flag.Value)
	})

	t.Run("limit has alias n and default value of 5", func(t *testing.T) {
		flag := findIntFlag(t, cmd.Flags, "limit")
		assert.Equal(t, []string{"n"}, flag.Aliases)
		assert.Equal(t, 5, flag.Value)
	})
}

func TestReembedFlags(t *testing.T) {
	cmd := findCommand(t, "reembed")

	t.Run("batch-size has default value of 100", func(t *testing.T) {
		assert.Equal(t, 100, findIntFlag(t, cmd.Flags, "batch-size").Value)
	})

	t.Run("report-interval has default value of 100", func(t *testing.T) {
		assert.Equal(t, 100, findIntFlag(t, cmd.Flags, "report-interval").Value)
	})

	t.Run("max-retries has default value of 3", func(t *testing.T) {
		assert.Equal(t, 3, findIntFlag(t, cmd.Flags, "max-retries").Value)
	})

	t.Run("retry-delay has default value of 1s", func(t *testing.T) {
		var delayFlag *cli.DurationFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.DurationFlag); ok && f.Name == "retry-delay" {
				delayFlag = f
				break
			}
		}
		require.NotNil(t, delayFlag)
		assert.Equal(t, 1*time.Second, delayFlag.Value)
	})
}

func TestStorageSelection(t *testing.T) {
	t.Run("missing both backends fails", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "stats"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "either --db or --postgres")
	})

	t.Run("both backends at once fails", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "stats",
			"--db", "/tmp/assets", "--postgres", "postgres://localhost/mercil"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})
}

func TestReembedValidation(t *testing.T) {
	t.Run("rejects non-positive batch-size", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "reembed", "--db", "/tmp/assets", "--batch-size", "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size must be greater than 0")
	})

	t.Run("rejects non-positive report-interval", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "reembed", "--db", "/tmp/assets", "--report-interval", "0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report-interval must be greater than 0")
	})

	t.Run("rejects non-positive max-retries", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "reembed", "--db", "/tmp/assets", "--max-retries", "-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max-retries must be greater than 0")
	})
}

func TestRegeocodeValidation(t *testing.T) {
	err := newApp().Run([]string{"mercil", "regeocode", "--db", "/tmp/assets", "--batch-size", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size must be greater than 0")
}

func TestArgumentValidation(t *testing.T) {
	t.Run("load requires a file argument", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "load", "--db", "/tmp/assets"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSON file")
	})

	t.Run("load fails on a missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing.json")
		err := newApp().Run([]string{"mercil", "load", "--db", "/tmp/assets", missing})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	})

	t.Run("load fails on malformed JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		err := newApp().Run([]string{"mercil", "load", "--db", "/tmp/assets", path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("search requires a query", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "search", "--db", "/tmp/assets"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search query is required")
	})

	t.Run("search rejects radius without a center", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "search", "--db", "/tmp/assets", "--radius", "5", "water"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--radius requires both --lat and --lon")
	})

	t.Run("search rejects a center without radius", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "search", "--db", "/tmp/assets",
			"--lat", "38.58", "--lon", "-121.49", "water"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "require --radius")
	})

	t.Run("search-image requires a file argument", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "search-image", "--db", "/tmp/assets"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image file")
	})

	t.Run("upload rejects a malformed asset ID", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "upload", "--db", "/tmp/assets", "abc", "photo.png"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid asset ID")
	})

	t.Run("images rejects a malformed asset ID", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "images", "--db", "/tmp/assets", "abc"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid asset ID")
	})

	t.Run("remove-image rejects a malformed index", func(t *testing.T) {
		err := newApp().Run([]string{"mercil", "remove-image", "--db", "/tmp/assets", "7", "first"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid image index")
	})
}

func TestStatsCommandEmptyStore(t *testing.T) {
	dir := t.TempDir()
	args := []string{"mercil", "stats",
		"--db", filepath.Join(dir, "db"),
		"--uploads", filepath.Join(dir, "uploads"),
	}
	require.NoError(t, newApp().Run(args))
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
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		testCases := []string{
			"DEBUG",
			"Info",
			"WaRn",
			"ERROR",
		}

		for _, tc := range testCases {
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

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
		assert.Contains(t, err.Error(), "invalid")
	})

	t.Run("default log level is info", func(t *testing.T) {
		app := newApp()
		app.Action = func(c *cli.Context) error {
			assert.Equal(t, "info", c.String("log-level"))
			return nil
		}

		err := app.Run([]string{"mercil"})
		require.NoError(t, err)
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := newApp()
		app.Action = func(c *cli.Context) error {
			assert.Equal(t, "debug", c.String("log-level"))
			return nil
		}

		err := app.Run([]string{"mercil", "-l", "debug"})
		require.NoError(t, err)
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
