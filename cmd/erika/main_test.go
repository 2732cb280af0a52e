package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/erika/internal/printer"
)

type fakeSpooler struct {
	printers []string
	def      string
	err      error
}

func (f *fakeSpooler) Printers(context.Context) ([]string, error) { return f.printers, f.err }
func (f *fakeSpooler) DefaultPrinter(context.Context) (string, error) {
	return f.def, nil
}
func (f *fakeSpooler) Submit(context.Context, printer.Submission) (string, error) {
	return "", errors.New("not supported")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(viper.New(), &out, &bytes.Buffer{})
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "erika dev (none)\n", out.String())
}

func TestRootFlags(t *testing.T) {
	root := newRootCmd(viper.New(), &bytes.Buffer{}, &bytes.Buffer{})

	for _, name := range []string{"config", "env-file", "log-level", "log-format", "socket", "account", "printer"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "printers", "version"})
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv("GEMINI_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ERIKA_AI_API_KEY", "")
	t.Setenv("ERIKA_SIGNAL_ACCOUNT", "")
	t.Setenv("SIGNAL_ACCOUNT", "")

	root := newRootCmd(viper.New(), &bytes.Buffer{}, &bytes.Buffer{})
	root.SetArgs([]string{"run", "--env-file", ""})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "ai.api_key is required")
}

func TestRunReadsConfigFile(t *testing.T) {
	t.Setenv("GEMINI_KEY", "")
	t.Setenv("ERIKA_AI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "erika.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  api_key: from-file\nsignal:\n  account: \"+15551234567\"\n"), 0o600))

	v := viper.New()
	root := newRootCmd(v, &bytes.Buffer{}, &bytes.Buffer{})
	root.SetArgs([]string{"version", "--config", path})
	require.NoError(t, root.Execute())

	// version skips config loading; run the hook explicitly.
	require.NoError(t, initConfig(v, &bytes.Buffer{}))
	assert.Equal(t, "from-file", v.GetString("ai.api_key"))
	assert.Equal(t, "+15551234567", v.GetString("signal.account"))
}

func TestRunMissingConfigFile(t *testing.T) {
	root := newRootCmd(viper.New(), &bytes.Buffer{}, &bytes.Buffer{})
	root.SetArgs([]string{"run", "--env-file", "", "--config", filepath.Join(t.TempDir(), "nope.yaml")})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestPrintersCommand(t *testing.T) {
	tests := []struct {
		name     string
		spooler  *fakeSpooler
		override string
		want     string
		wantErr  bool
	}{
		{
			name:    "marks system default",
			spooler: &fakeSpooler{printers: []string{"Office", "Lab"}, def: "Lab"},
			want:    "   Office\n*  Lab\n",
		},
		{
			name:     "marks configured override",
			spooler:  &fakeSpooler{printers: []string{"Office", "Lab"}, def: "Lab"},
			override: "Office",
			want:     "*  Office\n   Lab\n",
		},
		{
			name:    "no printers",
			spooler: &fakeSpooler{},
			want:    "No printers found.\n",
		},
		{
			name:    "spooler error",
			spooler: &fakeSpooler{err: errors.New("lpstat missing")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("print.printer", tt.override)

			var out bytes.Buffer
			cmd := newPrintersCmd(v, func() printer.Spooler { return tt.spooler })
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}
