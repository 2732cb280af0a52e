package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/erika/internal/config"
)

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) int {
	root := newRootCmd(viper.New(), os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "erika",
		Short:        "Signal chat bot with an AI persona and a print queue",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return initConfig(v, stderr)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), v, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	config.SetDefaults(v)

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file path (optional).")
	flags.String("env-file", ".env", "Dotenv file loaded before the environment is read.")
	flags.String("log-level", "", "Logging level: debug|info|warn|error.")
	flags.String("log-format", "", "Logging format: text|json|auto.")
	flags.String("socket", "", "signal-cli JSON-RPC socket path.")
	flags.String("account", "", "Signal account the bot runs as (E.164 number or UUID).")
	flags.String("printer", "", "Print destination; defaults to the system default printer.")

	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("env_file", flags.Lookup("env-file"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("signal.socket", flags.Lookup("socket"))
	_ = v.BindPFlag("signal.account", flags.Lookup("account"))
	_ = v.BindPFlag("print.printer", flags.Lookup("printer"))

	cmd.AddCommand(newRunCmd(v, stderr))
	cmd.AddCommand(newPrintersCmd(v, defaultSpooler))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func initConfig(v *viper.Viper, stderr io.Writer) error {
	if envFile := strings.TrimSpace(v.GetString("env_file")); envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to load env file: %v\n", err)
		}
	}

	if err := config.BindEnv(v); err != nil {
		return err
	}

	cfgFile := strings.TrimSpace(v.GetString("config"))
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}
