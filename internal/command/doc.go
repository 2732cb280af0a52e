// Package command runs external programs for the bot.
//
// The print spooler integration (lp, lpstat) is the only caller. Every
// invocation goes through a Runner so tests can substitute a scripted fake
// and so that all processes share the same timeout and error conventions:
//
//	runner := command.NewExecRunner(command.WithTimeout(10 * time.Second))
//	out, err := runner.Run(ctx, "lpstat", "-d")
//
// A failed process is reported as *ExitError, which carries the exit code
// and the combined output so callers can surface spooler diagnostics.
package command
