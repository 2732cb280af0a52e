package printer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/erika/internal/command"
)

// Spooler is the OS print subsystem.
type Spooler interface {
	// Printers lists the available print destinations.
	Printers(ctx context.Context) ([]string, error)

	// DefaultPrinter returns the system default destination, or "" if none is set.
	DefaultPrinter(ctx context.Context) (string, error)

	// Submit queues a file and returns the spooler's job id.
	Submit(ctx context.Context, sub Submission) (string, error)
}

// Submission is a file to print.
type Submission struct {
	Path    string
	Printer string
	Copies  int
	// FitToPage scales the document to the paper size.
	FitToPage bool
}

// CUPS talks to the CUPS command-line tools.
type CUPS struct {
	runner command.Runner
	lp     string
	lpstat string
}

// CUPSOption configures CUPS.
type CUPSOption func(*CUPS)

// WithBinaries overrides the lp and lpstat paths.
func WithBinaries(lp, lpstat string) CUPSOption {
	return func(c *CUPS) {
		c.lp = lp
		c.lpstat = lpstat
	}
}

// NewCUPS creates a CUPS spooler that runs its tools through runner.
func NewCUPS(runner command.Runner, opts ...CUPSOption) *CUPS {
	c := &CUPS{
		runner: runner,
		lp:     "lp",
		lpstat: "lpstat",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Printers implements Spooler using `lpstat -e`.
func (c *CUPS) Printers(ctx context.Context) ([]string, error) {
	out, err := c.runner.Run(ctx, c.lpstat, "-e")
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}

	var printers []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			printers = append(printers, name)
		}
	}
	return printers, nil
}

// DefaultPrinter implements Spooler using `lpstat -d`.
func (c *CUPS) DefaultPrinter(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, c.lpstat, "-d")
	if err != nil {
		return "", fmt.Errorf("failed to query default printer: %w", err)
	}
	return parseDefaultDestination(out), nil
}

// Submit implements Spooler using `lp`.
func (c *CUPS) Submit(ctx context.Context, sub Submission) (string, error) {
	if sub.Path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	args := make([]string, 0, 7)
	if sub.Printer != "" {
		args = append(args, "-d", sub.Printer)
	}
	args = append(args, "-n", strconv.Itoa(ClampCopies(sub.Copies)))
	if sub.FitToPage {
		args = append(args, "-o", "fit-to-page")
	}
	args = append(args, sub.Path)

	out, err := c.runner.Run(ctx, c.lp, args...)
	if err != nil {
		return "", fmt.Errorf("lp failed: %w", err)
	}
	return parseRequestID(out), nil
}

const defaultDestinationPrefix = "system default destination:"

func parseDefaultDestination(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, defaultDestinationPrefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

var requestIDPattern = regexp.MustCompile(`request id is (\S+)`)

func parseRequestID(out string) string {
	if m := requestIDPattern.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}
