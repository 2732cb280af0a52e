// Package printer sends quoted chat attachments to a physical printer.
package printer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueDir is where files wait for the spooler.
const DefaultQueueDir = "downloads/print_queue"

// Payload is downloaded media.
type Payload struct {
	MIMEType string
	Data     []byte
	Filename string
}

// Source is the quoted message a print command refers to.
type Source interface {
	HasMedia() bool
	Download(ctx context.Context) (*Payload, error)
}

// Observer receives progress updates while a job is prepared. Either method
// may be called from the goroutine running Print.
type Observer interface {
	Downloading(copies int)
	Saved(job *Job)
}

// Scheduler removes files later. *Cleaner implements it.
type Scheduler interface {
	Schedule(path string) error
}

// Status is where a job ended up.
type Status string

// Job states.
const (
	StatusSaved     Status = "saved"
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Job is one print request.
type Job struct {
	SpoolID   string
	Filename  string
	Path      string
	MIMEType  string
	Printer   string
	Copies    int
	Status    Status
	CreatedAt time.Time
}

// Dispatcher validates, saves and submits print jobs.
type Dispatcher struct {
	dir     string
	spooler Spooler
	cleaner Scheduler
	printer string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueDir sets the directory files are written to.
func WithQueueDir(dir string) Option {
	return func(d *Dispatcher) {
		d.dir = dir
	}
}

// WithPrinter pins a destination instead of discovering one.
func WithPrinter(name string) Option {
	return func(d *Dispatcher) {
		d.printer = name
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock replaces time.Now, for filename generation in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(spooler Spooler, cleaner Scheduler, opts ...Option) (*Dispatcher, error) {
	if spooler == nil {
		return nil, fmt.Errorf("spooler is required")
	}
	if cleaner == nil {
		return nil, fmt.Errorf("cleaner is required")
	}

	d := &Dispatcher{
		dir:     DefaultQueueDir,
		spooler: spooler,
		cleaner: cleaner,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "printer"))

	return d, nil
}

// Print downloads src, saves it to the queue directory and submits it with
// copies clamped to [MinCopies, MaxCopies]. obs may be nil. On success the
// file is scheduled for removal; on submit failure it is removed at once.
func (d *Dispatcher) Print(ctx context.Context, src Source, copies int, obs Observer) (*Job, error) {
	if src == nil {
		return nil, ErrNoQuotedMessage
	}
	if !src.HasMedia() {
		return nil, ErrNoMediaInQuote
	}

	copies = ClampCopies(copies)
	if obs != nil {
		obs.Downloading(copies)
	}

	payload, err := src.Download(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if payload == nil || len(payload.Data) == 0 {
		return nil, ErrDownloadFailed
	}

	mimeType := normalizeMIME(payload.MIMEType)
	if !IsSupported(mimeType) {
		return nil, &UnsupportedTypeError{MIMEType: payload.MIMEType}
	}

	job, err := d.save(payload.Data, mimeType, copies)
	if err != nil {
		return nil, err
	}
	if obs != nil {
		obs.Saved(job)
	}

	if err := d.submit(ctx, job); err != nil {
		job.Status = StatusFailed
		if rmErr := os.Remove(job.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			d.logger.WarnContext(ctx, "failed to remove unprinted file",
				slog.String("path", job.Path),
				slog.Any("error", rmErr))
		}
		return job, err
	}

	job.Status = StatusSubmitted
	if err := d.cleaner.Schedule(job.Path); err != nil {
		d.logger.ErrorContext(ctx, "failed to schedule cleanup",
			slog.String("path", job.Path),
			slog.Any("error", err))
	}

	return job, nil
}

func (d *Dispatcher) save(data []byte, mimeType string, copies int) (*Job, error) {
	now := d.now()
	filename := fmt.Sprintf("print_%d_%s.%s",
		now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8], Extension(mimeType))
	path := filepath.Join(d.dir, filename)

	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create print queue directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write print file: %w", err)
	}

	return &Job{
		Filename:  filename,
		Path:      path,
		MIMEType:  mimeType,
		Copies:    copies,
		Status:    StatusSaved,
		CreatedAt: now,
	}, nil
}

func (d *Dispatcher) submit(ctx context.Context, job *Job) error {
	name, err := d.ResolvePrinter(ctx)
	if err != nil {
		return err
	}
	job.Printer = name

	d.logger.InfoContext(ctx, "submitting print job",
		slog.String("file", job.Filename),
		slog.String("printer", name),
		slog.Int("copies", job.Copies))

	spoolID, err := d.spooler.Submit(ctx, Submission{
		Path:      job.Path,
		Printer:   name,
		Copies:    job.Copies,
		FitToPage: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrintSubmitFailed, err)
	}
	job.SpoolID = spoolID

	d.logger.InfoContext(ctx, "print job sent",
		slog.String("file", job.Filename),
		slog.String("spool_id", spoolID))
	return nil
}

// ResolvePrinter picks the configured printer, else the system default,
// else the first available destination.
func (d *Dispatcher) ResolvePrinter(ctx context.Context) (string, error) {
	if d.printer != "" {
		return d.printer, nil
	}

	printers, listErr := d.spooler.Printers(ctx)
	if listErr != nil {
		d.logger.WarnContext(ctx, "failed to list printers", slog.Any("error", listErr))
	} else {
		d.logger.DebugContext(ctx, "available printers", slog.Any("printers", printers))
	}

	name, err := d.spooler.DefaultPrinter(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "failed to query default printer", slog.Any("error", err))
	}
	if name != "" {
		return name, nil
	}

	if len(printers) > 0 {
		return printers[0], nil
	}
	if listErr != nil {
		return "", fmt.Errorf("%w: %w", ErrPrinterUnavailable, listErr)
	}
	return "", ErrPrinterUnavailable
}
