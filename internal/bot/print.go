package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/erika/internal/intent"
	"github.com/Veraticus/erika/internal/printer"
)

// quotedSource exposes a quoted message to the print dispatcher.
type quotedSource struct {
	transport Transport
	msg       Message
}

func (s *quotedSource) HasMedia() bool {
	return s.msg.HasMedia()
}

func (s *quotedSource) Download(ctx context.Context) (*printer.Payload, error) {
	media, err := s.transport.Download(ctx, s.msg)
	if err != nil {
		return nil, err
	}
	if media == nil {
		return nil, nil
	}
	return &printer.Payload{
		MIMEType: media.ContentType,
		Data:     media.Data,
		Filename: media.Filename,
	}, nil
}

// printProgress relays dispatcher progress to the chat.
type printProgress struct {
	ctx context.Context
	d   *Dispatcher
	msg Message
}

func (p *printProgress) Downloading(copies int) {
	p.d.reply(p.ctx, p.msg, fmt.Sprintf(ReplyPrintDownloading, copiesLabel(copies)))
}

func (p *printProgress) Saved(job *printer.Job) {
	p.d.reply(p.ctx, p.msg, fmt.Sprintf(ReplyPrintSaved, job.Filename, copiesLabel(job.Copies)))
}

func (d *Dispatcher) print(ctx context.Context, msg Message, arg string) {
	copies, capped := printer.ParseCopies(arg)
	if capped {
		d.reply(ctx, msg, fmt.Sprintf(ReplyPrintCapped, printer.MaxCopies, printer.MaxCopies))
	}
	d.reply(ctx, msg, fmt.Sprintf(ReplyPrintPreparing, copiesLabel(copies)))

	var src printer.Source
	if msg.Quoted != nil {
		src = &quotedSource{transport: d.transport, msg: *msg.Quoted}
	}

	job, err := d.printer.Print(ctx, src, copies, &printProgress{ctx: ctx, d: d, msg: msg})
	if err != nil {
		d.printFailed(ctx, msg, err)
		return
	}

	d.recorder.PrintFinished(PrintOutcomeQueued)
	d.logger.InfoContext(ctx, "print job queued",
		slog.String("file", job.Filename),
		slog.String("printer", job.Printer),
		slog.Int("copies", job.Copies))
	d.reply(ctx, msg, fmt.Sprintf(ReplyPrintQueued, job.Filename, job.Copies))
}

func (d *Dispatcher) printFailed(ctx context.Context, msg Message, err error) {
	printCmd := d.commands.Command(intent.PrintCommand)

	var typeErr *printer.UnsupportedTypeError
	switch {
	case errors.Is(err, printer.ErrNoQuotedMessage):
		d.recorder.PrintFinished(PrintOutcomeRejected)
		d.reply(ctx, msg, fmt.Sprintf(ReplyPrintNoQuote, printCmd))
	case errors.Is(err, printer.ErrNoMediaInQuote):
		d.recorder.PrintFinished(PrintOutcomeRejected)
		d.reply(ctx, msg, ReplyPrintNoMedia)
	case errors.As(err, &typeErr):
		d.recorder.PrintFinished(PrintOutcomeUnsupported)
		d.reply(ctx, msg, unsupportedReply(typeErr.MIMEType))
	case errors.Is(err, printer.ErrDownloadFailed):
		d.recorder.PrintFinished(PrintOutcomeFailed)
		d.logger.ErrorContext(ctx, "print download failed", slog.Any("error", err))
		d.reply(ctx, msg, ReplyPrintDownload)
	case errors.Is(err, printer.ErrPrinterUnavailable), errors.Is(err, printer.ErrPrintSubmitFailed):
		d.recorder.PrintFinished(PrintOutcomeFailed)
		d.logger.ErrorContext(ctx, "print failed", slog.Any("error", err))
		d.reply(ctx, msg, ReplyPrintFailed)
	default:
		d.recorder.PrintFinished(PrintOutcomeFailed)
		d.logger.ErrorContext(ctx, "print error", slog.Any("error", err))
		d.reply(ctx, msg, fmt.Sprintf(ReplyPrintError, printCmd))
	}
}
