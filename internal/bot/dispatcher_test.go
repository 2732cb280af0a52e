package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/erika/internal/intent"
	"github.com/Veraticus/erika/internal/printer"
)

type sentMedia struct {
	chat    Chat
	media   *Media
	caption string
}

// fakeTransport records every outbound action.
type fakeTransport struct {
	mu        sync.Mutex
	replies   []string
	reactions []string
	media     []sentMedia
	deleted   []string
	downloads int

	download    *Media
	downloadErr error
	deleteErr   map[string]error
	replyErr    error
}

func (f *fakeTransport) Reply(_ context.Context, _ Message, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return f.replyErr
}

func (f *fakeTransport) React(_ context.Context, _ Message, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emoji)
	return nil
}

func (f *fakeTransport) Download(context.Context, Message) (*Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	return f.download, f.downloadErr
}

func (f *fakeTransport) SendMedia(_ context.Context, chat Chat, media *Media, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, sentMedia{chat: chat, media: media, caption: caption})
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[msg.ID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, msg.ID)
	return nil
}

type chatCall struct {
	sender string
	text   string
}

type fakeResponder struct {
	mu    sync.Mutex
	calls []chatCall
}

func (r *fakeResponder) Respond(_ context.Context, sender, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, chatCall{sender: sender, text: text})
	return "reply to " + text
}

func (r *fakeResponder) RandomQuote(context.Context) string {
	return `"Believe it." - Naruto (Naruto)`
}

type countingRecorder struct {
	commands     []string
	prints       []string
	replyFailure int
}

func (c *countingRecorder) CommandHandled(i string) { c.commands = append(c.commands, i) }
func (c *countingRecorder) PrintFinished(o string)  { c.prints = append(c.prints, o) }
func (c *countingRecorder) ReplyFailed()            { c.replyFailure++ }

type stubSpooler struct {
	submitErr error
}

func (s *stubSpooler) Printers(context.Context) ([]string, error) { return []string{"Office"}, nil }
func (s *stubSpooler) DefaultPrinter(context.Context) (string, error) {
	return "Office", nil
}
func (s *stubSpooler) Submit(context.Context, printer.Submission) (string, error) {
	return "Office-1", s.submitErr
}

type noopCleaner struct{}

func (noopCleaner) Schedule(string) error { return nil }

type harness struct {
	d         *Dispatcher
	transport *fakeTransport
	responder *fakeResponder
	recorder  *countingRecorder
	queueDir  string
	spooler   *stubSpooler
}

var pingNow = time.UnixMilli(1700000000150)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{deleteErr: map[string]error{}},
		responder: &fakeResponder{},
		recorder:  &countingRecorder{},
		queueDir:  filepath.Join(t.TempDir(), "print_queue"),
		spooler:   &stubSpooler{},
	}

	p, err := printer.NewDispatcher(h.spooler, noopCleaner{}, printer.WithQueueDir(h.queueDir))
	require.NoError(t, err)

	h.d, err = NewDispatcher(h.transport, h.responder, p,
		WithRecorder(h.recorder),
		WithClock(func() time.Time { return pingNow }))
	require.NoError(t, err)
	return h
}

func userMsg(text string) Message {
	return Message{
		ID:        "100",
		Chat:      Chat{ID: "+15551111111"},
		Sender:    "+15551111111",
		Text:      text,
		Timestamp: time.UnixMilli(1700000000000),
	}
}

func withQuote(msg Message, quoted Message) Message {
	msg.Quoted = &quoted
	return msg
}

func pdfQuote() Message {
	return Message{
		ID:     "50",
		Sender: "+15552222222",
		Media:  &MediaRef{ContentType: "application/pdf", Filename: "doc.pdf", AttachmentID: "att-1"},
	}
}

func TestNewDispatcherValidation(t *testing.T) {
	p, err := printer.NewDispatcher(&stubSpooler{}, noopCleaner{})
	require.NoError(t, err)

	_, err = NewDispatcher(nil, &fakeResponder{}, p)
	assert.EqualError(t, err, "transport is required")
	_, err = NewDispatcher(&fakeTransport{}, nil, p)
	assert.EqualError(t, err, "responder is required")
	_, err = NewDispatcher(&fakeTransport{}, &fakeResponder{}, nil)
	assert.EqualError(t, err, "printer is required")
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name       string
		msg        Message
		wantPrompt string
		wantIntent string
	}{
		{
			name:       "direct chat command",
			msg:        userMsg(".erika are you there erika"),
			wantPrompt: "are you there erika",
			wantIntent: "direct_chat",
		},
		{
			name:       "case-insensitive command",
			msg:        userMsg(".ERIKA hello"),
			wantPrompt: "hello",
			wantIntent: "direct_chat",
		},
		{
			name: "reply to bot",
			msg: func() Message {
				m := withQuote(userMsg("why though?"), Message{ID: "9", FromMe: true})
				m.ReplyToBot = true
				return m
			}(),
			wantPrompt: "why though?",
			wantIntent: "reply_to_bot",
		},
		{
			name:       "mention",
			msg:        userMsg("hey Erika, good morning"),
			wantPrompt: "hey Erika, good morning",
			wantIntent: "mention",
		},
		{
			name:       "quoted bot message without inline author",
			msg:        withQuote(userMsg("tell me more"), Message{ID: "9", FromMe: true}),
			wantPrompt: "tell me more",
			wantIntent: "quoted_from_me",
		},
		{
			name:       "command text quoting a bot message is chat",
			msg:        withQuote(userMsg(".del"), Message{ID: "9", FromMe: true}),
			wantPrompt: ".del",
			wantIntent: "quoted_from_me",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.d.Handle(context.Background(), tt.msg)

			require.Len(t, h.responder.calls, 1)
			assert.Equal(t, chatCall{sender: "+15551111111", text: tt.wantPrompt}, h.responder.calls[0])
			assert.Equal(t, []string{"reply to " + tt.wantPrompt}, h.transport.replies)
			assert.Equal(t, []string{tt.wantIntent}, h.recorder.commands)
		})
	}
}

func TestHandleBareChatCommand(t *testing.T) {
	h := newHarness(t)
	h.d.Handle(context.Background(), userMsg(".erika"))

	assert.Empty(t, h.responder.calls)
	assert.Equal(t, []string{"Hmph… say something after *.erika*!"}, h.transport.replies)
}

func TestHandleNone(t *testing.T) {
	h := newHarness(t)
	h.d.Handle(context.Background(), userMsg("just chatting"))
	h.d.Handle(context.Background(), userMsg(".helpme"))

	assert.Empty(t, h.transport.replies)
	assert.Empty(t, h.recorder.commands)
}

func TestHandleUtilityCommands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: ".help", want: HelpText(intent.DefaultConfig())},
		{text: ".HELP", want: HelpText(intent.DefaultConfig())},
		{text: ".quote", want: `"Believe it." - Naruto (Naruto)`},
		{text: ".ping", want: "🏓 Pong! 150ms"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h := newHarness(t)
			h.d.Handle(context.Background(), userMsg(tt.text))
			assert.Equal(t, []string{tt.want}, h.transport.replies)
		})
	}
}

func TestHandleCustomHelpAndCommands(t *testing.T) {
	p, err := printer.NewDispatcher(&stubSpooler{}, noopCleaner{})
	require.NoError(t, err)
	transport := &fakeTransport{}
	d, err := NewDispatcher(transport, &fakeResponder{}, p,
		WithCommands(intent.Config{Prefix: "!", Trigger: "mika"}),
		WithHelpText("custom help"))
	require.NoError(t, err)

	d.Handle(context.Background(), userMsg("!help"))
	d.Handle(context.Background(), userMsg("!mika"))
	assert.Equal(t, []string{"custom help", "Hmph… say something after *!mika*!"}, transport.replies)
}

func TestHelpTextFollowsCommandConfig(t *testing.T) {
	def := HelpText(intent.DefaultConfig())
	assert.Contains(t, def, ".erika [text] → Talk to Erika\n")
	assert.Contains(t, def, ".print [N] → Print the quoted file (max 10 copies)\n")
	assert.Contains(t, def, ".del → Delete the quoted message\n")

	p, err := printer.NewDispatcher(&stubSpooler{}, noopCleaner{})
	require.NoError(t, err)
	transport := &fakeTransport{}
	d, err := NewDispatcher(transport, &fakeResponder{}, p,
		WithCommands(intent.Config{Prefix: "!", Trigger: "mika"}))
	require.NoError(t, err)

	d.Handle(context.Background(), userMsg("!help"))
	require.Len(t, transport.replies, 1)
	help := transport.replies[0]
	for _, want := range []string{"!mika [text] → Talk to Mika", "!quote", "!ping", "!get", "!print [N]", "!del", "!help"} {
		assert.Contains(t, help, want)
	}
	assert.NotContains(t, help, ".erika")
	assert.NotContains(t, help, ".print")
}

func TestHandleDelete(t *testing.T) {
	t.Run("no quote", func(t *testing.T) {
		h := newHarness(t)
		h.d.Handle(context.Background(), userMsg(".del"))
		assert.Equal(t, []string{"❌ You must *reply to a message* with `.del` to delete it."}, h.transport.replies)
		assert.Empty(t, h.transport.deleted)
	})

	t.Run("deletes quoted then command", func(t *testing.T) {
		h := newHarness(t)
		h.d.Handle(context.Background(), withQuote(userMsg(".del"), Message{ID: "42"}))
		assert.Equal(t, []string{"42", "100"}, h.transport.deleted)
		assert.Empty(t, h.transport.replies)
	})

	t.Run("command not deletable is fine", func(t *testing.T) {
		h := newHarness(t)
		h.transport.deleteErr["100"] = ErrNotDeletable
		h.d.Handle(context.Background(), withQuote(userMsg(".del"), Message{ID: "42"}))
		assert.Equal(t, []string{"42"}, h.transport.deleted)
		assert.Empty(t, h.transport.replies)
	})

	t.Run("quoted delete fails", func(t *testing.T) {
		h := newHarness(t)
		h.transport.deleteErr["42"] = ErrNotDeletable
		h.d.Handle(context.Background(), withQuote(userMsg(".del"), Message{ID: "42"}))
		assert.Empty(t, h.transport.deleted)
		assert.Equal(t, []string{ReplyDeleteFailed}, h.transport.replies)
	})
}

func TestHandleFetchMedia(t *testing.T) {
	image := Message{ID: "7", Media: &MediaRef{ContentType: "image/png", AttachmentID: "a"}}

	tests := []struct {
		name          string
		msg           Message
		download      *Media
		downloadErr   error
		wantReplies   []string
		wantDownloads int
		wantSent      bool
	}{
		{
			name:        "no quote",
			msg:         userMsg(".get"),
			wantReplies: []string{ReplyFetchNoQuote},
		},
		{
			name:        "view once",
			msg:         withQuote(userMsg(".get"), Message{ID: "7", ViewOnce: true, Media: image.Media}),
			wantReplies: []string{ReplyFetchViewOnce},
		},
		{
			name:        "ephemeral",
			msg:         withQuote(userMsg(".get"), Message{ID: "7", Ephemeral: true, Media: image.Media}),
			wantReplies: []string{ReplyFetchViewOnce},
		},
		{
			name:        "no media",
			msg:         withQuote(userMsg(".get"), Message{ID: "7", Text: "plain"}),
			wantReplies: []string{ReplyFetchNoMedia},
		},
		{
			name:          "download error",
			msg:           withQuote(userMsg(".get"), image),
			downloadErr:   errors.New("gone"),
			wantReplies:   []string{ReplyFetchFailed},
			wantDownloads: 1,
		},
		{
			name:          "empty download",
			msg:           withQuote(userMsg(".get"), image),
			download:      &Media{ContentType: "image/png"},
			wantReplies:   []string{ReplyFetchEmpty},
			wantDownloads: 1,
		},
		{
			name:          "success",
			msg:           withQuote(userMsg(".get"), image),
			download:      &Media{ContentType: "image/png", Data: []byte("png")},
			wantDownloads: 1,
			wantSent:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.transport.download = tt.download
			h.transport.downloadErr = tt.downloadErr

			h.d.Handle(context.Background(), tt.msg)

			assert.Equal(t, tt.wantReplies, h.transport.replies)
			assert.Equal(t, tt.wantDownloads, h.transport.downloads)
			if tt.wantSent {
				require.Len(t, h.transport.media, 1)
				assert.Equal(t, FetchCaption, h.transport.media[0].caption)
				assert.Equal(t, tt.msg.Chat, h.transport.media[0].chat)
				assert.Equal(t, []string{FetchReaction}, h.transport.reactions)
			} else {
				assert.Empty(t, h.transport.media)
				assert.Empty(t, h.transport.reactions)
			}
		})
	}
}

func TestHandlePrintSuccess(t *testing.T) {
	h := newHarness(t)
	h.transport.download = &Media{ContentType: "application/pdf", Data: []byte("%PDF")}

	h.d.Handle(context.Background(), withQuote(userMsg(".print 2"), pdfQuote()))

	require.Len(t, h.transport.replies, 4)
	assert.Equal(t, "🖨️ Preparing to print 2 copies...", h.transport.replies[0])
	assert.Equal(t, "📥 Downloading file for printing (2 copies)...", h.transport.replies[1])
	assert.True(t, strings.HasPrefix(h.transport.replies[2], "✅ File saved: print_"))
	assert.True(t, strings.HasSuffix(h.transport.replies[2], "\n🖨️ Sending 2 copies to printer..."))
	assert.True(t, strings.HasPrefix(h.transport.replies[3], "✅ Print job queued!\n📄 File: print_"))
	assert.True(t, strings.HasSuffix(h.transport.replies[3], "\n🔢 Copies: 2"))
	assert.Equal(t, []string{PrintOutcomeQueued}, h.recorder.prints)
}

func TestHandlePrintCapsCopies(t *testing.T) {
	h := newHarness(t)
	h.transport.download = &Media{ContentType: "application/pdf", Data: []byte("%PDF")}

	h.d.Handle(context.Background(), withQuote(userMsg(".print 99"), pdfQuote()))

	require.NotEmpty(t, h.transport.replies)
	assert.Equal(t, "⚠️ Max 10 copies allowed. Using 10.", h.transport.replies[0])
	assert.Equal(t, "🖨️ Preparing to print 10 copies...", h.transport.replies[1])
	assert.True(t, strings.HasSuffix(h.transport.replies[len(h.transport.replies)-1], "🔢 Copies: 10"))
}

func TestHandlePrintFailures(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		download    *Media
		downloadErr error
		submitErr   error
		wantLast    string
		wantOutcome string
	}{
		{
			name:        "no quote",
			msg:         userMsg(".print"),
			wantLast:    "❌ Please reply to a file with `.print` or `.print 2`",
			wantOutcome: PrintOutcomeRejected,
		},
		{
			name:        "no media",
			msg:         withQuote(userMsg(".print"), Message{ID: "1", Text: "hello"}),
			wantLast:    ReplyPrintNoMedia,
			wantOutcome: PrintOutcomeRejected,
		},
		{
			name:        "download error",
			msg:         withQuote(userMsg(".print"), pdfQuote()),
			downloadErr: errors.New("expired"),
			wantLast:    ReplyPrintDownload,
			wantOutcome: PrintOutcomeFailed,
		},
		{
			name:        "unsupported type",
			msg:         withQuote(userMsg(".print"), pdfQuote()),
			download:    &Media{ContentType: "application/msword", Data: []byte("doc")},
			wantLast:    "⚠️ File type application/msword not directly supported.\nI can only print: PDF, PNG, JPG\nTry saving as PDF first.",
			wantOutcome: PrintOutcomeUnsupported,
		},
		{
			name:        "spooler failure",
			msg:         withQuote(userMsg(".print"), pdfQuote()),
			download:    &Media{ContentType: "application/pdf", Data: []byte("%PDF")},
			submitErr:   errors.New("printer offline"),
			wantLast:    ReplyPrintFailed,
			wantOutcome: PrintOutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.transport.download = tt.download
			h.transport.downloadErr = tt.downloadErr
			h.spooler.submitErr = tt.submitErr

			h.d.Handle(context.Background(), tt.msg)

			require.NotEmpty(t, h.transport.replies)
			assert.Equal(t, "🖨️ Preparing to print 1 copy...", h.transport.replies[0])
			assert.Equal(t, tt.wantLast, h.transport.replies[len(h.transport.replies)-1])
			assert.Equal(t, []string{tt.wantOutcome}, h.recorder.prints)
		})
	}
}

func TestHandlePrintUnsupportedLeavesQueueUntouched(t *testing.T) {
	h := newHarness(t)
	h.transport.download = &Media{ContentType: "application/msword", Data: []byte("doc")}

	h.d.Handle(context.Background(), withQuote(userMsg(".print"), pdfQuote()))

	_, err := os.Stat(h.queueDir)
	assert.True(t, os.IsNotExist(err), "queue directory should not exist")
}

func TestReplyFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.transport.replyErr = errors.New("socket closed")

	h.d.Handle(context.Background(), userMsg(".ping"))
	assert.Equal(t, 1, h.recorder.replyFailure)
}
