// Package intent classifies inbound chat text into a single command intent.
//
// Classification is a pure function of its Input: it never touches the
// transport, the session store or the clock, so the dispatcher can rely on
// the same text always routing the same way.
package intent

import "strings"

// Intent is the command a message resolves to.
type Intent int

// Intents in precedence order. None must stay last.
const (
	DirectChat Intent = iota
	ReplyToBot
	MentionTrigger
	QuotedFromMeTrigger
	Print
	Help
	Quote
	Ping
	Delete
	FetchMedia
	None
)

var intentNames = [...]string{
	DirectChat:          "direct_chat",
	ReplyToBot:          "reply_to_bot",
	MentionTrigger:      "mention",
	QuotedFromMeTrigger: "quoted_from_me",
	Print:               "print",
	Help:                "help",
	Quote:               "quote",
	Ping:                "ping",
	Delete:              "delete",
	FetchMedia:          "fetch_media",
	None:                "none",
}

// String returns a stable snake_case name, used as a log and metric label.
func (i Intent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return "unknown"
	}
	return intentNames[i]
}

// IsChat reports whether the intent is answered by the AI responder.
func (i Intent) IsChat() bool {
	switch i {
	case DirectChat, ReplyToBot, MentionTrigger, QuotedFromMeTrigger:
		return true
	default:
		return false
	}
}

// Input is everything classification may look at.
type Input struct {
	Text string
	// HasQuoted is set when the message replies to another message.
	HasQuoted bool
	// ReplyToBot is set when the inline quote metadata names the bot as author.
	ReplyToBot bool
	// QuotedFromMe is set when the resolved quoted message was sent by the bot.
	QuotedFromMe bool
	Sender       string
}

// Result is the classified intent plus the text the handler acts on.
type Result struct {
	Intent Intent
	// Payload is the chat prompt for chat intents and the copy argument for
	// Print. It is empty for utility commands.
	Payload string
}

// Config names the command tokens.
type Config struct {
	// Prefix starts every command, "." by default.
	Prefix string
	// Trigger is the bot's name. Prefix+Trigger is the chat command and a
	// bare mention of Trigger anywhere in the text starts a chat.
	Trigger string
}

// DefaultConfig returns the ".erika" command set.
func DefaultConfig() Config {
	return Config{Prefix: ".", Trigger: "erika"}
}

// ChatCommand returns the chat command token, e.g. ".erika".
func (c Config) ChatCommand() string {
	return c.Prefix + c.Trigger
}

// Command returns the token for a utility command name, e.g. ".del".
func (c Config) Command(name string) string {
	return c.Prefix + name
}

// Utility command names without the prefix.
const (
	HelpCommand   = "help"
	QuoteCommand  = "quote"
	PingCommand   = "ping"
	DeleteCommand = "del"
	FetchCommand  = "get"
	PrintCommand  = "print"
)

// Classify maps an inbound message to exactly one intent. The first matching
// rule wins:
//
//  1. chat command with a non-empty remainder
//  2. reply to a bot message
//  3. trigger name anywhere in the text
//  4. quoted message that the bot sent
//  5. print command
//  6. exact utility command
//  7. none
func Classify(in Input, cfg Config) Result {
	text := strings.TrimSpace(in.Text)
	lower := strings.ToLower(text)
	trigger := strings.ToLower(cfg.Trigger)
	chat := cfg.ChatCommand()

	if hasPrefixFold(text, chat) {
		if rest := strings.TrimSpace(text[len(chat):]); rest != "" {
			return Result{Intent: DirectChat, Payload: rest}
		}
	}

	if in.ReplyToBot {
		return Result{Intent: ReplyToBot, Payload: text}
	}

	if trigger != "" && strings.Contains(lower, trigger) {
		return Result{Intent: MentionTrigger, Payload: text}
	}

	if in.HasQuoted && in.QuotedFromMe {
		return Result{Intent: QuotedFromMeTrigger, Payload: text}
	}

	if printCmd := cfg.Command(PrintCommand); strings.HasPrefix(text, printCmd) {
		return Result{Intent: Print, Payload: strings.TrimSpace(text[len(printCmd):])}
	}

	switch {
	case strings.EqualFold(text, cfg.Command(HelpCommand)):
		return Result{Intent: Help}
	case strings.EqualFold(text, cfg.Command(QuoteCommand)):
		return Result{Intent: Quote}
	case strings.EqualFold(text, cfg.Command(PingCommand)):
		return Result{Intent: Ping}
	case strings.EqualFold(text, cfg.Command(DeleteCommand)):
		return Result{Intent: Delete}
	case strings.EqualFold(text, cfg.Command(FetchCommand)):
		return Result{Intent: FetchMedia}
	}

	return Result{Intent: None}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
