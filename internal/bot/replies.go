package bot

import (
	"fmt"
	"strings"

	"github.com/Veraticus/erika/internal/intent"
	"github.com/Veraticus/erika/internal/printer"
)

// Fixed replies.
const (
	ReplyChatHint = "Hmph… say something after *%s*!"

	ReplyDeleteNoQuote = "❌ You must *reply to a message* with `%s` to delete it."
	ReplyDeleteFailed  = "⚠️ Could not delete the message."

	ReplyFetchNoQuote  = "Hey, reply to a message first! 🙄"
	ReplyFetchViewOnce = "🔒 *Encrypted/View-Once Media!*\n" +
		"View-once and disappearing media can't be saved by bots.\n" +
		"Try with a normal image or video! 🙂"
	ReplyFetchNoMedia = "Hmm... I don't see any media here! 🤨"
	ReplyFetchEmpty   = "Huh, media seems expired or empty! 😕"
	ReplyFetchFailed  = "Oops! Something went wrong. Maybe try again? 😅"
	FetchCaption      = "Saved! 💾"
	FetchReaction     = "✅"

	ReplyPong = "🏓 Pong! %dms"

	ReplyPrintNoQuote     = "❌ Please reply to a file with `%[1]s` or `%[1]s 2`"
	ReplyPrintNoMedia     = "❌ The message you replied to doesn't contain a file."
	ReplyPrintDownload    = "❌ Could not download the file."
	ReplyPrintUnsupported = "⚠️ File type %s not directly supported.\nI can only print: %s\nTry saving as PDF first."
	ReplyPrintFailed      = "❌ Failed to print. Check:\n1. Printer is ON\n2. Default printer is set\n3. Printer has paper"
	ReplyPrintError       = "❌ Error processing print command. Please try: `%[1]s` or `%[1]s 2`"
	ReplyPrintCapped      = "⚠️ Max %d copies allowed. Using %d."
	ReplyPrintPreparing   = "🖨️ Preparing to print %s..."
	ReplyPrintDownloading = "📥 Downloading file for printing (%s)..."
	ReplyPrintSaved       = "✅ File saved: %s\n🖨️ Sending %s to printer..."
	ReplyPrintQueued      = "✅ Print job queued!\n📄 File: %s\n🔢 Copies: %d"
)

// HelpText lists the commands for cfg's prefix and trigger.
func HelpText(cfg intent.Config) string {
	name := cfg.Trigger
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}

	var b strings.Builder
	b.WriteString("👑 Hey, it's Your Commands List Yay!\n\n")
	fmt.Fprintf(&b, "%s [text] → Talk to %s\n", cfg.ChatCommand(), name)
	fmt.Fprintf(&b, "%s → Random quote from anime\n", cfg.Command(intent.QuoteCommand))
	fmt.Fprintf(&b, "%s → Check response time\n", cfg.Command(intent.PingCommand))
	fmt.Fprintf(&b, "%s → Save quoted media\n", cfg.Command(intent.FetchCommand))
	fmt.Fprintf(&b, "%s [N] → Print the quoted file (max %d copies)\n", cfg.Command(intent.PrintCommand), printer.MaxCopies)
	fmt.Fprintf(&b, "%s → Delete the quoted message\n", cfg.Command(intent.DeleteCommand))
	fmt.Fprintf(&b, "%s → Commands list\n\n", cfg.Command(intent.HelpCommand))
	b.WriteString(helpRules)
	return b.String()
}

const helpRules = `- Respect everyone.
- No spamming, flooding, or repeated messages.
- No explicit or harmful content.
- Avoid forwarding fake or misleading information.
- Admin decisions are final; follow instructions.
- Use commands responsibly.
- Keep the chat peaceful and friendly.`

func copiesLabel(n int) string {
	if n == 1 {
		return "1 copy"
	}
	return fmt.Sprintf("%d copies", n)
}

func unsupportedReply(mimeType string) string {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "unknown"
	}
	return fmt.Sprintf(ReplyPrintUnsupported, mimeType, printer.SupportedLabels)
}
