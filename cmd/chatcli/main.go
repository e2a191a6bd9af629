package main

import (
	"bufio"
	"context"
	"fmt"
	stdlog "log"
	"os"
	"strconv"
	"strings"

	"matscigpt/backend/internal/attachments"
	"matscigpt/backend/internal/chat"
	"matscigpt/backend/internal/history"
	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/config"
	"matscigpt/backend/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	logConfig := logger.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logConfig.JSON = os.Getenv("LOG_FORMAT") != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	cfg := config.New()

	store := history.NewStore(cfg.History.Path, log)
	encoder := attachments.NewEncoderWithLimits(attachments.Limits{
		MaxPerMessage: cfg.Limits.MaxAttachments,
		MaxImageBytes: cfg.Limits.MaxImageBytes,
		MaxPDFBytes:   cfg.Limits.MaxPDFBytes,
	}, func(name string, reason error) {
		fmt.Printf("skipped %s: %v\n", name, reason)
	}, log)

	transport := chat.NewHTTPTransport(cfg.Server.BaseURL, cfg.Providers.Timeout)
	dispatcher := chat.NewDispatcher(transport, func(msgs []models.Message) {
		outcome := store.SaveSession(msgs)
		if outcome.Saved && !outcome.Persisted {
			fmt.Println("warning: chat saved in memory but could not be written to disk")
		}
	}, cfg.Providers.Timeout, log)

	fmt.Println("MaterialScienceGPT chat. Type a message, or /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" && len(encoder.Pending()) == 0 {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := runCommand(line, dispatcher, encoder, store); done {
				return
			}
			continue
		}
		send(dispatcher, encoder, line)
	}
}

func runCommand(line string, dispatcher *chat.Dispatcher, encoder *attachments.Encoder, store *history.Store) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		dispatcher.ClearMessages()
		return true

	case "/help":
		fmt.Println(`commands:
  /image <path>   attach an image (max 3 attachments, 8 MB each)
  /pdf <path>     attach a PDF (max 3 attachments, 15 MB each)
  /pending        list pending attachments
  /clear          save and clear the current conversation
  /history        list saved conversations
  /load <id>      reopen a saved conversation
  /wipe           delete all saved history
  /quit           save and exit`)

	case "/image", "/pdf":
		if arg == "" {
			fmt.Println("usage: " + cmd + " <path>")
			break
		}
		file, err := attachments.ReadFile(arg)
		if err != nil {
			fmt.Printf("cannot read %s: %v\n", arg, err)
			break
		}
		kind := models.AttachmentImage
		if cmd == "/pdf" {
			kind = models.AttachmentPDF
		}
		for _, a := range encoder.Add([]attachments.File{file}, kind) {
			fmt.Printf("attached %s (%s)\n", a.Name, a.MimeType)
		}

	case "/pending":
		for _, a := range encoder.Pending() {
			fmt.Printf("  %s  %s (%s)\n", a.ID, a.Name, a.Type)
		}

	case "/clear":
		dispatcher.ClearMessages()
		encoder.Clear()
		fmt.Println("conversation cleared")

	case "/history":
		store.RefreshDates()
		for _, s := range store.Sessions() {
			fmt.Printf("  %d  %s (%s, %s, %d messages)\n", s.ID, s.Title, s.Date, s.Time, s.MessageCount)
		}

	case "/load":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Println("usage: /load <id>")
			break
		}
		msgs := store.LoadSession(id)
		if msgs == nil {
			fmt.Println("no such conversation")
			break
		}
		dispatcher.ClearMessages()
		dispatcher.LoadMessages(msgs)
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}

	case "/wipe":
		if err := store.ClearHistory(); err != nil {
			fmt.Printf("could not clear history: %v\n", err)
		} else {
			fmt.Println("history cleared")
		}

	default:
		fmt.Println("unknown command, try /help")
	}
	return false
}

func send(dispatcher *chat.Dispatcher, encoder *attachments.Encoder, content string) {
	atts := encoder.Take()
	if err := dispatcher.SendMessage(context.Background(), content, atts); err != nil {
		encoder.Restore(atts)
		fmt.Printf("not sent: %v\n", err)
		return
	}
	msgs := dispatcher.Messages()
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		fmt.Printf("[%s] %s\n", last.Role, last.Content)
	}
}
