package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/admitchat/internal/session"
	"github.com/user/admitchat/internal/types"
)

const maxTelegramMessage = 4096

// editInterval throttles progressive message edits while tokens stream;
// Telegram rate-limits edits far below token arrival rates.
const editInterval = 700 * time.Millisecond

// ControllerFactory builds a session controller for one owner namespace.
// The factory receives the hooks the adapter needs wired into the controller.
type ControllerFactory func(owner types.OwnerID, onToken func(string), onNotice func(string)) (*session.Controller, error)

// Adapter bridges Telegram chats to session controllers: each chat is its own
// owner namespace, and assistant replies are streamed by editing a
// placeholder message as tokens arrive.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	factory ControllerFactory

	mu    sync.Mutex
	chats map[int64]*chatSession
}

// chatSession is the per-chat controller plus in-flight streaming state.
type chatSession struct {
	ctrl *session.Controller
	edit func(chatID int64, messageID int, text string)

	mu        sync.Mutex
	chatID    int64
	messageID int
	buffer    strings.Builder
	lastEdit  time.Time
	notice    string
}

// New creates a Telegram adapter.
func New(token string, factory ControllerFactory) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:     bot,
		factory: factory,
		chats:   make(map[int64]*chatSession),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// chatFor returns the chat's session, creating its controller on first use.
func (a *Adapter) chatFor(ctx context.Context, chatID int64, userID int64) (*chatSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cs, ok := a.chats[chatID]; ok {
		return cs, nil
	}

	cs := &chatSession{chatID: chatID, edit: a.editProgress}
	ctrl, err := a.factory(buildOwner(userID, chatID), cs.onToken, cs.onNotice)
	if err != nil {
		return nil, err
	}
	cs.ctrl = ctrl
	if err := ctrl.Resume(ctx); err != nil {
		return nil, err
	}
	a.chats[chatID] = cs
	return cs, nil
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	cs, err := a.chatFor(ctx, chatID, msg.From.ID)
	if err != nil {
		slog.Error("create chat session failed", "chat_id", chatID, "error", err)
		a.sendText(chatID, "Sorry, I could not start a session. Please try again later.")
		return
	}

	if msg.IsCommand() {
		a.handleCommand(ctx, cs, msg)
		return
	}

	// Placeholder the streaming edits will fill in.
	sent, err := a.bot.Send(tgbotapi.NewMessage(chatID, "…"))
	if err != nil {
		slog.Error("send placeholder failed", "chat_id", chatID, "error", err)
		return
	}
	cs.beginStream(sent.MessageID)

	err = cs.ctrl.Send(ctx, msg.Text)
	final, notice := cs.endStream()

	switch {
	case errors.Is(err, session.ErrBusy):
		a.sendText(chatID, "I'm still answering your previous question, one moment.")
		a.deleteMessage(chatID, sent.MessageID)
		return
	case notice != "":
		if final == "" {
			final = notice
		} else {
			final += "\n\n⚠️ " + notice
		}
	case final == "":
		final = "Sorry, I didn't get an answer. Please try again."
	}

	a.editOrSend(chatID, sent.MessageID, final)

	if err != nil {
		slog.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) handleCommand(ctx context.Context, cs *chatSession, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendText(chatID, "Hello! I'm the admissions assistant. Ask me anything about your application or coursework.")

	case "new":
		if err := cs.ctrl.NewThread(ctx); err != nil {
			a.sendText(chatID, "Could not start a new conversation.")
			return
		}
		a.sendText(chatID, "Started a new conversation. Your previous threads are kept in history.")

	case "threads":
		threads, err := cs.ctrl.Threads(ctx)
		if err != nil || len(threads) == 0 {
			a.sendText(chatID, "No saved conversations yet.")
			return
		}
		var b strings.Builder
		for _, t := range threads {
			fmt.Fprintf(&b, "• %s (%s)\n", t.Title, t.LastActivity.Format("Jan 2 15:04"))
		}
		a.sendText(chatID, b.String())

	case "status":
		a.sendText(chatID, fmt.Sprintf(
			"Thread: %s\nState: %s\nMessages: %d",
			cs.ctrl.Active(), cs.ctrl.State(), len(cs.ctrl.Messages()),
		))

	default:
		a.sendText(chatID, "Unknown command. Available: /start, /new, /threads, /status")
	}
}

// onToken accumulates streamed text and edits the placeholder on a throttle.
func (cs *chatSession) onToken(text string) {
	cs.mu.Lock()
	cs.buffer.WriteString(text)
	if cs.messageID == 0 || time.Since(cs.lastEdit) < editInterval {
		cs.mu.Unlock()
		return
	}
	cs.lastEdit = time.Now()
	content := cs.buffer.String()
	chatID, messageID := cs.chatID, cs.messageID
	cs.mu.Unlock()

	if cs.edit != nil {
		cs.edit(chatID, messageID, content)
	}
}

func (cs *chatSession) onNotice(text string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.notice = text
}

func (cs *chatSession) beginStream(messageID int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.messageID = messageID
	cs.buffer.Reset()
	cs.lastEdit = time.Now()
	cs.notice = ""
}

// endStream returns the accumulated answer and any notice, resetting state.
func (cs *chatSession) endStream() (content, notice string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	content = cs.buffer.String()
	notice = cs.notice
	cs.messageID = 0
	cs.buffer.Reset()
	cs.notice = ""
	return content, notice
}

// editProgress updates the placeholder with a partial answer. Edit failures
// here are tolerated; the final edit will catch up.
func (a *Adapter) editProgress(chatID int64, messageID int, text string) {
	if len(text) > maxTelegramMessage {
		text = text[:maxTelegramMessage]
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := a.bot.Send(edit); err != nil {
		slog.Debug("progress edit failed", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) editOrSend(chatID int64, messageID int, text string) {
	parts := splitMessage(text)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parts[0])
	if _, err := a.bot.Send(edit); err != nil {
		slog.Warn("edit message failed", "chat_id", chatID, "error", err)
		a.sendText(chatID, parts[0])
	}
	for _, part := range parts[1:] {
		a.sendText(chatID, part)
	}
}

func (a *Adapter) sendText(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			slog.Warn("send message failed", "chat_id", chatID, "error", err)
		}
	}
}

func (a *Adapter) deleteMessage(chatID int64, messageID int) {
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		slog.Warn("delete message failed", "chat_id", chatID, "error", err)
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

// buildOwner maps a Telegram user+chat to an owner namespace.
func buildOwner(userID, chatID int64) types.OwnerID {
	return types.OwnerID("telegram:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(chatID, 10))
}
