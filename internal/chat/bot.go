package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
	"github.com/p-n-ai/pai-tutor/internal/policy"
	"github.com/p-n-ai/pai-tutor/internal/tutor"
)

// Replies that do not depend on tutor state.
const (
	helpText = "Send /start to begin. Answer each question by replying with your answer.\n" +
		"/next skips to the next concept, /concepts lists them."
	notStartedText  = "Send /start to begin."
	unavailableText = "The tutor is unavailable right now. Please try again later."
	noQuestionText  = "There is no open question. Send /next to move on or /start to restart."
)

// Tutor is the session surface the bot drives. *tutor.Registry implements it.
type Tutor interface {
	Create(ctx context.Context, learnerID string) (string, tutor.Step, error)
	Start(ctx context.Context, sessionID string) (tutor.Step, error)
	Answer(ctx context.Context, sessionID, questionID, userAnswer string, responseTimeMs int64) (tutor.Step, error)
	Advance(ctx context.Context, sessionID string) (tutor.Step, error)
	Snapshot(sessionID string) (learner.State, string, error)
	Concepts() ([]content.Concept, error)
}

// Bot runs one tutoring session per chat conversation. Free text is graded as
// the answer to the last question the bot asked.
type Bot struct {
	tutor   Tutor
	gateway *Gateway
	now     func() time.Time

	mu    sync.Mutex
	chats map[string]*conversation
}

type conversation struct {
	mu         sync.Mutex
	sessionID  string
	questionID string
	askedAt    time.Time
}

// NewBot creates a bot that replies through gw.
func NewBot(t Tutor, gw *Gateway) *Bot {
	return &Bot{
		tutor:   t,
		gateway: gw,
		now:     time.Now,
		chats:   make(map[string]*conversation),
	}
}

// HandleMessage processes one inbound message and sends the reply. Messages
// from the same conversation are handled one at a time.
func (b *Bot) HandleMessage(ctx context.Context, msg InboundMessage) {
	conv := b.conversation(msg.Channel + ":" + msg.UserID)
	conv.mu.Lock()
	reply := b.respond(ctx, conv, msg)
	conv.mu.Unlock()

	if reply == "" {
		return
	}
	if err := b.gateway.Send(ctx, OutboundMessage{
		Channel: msg.Channel,
		UserID:  msg.UserID,
		Text:    reply,
	}); err != nil {
		slog.Error("failed to send reply", "channel", msg.Channel, "error", err)
	}
}

func (b *Bot) conversation(key string) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.chats[key]
	if !ok {
		conv = &conversation{}
		b.chats[key] = conv
	}
	return conv
}

func (b *Bot) respond(ctx context.Context, conv *conversation, msg InboundMessage) string {
	cmd := command(msg.Text)
	switch cmd {
	case "/start":
		return b.start(ctx, conv, msg)
	case "/next":
		if conv.sessionID == "" {
			return notStartedText
		}
		step, err := b.tutor.Advance(ctx, conv.sessionID)
		if err != nil {
			return b.recover(ctx, conv, msg, err)
		}
		return b.render(conv, step)
	case "/concepts":
		concepts, err := b.tutor.Concepts()
		if err != nil {
			return unavailableText
		}
		return renderConcepts(concepts)
	case "":
	default:
		return helpText
	}

	if conv.sessionID == "" {
		return notStartedText
	}
	if conv.questionID == "" {
		return noQuestionText
	}

	elapsed := b.now().Sub(conv.askedAt).Milliseconds()
	questionID := conv.questionID
	step, err := b.tutor.Answer(ctx, conv.sessionID, questionID, msg.Text, elapsed)
	if err != nil {
		return b.recover(ctx, conv, msg, err)
	}
	return b.feedback(conv.sessionID) + b.render(conv, step)
}

func (b *Bot) start(ctx context.Context, conv *conversation, msg InboundMessage) string {
	if conv.sessionID != "" {
		step, err := b.tutor.Start(ctx, conv.sessionID)
		if err == nil {
			return b.render(conv, step)
		}
		if !errors.Is(err, tutor.ErrSessionNotFound) {
			return b.recover(ctx, conv, msg, err)
		}
	}

	id, step, err := b.tutor.Create(ctx, msg.Channel+":"+msg.UserID)
	if err != nil {
		slog.Error("failed to create chat session", "channel", msg.Channel, "error", err)
		return unavailableText
	}
	conv.sessionID = id

	greeting := "Let's begin!"
	if msg.FirstName != "" {
		greeting = fmt.Sprintf("Hi %s, let's begin!", msg.FirstName)
	}
	return greeting + "\n\n" + b.render(conv, step)
}

// recover handles tutor errors. An evicted session is replaced by a new one.
func (b *Bot) recover(ctx context.Context, conv *conversation, msg InboundMessage, err error) string {
	if errors.Is(err, tutor.ErrSessionNotFound) {
		conv.sessionID = ""
		conv.questionID = ""
		return "Your session expired. " + b.start(ctx, conv, msg)
	}
	if !errors.Is(err, tutor.ErrNotInitialized) {
		slog.Error("chat tutor request failed", "channel", msg.Channel, "error", err)
	}
	return unavailableText
}

func (b *Bot) feedback(sessionID string) string {
	st, _, err := b.tutor.Snapshot(sessionID)
	if err != nil || len(st.History) == 0 {
		return ""
	}
	if st.History[len(st.History)-1].IsCorrect {
		return "Correct!\n\n"
	}
	return "Not quite.\n\n"
}

// render turns a step into chat text and remembers an asked question.
func (b *Bot) render(conv *conversation, step tutor.Step) string {
	conv.questionID = ""
	a := step.Action

	switch a.Kind {
	case policy.KindQuestion:
		q := a.Question
		conv.questionID = q.ID.String()
		conv.askedAt = b.now()

		var sb strings.Builder
		fmt.Fprintf(&sb, "Question (%s): ", step.ConceptID)
		if q.Text != "" {
			sb.WriteString(q.Text)
		} else {
			sb.WriteString(q.ID.String())
		}
		if len(q.Choices) > 0 {
			sb.WriteString("\nChoices: " + strings.Join(q.Choices, ", "))
		}
		if q.Hint != "" {
			sb.WriteString("\nHint: " + q.Hint)
		}
		return sb.String()

	case policy.KindExample:
		ex := a.Example
		var sb strings.Builder
		sb.WriteString("Worked example")
		if ex.Title != "" {
			sb.WriteString(": " + ex.Title)
		}
		if ex.Content != "" {
			sb.WriteString("\n" + ex.Content)
		}
		for _, s := range ex.Steps {
			sb.WriteString("\n- " + s)
		}
		sb.WriteString("\n\nSend /next when you are ready for the next concept.")
		return sb.String()

	case policy.KindEndConcept:
		return a.Notice.Message + " Send /next to continue."

	default:
		return a.Notice.Message
	}
}

func renderConcepts(concepts []content.Concept) string {
	if len(concepts) == 0 {
		return "No concepts are available."
	}
	var sb strings.Builder
	sb.WriteString("Concepts:")
	n := 0
	for _, c := range concepts {
		if c.ID == "" {
			continue
		}
		n++
		fmt.Fprintf(&sb, "\n%d. %s", n, c.ID)
		if c.Name != "" {
			sb.WriteString(" " + c.Name)
		}
	}
	return sb.String()
}

// command returns the bot command in text ("/start@MyBot now" -> "/start"),
// or "" when text is not a command.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}
