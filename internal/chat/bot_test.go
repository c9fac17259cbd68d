package chat_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-tutor/internal/chat"
	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/mastery"
	"github.com/p-n-ai/pai-tutor/internal/policy"
	"github.com/p-n-ai/pai-tutor/internal/tutor"
)

func newTutor(t *testing.T) *tutor.Registry {
	t.Helper()
	catalog := content.NewCatalog(
		[]content.Concept{{ID: "c1", Name: "Addition"}, {ID: "c2", Name: "Subtraction"}},
		[]content.Question{
			{ID: "q1", ConceptID: "c1", Answer: "4", Text: "What is 2 + 2?"},
			{ID: "q2", ConceptID: "c2", Answer: "5", Text: "What is 9 - 4?", Choices: []string{"4", "5"}},
		},
		map[string]content.Example{
			"l1": {ConceptID: "c1", Title: "Counting on", Steps: []string{"2 + 2", "= 4"}},
		},
	)
	reg, err := tutor.NewRegistry(tutor.RegistryConfig{
		Content:   catalog,
		Policy:    policy.NewHardestFirst(catalog),
		Estimator: mastery.NewAccuracyEstimator(catalog.ConceptIDs()),
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func newBot(t *testing.T) (*chat.Bot, *chat.MockChannel, *tutor.Registry) {
	t.Helper()
	reg := newTutor(t)
	gw := chat.NewGateway()
	mock := &chat.MockChannel{}
	gw.Register("mock", mock)
	return chat.NewBot(reg, gw), mock, reg
}

func send(t *testing.T, bot *chat.Bot, mock *chat.MockChannel, text string) string {
	t.Helper()
	bot.HandleMessage(context.Background(), chat.InboundMessage{
		Channel:   "mock",
		UserID:    "42",
		Text:      text,
		FirstName: "Ana",
	})
	msg, ok := mock.Last()
	if !ok {
		t.Fatalf("no reply to %q", text)
	}
	return msg.Text
}

func TestBot_FullLoop(t *testing.T) {
	bot, mock, _ := newBot(t)

	reply := send(t, bot, mock, "/start")
	if !strings.Contains(reply, "Hi Ana") || !strings.Contains(reply, "What is 2 + 2?") {
		t.Fatalf("/start reply = %q", reply)
	}

	reply = send(t, bot, mock, "4")
	if !strings.HasPrefix(reply, "Correct!") {
		t.Errorf("answer reply = %q, want Correct! prefix", reply)
	}
	if !strings.Contains(reply, "Counting on") {
		t.Errorf("answer reply = %q, want worked example", reply)
	}

	reply = send(t, bot, mock, "/next")
	if !strings.Contains(reply, "What is 9 - 4?") || !strings.Contains(reply, "Choices: 4, 5") {
		t.Errorf("/next reply = %q, want question q2 with choices", reply)
	}

	reply = send(t, bot, mock, "4")
	if !strings.HasPrefix(reply, "Not quite.") {
		t.Errorf("answer reply = %q, want Not quite. prefix", reply)
	}
	if !strings.Contains(reply, policy.AllMasteredMessage) {
		t.Errorf("answer reply = %q, want mastery message", reply)
	}

	reply = send(t, bot, mock, "anything")
	if !strings.Contains(reply, "no open question") {
		t.Errorf("reply after mastery = %q, want no open question", reply)
	}
}

func TestBot_NotStarted(t *testing.T) {
	bot, mock, _ := newBot(t)

	if reply := send(t, bot, mock, "4"); !strings.Contains(reply, "/start") {
		t.Errorf("reply = %q, want prompt to /start", reply)
	}
	if reply := send(t, bot, mock, "/next"); !strings.Contains(reply, "/start") {
		t.Errorf("/next reply = %q, want prompt to /start", reply)
	}
}

func TestBot_Commands(t *testing.T) {
	bot, mock, _ := newBot(t)

	reply := send(t, bot, mock, "/concepts@TutorBot")
	if !strings.Contains(reply, "1. c1 Addition") || !strings.Contains(reply, "2. c2 Subtraction") {
		t.Errorf("/concepts reply = %q", reply)
	}
	if reply := send(t, bot, mock, "/dance"); !strings.Contains(reply, "/next skips") {
		t.Errorf("unknown command reply = %q, want help", reply)
	}
}

func TestBot_RecoversEvictedSession(t *testing.T) {
	bot, mock, reg := newBot(t)
	send(t, bot, mock, "/start")

	reg.Sweep(time.Now().Add(24 * time.Hour))

	reply := send(t, bot, mock, "4")
	if !strings.Contains(reply, "session expired") || !strings.Contains(reply, "What is 2 + 2?") {
		t.Errorf("reply = %q, want a fresh session", reply)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestBot_UninitializedTutor(t *testing.T) {
	var reg *tutor.Registry
	gw := chat.NewGateway()
	mock := &chat.MockChannel{}
	gw.Register("mock", mock)
	bot := chat.NewBot(reg, gw)

	if reply := send(t, bot, mock, "/start"); !strings.Contains(reply, "unavailable") {
		t.Errorf("reply = %q, want unavailable", reply)
	}
}
