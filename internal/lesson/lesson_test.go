package lesson_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/voicetutor/internal/config"
	"github.com/MrWong99/voicetutor/internal/lesson"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
	llmmock "github.com/MrWong99/voicetutor/pkg/provider/llm/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

const lectureDialogs = `{
  "dialogs": [{
    "prompt": {"mode": "lecture", "text": ""},
    "pdf_book": {"dialogs": {"sections": [{
      "title": "Forces",
      "context": "Gravity is a force that pulls objects toward each other.",
      "dialogs": [
        {"question": "What is gravity?", "answer": "A force that pulls objects toward each other."},
        {"question": "Why do apples fall?", "answer": "Because gravity pulls them down."}
      ]
    }]}}
  }]
}`

const chatDialogs = `{
  "dialogs": [{
    "prompt": {"mode": "Chat", "text": "food and cooking"},
    "pdf_book": {"dialogs": {"sections": []}}
  }]
}`

const generatedLesson = "Here is your lesson:\n```json\n" + `{
  "title": "Talking About Food",
  "level": "Beginner",
  "conversations": [
    {"prompt": "What is your favourite food?", "expected_responses": ["I like pizza"], "follow_up": "Yummy!"},
    {"prompt": "", "expected_responses": [], "follow_up": ""}
  ]
}` + "\n```"

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != lesson.DialogsPath {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func first(int) int { return 0 }

func assertConfigErr(t *testing.T, err error) {
	t.Helper()
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v (%T), want *config.ConfigurationError", err, err)
	}
}

// ─── Lesson ──────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()

	good := lesson.NewLecture(&lesson.LectureLesson{Turns: []lesson.LectureTurn{{Question: "q", Answer: "a"}}})
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if good.Len() != 1 {
		t.Errorf("got len %d, want 1", good.Len())
	}

	bad := []*lesson.Lesson{
		nil,
		{Mode: config.ModeLecture},
		{Mode: config.ModeChat},
		lesson.NewChat(&lesson.ChatLesson{}),
		lesson.NewLecture(&lesson.LectureLesson{Turns: []lesson.LectureTurn{{Question: "  "}}}),
		{Mode: "quiz", Lecture: good.Lecture},
	}
	for i, l := range bad {
		err := l.Validate()
		if err == nil {
			t.Errorf("case %d: expected error", i)
			continue
		}
		assertConfigErr(t, err)
	}
	if err := lesson.NewChat(&lesson.ChatLesson{}).Validate(); !errors.Is(err, lesson.ErrNoContent) {
		t.Errorf("empty chat lesson: got %v, want ErrNoContent", err)
	}
}

// ─── Backend ─────────────────────────────────────────────────────────────────

func TestBackend_Lecture(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, lectureDialogs)
	b := &lesson.Backend{URL: srv.URL + "/"}

	l, err := b.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Mode != config.ModeLecture {
		t.Errorf("got mode %q, want lecture", l.Mode)
	}
	if l.Title() != "Forces" {
		t.Errorf("got title %q, want Forces", l.Title())
	}
	if l.Len() != 2 {
		t.Fatalf("got %d turns, want 2", l.Len())
	}
	if l.Lecture.Turns[0].Question != "What is gravity?" {
		t.Errorf("got question %q", l.Lecture.Turns[0].Question)
	}
	if !strings.HasPrefix(l.Lecture.Context, "Gravity") {
		t.Errorf("got context %q", l.Lecture.Context)
	}
}

func TestBackend_ChatGeneratesFromTopic(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, chatDialogs)
	p := &llmmock.Provider{Responses: []string{generatedLesson}}
	b := &lesson.Backend{URL: srv.URL, Generator: &lesson.Generator{LLM: p, Pick: first}}

	l, err := b.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Mode != config.ModeChat {
		t.Errorf("got mode %q, want chat", l.Mode)
	}
	if l.Title() != "Talking About Food" {
		t.Errorf("got title %q", l.Title())
	}
	if l.Len() != 1 {
		t.Errorf("got %d turns, want 1 (blank prompt dropped)", l.Len())
	}
	if got := p.CompleteCalls[0].Req.SystemPrompt; !strings.Contains(got, "food and cooking") {
		t.Errorf("system prompt should carry the topic, got %q", got)
	}
}

func TestBackend_ConfiguredModeWins(t *testing.T) {
	t.Parallel()

	// The backend says chat, the config says lecture, and there is no lecture content.
	srv := serve(t, http.StatusOK, chatDialogs)
	b := &lesson.Backend{URL: srv.URL}
	_, err := b.Load(context.Background(), config.ModeLecture)
	assertConfigErr(t, err)
	if !errors.Is(err, lesson.ErrNoContent) {
		t.Errorf("got %v, want ErrNoContent", err)
	}
}

func TestBackend_UnknownMode(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, `{"dialogs":[{"prompt":{"mode":"quiz"}}]}`)
	_, err := (&lesson.Backend{URL: srv.URL}).Load(context.Background(), "")
	assertConfigErr(t, err)
}

func TestBackend_NoDialogs(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, `{"dialogs":[]}`)
	_, err := (&lesson.Backend{URL: srv.URL}).Load(context.Background(), "")
	if !errors.Is(err, lesson.ErrNoContent) {
		t.Errorf("got %v, want ErrNoContent", err)
	}
}

func TestBackend_HTTPError(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusServiceUnavailable, "down")
	_, err := (&lesson.Backend{URL: srv.URL}).Load(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("got %v, want status 503 error", err)
	}
}

func TestBackend_ChatWithoutGenerator(t *testing.T) {
	t.Parallel()

	srv := serve(t, http.StatusOK, chatDialogs)
	_, err := (&lesson.Backend{URL: srv.URL}).Load(context.Background(), "")
	assertConfigErr(t, err)
}

// ─── File ────────────────────────────────────────────────────────────────────

func TestFile_YAML(t *testing.T) {
	t.Parallel()

	doc := `
mode: lecture
lecture:
  title: Forces
  context: Gravity pulls.
  dialogs:
    - question: What is gravity?
      answer: A pulling force.
chat:
  title: Greetings
  level: Beginner
  conversations:
    - prompt: Say hello.
      expected_responses: [Hello]
      follow_up: Nice!
`
	path := filepath.Join(t.TempDir(), "lesson.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	f := &lesson.File{Path: path}

	l, err := f.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Mode != config.ModeLecture || l.Title() != "Forces" {
		t.Errorf("got %q/%q, want lecture/Forces", l.Mode, l.Title())
	}

	l, err = f.Load(context.Background(), config.ModeChat)
	if err != nil {
		t.Fatalf("Load chat: %v", err)
	}
	if l.Chat.Turns[0].ExpectedResponses[0] != "Hello" {
		t.Errorf("got %+v", l.Chat.Turns[0])
	}
}

func TestParse_JSONInfersMode(t *testing.T) {
	t.Parallel()

	doc := `{"chat": {"title": "T", "level": "Beginner", "conversations": [{"prompt": "Hi?", "expected_responses": ["Hi"], "follow_up": "Good"}]}}`
	l, err := lesson.Parse(strings.NewReader(doc), "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.Mode != config.ModeChat {
		t.Errorf("got mode %q, want chat", l.Mode)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "lecture:\n  title: x\n", "mode: chat\n"} {
		_, err := lesson.Parse(strings.NewReader(doc), "")
		assertConfigErr(t, err)
	}
	if _, err := lesson.Parse(strings.NewReader("unknown: 1\n"), ""); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := (&lesson.File{Path: filepath.Join(t.TempDir(), "nope.yaml")}).Load(context.Background(), "")
	assertConfigErr(t, err)
}

// ─── Generator ───────────────────────────────────────────────────────────────

func TestGenerator_UsesLevelAndTopic(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Responses: []string{`{"title":"Pets","conversations":[{"prompt":"Do you have a pet?"}]}`}}
	g := &lesson.Generator{LLM: p, Pick: func(n int) int { return n - 1 }}

	chat, err := g.Generate(context.Background(), "pets")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if chat.Level != "Elementary" {
		t.Errorf("got level %q, want Elementary from the picker", chat.Level)
	}
	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.Messages[0].Content, "Elementary level students") {
		t.Errorf("user prompt should name the level, got %q", req.Messages[0].Content)
	}
	if !strings.Contains(req.SystemPrompt, "topic of pets") {
		t.Errorf("system prompt should name the topic, got %q", req.SystemPrompt)
	}
}

func TestGenerator_Fallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    llm.Provider
	}{
		{"llm error", &llmmock.Provider{CompleteErr: errors.New("connection refused")}},
		{"not json", &llmmock.Provider{Responses: []string{"Sorry, I can't do that."}}},
		{"broken json", &llmmock.Provider{Responses: []string{`{"title": "x", "conversations": [`}}},
		{"no conversations", &llmmock.Provider{Responses: []string{`{"title": "x", "conversations": []}`}}},
		{"no llm", nil},
		{"nil response", &llmmock.Provider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := &lesson.Generator{LLM: tt.p, Pick: first}
			chat, err := g.Generate(context.Background(), "")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if chat.Title != "Basic English Greetings" {
				t.Errorf("got title %q, want fallback", chat.Title)
			}
			if len(chat.Turns) != 4 {
				t.Errorf("got %d turns, want 4", len(chat.Turns))
			}
		})
	}
}

func TestGenerator_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &lesson.Generator{LLM: &llmmock.Provider{CompleteErr: context.Canceled}, Pick: first}
	if _, err := g.Generate(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestGenerator_LoadRejectsLecture(t *testing.T) {
	t.Parallel()

	g := &lesson.Generator{Pick: first}
	_, err := g.Load(context.Background(), config.ModeLecture)
	assertConfigErr(t, err)

	l, err := g.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Mode != config.ModeChat || l.Len() != 4 {
		t.Errorf("got %q with %d turns, want chat fallback", l.Mode, l.Len())
	}
}

func TestFallbackChatLesson_IsFreshCopy(t *testing.T) {
	t.Parallel()

	a := lesson.FallbackChatLesson()
	a.Turns[0].Prompt = "mutated"
	if lesson.FallbackChatLesson().Turns[0].Prompt == "mutated" {
		t.Error("fallback lesson shares state between calls")
	}
}
