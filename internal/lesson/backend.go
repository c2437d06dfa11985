package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voicetutor/internal/config"
)

// DialogsPath is the backend endpoint that serves lesson dialogs.
const DialogsPath = "/api/get-json-dialogs"

// Backend loads lessons from the content backend.
//
// The backend returns a list of dialogs; only the first is used. Its prompt
// names the mode. Lecture content is the first section of the attached PDF
// book. Chat content is generated from the prompt text by Generator.
type Backend struct {
	// URL is the backend base URL.
	URL string

	// Generator turns a chat topic into a lesson. Required for chat mode.
	Generator *Generator

	// HTTPClient is used for requests. Nil means a client with a 30s timeout.
	HTTPClient *http.Client
}

var _ Source = (*Backend)(nil)

type dialogsResponse struct {
	Dialogs []dialog `json:"dialogs"`
}

type dialog struct {
	Prompt struct {
		Mode string `json:"mode"`
		Text string `json:"text"`
	} `json:"prompt"`
	PDFBook struct {
		Dialogs struct {
			Sections []LectureLesson `json:"sections"`
		} `json:"dialogs"`
	} `json:"pdf_book"`
}

// Load implements Source.
func (b *Backend) Load(ctx context.Context, mode config.Mode) (*Lesson, error) {
	d, err := b.fetch(ctx)
	if err != nil {
		return nil, err
	}

	mode, err = resolveMode(mode, config.Mode(strings.ToLower(strings.TrimSpace(d.Prompt.Mode))))
	if err != nil {
		return nil, err
	}

	var l *Lesson
	switch mode {
	case config.ModeLecture:
		sections := d.PDFBook.Dialogs.Sections
		if len(sections) == 0 {
			return nil, contentError("pdf_book.dialogs.sections", "backend returned no lecture sections")
		}
		sec := sections[0]
		l = NewLecture(&sec)
	case config.ModeChat:
		if b.Generator == nil {
			return nil, &config.ConfigurationError{Field: "lesson", Reason: "chat mode requires a lesson generator"}
		}
		chat, err := b.Generator.Generate(ctx, d.Prompt.Text)
		if err != nil {
			return nil, fmt.Errorf("lesson: generate chat lesson: %w", err)
		}
		l = NewChat(chat)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (b *Backend) fetch(ctx context.Context) (*dialog, error) {
	client := b.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	url := strings.TrimRight(b.URL, "/") + DialogsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("lesson: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lesson: fetch dialogs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lesson: fetch dialogs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body dialogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("lesson: decode dialogs: %w", err)
	}
	if len(body.Dialogs) == 0 {
		return nil, contentError("dialogs", "backend returned no dialogs")
	}
	return &body.Dialogs[0], nil
}
