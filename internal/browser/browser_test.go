package browser

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"
)

type fakeBrowser struct {
	mu      sync.Mutex
	shots   [][]byte
	applied []Action
	fronted bool
	onApply func()
}

func (f *fakeBrowser) Observe(context.Context) (Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var shot []byte
	if len(f.shots) > 0 {
		shot = f.shots[0]
		if len(f.shots) > 1 {
			f.shots = f.shots[1:]
		}
	}
	return Observation{URL: "https://www.google.com", Title: "Google", Text: "Search", Screenshot: shot}, nil
}

func (f *fakeBrowser) Apply(_ context.Context, a Action) error {
	f.mu.Lock()
	f.applied = append(f.applied, a)
	f.mu.Unlock()
	if f.onApply != nil {
		f.onApply()
	}
	return nil
}

func (f *fakeBrowser) BringToFront(context.Context) error {
	f.fronted = true
	return nil
}

type scriptedModel struct {
	replies []string
	prompts []string
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.prompts = append(m.prompts, contents[0].Parts[0].Text)
	reply := `{"action":"wait"}`
	if len(m.replies) > 0 {
		reply, m.replies = m.replies[0], m.replies[1:]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(reply, genai.RoleModel)}},
	}, nil
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 32 {
				img.Set(x, y, c)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"action":"navigate","url":"https://x.com"}`, ActionNavigate, false},
		{"```json\n{\"action\":\"CLICK\",\"selector\":\"#go\"}\n```", ActionClick, false},
		{`{"action":"press","key":"enter"}`, ActionPress, false},
		{`{"action":"done","reasoning":"ok"}`, ActionDone, false},
		{`{"action":"navigate"}`, "", true},
		{`{"action":"press","key":"F13"}`, "", true},
		{`{"action":"fly"}`, "", true},
		{`not json`, "", true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got.Action != tt.want {
			t.Errorf("ParseAction(%q).Action = %q, want %q", tt.in, got.Action, tt.want)
		}
	}
}

func TestRunnerDone(t *testing.T) {
	b := &fakeBrowser{}
	m := &scriptedModel{replies: []string{
		`{"action":"type","selector":"textarea","text":"flights"}`,
		`{"action":"press","key":"Enter"}`,
		`{"action":"done","reasoning":"Cheapest flight is 89 EUR."}`,
	}}
	r := NewRunner(b, m, "model", 0)

	got, err := r.Run(context.Background(), "find flights")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "Cheapest flight is 89 EUR." {
		t.Errorf("summary = %q", got)
	}
	if len(b.applied) != 2 || b.applied[0].Text != "flights" {
		t.Errorf("applied = %+v", b.applied)
	}
	if !b.fronted {
		t.Error("browser should be brought to front")
	}
	if !strings.Contains(m.prompts[2], "step 1: type \"flights\" into textarea") {
		t.Errorf("history missing from prompt: %s", m.prompts[2])
	}
}

func TestRunnerStepBudget(t *testing.T) {
	b := &fakeBrowser{}
	r := NewRunner(b, &scriptedModel{}, "model", 3)

	got, err := r.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != DefaultSummary {
		t.Errorf("summary = %q, want default", got)
	}
	if len(b.applied) != 3 {
		t.Errorf("applied %d actions, want 3", len(b.applied))
	}
}

func TestRunnerCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &fakeBrowser{onApply: cancel}
	r := NewRunner(b, &scriptedModel{}, "model", 10)

	if _, err := r.Run(ctx, "q"); err != context.Canceled {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if len(b.applied) != 1 {
		t.Errorf("applied %d actions after cancel, want 1", len(b.applied))
	}
	if b.fronted {
		t.Error("cancelled task should not raise the window")
	}
}

func TestRunnerNotesUnchangedPage(t *testing.T) {
	same := solidPNG(t, color.Black)
	b := &fakeBrowser{shots: [][]byte{same}}
	m := &scriptedModel{replies: []string{
		`{"action":"click","selector":"#nothing"}`,
		`{"action":"done"}`,
	}}
	r := NewRunner(b, m, "model", 5)

	if _, err := r.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(m.prompts[0], "did not visibly change") {
		t.Error("first step has nothing to compare against")
	}
	if !strings.Contains(m.prompts[1], "did not visibly change") {
		t.Errorf("second prompt should flag an unchanged page: %s", m.prompts[1])
	}
}

func TestRunnerInvalidReplyContinues(t *testing.T) {
	b := &fakeBrowser{}
	m := &scriptedModel{replies: []string{`garbage`, `{"action":"done","reasoning":"fine"}`}}
	r := NewRunner(b, m, "model", 5)

	got, err := r.Run(context.Background(), "q")
	if err != nil || got != "fine" {
		t.Errorf("Run = %q, %v", got, err)
	}
	if !strings.Contains(m.prompts[1], "invalid reply") {
		t.Error("invalid reply should be reported back to the model")
	}
}

func TestChromeReuseLogsQuietly(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	running := context.Background()
	c := &Chrome{ctx: running}
	for i := 0; i < 3; i++ {
		got, err := c.tab(context.Background())
		if err != nil || got != running {
			t.Fatalf("tab() = %v, %v, want the running browser", got, err)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("info log = %q, want nothing for a reused browser", buf.String())
	}
}
