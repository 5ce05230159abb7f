package present

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sioux/internal/dispatch"
	"sioux/internal/message"
	"sioux/internal/style"
)

// afterFunc is swapped in tests.
var afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Closer acknowledges each presentation once its close time has elapsed.
type Closer struct{}

func (Closer) Present(_ context.Context, p dispatch.Presentation) error {
	if p.Ack != nil {
		afterFunc(p.CloseAfter, p.Ack)
	}
	return nil
}

// Terminal draws notifications as bordered boxes.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	width int
}

func NewTerminal(out io.Writer, color bool) *Terminal {
	return &Terminal{out: out, color: color, width: 60}
}

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(style.Default.Color()).
	Padding(0, 1)

func (t *Terminal) Present(ctx context.Context, p dispatch.Presentation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	box := t.Render(p.Header, p.Parts)

	t.mu.Lock()
	_, err := fmt.Fprintln(t.out, box)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("terminal: write: %w", err)
	}
	return Closer{}.Present(ctx, p)
}

// Render lays out a header and body. Without color the text is plain.
func (t *Terminal) Render(header string, parts []message.Part) string {
	var body strings.Builder
	for _, part := range parts {
		if t.color {
			body.WriteString(part.Style.Render().Render(part.Text))
		} else {
			body.WriteString(part.Text)
		}
	}
	if !t.color {
		return "== " + header + " ==\n" + body.String()
	}
	head := style.Headline.Render().Render(header)
	return boxStyle.Width(t.width).Render(lipgloss.JoinVertical(lipgloss.Left, head, body.String()))
}

// Progress reports journal replay progress on a single line.
func (t *Terminal) Progress(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := fmt.Sprintf("Loading journal... %3d%%", percent)
	if t.color {
		line = style.Information.Render().Render(line)
	}
	if percent >= 100 {
		fmt.Fprintf(t.out, "\r%s\n", line)
		return
	}
	fmt.Fprintf(t.out, "\r%s", line)
}
