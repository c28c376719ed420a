package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// Markdown renders agent replies for the terminal. Renderers are built lazily
// per wrap width and reused. Rendering failures fall back to the plain text.
type Markdown struct {
	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
	options   []glamour.TermRendererOption
}

// NewMarkdown creates a renderer. With no options the style follows the
// terminal background.
func NewMarkdown(opts ...glamour.TermRendererOption) *Markdown {
	if len(opts) == 0 {
		opts = []glamour.TermRendererOption{glamour.WithAutoStyle()}
	}
	return &Markdown{renderers: make(map[int]*glamour.TermRenderer), options: opts}
}

// Render formats text wrapped at width columns.
func (m *Markdown) Render(text string, width int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if width <= 0 {
		width = DefaultWidth
	}
	r, err := m.renderer(width)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	opts := append(append([]glamour.TermRendererOption{}, m.options...), glamour.WithWordWrap(width))
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
