// Package terminal renders stories on a line-oriented terminal and reads the
// player's numbered picks.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/message"

	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
	errori18n "github.com/louisbranch/cyoa/internal/platform/errors/i18n"
	"github.com/louisbranch/cyoa/internal/platform/i18n/catalog"
	"github.com/louisbranch/cyoa/internal/play"
)

// QuitInput leaves the current screen.
const QuitInput = "q"

type styles struct {
	heading lipgloss.Style
	passage lipgloss.Style
	index   lipgloss.Style
	label   lipgloss.Style
	prompt  lipgloss.Style
	notice  lipgloss.Style
	err     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	s := styles{
		heading: r.NewStyle().Bold(true),
		passage: r.NewStyle(),
		index:   r.NewStyle().Bold(true),
		label:   r.NewStyle(),
		prompt:  r.NewStyle(),
		notice:  r.NewStyle().Italic(true),
		err:     r.NewStyle().Bold(true),
	}
	if !color {
		return s
	}
	s.heading = s.heading.Foreground(lipgloss.Color("#F780FF"))
	s.passage = s.passage.Foreground(lipgloss.Color("#E9E9F4"))
	s.index = s.index.Foreground(lipgloss.Color("#FF79C6"))
	s.label = s.label.Foreground(lipgloss.Color("#8BE9FD"))
	s.prompt = s.prompt.Foreground(lipgloss.Color("#6272A4"))
	s.notice = s.notice.Foreground(lipgloss.Color("#50FA7B"))
	s.err = s.err.Foreground(lipgloss.Color("#FF5555"))
	return s
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithLocale selects the message locale. Unsupported locales fall back to
// the closest match.
func WithLocale(locale string) Option {
	return func(p *Presenter) {
		p.locale = locale
	}
}

// WithoutColor renders text without foreground colors.
func WithoutColor() Option {
	return func(p *Presenter) {
		p.color = false
	}
}

// Presenter implements play.Presenter over a reader and a writer.
type Presenter struct {
	in      *bufio.Reader
	out     io.Writer
	locale  string
	color   bool
	printer *message.Printer
	errors  *errori18n.Catalog
	styles  styles
}

// New returns a Presenter reading selections from in and writing to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Presenter {
	p := &Presenter{
		in:     bufio.NewReader(in),
		out:    out,
		locale: catalog.BaseLocale,
		color:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.printer = catalog.Default().Printer(p.locale)
	p.errors = errori18n.GetCatalog(p.locale)
	p.styles = newStyles(lipgloss.NewRenderer(out), p.color)
	return p
}

// Printer exposes the localized printer used for every player-facing line.
func (p *Presenter) Printer() *message.Printer {
	return p.printer
}

func (p *Presenter) println(style lipgloss.Style, text string) error {
	_, err := fmt.Fprintln(p.out, style.Render(text))
	return err
}

// RenderPassage prints the prose of the current beat.
func (p *Presenter) RenderPassage(text string) error {
	if _, err := fmt.Fprintln(p.out); err != nil {
		return err
	}
	return p.println(p.styles.passage, text)
}

// RenderChoices prints one "index: label" line per option.
func (p *Presenter) RenderChoices(options []play.Option) error {
	for _, option := range options {
		line := p.styles.index.Render(strconv.Itoa(option.Index)+":") + " " + p.styles.label.Render(option.Label)
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

// ReadSelection prompts and reads one line. End of input quits.
func (p *Presenter) ReadSelection() (play.Selection, error) {
	if _, err := fmt.Fprint(p.out, p.styles.prompt.Render(p.printer.Sprintf("prompt.select"))+"\n> "); err != nil {
		return play.Selection{}, err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return play.Selection{}, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return play.Selection{Kind: play.SelectQuit}, nil
	}
	return ParseSelection(line), nil
}

// ParseSelection classifies one line of input.
func ParseSelection(line string) play.Selection {
	raw := strings.TrimSpace(line)
	if strings.EqualFold(raw, QuitInput) {
		return play.Selection{Kind: play.SelectQuit, Raw: raw}
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return play.Selection{Kind: play.SelectInvalid, Raw: raw}
	}
	return play.Selection{Kind: play.SelectIndex, Index: index, Raw: raw}
}

// Reject explains why a selection was ignored.
func (p *Presenter) Reject(selection play.Selection, reason play.Rejection) error {
	var text string
	switch reason {
	case play.RejectOutOfRange:
		text = p.printer.Sprintf("prompt.out_of_range", selection.Index)
	default:
		text = p.printer.Sprintf("prompt.unknown_index", selection.Raw)
	}
	return p.println(p.styles.err, text)
}

// Notice prints a catalog message such as story.ended.
func (p *Presenter) Notice(key string, args ...any) error {
	return p.println(p.styles.notice, p.printer.Sprintf(key, args...))
}

// ShowError prints a localized description of err.
func (p *Presenter) ShowError(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return p.println(p.styles.err, p.errors.Format(string(appErr.Code), appErr.Metadata))
	}
	return p.println(p.styles.err, err.Error())
}
