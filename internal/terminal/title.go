package terminal

import (
	"fmt"
	"strconv"

	"github.com/louisbranch/cyoa/internal/library"
	"github.com/louisbranch/cyoa/internal/play"
)

// ChooseStory shows the title screen and returns the picked story. The
// second result is false when the player quits.
func (p *Presenter) ChooseStory(stories []library.Story) (library.Story, bool, error) {
	if _, err := fmt.Fprintln(p.out); err != nil {
		return library.Story{}, false, err
	}
	if err := p.println(p.styles.heading, p.printer.Sprintf("title.heading")); err != nil {
		return library.Story{}, false, err
	}
	for i, story := range stories {
		meta := story.Metadata
		entry := p.printer.Sprintf("title.entry", meta.Name, meta.Version)
		if meta.Author != "" {
			entry = p.printer.Sprintf("title.entry_by", meta.Name, meta.Version, meta.Author)
		}
		line := p.styles.index.Render(strconv.Itoa(i)+":") + " " + p.styles.label.Render(entry)
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return library.Story{}, false, err
		}
	}

	for {
		sel, err := p.ReadSelection()
		if err != nil {
			return library.Story{}, false, err
		}
		switch sel.Kind {
		case play.SelectQuit:
			return library.Story{}, false, nil
		case play.SelectIndex:
			if sel.Index >= 0 && sel.Index < len(stories) {
				return stories[sel.Index], true, nil
			}
			err = p.Reject(sel, play.RejectOutOfRange)
		default:
			err = p.Reject(sel, play.RejectInvalid)
		}
		if err != nil {
			return library.Story{}, false, err
		}
	}
}
