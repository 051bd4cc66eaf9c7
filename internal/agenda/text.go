package agenda

import (
	"fmt"
	"io"
)

// WriteText prints v as plain text, one event per line, for terminal use.
func WriteText(w io.Writer, v View) error {
	p := &textPrinter{w: w}

	p.printf("# %s\n", v.TodayHeading)
	if len(v.Today) == 0 {
		p.printf("%s\n", v.TodayEmpty)
	}
	for _, it := range v.Today {
		p.printf("  %s  %s\n", it.Time, it.Title)
	}

	p.printf("\n# %s\n", v.UpcomingHeading)
	if len(v.Upcoming) == 0 {
		p.printf("%s\n", v.UpcomingEmpty)
	}
	for _, s := range v.Upcoming {
		p.printf("## %s\n", s.Label)
		for _, it := range s.Items {
			p.printf("  %s  %s\n", it.Time, it.Title)
		}
	}
	return p.err
}

// textPrinter keeps the first write error so WriteText can stay linear.
type textPrinter struct {
	w   io.Writer
	err error
}

func (p *textPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
