package ingest

import (
	"fmt"
	"strings"

	"github.com/tyura/websocket-clients/internal/domain"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct {
	Color bool
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

func (f *Formatter) paint(s, c string) string {
	if !f.Color {
		return s
	}
	return colorize(s, c)
}

// Render produces the monitor line for one drain.
func (f *Formatter) Render(r domain.DrainReport) string {
	var sb strings.Builder

	sb.WriteString(f.paint("[MEXC] ", ansiDim))

	cCol := ansiYellow
	if r.Count > 0 {
		cCol = ansiGreen
	}
	sb.WriteString(f.paint(fmt.Sprintf("Number of messages: %d", r.Count), cCol))

	sb.WriteString(f.paint("  ||  ", ansiDim))
	fmt.Fprintf(&sb, "sessions %d/%d active", r.Active, r.Total)
	if r.Closed > 0 {
		sb.WriteString(" ")
		sb.WriteString(f.paint(fmt.Sprintf("closed=%d", r.Closed), ansiYellow))
	}
	if r.Failed > 0 {
		sb.WriteString(" ")
		sb.WriteString(f.paint(fmt.Sprintf("failed=%d", r.Failed), ansiRed))
	}
	return sb.String()
}
