package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tyura/websocket-clients/internal/application/port"
)

// Reporter prints one timestamped line per drain.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewReporter() port.Reporter { return NewReporterTo(os.Stdout) }

func NewReporterTo(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) WriteReport(ts time.Time, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, "%s %s\n", ts.Format("2006-01-02 15:04:05"), line)
	return err
}

func (r *Reporter) NewLine() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprint(r.w, "\n")
	return err
}
