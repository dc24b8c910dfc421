package status

import (
	"fmt"
	"log"
	"sync"
	"time"
)

type Diagnostic struct {
	Severity int
	Message  string
	Time     time.Time
}

func SeverityName(severity int) string {
	switch severity {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case PROGRESS:
		return "PROGRESS"
	}
	return fmt.Sprintf("SEVERITY(%d)", severity)
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", SeverityName(d.Severity), d.Message)
}

// Report collects the diagnostics of one import run. Every entry is also
// logged and broadcast to status clients.
type Report struct {
	Prefix  string
	Verbose bool
	Quiet   bool

	lock        sync.Mutex
	diagnostics []Diagnostic
}

func NewReport(prefix string, verbose bool) *Report {
	return &Report{Prefix: prefix, Verbose: verbose}
}

func (r *Report) add(severity int, format string, a ...interface{}) {
	if severity == DEBUG && !r.Verbose {
		return
	}
	d := Diagnostic{
		Severity: severity,
		Message:  fmt.Sprintf(format, a...),
		Time:     time.Now(),
	}

	r.lock.Lock()
	r.diagnostics = append(r.diagnostics, d)
	r.lock.Unlock()

	if !r.Quiet {
		log.Printf("[%s] %v", r.Prefix, d)
		Status(d.Message, severity, 0)
	}
}

func (r *Report) Debugf(format string, a ...interface{}) { r.add(DEBUG, format, a...) }
func (r *Report) Infof(format string, a ...interface{})  { r.add(INFO, format, a...) }
func (r *Report) Warnf(format string, a ...interface{})  { r.add(WARNING, format, a...) }
func (r *Report) Errorf(format string, a ...interface{}) { r.add(ERROR, format, a...) }

func (r *Report) Diagnostics() []Diagnostic {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Diagnostic(nil), r.diagnostics...)
}

func (r *Report) Count(severity int) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	n := 0
	for _, d := range r.diagnostics {
		if d.Severity == severity {
			n++
		}
	}
	return n
}
