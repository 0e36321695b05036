package bootstrap

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kbukum/injectkit/component"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Summary prints the startup summary of an application.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a new bootstrap summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display writes the bindings and component health of r to w.
func (s *Summary) Display(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs (%s stage)\n\n",
		bold(s.serviceName), s.version, s.startupDuration.Seconds(), r.Stage)

	fmt.Fprintf(w, "🔗 Bindings (%d)\n", len(r.Bindings))
	if len(r.Bindings) == 0 {
		fmt.Fprintf(w, "   └── No bindings declared\n")
	}
	for i, b := range r.Bindings {
		line := fmt.Sprintf("   %s %s %s [%s]", treePrefix(i, len(r.Bindings)), bold(b.Key), kindColor(b.Kind), scopeColor(b.Scope))
		if b.Target != "" {
			line += " → " + b.Target
		}
		if b.Eager {
			line += " " + yellow("eager")
		}
		if b.Intercepted {
			line += " ⚡"
		}
		fmt.Fprintf(w, "%s %s\n", line, gray(b.Source))
	}

	if len(r.Components) > 0 {
		fmt.Fprintf(w, "\n🏥 Health Check\n")
		healthy := 0
		for i, h := range r.Components {
			msg := ""
			if h.Message != "" {
				msg = fmt.Sprintf(" — %s", h.Message)
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(r.Components)),
				healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			if h.Status == component.StatusHealthy {
				healthy++
			}
		}
		fmt.Fprintf(w, "\n")
		if healthy == len(r.Components) {
			fmt.Fprintf(w, "✅ All components healthy (%d/%d)\n", healthy, len(r.Components))
		} else {
			fmt.Fprintf(w, "⚠️  Some components have issues (%d/%d healthy)\n", healthy, len(r.Components))
		}
	}

	fmt.Fprintf(w, "\n")
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func kindColor(kind string) string {
	switch kind {
	case "constructor", "implicit":
		return green(kind)
	case "linked", "provider-key":
		return cyan(kind)
	case "instance":
		return blue(kind)
	default:
		return yellow(kind)
	}
}

func scopeColor(scope string) string {
	switch scope {
	case "unscoped":
		return gray(scope)
	case "singleton":
		return green(scope)
	default:
		return cyan(scope)
	}
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
