package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/warren/pkg/maze"
	"github.com/fatih/color"
)

func init() {
	// Users can disable color with the NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)

	// Out receives regular output; Err receives error reports.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(Out, msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(Out, msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with title, explanation and suggestions to
// Err and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details, printed in key order
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(Err, "\n")
		for _, k := range keys {
			fmt.Fprintf(Err, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(Err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Cobra won't print this due to SilenceErrors
	return fmt.Errorf("%s", title)
}

// Observation prints one observation as "#seq plan -> labels", marks in cyan
func Observation(o maze.Observation) {
	var plan strings.Builder
	for _, a := range o.Plan {
		if a.Mark {
			plan.WriteString(cyan.Sprint(a.String()))
		} else {
			plan.WriteString(a.String())
		}
	}
	if len(o.Plan) == 0 {
		plan.WriteString(faint.Sprint("(empty)"))
	}

	labels := make([]string, len(o.Labels))
	for i, l := range o.Labels {
		labels[i] = fmt.Sprint(int(l))
	}
	fmt.Fprintf(Out, "#%-4d %s -> %s\n", o.Seq, plan.String(), strings.Join(labels, ""))
}

// Solution prints a submission map: one line per room with its label and
// where each door leads
func Solution(m *maze.Map) {
	fmt.Fprintf(Out, "%d rooms, start %d\n", len(m.Rooms), m.StartingRoom)
	for room, label := range m.Rooms {
		marker := " "
		if room == m.StartingRoom {
			marker = green.Sprint("*")
		}
		doors := make([]string, maze.Doors)
		for d := maze.Door(0); d < maze.Doors; d++ {
			doors[d] = fmt.Sprint(m.Destination(room, d))
		}
		fmt.Fprintf(Out, "%s room %-3d label %d  doors [%s]\n", marker, room, label, strings.Join(doors, " "))
	}
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Fprintln(Out, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}
