package enhance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/intelligent-ticket-agent/internal/sla"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// Quality deltas per strategy. Template substitution carries the largest
// weight because it injects a learned, evidence-backed resolution.
const (
	deltaPriorityP1 = 0.15
	deltaPriorityP2 = 0.10
	deltaSLA        = 0.10
	deltaClarity    = 0.05
	deltaTemplate   = 0.20
)

// priorityHandling annotates expedited-handling guidance for urgent
// tickets. Precondition: priority P1 or P2 and at least one label, since
// escalation routing is keyed on the ticket's category labels.
type priorityHandling struct{}

func (priorityHandling) Name() string { return "priority_handling" }

func (priorityHandling) Apply(in Input) (Response, float64, bool) {
	t := in.Ticket
	if len(t.Labels) == 0 {
		return in.Response, 0, false
	}

	out := in.Response
	switch t.Priority {
	case ticket.PriorityP1:
		out.Annotations = append(out.Annotations,
			fmt.Sprintf("Escalation: immediate, routed via %s. 24/7 monitoring until resolution.", strings.Join(t.Labels, ", ")))
		return out, deltaPriorityP1, true
	case ticket.PriorityP2:
		out.Annotations = append(out.Annotations,
			fmt.Sprintf("Escalation: expedited, routed via %s.", strings.Join(t.Labels, ", ")))
		return out, deltaPriorityP2, true
	default:
		return in.Response, 0, false
	}
}

// slaCompliance annotates the response with the ticket's SLA position.
// Precondition: a recognized priority; without one there is no committed
// response window to report.
type slaCompliance struct {
	thresholds sla.Thresholds
}

func (slaCompliance) Name() string { return "sla_compliance" }

func (s slaCompliance) Apply(in Input) (Response, float64, bool) {
	if !in.Ticket.Priority.Valid() {
		return in.Response, 0, false
	}

	status, _ := sla.Check(in.Ticket, in.Now, s.thresholds)
	out := in.Response
	if status.Breached {
		out.Annotations = append(out.Annotations,
			fmt.Sprintf("SLA: %s window of %.0fh breached (%.1fh elapsed). This ticket is being prioritized.",
				status.Priority, status.ThresholdHours, status.ElapsedHours))
	} else {
		out.Annotations = append(out.Annotations,
			fmt.Sprintf("SLA: %s response due by %s (%.1fh remaining).",
				status.Priority, status.Deadline.UTC().Format("2006-01-02 15:04 MST"), status.RemainingHours))
	}
	return out, deltaSLA, true
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// clarityRewrite normalizes whitespace in the drafted body: runs of
// spaces collapse to one, runs of blank lines to a single blank line,
// trailing whitespace is stripped. Precondition: the normalization
// actually changes the body, otherwise no-op.
type clarityRewrite struct{}

func (clarityRewrite) Name() string { return "clarity" }

func (clarityRewrite) Apply(in Input) (Response, float64, bool) {
	body := in.Response.Body
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(spaceRuns.ReplaceAllString(l, " "), " \t")
	}
	rewritten := newlineRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	rewritten = strings.TrimSpace(rewritten)

	if rewritten == body {
		return in.Response, 0, false
	}
	out := in.Response
	out.Body = rewritten
	return out, deltaClarity, true
}

// templateSubstitution appends the best usable pattern's learned
// resolution. Precondition: at least one usable pattern with a non-empty
// template. Patterns arrive pre-ranked, so the first usable template wins.
type templateSubstitution struct{}

func (templateSubstitution) Name() string { return "template_substitution" }

func (templateSubstitution) Apply(in Input) (Response, float64, bool) {
	for _, p := range in.Patterns {
		if p.Template == "" {
			continue
		}
		out := in.Response
		out.Annotations = append(out.Annotations,
			fmt.Sprintf("Suggested resolution (learned from %d similar tickets): %s", p.SampleCount, p.Template))
		return out, deltaTemplate, true
	}
	return in.Response, 0, false
}

// Render flattens a response into the final text handed back to the
// ticket source: body first, then annotations in the order strategies
// added them.
func Render(r Response) string {
	if len(r.Annotations) == 0 {
		return r.Body
	}
	var b strings.Builder
	b.WriteString(r.Body)
	b.WriteString("\n")
	for _, a := range r.Annotations {
		b.WriteString("\n")
		b.WriteString(a)
	}
	return b.String()
}
