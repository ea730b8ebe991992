package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crossvenue/arbscan/pkg/types"
)

// ConsoleSink pretty-prints opportunities to stdout, one box per
// notification.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stdout}
}

// Name implements Sink.
func (c *ConsoleSink) Name() string { return "console" }

// Send implements Sink.
func (c *ConsoleSink) Send(_ context.Context, opp *types.Opportunity) error {
	yes, no := opp.Legs()
	rule := strings.Repeat("━", 72)

	fmt.Fprintln(c.out, "\n"+rule)
	fmt.Fprintf(c.out, "🎯 CROSS-VENUE ARBITRAGE\n")
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "ID:        %s\n", shortID(opp.ID))
	fmt.Fprintf(c.out, "Direction: %s\n", opp.Direction)
	fmt.Fprintf(c.out, "YES leg:   %-8s %s\n", yes.Venue, yes.Title)
	fmt.Fprintf(c.out, "NO leg:    %-8s %s\n", no.Venue, no.Title)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "📊 PRICING\n")
	fmt.Fprintf(c.out, "  YES ask:    %.4f\n", yes.Ask(types.SideYes))
	fmt.Fprintf(c.out, "  NO ask:     %.4f\n", no.Ask(types.SideNo))
	fmt.Fprintf(c.out, "  Combined:   %.4f\n", opp.CombinedPrice)
	fmt.Fprintf(c.out, "  Edge:       %.2f%%\n", opp.EdgePct)
	if opp.AskSizeMin > 0 {
		fmt.Fprintf(c.out, "  Size cap:   %.2f\n", opp.AskSizeMin)
	} else {
		fmt.Fprintf(c.out, "  Size cap:   unknown\n")
	}
	fmt.Fprintf(c.out, "  Confidence: %.2f\n", opp.Confidence)
	fmt.Fprintf(c.out, "First seen: %s\n", opp.FirstSeenAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(c.out, rule)

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
