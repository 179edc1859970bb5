// Package notify implements ports.Notifier over stdout, grounded on the
// teacher's adapters/notify/console.go: same compact/full-table toggle and
// tablewriter usage, rescoped from prediction-market reward reporting to
// ranked arbitrage opportunities.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Notifier by printing to an io.Writer.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole builds a notifier that writes to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter builds a notifier over an arbitrary writer, for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify prints one batch of emitted opportunities, in the configured mode.
func (c *Console) Notify(_ context.Context, opportunities []domain.Opportunity) error {
	if len(opportunities) == 0 {
		fmt.Fprintf(c.out, "[%s] no opportunities found\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(opportunities)
	} else {
		c.printCompact(opportunities)
	}
	return nil
}

// printCompact prints a one-line summary plus the top few opportunities.
func (c *Console) printCompact(opps []domain.Opportunity) {
	now := time.Now().Format("15:04:05")
	var best domain.Quantity
	if len(opps) > 0 {
		best = opps[0].ExpectedNet
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d opportunities, block %d, best net %s",
		now, len(opps), opps[0].BlockNumber, best.String())

	shown := 0
	for _, opp := range opps {
		if shown >= 4 {
			break
		}
		fmt.Fprintf(&sb, " | %s net=%s gross=%s", pathLabel(opp.Path, 24), opp.ExpectedNet.String(), opp.ExpectedGross.String())
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull prints a full table of every opportunity in the cycle.
func (c *Console) printFull(opps []domain.Opportunity) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] %d opportunities (block %d)\n", now, len(opps), opps[0].BlockNumber)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Strategy", "Path", "Input", "Gross", "Net", "Gas")

	for i, opp := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			opp.Strategy,
			pathLabel(opp.Path, 40),
			opp.InputAmount.String(),
			opp.ExpectedGross.String(),
			opp.ExpectedNet.String(),
			opp.GasEstimate.String(),
		)
	}

	table.Render()
}

func pathLabel(path []domain.Edge, maxLen int) string {
	var sb strings.Builder
	for i, e := range path {
		if i > 0 {
			sb.WriteString("->")
		}
		fmt.Fprintf(&sb, "%s/%s", e.Pair.AssetX, e.Exchange)
	}
	return truncate(sb.String(), maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
