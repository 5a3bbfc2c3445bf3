package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/orchestrator"
)

const dateLayout = "2006-01-02"

type scanFlags struct {
	category string
	days     int
	from     string
	to       string
	max      int
}

func scanCmd() *cobra.Command {
	sf := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the mailbox and index matching emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			agentCfg := cfg.GetAgent()
			if sf.days <= 0 {
				sf.days = agentCfg.DefaultDays
			}
			if sf.max <= 0 {
				sf.max = agentCfg.MaxResults
			}

			cls, err := sf.classification(time.Now())
			if err != nil {
				return err
			}
			return withAgent(func(agent *orchestrator.Agent, _ *zap.Logger) error {
				return printResult(cmd, agent.Execute(cmd.Context(), cls))
			})
		},
	}

	cmd.Flags().StringVar(&sf.category, "category", string(core.CategoryGeneral), "category to scan for")
	cmd.Flags().IntVar(&sf.days, "days", 0, "scan the last N days (default agent.default_days)")
	cmd.Flags().StringVar(&sf.from, "from", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&sf.to, "to", "", "window end, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&sf.max, "max", 0, "maximum emails to fetch (default agent.max_results)")
	cmd.MarkFlagsMutuallyExclusive("days", "from")
	return cmd
}

// classification turns the scan flags into a scan request
func (sf *scanFlags) classification(now time.Time) (*core.Classification, error) {
	category, ok := core.ParseCategory(sf.category)
	if !ok {
		return nil, &core.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", sf.category)}
	}
	dr, err := sf.dateRange(now)
	if err != nil {
		return nil, err
	}
	return &core.Classification{
		Utterance:  fmt.Sprintf("scan %s", category),
		Intent:     core.IntentScanEmails,
		Confidence: 1,
		Source:     core.SourceOverride,
		Slots: core.Slots{
			Category:   category,
			DateRange:  dr,
			MaxResults: sf.max,
		},
	}, nil
}

func (sf *scanFlags) dateRange(now time.Time) (core.DateRange, error) {
	if sf.from == "" && sf.to == "" {
		return core.LastDays(now, sf.days), nil
	}

	end := core.UTCDate(now)
	if sf.to != "" {
		t, err := time.Parse(dateLayout, sf.to)
		if err != nil {
			return core.DateRange{}, &core.ValidationError{Field: "to", Reason: "expected YYYY-MM-DD"}
		}
		end = t
	}
	start := end.AddDate(0, 0, -sf.days)
	if sf.from != "" {
		t, err := time.Parse(dateLayout, sf.from)
		if err != nil {
			return core.DateRange{}, &core.ValidationError{Field: "from", Reason: "expected YYYY-MM-DD"}
		}
		start = t
	}
	if start.After(end) {
		return core.DateRange{}, &core.ValidationError{Field: "from", Reason: "window start is after its end"}
	}
	return core.DateRange{Start: start, End: end}, nil
}
