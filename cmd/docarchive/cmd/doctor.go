package cmd

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/preflight"
)

// errSystemCheckFailed is returned when a required check fails.
var errSystemCheckFailed = stderrors.New("system check failed")

type doctorOptions struct {
	verbose    bool
	jsonOutput bool
	recheck    bool
}

func newDoctorCmd() *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to ensure docarchive can operate correctly.

Checks:
  - Configuration is valid
  - Data directory is writable
  - Disk space (100MB minimum, warning below 1GB)
  - File descriptor limits (1024 minimum, 4096 for the bleve backend)
  - Data directory lock (warning while a server holds it)
  - Consume folder, when one is configured

serve runs the same checks once per release and remembers the result.
Use --recheck to make the next serve run them again.`,
		Example: `  # Run diagnostics
  docarchive doctor

  # JSON output for scripting
  docarchive doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.recheck, "recheck", false, "Forget the last successful check")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts doctorOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if opts.recheck {
		if err := preflight.ClearMarker(cfg.DataDir); err != nil {
			return err
		}
	}

	checker := preflight.New(
		preflight.WithVerbose(opts.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), cfg)

	if opts.jsonOutput {
		if err := writeDoctorJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if age := preflight.MarkerAge(cfg.DataDir); age > 0 && !preflight.NeedsCheck(cfg.DataDir) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nLast successful check: %s ago\n", formatAge(age))
		}
	}

	if checker.HasCriticalFailures(results) {
		return errSystemCheckFailed
	}
	return nil
}

// doctorReport is the --json output.
type doctorReport struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Warnings []string                `json:"warnings,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: results,
	}
	for _, r := range results {
		if r.IsCritical() {
			report.Errors = append(report.Errors, r.Name+": "+r.Message)
		} else if r.Status != preflight.StatusPass {
			report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func formatAge(d time.Duration) string {
	switch hours := int(d.Hours()); {
	case hours < 1:
		return "less than 1 hour"
	case hours == 1:
		return "1 hour"
	case hours < 24:
		return fmt.Sprintf("%d hours", hours)
	case hours < 48:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", hours/24)
	}
}
