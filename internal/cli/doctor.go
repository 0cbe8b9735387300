package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pstop/internal/config"
	"github.com/rileyhilliard/pstop/internal/doctor"
	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/ui"
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

func newDoctorCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the config and the agent connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A broken config is reported by the config checks, so the
			// load error itself is dropped here.
			cfg, err := config.LoadOrDefault(g.configPath)
			if err != nil || config.Validate(cfg) != nil {
				cfg = nil
			}

			checks := doctor.NewChecks(g.configPath, cfg)
			results := doctor.RunAll(cmd.Context(), checks)

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeDoctorJSON(out, checks, results); err != nil {
					return err
				}
			} else {
				writeDoctorText(out, checks, results)
			}

			if doctor.HasFailures(results) {
				return errors.New(errors.ErrConfig, doctor.Summary(results), "")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func groupResults(checks []doctor.Check, results []doctor.CheckResult) []CategoryOutput {
	grouped := make(map[string][]doctor.CheckResult)
	for i, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], results[i])
	}

	var out []CategoryOutput
	for _, cat := range doctor.Categories {
		if rs, ok := grouped[cat]; ok {
			out = append(out, CategoryOutput{Name: cat, Results: rs})
		}
	}
	return out
}

func writeDoctorJSON(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	counts := doctor.CountByStatus(results)
	output := DoctorOutput{
		Categories: groupResults(checks, results),
		Summary: SummaryOutput{
			Pass:     counts[doctor.StatusPass],
			Warn:     counts[doctor.StatusWarn],
			Fail:     counts[doctor.StatusFail],
			AllClear: !doctor.HasIssues(results),
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func writeDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Bold("pstop diagnostic report"))
	fmt.Fprintln(w)

	for _, cat := range groupResults(checks, results) {
		fmt.Fprintln(w, ui.Bold(cat.Name))
		for _, r := range cat.Results {
			writeCheckResult(w, r)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	if doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", ui.Error(ui.SymbolFail), doctor.Summary(results))
	} else {
		fmt.Fprintf(w, "%s %s\n", ui.Success(ui.SymbolSuccess), doctor.Summary(results))
	}
}

func writeCheckResult(w io.Writer, r doctor.CheckResult) {
	var symbol string
	switch r.Status {
	case doctor.StatusPass:
		symbol = ui.Success(ui.SymbolDone)
	case doctor.StatusWarn:
		symbol = ui.Warn(ui.SymbolWarn)
	default:
		symbol = ui.Error(ui.SymbolFail)
	}

	fmt.Fprintf(w, "  %s %s\n", symbol, r.Message)
	if r.Suggestion != "" && r.Status != doctor.StatusPass {
		for _, line := range strings.Split(r.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", ui.Muted(line))
		}
	}
}
