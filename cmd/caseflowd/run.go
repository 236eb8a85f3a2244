package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexfoundry/caseflowd/internal/config"
	"github.com/lexfoundry/caseflowd/internal/logging"
	"github.com/lexfoundry/caseflowd/internal/session"
)

var runFlags struct {
	facts        string
	jurisdiction string
	caseType     string
	documentType string
	sections     []string
	incidentDate string
	income       float64
	online       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one case through the pipeline and print the report",
	Long: `Run a single case end to end and print the JSON report to stdout.

By default the deterministic offline pipeline is used, which needs no
model endpoint or broker. Pass --online to use the configured capability
endpoint instead.

Examples:
  caseflowd run \
    --facts "landlord refused to refund the security deposit" \
    --jurisdiction delhi --case-type consumer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce()
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.facts, "facts", "", "facts of the matter (required)")
	runCmd.Flags().StringVar(&runFlags.jurisdiction, "jurisdiction", "", "jurisdiction (required)")
	runCmd.Flags().StringVar(&runFlags.caseType, "case-type", string(session.CaseCivil), "case type (civil, criminal, consumer, family, writ)")
	runCmd.Flags().StringVar(&runFlags.documentType, "document-type", "", "document type to draft")
	runCmd.Flags().StringSliceVar(&runFlags.sections, "sections", nil, "statutory sections involved")
	runCmd.Flags().StringVar(&runFlags.incidentDate, "incident-date", "", "incident date (YYYY-MM-DD)")
	runCmd.Flags().Float64Var(&runFlags.income, "income", 0, "monthly income, for legal aid eligibility")
	runCmd.Flags().BoolVar(&runFlags.online, "online", false, "use the configured model endpoint instead of the offline pipeline")
	_ = runCmd.MarkFlagRequired("facts")
	_ = runCmd.MarkFlagRequired("jurisdiction")
}

func runOnce() error {
	ctx := context.Background()

	intake, err := buildIntake()
	if err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pipe, err := buildPipeline(ctx, cfg, logger, !runFlags.online)
	if err != nil {
		return err
	}
	defer pipe.Close()

	report, err := pipe.orch.Execute(ctx, intake)
	if err != nil {
		return fmt.Errorf("running case: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// buildIntake assembles and validates the intake from run flags.
func buildIntake() (session.Intake, error) {
	intake := session.Intake{
		Facts:         runFlags.facts,
		Jurisdiction:  runFlags.jurisdiction,
		CaseType:      session.CaseType(runFlags.caseType),
		DocumentType:  runFlags.documentType,
		Sections:      runFlags.sections,
		MonthlyIncome: runFlags.income,
	}

	if runFlags.incidentDate != "" {
		parsed, err := time.Parse("2006-01-02", runFlags.incidentDate)
		if err != nil {
			return session.Intake{}, fmt.Errorf("parsing incident date: %w", err)
		}
		intake.IncidentDate = &parsed
	}

	switch intake.CaseType {
	case session.CaseCivil, session.CaseCriminal, session.CaseConsumer, session.CaseFamily, session.CaseWrit, session.CaseUnknown:
	default:
		return session.Intake{}, fmt.Errorf("unknown case type %q", intake.CaseType)
	}

	if err := intake.Validate(); err != nil {
		return session.Intake{}, err
	}
	return intake, nil
}
