// Package mcpserver exposes the case pipeline as MCP tools so reviewer
// tooling and agents can submit, inspect, and resume cases over the Model
// Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/lexfoundry/caseflowd/internal/orchestrator"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// Config holds the MCP server identity.
type Config struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "caseflowd"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// Server wraps the orchestrator behind MCP tools.
type Server struct {
	mcp    *mcp.Server
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewServer creates the MCP server and registers the case tools.
func NewServer(orch *orchestrator.Orchestrator, logger *zap.Logger, config Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    config.Name,
				Version: config.Version,
			},
			nil,
		),
		orch:   orch,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

type caseSubmitInput struct {
	Facts         string     `json:"facts" jsonschema:"required,Case facts in plain language"`
	Jurisdiction  string     `json:"jurisdiction" jsonschema:"required,Jurisdiction the case belongs to"`
	CaseType      string     `json:"case_type" jsonschema:"Case category: civil, criminal, consumer, family, writ"`
	DocumentType  string     `json:"document_type" jsonschema:"Requested document type, e.g. Legal Notice"`
	IncidentDate  *time.Time `json:"incident_date,omitempty" jsonschema:"Date of the incident if known"`
	MonthlyIncome float64    `json:"monthly_income,omitempty" jsonschema:"Monthly income, consulted for legal-aid suggestions"`
}

type caseSubmitOutput struct {
	CaseID    string   `json:"case_id" jsonschema:"Identifier for follow-up calls"`
	Status    string   `json:"status" jsonschema:"Initial session status"`
	RiskFlags []string `json:"risk_flags,omitempty" jsonschema:"Risk categories computed at intake"`
}

type caseStatusInput struct {
	CaseID string `json:"case_id" jsonschema:"required,Case identifier"`
}

type caseStatusOutput struct {
	CaseID string           `json:"case_id"`
	Status string           `json:"status"`
	Stages []caseStageState `json:"stages"`
}

type caseStageState struct {
	Stage      string `json:"stage"`
	State      string `json:"state"`
	Confidence string `json:"confidence,omitempty"`
	Handoff    string `json:"handoff,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type caseReportInput struct {
	CaseID string `json:"case_id" jsonschema:"required,Case identifier"`
}

type caseResumeInput struct {
	CaseID     string `json:"case_id" jsonschema:"required,Case identifier"`
	Stage      string `json:"stage" jsonschema:"required,Stage held for review"`
	Decision   string `json:"decision" jsonschema:"required,approve or reject"`
	Correction string `json:"correction,omitempty" jsonschema:"Corrected facts when rejecting with a revision"`
}

type caseResumeOutput struct {
	CaseID string `json:"case_id"`
	Status string `json:"status"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "case_submit",
		Description: "Submit a case intake for staged research and drafting; returns a case_id to poll",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args caseSubmitInput) (*mcp.CallToolResult, caseSubmitOutput, error) {
		out, err := s.submit(ctx, args)
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "case_status",
		Description: "Report the pipeline status and per-stage decisions for a case",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args caseStatusInput) (*mcp.CallToolResult, caseStatusOutput, error) {
		out, err := s.status(ctx, args)
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "case_report",
		Description: "Compile the case report: stage outcomes, validated citations, unresolved stages, disclaimer",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args caseReportInput) (*mcp.CallToolResult, *orchestrator.Report, error) {
		report, err := s.orch.ReportFor(ctx, args.CaseID)
		return nil, report, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "case_resume",
		Description: "Apply a human decision to a held stage: approve, or reject with an optional corrected intake",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args caseResumeInput) (*mcp.CallToolResult, caseResumeOutput, error) {
		out, err := s.resume(ctx, args)
		return nil, out, err
	})
}

func (s *Server) submit(ctx context.Context, args caseSubmitInput) (caseSubmitOutput, error) {
	intake := session.Intake{
		Facts:         args.Facts,
		Jurisdiction:  args.Jurisdiction,
		CaseType:      session.CaseType(args.CaseType),
		DocumentType:  args.DocumentType,
		IncidentDate:  args.IncidentDate,
		MonthlyIncome: args.MonthlyIncome,
	}
	if err := intake.Validate(); err != nil {
		return caseSubmitOutput{}, err
	}

	sess, err := s.orch.Submit(ctx, intake)
	if err != nil {
		return caseSubmitOutput{}, fmt.Errorf("submitting case: %w", err)
	}

	flags := make([]string, 0, len(sess.RiskFlags))
	for _, f := range sess.RiskFlags {
		flags = append(flags, string(f))
	}
	return caseSubmitOutput{
		CaseID:    sess.CaseID,
		Status:    string(sess.Status),
		RiskFlags: flags,
	}, nil
}

func (s *Server) status(ctx context.Context, args caseStatusInput) (caseStatusOutput, error) {
	sess, err := s.orch.Status(ctx, args.CaseID)
	if err != nil {
		return caseStatusOutput{}, err
	}

	out := caseStatusOutput{
		CaseID: sess.CaseID,
		Status: string(sess.Status),
		Stages: make([]caseStageState, 0, len(sess.Records)),
	}
	for _, rec := range sess.Records {
		if rec.SupersededBy != "" {
			continue
		}
		out.Stages = append(out.Stages, caseStageState{
			Stage:      rec.StageName,
			State:      string(rec.State),
			Confidence: string(rec.ValidatedConfidence),
			Handoff:    string(rec.Handoff),
			Reason:     rec.HandoffReason,
		})
	}
	return out, nil
}

func (s *Server) resume(ctx context.Context, args caseResumeInput) (caseResumeOutput, error) {
	report, err := s.orch.Resume(ctx, args.CaseID, args.Stage, args.Decision, args.Correction)
	if err != nil {
		return caseResumeOutput{}, err
	}
	return caseResumeOutput{CaseID: report.CaseID, Status: string(report.Status)}, nil
}

// Run serves MCP on the stdio transport until the context ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
