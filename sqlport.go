// Package sqlport provides a programmatic API for porting SQL scripts to
// PostgreSQL. It wraps the transpile/review/verify workflow that the CLI
// drives, so other Go programs can port and verify scripts directly.
package sqlport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sqlport/sqlport/cmd/util"
	"github.com/sqlport/sqlport/internal/analyzer"
	"github.com/sqlport/sqlport/internal/batch"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/llm"
	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/rag"
	"github.com/sqlport/sqlport/internal/transpile"
	"github.com/sqlport/sqlport/internal/verifier"
	"github.com/sqlport/sqlport/internal/workflow"
)

// Client is the programmatic entry point. It owns the metadata store and the
// workflow collaborators for one porting project.
type Client struct {
	cfg    *config.Config
	store  *metastore.Store
	logger *slog.Logger
}

// NewClient opens the project described by cfg. Close releases the metadata
// store.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := metastore.Open(cfg.General.MetadataPath, cfg.General.ProjectName, logger)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, store: store, logger: logger}, nil
}

// NewClientFromFile loads configuration from path (empty means sqlport.yaml
// in the working directory) and opens the project.
func NewClientFromFile(path string, logger *slog.Logger) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, logger)
}

// Close releases the metadata store.
func (c *Client) Close() error {
	return c.store.Close()
}

// Store exposes the underlying metadata store.
func (c *Client) Store() *metastore.Store {
	return c.store
}

func (c *Client) scriptVerifier() *verifier.Verifier {
	return verifier.New(util.TargetConnector(c.cfg.Database.Target), verifier.Options{
		Policy: verifier.Policy{
			AllowDangerousStatements: c.cfg.Verification.AllowDangerousStatements,
			AllowProcedureExecution:  c.cfg.Verification.AllowProcedureExecution,
		},
		StatementTimeoutMS: c.cfg.Database.Target.StatementTimeoutMS,
	}, c.logger)
}

func (c *Client) controller() *workflow.Controller {
	client := llm.NewClient(llm.Options{
		BaseURL:     c.cfg.LLM.BaseURL,
		Model:       c.cfg.LLM.Model,
		Temperature: c.cfg.LLM.Temperature,
	}, c.logger)

	refs := analyzer.New(c.cfg.Database.Source.Type, c.logger)

	return workflow.NewController(
		transpile.New(llm.NewTranspiler(client), c.logger),
		llm.NewReviewer(client),
		llm.NewRewriter(client),
		rag.New(refs, c.store, c.logger),
		c.scriptVerifier(),
		workflow.Config{
			SourceDialect: c.cfg.Database.Source.Type,
			TargetDialect: c.cfg.Database.Target.Type,
			MaxRetries:    c.cfg.General.MaxRetries,
		},
		c.logger,
	)
}

// PortScript runs one script through the full workflow and returns its
// terminal state. Nothing is persisted; use Run for batch porting with
// persistence.
func (c *Client) PortScript(ctx context.Context, identifier, sourceSQL string) MigrationState {
	return c.controller().RunAsset(ctx, workflow.NewState(identifier, sourceSQL))
}

// Run ports every selected asset in the store and persists the results.
func (c *Client) Run(ctx context.Context, onlyChanged bool) (Summary, error) {
	runner := batch.New(c.store, c.controller(), c.cfg.General.Workers, c.logger)
	return runner.Run(ctx, onlyChanged)
}

// VerifyScript executes a script against the target database and always
// rolls back.
func (c *Client) VerifyScript(ctx context.Context, sqlText string) VerifyResult {
	return c.scriptVerifier().Verify(ctx, sqlText)
}

// ApplyScript executes a script against the target database and commits on
// success.
func (c *Client) ApplyScript(ctx context.Context, sqlText string) VerifyResult {
	return c.scriptVerifier().Apply(ctx, sqlText)
}

// BuildContext returns the schema context document for a script, resolved
// against the project's stored metadata.
func (c *Client) BuildContext(ctx context.Context, sqlText string) (SchemaContext, error) {
	refs := analyzer.New(c.cfg.Database.Source.Type, c.logger)
	return rag.New(refs, c.store, c.logger).Build(ctx, sqlText)
}
