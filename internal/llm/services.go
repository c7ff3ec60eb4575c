package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlport/sqlport/internal/workflow"
)

// Reviewer asks the model for a PASS/FAIL verdict on a candidate script.
type Reviewer struct {
	client *Client
}

// NewReviewer returns a model-backed reviewer.
func NewReviewer(client *Client) *Reviewer {
	return &Reviewer{client: client}
}

// Review returns a passing verdict when the reply contains PASS anywhere,
// case-insensitively. Anything else fails with the full reply as rationale.
func (r *Reviewer) Review(ctx context.Context, candidateSQL string) (workflow.Verdict, error) {
	reply, err := r.client.Chat(ctx, []Message{
		{Role: "system", Content: reviewerSystemPrompt},
		{Role: "user", Content: "SQL: " + candidateSQL},
	})
	if err != nil {
		return workflow.Verdict{}, err
	}
	if strings.Contains(strings.ToUpper(reply), "PASS") {
		return workflow.Verdict{Passed: true}, nil
	}
	return workflow.Verdict{Passed: false, Rationale: reply}, nil
}

// Rewriter asks the model for a corrected script given schema context and the
// most recent diagnostic.
type Rewriter struct {
	client *Client
}

// NewRewriter returns a model-backed rewriter.
func NewRewriter(client *Client) *Rewriter {
	return &Rewriter{client: client}
}

// Rewrite returns the model's raw reply. Fence stripping and canonicalization
// happen in the workflow, not here.
func (r *Rewriter) Rewrite(ctx context.Context, contextDoc, currentSQL, lastError string) (string, error) {
	prompt := fmt.Sprintf(rewritePromptTemplate, contextDoc, currentSQL, lastError)
	return r.client.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

// Transpiler asks the model to translate between dialects. It backstops the
// parser-based transpiler for source dialects the parser cannot read.
type Transpiler struct {
	client *Client
}

// NewTranspiler returns a model-backed dialect transpiler.
func NewTranspiler(client *Client) *Transpiler {
	return &Transpiler{client: client}
}

func (t *Transpiler) Transpile(ctx context.Context, sqlText, sourceDialect, targetDialect string) (string, error) {
	prompt := fmt.Sprintf(transpilePromptTemplate, sourceDialect, targetDialect, sqlText)
	reply, err := t.client.Chat(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	translated := workflow.StripFences(reply)
	if translated == "" {
		return "", fmt.Errorf("model returned an empty translation for %s", sourceDialect)
	}
	return translated, nil
}
