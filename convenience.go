package sqlport

import (
	"context"
	"fmt"
	"os"
)

// PortFile is a convenience function to port a single SQL file through the
// full workflow and return its terminal state.
func PortFile(ctx context.Context, configPath, sqlFile string) (MigrationState, error) {
	client, err := NewClientFromFile(configPath, nil)
	if err != nil {
		return MigrationState{}, err
	}
	defer client.Close()

	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to read %s: %w", sqlFile, err)
	}
	return client.PortScript(ctx, sqlFile, string(content)), nil
}

// VerifyFile is a convenience function to verify a single SQL file against
// the target database without committing anything.
func VerifyFile(ctx context.Context, configPath, sqlFile string) (VerifyResult, error) {
	client, err := NewClientFromFile(configPath, nil)
	if err != nil {
		return VerifyResult{}, err
	}
	defer client.Close()

	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to read %s: %w", sqlFile, err)
	}
	return client.VerifyScript(ctx, string(content)), nil
}

// ContextForFile is a convenience function to build the schema context
// document for a single SQL file.
func ContextForFile(ctx context.Context, configPath, sqlFile string) (SchemaContext, error) {
	client, err := NewClientFromFile(configPath, nil)
	if err != nil {
		return SchemaContext{}, err
	}
	defer client.Close()

	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return SchemaContext{}, fmt.Errorf("failed to read %s: %w", sqlFile, err)
	}
	return client.BuildContext(ctx, string(content))
}
