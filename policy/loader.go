package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudfu/cloudfu/telemetry"
)

// Loader reads .rego files from a directory tree into an engine. Policies
// must live in the cloudfu package for their decisions to be picked up.
type Loader struct {
	dir    string
	engine *Engine
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewLoader creates a loader rooted at dir
func NewLoader(dir string, engine *Engine) *Loader {
	return &Loader{
		dir:    dir,
		engine: engine,
		logger: telemetry.NewLogger("policy-loader"),
		tracer: otel.Tracer("policy-loader"),
	}
}

// LoadAll walks the policy directory and loads every .rego file
func (l *Loader) LoadAll(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "policy_loader.load_all",
		trace.WithAttributes(attribute.String("policy_dir", l.dir)))
	defer span.End()

	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return fmt.Errorf("policy directory does not exist: %s", l.dir)
	}

	err := filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		return l.loadPolicyFile(ctx, path)
	})
	if err != nil {
		return err
	}

	l.logger.WithContext(ctx).Info().
		Str("policy_dir", l.dir).
		Int("policies", l.engine.PolicyCount()).
		Msg("policy directory loaded")

	return nil
}

func (l *Loader) loadPolicyFile(ctx context.Context, path string) error {
	if err := l.validateFilePath(path); err != nil {
		return fmt.Errorf("invalid policy path %s: %w", path, err)
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".rego")
	if err := l.engine.LoadPolicy(ctx, name, string(content)); err != nil {
		return fmt.Errorf("failed to load policy %s from %s: %w", name, path, err)
	}
	return nil
}

// validateFilePath keeps walked paths inside the policy directory
func (l *Loader) validateFilePath(path string) error {
	cleanPath := filepath.Clean(path)

	relPath, err := filepath.Rel(filepath.Clean(l.dir), cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve relative path: %w", err)
	}

	if strings.HasPrefix(relPath, "..") {
		return fmt.Errorf("path traversal detected")
	}
	return nil
}
