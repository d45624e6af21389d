package schemarefresh

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"graph-query-connector/internal/execution"
	"graph-query-connector/internal/gqldoc"
	"graph-query-connector/internal/naming"
	"graph-query-connector/internal/schema"
)

// BuildFunc creates the executor that serves desc.
type BuildFunc func(ctx context.Context, desc *schema.Descriptor) (execution.Executor, error)

// SchemaProvider is implemented by executors that serve an in-process
// graph schema, such as the graph store.
type SchemaProvider interface {
	Schema() graphql.Schema
}

// BuildSnapshotConfig defines inputs for snapshot assembly.
type BuildSnapshotConfig struct {
	Data     []byte
	Format   schema.Format
	Namer    *naming.Namer
	Build    BuildFunc
	GraphiQL bool
}

// BuildSnapshot parses descriptor content and builds its executor. When the
// executor serves an in-process schema, the snapshot also carries an HTTP
// handler for it.
func BuildSnapshot(ctx context.Context, cfg BuildSnapshotConfig) (*Snapshot, error) {
	if cfg.Build == nil {
		return nil, fmt.Errorf("snapshot builder requires an executor build function")
	}

	desc, err := schema.Parse(cfg.Data, cfg.Format, cfg.Namer)
	if err != nil {
		return nil, err
	}
	exec, err := cfg.Build(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to build executor: %w", err)
	}

	snapshot := &Snapshot{
		Descriptor:  desc,
		Executor:    exec,
		BuiltAt:     time.Now(),
		Fingerprint: Fingerprint(cfg.Data),
	}
	if provider, ok := exec.(SchemaProvider); ok {
		graphSchema := provider.Schema()
		snapshot.Schema = &graphSchema
		snapshot.Handler = handler.New(&handler.Config{
			Schema:     &graphSchema,
			Pretty:     true,
			GraphiQL:   cfg.GraphiQL,
			Playground: false,
		})
	}
	return snapshot, nil
}

// Fingerprint identifies descriptor content.
func Fingerprint(data []byte) string {
	return gqldoc.FramedSHA256("schema-descriptor", string(data))
}

func notReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
	})
}
