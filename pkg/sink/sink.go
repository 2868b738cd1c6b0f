// Package sink writes enriched profiles to their final destination: a JSON
// array on a stream or rows in a SQL table. A sink receives the complete
// result at once and never sees a partial run.
package sink

import (
	"context"
	"fmt"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "igdump_rows_written_total",
	Help: "Total profiles written by sink kind",
}, []string{"sink"})

// Sink consumes the full list of enriched profiles.
type Sink interface {
	Emit(ctx context.Context, profiles []client.Profile) error
}

// Kind names a sink on the command line.
type Kind string

const (
	// KindTable writes rows into a SQL table.
	KindTable Kind = "table"

	// KindStream writes a JSON array to a writer.
	KindStream Kind = "stream"
)

// ParseKind validates a sink name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTable, KindStream:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown output %q (want table or stream)", s)
	}
}
