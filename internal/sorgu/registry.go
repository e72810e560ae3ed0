package sorgu

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/internal/metrics"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// Registry maps query types to executors. It is built once at startup and
// read-only afterwards.
type Registry struct {
	order     []Type
	executors map[Type]Executor
	log       *logger.Logger
}

// NewRegistry registers executors in the given order. A type registered
// twice is an error.
func NewRegistry(log *logger.Logger, executors ...Executor) (*Registry, error) {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Registry{executors: make(map[Type]Executor, len(executors)), log: log}
	for _, e := range executors {
		if _, dup := r.executors[e.Type()]; dup {
			return nil, fmt.Errorf("query type %s registered twice", e.Type())
		}
		r.executors[e.Type()] = e
		r.order = append(r.order, e.Type())
	}
	return r, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []Type {
	return append([]Type(nil), r.order...)
}

// Lookup returns the executor for t.
func (r *Registry) Lookup(t Type) (Executor, error) {
	e, ok := r.executors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return e, nil
}

// Failed builds the failure result for t with its empty payload.
func (r *Registry) Failed(t Type, msg string) Result {
	var empty any
	if e, ok := r.executors[t]; ok {
		empty = e.Empty()
	}
	return Result{Type: t, Status: StatusFailed, Payload: empty, Message: msg}
}

// Run executes the query t on the current debtor and records its outcome.
func (r *Registry) Run(ctx context.Context, ctl *interaction.Controller, t Type) (Result, error) {
	e, err := r.Lookup(t)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := e.Execute(ctx, ctl)
	res.Type = t
	res.Duration = time.Since(start)

	metrics.QueryDuration.WithLabelValues(string(t)).Observe(res.Duration.Seconds())
	metrics.QueryOutcomes.WithLabelValues(string(t), string(res.Status)).Inc()
	r.log.Info("Query finished",
		"query", t,
		"status", res.Status,
		"duration", res.Duration,
	)
	return res, nil
}
