package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const defaultRegistrationTimeout = 2 * time.Minute

// Backend is the part of the stream backend the registry needs.
type Backend interface {
	ComputeSchemaID(ctx context.Context, definition string) (model.SchemaID, error)
	// RegisterSchemas returns an empty tx hash when every schema already exists.
	RegisterSchemas(ctx context.Context, regs []model.SchemaRegistration, ignoreRegistered bool) (string, error)
	SchemaDefinition(ctx context.Context, id model.SchemaID) (string, error)
	WaitForConfirmation(ctx context.Context, txHash string) error
}

// Registry ensures schemas exist on the backend, once per definition per process.
type Registry struct {
	backend Backend
	timeout time.Duration
	logger  logger.Logger

	group singleflight.Group
	mu    sync.RWMutex
	ready map[string]model.Schema // canonical definition -> schema
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimeout bounds a single registration round trip including confirmation.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRegistry creates a registry over backend.
func NewRegistry(backend Backend, opts ...Option) *Registry {
	r := &Registry{
		backend: backend,
		timeout: defaultRegistrationTimeout,
		ready:   make(map[string]model.Schema),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("schema")
	}
	return r
}

// Lookup returns the schema for def if it has already been ensured.
func (r *Registry) Lookup(def Definition) (model.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.ready[def.String()]
	return s, ok
}

// Ensure registers def under name unless it already exists and returns its schema.
// Concurrent calls for the same definition share one registration. A caller whose
// ctx ends stops waiting; the registration itself keeps going for the others.
func (r *Registry) Ensure(ctx context.Context, name string, def Definition) (model.Schema, error) {
	if s, ok := r.Lookup(def); ok {
		return s, nil
	}
	key := def.String()
	ch := r.group.DoChan(key, func() (interface{}, error) {
		if s, ok := r.Lookup(def); ok {
			return s, nil
		}
		regCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		s, err := r.register(regCtx, name, def)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.ready[key] = s
		r.mu.Unlock()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return model.Schema{}, model.WrapKind("schema.ensure", model.ErrSchemaNotReady, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return model.Schema{}, res.Err
		}
		return res.Val.(model.Schema), nil
	}
}

func (r *Registry) register(ctx context.Context, name string, def Definition) (model.Schema, error) {
	const op = "schema.register"
	start := time.Now()
	defer func() {
		metrics.RecordSchemaRegistration(float64(time.Since(start).Milliseconds()))
	}()

	canonical := def.String()
	id, err := r.backend.ComputeSchemaID(ctx, canonical)
	if err != nil {
		return model.Schema{}, model.WrapKind(op, model.ErrRegistryUnavailable, err)
	}

	tx, err := r.backend.RegisterSchemas(ctx, []model.SchemaRegistration{{
		Name:           name,
		Definition:     canonical,
		ParentSchemaID: model.ZeroSchemaID,
	}}, true)
	switch {
	case errors.Is(err, model.ErrSchemaConflict):
		metrics.UpdateSchemaState(metrics.SchemaStateConflict)
		return model.Schema{}, model.WrapKind(op, model.ErrSchemaConflict, err)
	case errors.Is(err, model.ErrAlreadyRegistered):
		r.logger.Info(ctx, "schema already registered", logger.String("schemaId", id.String()))
	case err != nil:
		return model.Schema{}, model.WrapKind(op, model.ErrRegistryUnavailable, err)
	case tx == "":
		r.logger.Info(ctx, "schema already registered, no action required", logger.String("schemaId", id.String()))
	default:
		if err := r.backend.WaitForConfirmation(ctx, tx); err != nil {
			return model.Schema{}, model.WrapKind(op, model.ErrRegistryUnavailable, err)
		}
		r.logger.Info(ctx, "schema registered", logger.String("schemaId", id.String()), logger.String("txHash", tx))
	}

	stored, err := r.backend.SchemaDefinition(ctx, id)
	if err != nil {
		return model.Schema{}, model.WrapKind(op, model.ErrRegistryUnavailable, err)
	}
	storedDef, err := Parse(stored)
	if err != nil || !storedDef.Equal(def) {
		metrics.UpdateSchemaState(metrics.SchemaStateConflict)
		return model.Schema{}, model.NewKind(op, model.ErrSchemaConflict,
			fmt.Sprintf("id %s holds %q, want %q", id, stored, canonical))
	}

	metrics.UpdateSchemaState(metrics.SchemaStateReady)
	return model.Schema{ID: id, Name: name, Fields: def.Fields}, nil
}
