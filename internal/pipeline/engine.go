package pipeline

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"
	"go.opentelemetry.io/otel/trace"

	"ghostwatch/pkg/domain"
)

// Config holds everything the engine needs to run all three stages.
type Config struct {
	Source      Source
	Baselines   BaselineStore
	Store       domain.EventStore
	Sink        ViewSink
	Clock       clock.Clock
	MinInterval time.Duration
	RetryDelay  time.Duration
	ViewLimit   int
	Logger      Logger
	Metrics     Metrics
	Tracer      trace.Tracer
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Source == nil {
		return errors.NotValidf("nil Source")
	}
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Sink == nil {
		return errors.NotValidf("nil Sink")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Engine supervises the coordinator, publisher and presenter. An error in
// any stage stops all of them and is returned from Wait.
type Engine struct {
	catacomb    catacomb.Catacomb
	coordinator *Coordinator
}

// NewEngine wires the stages together and starts them.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	batches := NewQueue[Batch]()
	views := NewQueue[domain.View]()

	coordinator, err := NewCoordinator(CoordinatorConfig{
		Source:      cfg.Source,
		Baselines:   cfg.Baselines,
		Out:         batches,
		Clock:       cfg.Clock,
		Backoff:     Backoff{Delay: cfg.RetryDelay},
		MinInterval: cfg.MinInterval,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
		Tracer:      cfg.Tracer,
	})
	if err != nil {
		return nil, errors.Annotate(err, "start coordinator")
	}
	publisher, err := NewPublisher(PublisherConfig{
		In:        batches,
		Out:       views,
		Store:     cfg.Store,
		Baselines: cfg.Baselines,
		ViewLimit: cfg.ViewLimit,
		Logger:    cfg.Logger,
	})
	if err != nil {
		_ = worker.Stop(coordinator)
		return nil, errors.Annotate(err, "start publisher")
	}
	presenter, err := NewPresenter(PresenterConfig{In: views, Sink: cfg.Sink, Logger: cfg.Logger})
	if err != nil {
		_ = worker.Stop(coordinator)
		_ = worker.Stop(publisher)
		return nil, errors.Annotate(err, "start presenter")
	}

	e := &Engine{coordinator: coordinator}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &e.catacomb,
		Work: e.loop,
		Init: []worker.Worker{coordinator, publisher, presenter},
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return e, nil
}

// State returns the coordinator's state.
func (e *Engine) State() State { return e.coordinator.State() }

// Baseline returns the coordinator's current baseline.
func (e *Engine) Baseline() domain.ValidSnapshot { return e.coordinator.Baseline() }

// Kill is part of the worker.Worker interface.
func (e *Engine) Kill() { e.catacomb.Kill(nil) }

// Wait is part of the worker.Worker interface.
func (e *Engine) Wait() error { return e.catacomb.Wait() }

func (e *Engine) loop() error {
	<-e.catacomb.Dying()
	return e.catacomb.ErrDying()
}
