// Package pipeline runs the snapshot cycle as three juju workers connected by
// unbounded queues: the coordinator fetches and diffs, the publisher
// persists, and the presenter installs views into the cache.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ghostwatch/internal/diff"
	"ghostwatch/pkg/domain"
)

// DefaultMinInterval separates two snapshot captures.
const DefaultMinInterval = time.Hour

// Cycle outcomes reported to Metrics.CycleFinished.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
)

// Source produces raw snapshots.
type Source interface {
	Fetch(ctx context.Context) (*domain.Snapshot, error)
}

// BaselineStore keeps the warm-restart artifact.
type BaselineStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// Logger is the logging surface used by the workers.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
	Errorf(string, ...interface{})
}

// Metrics receives pipeline measurements.
type Metrics interface {
	CycleFinished(outcome string)
	FetchRetried()
	EventsDetected(set domain.ChangeSet)
	DiffObserved(d time.Duration)
	BaselineAdvanced(capturedAt time.Time)
	SetState(state string)
}

type noopMetrics struct{}

func (noopMetrics) CycleFinished(string) {}
func (noopMetrics) FetchRetried() {}
func (noopMetrics) EventsDetected(domain.ChangeSet) {}
func (noopMetrics) DiffObserved(time.Duration) {}
func (noopMetrics) BaselineAdvanced(time.Time) {}
func (noopMetrics) SetState(string) {}

// Batch is one published cycle: the change set and the snapshot it was
// diffed up to.
type Batch struct {
	ChangeSet domain.ChangeSet
	Baseline  domain.ValidSnapshot

	// done receives the outcome of persisting the batch. Buffered.
	done chan error
}

// ack reports the persistence outcome to the producer, if it is listening.
func (b Batch) ack(err error) {
	if b.done != nil {
		b.done <- err
	}
}

// CoordinatorConfig holds the coordinator's dependencies.
type CoordinatorConfig struct {
	Source    Source
	Baselines BaselineStore
	Out       *Queue[Batch]
	Clock     clock.Clock
	Backoff   Backoff
	// MinInterval is the minimum age of the baseline before the next fetch.
	MinInterval time.Duration
	Logger      Logger
	Metrics     Metrics
	Tracer      trace.Tracer
}

// Validate checks the configuration.
func (c CoordinatorConfig) Validate() error {
	if c.Source == nil {
		return errors.NotValidf("nil Source")
	}
	if c.Out == nil {
		return errors.NotValidf("nil Out queue")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.MinInterval < 0 {
		return errors.NotValidf("negative MinInterval")
	}
	return nil
}

// Coordinator is the producer stage. It is the only writer of batches and
// owns the in-memory baseline.
type Coordinator struct {
	catacomb catacomb.Catacomb
	cfg      CoordinatorConfig
	state    atomic.Int32
	baseline atomic.Pointer[domain.ValidSnapshot]
}

// NewCoordinator starts the producer worker.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("ghostwatch/internal/pipeline")
	}
	cfg.Backoff.Clock = cfg.Clock
	c := &Coordinator{cfg: cfg}
	c.setState(StateBootstrapping)
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &c.catacomb,
		Work: c.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}

// State returns the current state.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Baseline returns the snapshot the next cycle diffs against. It is zero
// until bootstrap completes.
func (c *Coordinator) Baseline() domain.ValidSnapshot {
	if b := c.baseline.Load(); b != nil {
		return *b
	}
	return domain.ValidSnapshot{}
}

// Kill is part of the worker.Worker interface.
func (c *Coordinator) Kill() { c.catacomb.Kill(nil) }

// Wait is part of the worker.Worker interface.
func (c *Coordinator) Wait() error { return c.catacomb.Wait() }

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
	c.cfg.Metrics.SetState(s.String())
}

func (c *Coordinator) loop() error {
	defer c.setState(StateStopped)
	defer c.cfg.Out.Close()
	ctx := c.catacomb.Context(context.Background())

	baseline, err := c.bootstrap(ctx)
	if err != nil {
		return c.stopping(err)
	}
	initial := Batch{ChangeSet: domain.ChangeSet{CapturedAt: baseline.CapturedAt()}, Baseline: baseline}
	if err := c.publish(initial); err != nil {
		return c.stopping(err)
	}
	for {
		c.setState(StateWaiting)
		if wait := baseline.CapturedAt().Add(c.cfg.MinInterval).Sub(c.cfg.Clock.Now()); wait > 0 {
			c.cfg.Logger.Debugf("next fetch in %v", wait)
			select {
			case <-c.catacomb.Dying():
				return c.catacomb.ErrDying()
			case <-c.cfg.Clock.After(wait):
			}
		}
		next, err := c.cycle(ctx, baseline)
		if err != nil {
			return c.stopping(err)
		}
		baseline = next
	}
}

// stopping maps errors caused by shutdown to ErrDying so they do not
// replace the kill reason.
func (c *Coordinator) stopping(err error) error {
	select {
	case <-c.catacomb.Dying():
		return c.catacomb.ErrDying()
	default:
	}
	if errors.Is(err, ErrStopped) {
		return c.catacomb.ErrDying()
	}
	return err
}

func (c *Coordinator) notify(err error, attempt int) {
	c.cfg.Metrics.FetchRetried()
	c.cfg.Logger.Warningf("attempt %d failed, retrying in %v: %v", attempt, c.cfg.Backoff.Delay, err)
}

// fetchValid fetches one snapshot and validates it.
func (c *Coordinator) fetchValid(ctx context.Context) (domain.ValidSnapshot, error) {
	c.setState(StateFetching)
	snap, err := c.cfg.Source.Fetch(ctx)
	if err != nil {
		return domain.ValidSnapshot{}, errors.Annotate(err, "fetch snapshot")
	}
	valid, err := domain.Validate(snap)
	if err != nil {
		return domain.ValidSnapshot{}, errors.Trace(err)
	}
	return valid, nil
}

func (c *Coordinator) bootstrap(ctx context.Context) (domain.ValidSnapshot, error) {
	c.setState(StateBootstrapping)
	if c.cfg.Baselines != nil {
		snap, err := c.cfg.Baselines.Load(ctx)
		switch {
		case err != nil:
			c.cfg.Logger.Warningf("ignoring warm-restart artifact: %v", err)
		case snap != nil:
			valid, err := domain.Validate(snap)
			if err == nil {
				c.cfg.Logger.Infof("warm restart from snapshot captured at %s", valid.CapturedAt().Format(time.RFC3339))
				return valid, nil
			}
			c.cfg.Logger.Warningf("ignoring invalid warm-restart artifact: %v", err)
		}
	}
	var baseline domain.ValidSnapshot
	err := c.cfg.Backoff.Run(c.catacomb.Dying(), func() error {
		valid, err := c.fetchValid(ctx)
		if err != nil {
			return err
		}
		baseline = valid
		return nil
	}, c.notify)
	if err != nil {
		return domain.ValidSnapshot{}, errors.Annotate(err, "bootstrap")
	}
	c.cfg.Logger.Infof("bootstrapped from snapshot captured at %s", baseline.CapturedAt().Format(time.RFC3339))
	return baseline, nil
}

// cycle fetches, validates and diffs one candidate against baseline, then
// publishes the result. It returns the new baseline.
func (c *Coordinator) cycle(ctx context.Context, baseline domain.ValidSnapshot) (domain.ValidSnapshot, error) {
	cycleID := uuid.New().String()
	ctx, span := c.cfg.Tracer.Start(ctx, "pipeline.cycle", trace.WithAttributes(attribute.String("cycle.id", cycleID)))
	defer span.End()

	var candidate domain.ValidSnapshot
	var set domain.ChangeSet
	err := c.cfg.Backoff.Run(c.catacomb.Dying(), func() error {
		valid, err := c.fetchValid(ctx)
		if err != nil {
			return err
		}
		c.setState(StateDiffing)
		started := c.cfg.Clock.Now()
		changes, err := diff.Diff(baseline, valid)
		c.cfg.Metrics.DiffObserved(c.cfg.Clock.Now().Sub(started))
		if err != nil {
			return Fatal(err)
		}
		candidate, set = valid, changes
		return nil
	}, c.notify)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ValidSnapshot{}, errors.Annotatef(err, "cycle %s", cycleID)
	}

	c.setState(StatePublishing)
	if err := c.publish(Batch{ChangeSet: set, Baseline: candidate}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ValidSnapshot{}, errors.Annotatef(err, "cycle %s", cycleID)
	}
	outcome := OutcomeChanged
	if set.Empty() {
		outcome = OutcomeUnchanged
	}
	c.cfg.Metrics.EventsDetected(set)
	c.cfg.Metrics.CycleFinished(outcome)
	span.SetAttributes(
		attribute.Int("events.appeared", set.Count(domain.KindTownAppeared)),
		attribute.Int("events.conquered", set.Count(domain.KindTownConquered)),
		attribute.Int("events.departed", set.Count(domain.KindPlayerDeparted)),
	)
	c.cfg.Logger.Infof("cycle %s: %d appeared, %d conquered, %d departed",
		cycleID, set.Count(domain.KindTownAppeared), set.Count(domain.KindTownConquered), set.Count(domain.KindPlayerDeparted))
	return candidate, nil
}

// publish queues b for persistence and waits until the publisher has
// recorded it. Only then does the in-memory baseline advance.
func (c *Coordinator) publish(b Batch) error {
	b.done = make(chan error, 1)
	if err := c.cfg.Out.Push(b); err != nil {
		return Fatal(errors.Annotate(err, "queue batch"))
	}
	select {
	case <-c.catacomb.Dying():
		return c.catacomb.ErrDying()
	case err := <-b.done:
		if err != nil {
			return Fatal(errors.Annotate(err, "publish batch"))
		}
	}
	baseline := b.Baseline
	c.baseline.Store(&baseline)
	c.cfg.Metrics.BaselineAdvanced(baseline.CapturedAt())
	return nil
}
