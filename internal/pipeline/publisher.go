package pipeline

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"ghostwatch/pkg/domain"
)

// PublisherConfig holds the persistence stage's dependencies.
type PublisherConfig struct {
	In        *Queue[Batch]
	Out       *Queue[domain.View]
	Store     domain.EventStore
	Baselines BaselineStore
	// ViewLimit caps events per kind in emitted views.
	ViewLimit int
	Logger    Logger
}

// Validate checks the configuration.
func (c PublisherConfig) Validate() error {
	if c.In == nil || c.Out == nil {
		return errors.NotValidf("nil queue")
	}
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Publisher is the persistence consumer. It handles batches strictly in
// order, one transaction per change set, and emits the refreshed view.
type Publisher struct {
	catacomb catacomb.Catacomb
	cfg      PublisherConfig
}

// NewPublisher starts the persistence worker.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.ViewLimit <= 0 {
		cfg.ViewLimit = domain.DefaultViewLimit
	}
	p := &Publisher{cfg: cfg}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &p.catacomb,
		Work: p.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}

// Kill is part of the worker.Worker interface.
func (p *Publisher) Kill() { p.catacomb.Kill(nil) }

// Wait is part of the worker.Worker interface.
func (p *Publisher) Wait() error { return p.catacomb.Wait() }

func (p *Publisher) loop() error {
	defer p.cfg.Out.Close()
	ctx := p.catacomb.Context(context.Background())
	for {
		batch, err := p.cfg.In.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			p.cfg.Logger.Debugf("batch queue closed, publisher exiting")
			return nil
		}
		if err != nil {
			return p.fail(errors.Annotate(err, "receive batch"))
		}
		err = p.persist(ctx, batch)
		batch.ack(err)
		if err != nil {
			return p.fail(err)
		}
	}
}

func (p *Publisher) fail(err error) error {
	select {
	case <-p.catacomb.Dying():
		return p.catacomb.ErrDying()
	default:
		return Fatal(err)
	}
}

// persist appends the change set, reads the latest view, hands it to the
// presenter and finally records the batch's baseline as the warm-restart
// artifact. The producer is acked with the result.
func (p *Publisher) persist(ctx context.Context, b Batch) error {
	set := b.ChangeSet
	if !set.Empty() {
		if err := p.cfg.Store.Append(ctx, set); err != nil {
			return errors.Annotatef(err, "append change set %s", set.CapturedAt)
		}
		p.cfg.Logger.Debugf("appended %d events captured at %s", len(set.Events), set.CapturedAt)
	}
	view, err := p.cfg.Store.Latest(ctx, p.cfg.ViewLimit)
	if err != nil {
		return errors.Annotate(err, "read latest view")
	}
	view.RefreshedAt = set.CapturedAt
	if err := p.cfg.Out.Push(view); err != nil {
		return errors.Annotate(err, "queue view")
	}
	if p.cfg.Baselines != nil && !b.Baseline.IsZero() {
		if err := p.cfg.Baselines.Save(ctx, b.Baseline.Snapshot()); err != nil {
			return errors.Annotate(err, "save warm-restart artifact")
		}
	}
	return nil
}
