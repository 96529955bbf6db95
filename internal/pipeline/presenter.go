package pipeline

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"ghostwatch/pkg/domain"
)

// ViewSink receives complete views.
type ViewSink interface {
	Replace(view domain.View)
}

// PresenterConfig holds the presentation writer's dependencies.
type PresenterConfig struct {
	In     *Queue[domain.View]
	Sink   ViewSink
	Logger Logger
}

// Validate checks the configuration.
func (c PresenterConfig) Validate() error {
	if c.In == nil {
		return errors.NotValidf("nil In queue")
	}
	if c.Sink == nil {
		return errors.NotValidf("nil Sink")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Presenter installs each view into the sink in arrival order.
type Presenter struct {
	catacomb catacomb.Catacomb
	cfg      PresenterConfig
}

// NewPresenter starts the presentation worker.
func NewPresenter(cfg PresenterConfig) (*Presenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	p := &Presenter{cfg: cfg}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &p.catacomb,
		Work: p.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}

// Kill is part of the worker.Worker interface.
func (p *Presenter) Kill() { p.catacomb.Kill(nil) }

// Wait is part of the worker.Worker interface.
func (p *Presenter) Wait() error { return p.catacomb.Wait() }

func (p *Presenter) loop() error {
	ctx := p.catacomb.Context(context.Background())
	for {
		view, err := p.cfg.In.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			p.cfg.Logger.Debugf("view queue closed, presenter exiting")
			return nil
		}
		if err != nil {
			select {
			case <-p.catacomb.Dying():
				return p.catacomb.ErrDying()
			default:
				return Fatal(errors.Annotate(err, "receive view"))
			}
		}
		p.cfg.Sink.Replace(view)
		s := view.Summary()
		p.cfg.Logger.Debugf("view refreshed at %s: %d appeared, %d conquered, %d departed",
			view.RefreshedAt, s.Appeared, s.Conquered, s.Departed)
	}
}
