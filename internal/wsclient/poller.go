package wsclient

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller re-fetches view state on a fixed interval while the realtime
// connection is down, once whenever the connection comes back, and once on
// every Foreground call.
type Poller struct {
	interval   time.Duration
	fetch      func(ctx context.Context) error
	log        *zap.Logger
	connected  chan bool
	foreground chan struct{}
	done       chan struct{}
}

func NewPoller(interval time.Duration, fetch func(ctx context.Context) error, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		interval:   interval,
		fetch:      fetch,
		log:        log,
		connected:  make(chan bool, 1),
		foreground: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// SetConnected reports the connection state; only the latest value counts.
func (p *Poller) SetConnected(v bool) {
	select {
	case <-p.connected:
	default:
	}
	select {
	case p.connected <- v:
	default:
	}
}

// Foreground asks for one immediate refresh.
func (p *Poller) Foreground() {
	select {
	case p.foreground <- struct{}{}:
	default:
	}
}

// Start runs until ctx ends. The poller starts in the disconnected state.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	connected := false
	ticker = time.NewTicker(p.interval)
	tick = ticker.C

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-p.connected:
			if v == connected {
				continue
			}
			connected = v
			if connected {
				stopTicker()
				p.refresh(ctx, "reconnected")
			} else {
				ticker = time.NewTicker(p.interval)
				tick = ticker.C
			}
		case <-tick:
			p.refresh(ctx, "poll")
		case <-p.foreground:
			p.refresh(ctx, "foreground")
		}
	}
}

func (p *Poller) refresh(ctx context.Context, reason string) {
	if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("refresh failed", zap.String("reason", reason), zap.Error(err))
	}
}
