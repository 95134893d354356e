package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtask/p2pchat/internal/chat/command"
	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/listener"
	"github.com/wtask/p2pchat/internal/chat/registry"
	"github.com/wtask/p2pchat/internal/chat/talker"
	"github.com/wtask/p2pchat/pkg/background"
)

// ErrShutdown - peer is already shut down.
var ErrShutdown = errors.New("chat.Peer: peer is shut down")

// Peer - chat participant: listens for inbound connections, opens outbound ones
// and delivers every event of both into a single channel.
type Peer struct {
	config      Config
	logger      zerolog.Logger
	eventBuffer int
	now         func() time.Time

	tracerProvider trace.TracerProvider

	registry *registry.Registry
	events   chan event.Event
	queue    *event.Queue

	scope  *background.Scope
	cancel func()

	mu        sync.Mutex
	listeners []*listener.Listener
	talkers   map[string]*talker.Talker
	down      bool
}

// NewPeer - creates peer, it does not listen until Start.
func NewPeer(config Config, options ...Option) (*Peer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Peer{
		config:      config,
		logger:      zerolog.Nop(),
		eventBuffer: 64,
		talkers:     map[string]*talker.Talker{},
	}
	if err := setup(p, options...); err != nil {
		return nil, err
	}

	r, err := registry.New(config.IconsDir)
	if err != nil {
		return nil, fmt.Errorf("chat.NewPeer: %w", err)
	}
	if n, err := r.Restore(); err != nil {
		p.logger.Warn().Err(err).Str("dir", r.Dir()).Msg("icons folder is not restored")
	} else if n > 0 {
		p.logger.Info().Int("clients", n).Str("dir", r.Dir()).Msg("registered clients restored")
	}
	p.registry = r

	p.events = make(chan event.Event, p.eventBuffer)
	p.queue = event.NewQueue(p.events)
	p.scope, p.cancel = background.NewScope()
	return p, nil
}

// Config - returns peer configuration.
func (p *Peer) Config() Config {
	return p.config
}

// Events - stream of listener and talker events, closed on Shutdown.
func (p *Peer) Events() <-chan event.Event {
	return p.events
}

// Registry - registered clients.
func (p *Peer) Registry() *registry.Registry {
	return p.registry
}

// Start - starts listeners of configured address families.
// If one of them can't bind, the already started ones are stopped.
func (p *Peer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return ErrShutdown
	}
	if len(p.listeners) > 0 {
		return nil
	}

	router := command.Router{Registry: p.registry, DisplayName: p.config.DisplayName, Now: p.now}
	port := p.config.Port
	started := []*listener.Listener{}
	for _, family := range p.config.Family.listenerFamilies() {
		options := []listener.Option{
			listener.WithFamily(family),
			listener.WithAddress(p.config.Address),
			listener.WithPort(port),
			listener.WithTimeout(p.config.Timeout),
			listener.WithNotifier(p.queue),
			listener.WithLogger(p.logger),
		}
		if p.tracerProvider != nil {
			options = append(options, listener.WithTracerProvider(p.tracerProvider))
		}
		l, err := listener.New(router, options...)
		if err == nil {
			err = l.Start()
		}
		if err != nil {
			for _, l := range started {
				l.Stop()
			}
			return err
		}
		// ephemeral port of the first listener is shared with the next one
		port = l.Port()
		started = append(started, l)
	}
	p.listeners = started
	p.logger.Info().Strs("addr", p.addrs()).Msg("peer started")
	return nil
}

// Listening - reports whether any listener accepts connections.
func (p *Peer) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.SomeBy(p.listeners, func(l *listener.Listener) bool {
		return l.Listening()
	})
}

// Port - bound port, or configured port when peer is not started.
func (p *Peer) Port() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.listeners) == 0 {
		return p.config.Port
	}
	return p.listeners[0].Port()
}

// Addrs - bound addresses.
func (p *Peer) Addrs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addrs()
}

func (p *Peer) addrs() []string {
	return lo.FilterMap(p.listeners, func(l *listener.Listener, _ int) (string, bool) {
		if addr := l.Addr(); addr != nil {
			return addr.String(), true
		}
		return "", false
	})
}

// Connect - opens outbound connection, its events are delivered into the peer's stream.
// Talker is closed on Shutdown or when the remote side is gone.
func (p *Peer) Connect(ctx context.Context, host string, port int) (*talker.Talker, error) {
	if !p.scope.Active() {
		return nil, ErrShutdown
	}
	options := []talker.Option{
		talker.WithTimeout(p.config.Timeout),
		talker.WithNotifier(p.queue),
		talker.WithLogger(p.logger),
	}
	if p.tracerProvider != nil {
		options = append(options, talker.WithTracerProvider(p.tracerProvider))
	}
	t, err := talker.Dial(ctx, host, port, options...)
	if err != nil {
		p.queue.Push(event.StatusEvent{
			NetEvent: event.Stamp(event.NetEvent{Source: event.SourceTalker, Peer: formatAddress(host, port)}),
			Text:     err.Error(),
			Err:      err,
		})
		return nil, err
	}

	p.mu.Lock()
	p.talkers[t.Session()] = t
	p.mu.Unlock()
	forget := func(ctx context.Context) {
		select {
		case <-t.Done():
		case <-ctx.Done():
			t.Close()
		}
		p.mu.Lock()
		delete(p.talkers, t.Session())
		p.mu.Unlock()
	}
	if !p.scope.Go(forget) {
		t.Close()
		return nil, ErrShutdown
	}
	return t, nil
}

// RegisterWith - announces local user and icon through the talker.
func (p *Peer) RegisterWith(t *talker.Talker) error {
	if t == nil {
		return errors.New("chat.Peer.RegisterWith: talker is nil")
	}
	return t.Register(p.config.DisplayName, p.config.IconPath)
}

// Say - sends text through the talker on behalf of local user.
func (p *Peer) Say(t *talker.Talker, text string) error {
	if t == nil {
		return errors.New("chat.Peer.Say: talker is nil")
	}
	return t.Say(p.config.DisplayName, text)
}

// Talkers - number of open outbound connections.
func (p *Peer) Talkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.talkers)
}

// Shutdown - stops peer with the specified timeout and returns stopping duration.
// Note, the timeout must consider the duration for closing connections and delivering the rest of events.
func (p *Peer) Shutdown(timeout time.Duration) time.Duration {
	p.mu.Lock()
	if p.down {
		p.mu.Unlock()
		return 0
	}
	p.down = true
	listeners := p.listeners
	p.listeners = nil
	p.mu.Unlock()

	from := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		// forget goroutines close their talkers on cancel
		p.cancel()
		for _, l := range listeners {
			l.Stop()
		}
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn().Dur("timeout", timeout).Msg("peer is not stopped in time")
	}

	ctx, cancel := context.WithDeadline(context.Background(), from.Add(timeout))
	defer cancel()
	if err := p.queue.Flush(ctx); err != nil {
		p.logger.Warn().Int("dropped", p.queue.Len()).Msg("undelivered events are dropped")
	}
	p.queue.Close()
	close(p.events)

	elapsed := time.Since(from)
	p.logger.Info().Dur("elapsed", elapsed).Msg("peer stopped")
	return elapsed
}
