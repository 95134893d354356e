package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wtask/p2pchat/internal/chat"
	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/registry"
	"github.com/wtask/p2pchat/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func runListen(ctx context.Context, c *cli.Command) error {
	s, err := load(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := startPeer(ctx, s, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s is listening on %s, press Ctrl-C to stop...\n", s.peer.DisplayName, strings.Join(r.peer.Addrs(), ", "))

	<-ctx.Done()
	s.logger.Info().Msg("got stop signal")
	r.shutdown()
	return nil
}

func runTalk(ctx context.Context, c *cli.Command) error {
	host, port, err := remoteAddress(c.Args().First())
	if err != nil {
		return err
	}
	s, err := load(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := startPeer(ctx, s, true)
	if err != nil {
		return err
	}
	defer r.shutdown()
	peer := r.peer

	t, err := peer.Connect(ctx, host, port)
	if err != nil {
		return err
	}
	if s.peer.IconPath != "" {
		if err := peer.RegisterWith(t); err != nil {
			return err
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := peer.Say(t, line); err != nil {
				return err
			}
		}
	}
}

func runSend(ctx context.Context, c *cli.Command) error {
	if c.NArg() < 2 {
		return errors.New("remote address and message text are required")
	}
	host, port, err := remoteAddress(c.Args().First())
	if err != nil {
		return err
	}
	s, err := load(c)
	if err != nil {
		return err
	}

	// one-shot peer does not listen
	r, err := startPeer(ctx, s, false)
	if err != nil {
		return err
	}
	defer r.shutdown()
	peer := r.peer

	ctx, cancel := context.WithTimeout(ctx, s.peer.Timeout)
	defer cancel()
	t, err := peer.Connect(ctx, host, port)
	if err != nil {
		return err
	}
	expected := 1
	if c.Bool("register") {
		if err := peer.RegisterWith(t); err != nil {
			return err
		}
		expected++
	}
	if err := peer.Say(t, strings.Join(c.Args().Tail(), " ")); err != nil {
		return err
	}

	for expected > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d acknowledgement(s) not received: %w", expected, ctx.Err())
		case <-t.Done():
			return errors.New("connection is closed before acknowledgement")
		case n := <-r.printed.acks:
			expected -= n
		}
	}
	return nil
}

func runIcon(_ context.Context, c *cli.Command) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("peer name is required")
	}
	s, err := load(c)
	if err != nil {
		return err
	}
	r, err := registry.New(s.peer.IconsDir)
	if err != nil {
		return err
	}
	if _, err := r.Restore(); err != nil {
		s.logger.Warn().Err(err).Msg("icons folder is partially read")
	}
	path, ok := r.IconPath(name)
	if !ok {
		return fmt.Errorf("%s is not registered in %s", name, r.Dir())
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s\t%d byte(s)\n", path, info.Size())
	return nil
}

// printer - prints peer events until event stream is closed.
type printer struct {
	done chan struct{}
	// acks - receives 1 for every acknowledgement received by talkers
	acks chan int
}

func printEvents(w io.Writer, events <-chan event.Event, logger zerolog.Logger) *printer {
	p := &printer{done: make(chan struct{}), acks: make(chan int, 16)}
	go func() {
		defer close(p.done)
		for e := range events {
			if s, ok := e.(event.StateEvent); ok {
				logger.Debug().Str("source", string(s.Source)).Str("peer", s.Peer).Stringer("state", s.State).Msg("state changed")
				continue
			}
			if line := chat.FormatEvent(e); line != "" {
				fmt.Fprintln(w, line)
			}
			if m, ok := e.(event.MessageEvent); ok && m.Source == event.SourceTalker {
				select {
				case p.acks <- 1:
				default:
				}
			}
		}
	}()
	return p
}

// running - started peer with its event printer and tracing.
type running struct {
	peer        *chat.Peer
	printed     *printer
	logger      zerolog.Logger
	stopTracing func(context.Context) error
}

func startPeer(ctx context.Context, s settings, listen bool) (*running, error) {
	stopTracing, err := telemetry.Setup(ctx, "p2pchat", Version, s.otelEndpoint)
	if err != nil {
		return nil, err
	}
	peer, err := chat.NewPeer(s.peer, chat.WithLogger(s.logger))
	if err != nil {
		_ = stopTracing(context.Background())
		return nil, err
	}
	r := &running{
		peer:        peer,
		printed:     printEvents(os.Stdout, peer.Events(), s.logger),
		logger:      s.logger,
		stopTracing: stopTracing,
	}
	if !listen {
		return r, nil
	}
	if err := peer.Start(); err != nil {
		r.shutdown()
		return nil, err
	}
	return r, nil
}

func (r *running) shutdown() {
	elapsed := r.peer.Shutdown(shutdownTimeout)
	<-r.printed.done
	// spans of closed connections are exported before exit
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.stopTracing(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("traces are not flushed")
	}
	r.logger.Info().Dur("elapsed", elapsed).Msg("peer stopped, bye")
}

// remoteAddress - splits host:port argument.
func remoteAddress(arg string) (string, int, error) {
	if arg == "" {
		return "", 0, errors.New("remote address is required")
	}
	host, p, err := net.SplitHostPort(arg)
	if err != nil {
		return "", 0, fmt.Errorf("invalid remote address %q: %w", arg, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid remote port %q", p)
	}
	return host, port, nil
}
