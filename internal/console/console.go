// Package console runs the timing console actor. One goroutine owns every
// derby mutation; display clients join and receive a versioned board
// snapshot after each change.
package console

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/models"
	"github.com/DoyleJ11/derby-console/internal/timer"
)

var ErrClosed = errors.New("console is shut down")

type Msg interface{ isConsoleMsg() }

// PostReading records a raw timer line against the current race.
type PostReading struct {
	Raw   string
	Reply chan Result
}

func (PostReading) isConsoleMsg() {}

type Rewind struct{ Reply chan error }

func (Rewind) isConsoleMsg() {}

type ScheduleRound struct{ Reply chan error }

func (ScheduleRound) isConsoleMsg() {}

type Prepare struct {
	Roster        derby.Roster
	LanesEnabled  int
	HeatsPerRound int
	Reply         chan error
}

func (Prepare) isConsoleMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isConsoleMsg() {}

type Leave struct{ ClientID string }

func (Leave) isConsoleMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isConsoleMsg() {}

type Shutdown struct{}

func (Shutdown) isConsoleMsg() {}

// Result is the reply to PostReading.
type Result struct {
	Timed []models.RaceResult
	Err   error
}

type Snapshot struct {
	Version int
	Board   derby.Board
}

type View struct {
	Version    int
	NumClients int
	Board      derby.Board
}

type Console struct {
	inbox   chan Msg
	derby   *derby.Derby
	archive *timer.Archive
	log     *zap.Logger
	board   derby.Board
	version int
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New loads the current board and starts the actor. archive may be nil.
func New(parent context.Context, d *derby.Derby, archive *timer.Archive, log *zap.Logger) (*Console, error) {
	board, err := d.Board(parent)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(parent)

	c := &Console{
		inbox:   make(chan Msg, 64),
		derby:   d,
		archive: archive,
		log:     log,
		board:   board,
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.loop()
	return c, nil
}

func (c *Console) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				c.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: c.version, Board: c.board}
				c.log.Debug("display joined", zap.String("client", msg.ClientID))

			case Leave:
				if ch, ok := c.clients[msg.ClientID]; ok {
					close(ch)
					delete(c.clients, msg.ClientID)
					c.log.Debug("display left", zap.String("client", msg.ClientID))
				}

			case PostReading:
				timed, err := c.postReading(msg.Raw)
				msg.Reply <- Result{Timed: timed, Err: err}

			case Rewind:
				msg.Reply <- c.apply("rewind", c.derby.RewindOneRace)

			case ScheduleRound:
				msg.Reply <- c.apply("schedule round", c.derby.ScheduleRound)

			case Prepare:
				msg.Reply <- c.apply("prepare", func(ctx context.Context) error {
					return c.derby.Prepare(ctx, msg.Roster, msg.LanesEnabled, msg.HeatsPerRound)
				})

			case GetView:
				msg.Reply <- View{
					Version:    c.version,
					NumClients: len(c.clients),
					Board:      c.board,
				}

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Console) postReading(raw string) ([]models.RaceResult, error) {
	if c.archive != nil {
		if _, err := c.archive.Append(raw, time.Now()); err != nil {
			c.log.Warn("failed to archive timer line", zap.String("raw", raw), zap.Error(err))
		}
	}
	var timed []models.RaceResult
	err := c.apply("timer reading", func(ctx context.Context) error {
		var err error
		timed, err = c.derby.PostTimerReading(ctx, raw)
		return err
	})
	return timed, err
}

// apply runs one mutation and, on success, publishes the new board.
func (c *Console) apply(op string, fn func(ctx context.Context) error) error {
	if err := fn(c.ctx); err != nil {
		c.log.Warn(op+" rejected", zap.Error(err))
		return err
	}
	board, err := c.derby.Board(c.ctx)
	if err != nil {
		c.log.Error("failed to load board", zap.String("after", op), zap.Error(err))
		return nil
	}
	c.board = board
	c.version++
	c.broadcast(Snapshot{Version: c.version, Board: c.board})
	return nil
}

func (c *Console) shutdown() {
	for id, ch := range c.clients {
		close(ch) // no more snapshots
		delete(c.clients, id)
	}
	c.cancel()
}

func (c *Console) broadcast(snap Snapshot) {
	for id, ch := range c.clients {
		select {
		case ch <- snap:
		default:
			// slow display, drop it
			close(ch)
			delete(c.clients, id)
			c.log.Info("dropped slow display", zap.String("client", id))
		}
	}
}

// Inbox exposes the actor's mailbox to the transport layers.
func (c *Console) Inbox() chan<- Msg { return c.inbox }

// Done is closed once the actor has stopped.
func (c *Console) Done() <-chan struct{} { return c.done }

func (c *Console) PostReading(ctx context.Context, raw string) ([]models.RaceResult, error) {
	reply := make(chan Result, 1)
	res, err := request[Result](ctx, c, PostReading{Raw: raw, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return res.Timed, res.Err
}

func (c *Console) Rewind(ctx context.Context) error {
	reply := make(chan error, 1)
	res, err := request[error](ctx, c, Rewind{Reply: reply}, reply)
	if err != nil {
		return err
	}
	return res
}

func (c *Console) ScheduleRound(ctx context.Context) error {
	reply := make(chan error, 1)
	res, err := request[error](ctx, c, ScheduleRound{Reply: reply}, reply)
	if err != nil {
		return err
	}
	return res
}

func (c *Console) Prepare(ctx context.Context, roster derby.Roster, lanesEnabled, heatsPerRound int) error {
	reply := make(chan error, 1)
	res, err := request[error](ctx, c, Prepare{Roster: roster, LanesEnabled: lanesEnabled, HeatsPerRound: heatsPerRound, Reply: reply}, reply)
	if err != nil {
		return err
	}
	return res
}

func (c *Console) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return request[View](ctx, c, GetView{Reply: reply}, reply)
}

func request[T any](ctx context.Context, c *Console, msg Msg, reply <-chan T) (T, error) {
	var zero T
	select {
	case c.inbox <- msg:
	case <-c.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
