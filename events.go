package firebird

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventHandler receives a fired event's name and its cumulative count as
// reported by the server.
type EventHandler func(name string, count int)

// EventUpdate is one fired event delivered through Wait.
type EventUpdate struct {
	Name  string
	Count int
}

var eventIDCounter atomic.Int32

// EventAlerter listens for named server events on a dedicated auxiliary
// channel. The server pushes a notification whenever a registered event
// fires; the alerter re-arms the registration after each push so counting
// never stops.
type EventAlerter struct {
	conn  *Connection
	id    int32
	names []string

	mu      sync.Mutex
	counts  map[string]int
	running bool
	stopped bool

	aux     *wireChannel
	handler EventHandler
	updates chan EventUpdate
	done    chan struct{}
}

// NewEventAlerter registers interest in the given event names. The server
// caps a registration at 15 distinct names.
func (c *Connection) NewEventAlerter(names ...string) (*EventAlerter, error) {
	if len(names) == 0 {
		return nil, &EventError{Message: "at least one event name is required"}
	}

	if len(names) > maxEventsPerRegistration {
		return nil, &EventError{
			Message: fmt.Sprintf("%d events requested, registration maximum is %d", len(names), maxEventsPerRegistration),
		}
	}

	counts := make(map[string]int, len(names))

	for _, name := range names {
		if name == "" || len(name) > 255 {
			return nil, &EventError{Message: fmt.Sprintf("invalid event name %q", name)}
		}

		if _, dup := counts[name]; dup {
			return nil, &EventError{Message: fmt.Sprintf("duplicate event name %q", name)}
		}

		counts[name] = 0
	}

	return &EventAlerter{
		conn:    c,
		id:      eventIDCounter.Add(1),
		names:   names,
		counts:  counts,
		updates: make(chan EventUpdate, 64),
	}, nil
}

// buildEPB encodes the event parameter block: each name with the count the
// client has already seen, so the server only notifies on changes.
func buildEPB(names []string, counts map[string]int) []byte {
	epb := []byte{epbVersion1}

	for _, name := range names {
		epb = append(epb, byte(len(name)))
		epb = append(epb, name...)
		epb = binary.LittleEndian.AppendUint32(epb, uint32(counts[name]))
	}

	return epb
}

// parseEPB decodes the updated block from an event push.
func parseEPB(epb []byte) (map[string]int, error) {
	if len(epb) < 1 || epb[0] != epbVersion1 {
		return nil, &EventError{Message: "malformed event block"}
	}

	counts := make(map[string]int)
	rest := epb[1:]

	for len(rest) > 0 {
		n := int(rest[0])

		if len(rest) < 1+n+4 {
			return nil, &EventError{Message: "truncated event block"}
		}

		name := string(rest[1 : 1+n])
		counts[name] = int(binary.LittleEndian.Uint32(rest[1+n : 1+n+4]))

		rest = rest[1+n+4:]
	}

	return counts, nil
}

// Start opens the auxiliary channel, queues the registration and launches
// the listening goroutine. handler may be nil when the caller consumes
// events through Wait instead.
func (a *EventAlerter) Start(handler EventHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return &EventError{Message: "alerter already stopped"}
	}

	if a.running {
		return &EventError{Message: "alerter already started"}
	}

	var aux *wireChannel

	err := a.conn.withProto(func(p *wireProtocol) error {
		var err error
		aux, err = p.connectAuxiliary()

		if err != nil {
			return err
		}

		return p.queueEvents(buildEPB(a.names, a.counts), a.id)
	})

	if err != nil {
		if aux != nil {
			aux.close()
		}

		return err
	}

	a.aux = aux
	a.handler = handler
	a.running = true
	a.done = make(chan struct{})

	go a.listen()

	return nil
}

// listen blocks on the auxiliary channel. The first push reports the
// baseline counts for a fresh registration and produces no callbacks;
// every later push dispatches the events whose counts moved, then re-arms.
func (a *EventAlerter) listen() {
	defer close(a.done)

	baseline := true

	for {
		epb, _, err := readEvent(a.aux)

		if err != nil {
			a.mu.Lock()
			stopped := a.stopped
			a.mu.Unlock()

			if !stopped {
				log.Printf("firebird: event listener terminated: %v", err)
			}

			return
		}

		counts, err := parseEPB(epb)

		if err != nil {
			log.Printf("firebird: discarding event push: %v", err)

			continue
		}

		a.mu.Lock()

		var fired []EventUpdate

		for _, name := range a.names {
			count, ok := counts[name]

			if !ok || count == a.counts[name] {
				continue
			}

			a.counts[name] = count

			if !baseline {
				fired = append(fired, EventUpdate{Name: name, Count: count})
			}
		}

		requeue := buildEPB(a.names, a.counts)
		handler := a.handler

		a.mu.Unlock()

		baseline = false

		for _, update := range fired {
			if handler != nil {
				handler(update.Name, update.Count)
			}

			select {
			case a.updates <- update:
			default:
			}
		}

		err = a.conn.withProto(func(p *wireProtocol) error {
			return p.queueEvents(requeue, a.id)
		})

		if err != nil {
			a.mu.Lock()
			stopped := a.stopped
			a.mu.Unlock()

			if !stopped {
				log.Printf("firebird: re-arming event registration failed: %v", err)
			}

			return
		}
	}
}

// Wait blocks until a registered event fires or the timeout elapses. The
// alerter must have been started.
func (a *EventAlerter) Wait(timeout time.Duration) (EventUpdate, error) {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	if !running {
		return EventUpdate{}, &EventError{Message: "alerter is not running"}
	}

	select {
	case update := <-a.updates:
		return update, nil
	case <-time.After(timeout):
		return EventUpdate{}, &EventError{Message: "timed out waiting for an event"}
	}
}

// Counts returns a snapshot of the cumulative per-event counts.
func (a *EventAlerter) Counts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := make(map[string]int, len(a.counts))

	for name, count := range a.counts {
		snapshot[name] = count
	}

	return snapshot
}

// Stop cancels the registration and shuts the listener down, waiting for
// the goroutine to exit. Stopping twice is an error: the registration is
// already gone.
func (a *EventAlerter) Stop() error {
	a.mu.Lock()

	if a.stopped {
		a.mu.Unlock()

		return &EventError{Message: "alerter already stopped"}
	}

	if !a.running {
		a.stopped = true
		a.mu.Unlock()

		return nil
	}

	a.stopped = true
	a.running = false

	a.mu.Unlock()

	err := a.conn.withProto(func(p *wireProtocol) error {
		return p.cancelEvents(a.id)
	})

	// Closing the channel unblocks the listener's pending read.
	a.aux.close()

	<-a.done

	return err
}
