// Package hub pushes live trip events to websocket subscribers.
package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	EventTripStarted    = "trip_started"
	EventLocationUpdate = "location_update"
	EventTripStopped    = "trip_stopped"
)

// AllRoutes subscribes a client to every route.
const AllRoutes uint = 0

type Event struct {
	Type      string      `json:"event"`
	RouteID   uint        `json:"routeId"`
	BusID     uint        `json:"busId"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscriberGauge is notified when subscriptions open and close.
type SubscriberGauge interface {
	SubscriberDelta(d float64)
}

// subscriber is one websocket subscription. Its writer goroutine is the only
// writer on ws, so events for a connection go out in the order they were queued.
type subscriber struct {
	ws      *websocket.Conn
	routeID uint
	send    chan Event
	quit    chan struct{}
	once    sync.Once
}

const (
	writeWait = 10 * time.Second
	sendQueue = 64
)

// LocationHub fans out trip events to clients subscribed per route.
type LocationHub struct {
	clients   map[uint]map[*subscriber]bool
	broadcast chan Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	gauge     SubscriberGauge
}

// NewLocationHub creates the hub and starts its broadcast loop.
func NewLocationHub(gauge SubscriberGauge) *LocationHub {
	h := &LocationHub{
		clients:   make(map[uint]map[*subscriber]bool),
		broadcast: make(chan Event, 100),
		done:      make(chan struct{}),
		gauge:     gauge,
	}
	go h.run()
	return h
}

func (h *LocationHub) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.broadcast:
			for _, c := range h.recipients(ev.RouteID) {
				select {
				case c.send <- ev:
				default:
					logrus.WithFields(logrus.Fields{
						"route_id": ev.RouteID,
						"event":    ev.Type,
						"conn_ptr": fmt.Sprintf("%p", c.ws),
					}).Warn("Subscriber queue full, dropping event")
				}
			}
		}
	}
}

func (h *LocationHub) recipients(routeID uint) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*subscriber
	for c := range h.clients[routeID] {
		out = append(out, c)
	}
	if routeID != AllRoutes {
		for c := range h.clients[AllRoutes] {
			out = append(out, c)
		}
	}
	return out
}

// writePump drains c.send until the subscriber is dropped. A failed write
// drops the subscriber.
func (h *LocationHub) writePump(c *subscriber) {
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"route_id": ev.RouteID,
					"event":    ev.Type,
					"conn_ptr": fmt.Sprintf("%p", c.ws),
				}).Warn("Failed to push event to subscriber, dropping it")
				h.drop(c)
				return
			}
		}
	}
}

// subscribe registers ws under routeID and starts its writer.
func (h *LocationHub) subscribe(routeID uint, ws *websocket.Conn) *subscriber {
	c := &subscriber{
		ws:      ws,
		routeID: routeID,
		send:    make(chan Event, sendQueue),
		quit:    make(chan struct{}),
	}
	h.register(c)
	go h.writePump(c)
	return c
}

func (h *LocationHub) register(c *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[c.routeID]; !ok {
		h.clients[c.routeID] = make(map[*subscriber]bool)
	}
	h.clients[c.routeID][c] = true
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.SubscriberDelta(1)
	}
	logrus.WithFields(logrus.Fields{
		"route_id": c.routeID,
		"conn_ptr": fmt.Sprintf("%p", c.ws),
	}).Info("Subscriber registered with LocationHub")
}

// drop unregisters c, stops its writer and closes the connection. Safe to
// call more than once.
func (h *LocationHub) drop(c *subscriber) {
	c.once.Do(func() {
		h.mu.Lock()
		if clients, ok := h.clients[c.routeID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.clients, c.routeID)
			}
		}
		h.mu.Unlock()

		close(c.quit)
		c.ws.Close()

		if h.gauge != nil {
			h.gauge.SubscriberDelta(-1)
		}
		logrus.WithField("route_id", c.routeID).Info("Subscriber unregistered from LocationHub")
	})
}

// Subscribers returns the number of open subscriptions for a route key.
func (h *LocationHub) Subscribers(routeID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[routeID])
}

// Serve subscribes ws to routeID and blocks until the client goes away.
// Clients are receive-only; anything they send is ignored.
func (h *LocationHub) Serve(ws *websocket.Conn, routeID uint) {
	c := h.subscribe(routeID, ws)
	defer h.drop(c)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("route_id", routeID).Debug("Subscriber read ended")
			}
			return
		}
	}
}

// Publish queues an event. When the queue is full the event is dropped.
func (h *LocationHub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"route_id": ev.RouteID,
			"event":    ev.Type,
		}).Warn("Location broadcast channel full, dropping event")
	}
}

// Close stops the broadcast loop. Open connections are left to their handlers.
func (h *LocationHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
