/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package hub fans device events and log records out to all subscribed
// viewers. Delivery to one subscriber never blocks delivery to another,
// and never blocks the publishing capture session: each subscriber has a
// bounded queue with drop-oldest overflow.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
)

const defaultQueueSize = 256

// Subscriber is one attached viewer. Consume from Events until it is
// closed by Unsubscribe or hub shutdown.
type Subscriber struct {
	ID      string
	ch      chan models.Event
	dropped atomic.Uint64
}

// Events is the subscriber's delivery queue.
func (s *Subscriber) Events() <-chan models.Event {
	return s.ch
}

// Dropped reports how many events were evicted because this subscriber
// fell behind.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub is the broadcast fan-out point.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	queueSize   int
	closed      bool
	logger      logger.Logger
}

// New creates a hub. queueSize 0 selects the default per-subscriber
// queue bound.
func New(queueSize int, log logger.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Hub{
		subscribers: make(map[string]*Subscriber),
		queueSize:   queueSize,
		logger:      log,
	}
}

// Subscribe attaches a new viewer. The caller is responsible for sending
// the initial device snapshot before draining live events; the hub does
// not replay history.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.New().String(),
		ch: make(chan models.Event, h.queueSize),
	}

	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		close(sub.ch)

		return sub
	}

	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	h.logger.Debug().Str("subscriber_id", sub.ID).Msg("subscriber joined")

	return sub
}

// Unsubscribe detaches a viewer and closes its queue. No-op for unknown
// ids.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()

	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		close(sub.ch)
	}

	h.mu.Unlock()

	if ok {
		h.logger.Debug().
			Str("subscriber_id", id).
			Uint64("dropped", sub.Dropped()).
			Msg("subscriber left")
	}
}

// PublishRecord broadcasts one log record.
func (h *Hub) PublishRecord(record *models.LogRecord) {
	h.publish(models.Event{Type: models.EventLogRecord, Record: record})
}

// PublishDevice broadcasts a device-state change.
func (h *Hub) PublishDevice(device models.Device) {
	h.publish(models.Event{Type: models.EventDeviceUpdated, Device: &device})
}

// PublishDeviceRemoved broadcasts a device removal.
func (h *Hub) PublishDeviceRemoved(id string) {
	h.publish(models.Event{Type: models.EventDeviceRemoved, DeviceID: id})
}

func (h *Hub) publish(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for _, sub := range h.subscribers {
		sub.deliver(event)
	}
}

// Close shuts the hub down and closes every subscriber queue. Publishes
// after Close are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
}

// deliver enqueues without ever blocking: when the queue is full the
// oldest queued event is evicted to make room. Per-publisher ordering of
// the surviving events is preserved by channel FIFO.
func (s *Subscriber) deliver(event models.Event) {
	for {
		select {
		case s.ch <- event:
			return
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
