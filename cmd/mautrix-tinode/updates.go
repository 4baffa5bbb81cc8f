// mautrix-tinode - Tinode chat list and contact presentation core.
// Copyright (C) 2026 mautrix-tinode contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
)

type UpdateType string

const (
	UpdateTypeReload UpdateType = "reload"
	UpdateTypeRow    UpdateType = "row"
)

// Update is a message sent to websocket subscribers when the chat list changes.
type Update struct {
	Type     UpdateType    `json:"type"`
	Count    int           `json:"count,omitempty"`
	Position int           `json:"position"`
	Topic    string        `json:"topic,omitempty"`
	Row      *chatlist.Row `json:"row,omitempty"`
}

const subscriberBuffer = 64
const writeTimeout = 10 * time.Second

type Subscriber struct {
	id uuid.UUID
	ch chan *Update
}

// UpdateHub fans chat list changes out to websocket subscribers. It's the
// chatlist.Renderer of the server.
type UpdateHub struct {
	log     zerolog.Logger
	metrics *MetricsHandler

	lock sync.Mutex
	subs map[uuid.UUID]*Subscriber
}

var _ chatlist.Renderer = (*UpdateHub)(nil)

func NewUpdateHub(log zerolog.Logger, metrics *MetricsHandler) *UpdateHub {
	return &UpdateHub{
		log:     log,
		metrics: metrics,
		subs:    make(map[uuid.UUID]*Subscriber),
	}
}

func (hub *UpdateHub) ReloadAll(rows []chatlist.Row) {
	hub.broadcast(&Update{Type: UpdateTypeReload, Count: len(rows)})
}

func (hub *UpdateHub) ReloadRow(row chatlist.Row) {
	hub.broadcast(&Update{Type: UpdateTypeRow, Position: row.Position, Topic: row.Topic, Row: &row})
}

// broadcast never blocks, since it's called while the chat list is locked.
// Subscribers that can't keep up are disconnected.
func (hub *UpdateHub) broadcast(update *Update) {
	hub.lock.Lock()
	defer hub.lock.Unlock()
	for id, sub := range hub.subs {
		select {
		case sub.ch <- update:
		default:
			hub.log.Warn().Stringer("subscriber_id", id).Msg("Update subscriber is too slow, dropping it")
			hub.remove(sub)
		}
	}
}

func (hub *UpdateHub) Subscribe() *Subscriber {
	sub := &Subscriber{id: uuid.New(), ch: make(chan *Update, subscriberBuffer)}
	hub.lock.Lock()
	hub.subs[sub.id] = sub
	hub.lock.Unlock()
	if hub.metrics != nil {
		hub.metrics.TrackSubscribers(1)
	}
	return sub
}

func (hub *UpdateHub) Unsubscribe(sub *Subscriber) {
	hub.lock.Lock()
	hub.remove(sub)
	hub.lock.Unlock()
}

func (hub *UpdateHub) remove(sub *Subscriber) {
	if _, ok := hub.subs[sub.id]; !ok {
		return
	}
	delete(hub.subs, sub.id)
	close(sub.ch)
	if hub.metrics != nil {
		hub.metrics.TrackSubscribers(-1)
	}
}

func (hub *UpdateHub) Count() int {
	hub.lock.Lock()
	defer hub.lock.Unlock()
	return len(hub.subs)
}

// ServeHTTP upgrades the request to a websocket and streams updates until
// either side goes away.
func (hub *UpdateHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		hub.log.Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "Websocket StatusInternalError")
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	log := hub.log.With().Stringer("subscriber_id", sub.id).Logger()
	log.Debug().Msg("Update subscriber connected")

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case update, ok := <-sub.ch:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			if err = hub.write(ctx, conn, update); err != nil {
				log.Debug().Err(err).Msg("Failed to write update")
				return
			}
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				log.Debug().Err(ctx.Err()).Msg("Update subscriber context ended")
			}
			log.Debug().Msg("Update subscriber disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (hub *UpdateHub) write(ctx context.Context, conn *websocket.Conn, update *Update) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, update)
}
