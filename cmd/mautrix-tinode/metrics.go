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
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/store"
)

type MetricsHandler struct {
	chats  *store.ChatStore
	server *http.Server
	log    zerolog.Logger

	running      atomic.Bool
	ctx          context.Context
	stopRecorder func()

	avatarResolves  *prometheus.CounterVec
	decodeFailures  prometheus.Counter
	rebuilds        prometheus.Counter
	rebuildSize     prometheus.Histogram
	duplicateTopics prometheus.Counter
	pointUpdates    *prometheus.CounterVec
	countCollection prometheus.Histogram
	storedChats     prometheus.Gauge
	subscribers     prometheus.Gauge
}

var (
	_ avatar.Observer   = (*MetricsHandler)(nil)
	_ chatlist.Observer = (*MetricsHandler)(nil)
)

func NewMetricsHandler(address string, log zerolog.Logger, chats *store.ChatStore) *MetricsHandler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)
	return &MetricsHandler{
		chats:  chats,
		server: &http.Server{Addr: address, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})},
		log:    log,

		avatarResolves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tinode_avatar_resolves",
			Help: "Number of avatars resolved, by the kind of visual shown",
		}, []string{"kind"}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tinode_avatar_decode_failures",
			Help: "Number of contact photos that couldn't be decoded",
		}),
		rebuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "tinode_chatlist_rebuilds",
			Help: "Number of times the chat list index was rebuilt",
		}),
		rebuildSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tinode_chatlist_size",
			Help:    "Number of conversations in rebuilt chat lists",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		}),
		duplicateTopics: factory.NewCounter(prometheus.CounterOpts{
			Name: "tinode_chatlist_duplicate_topics",
			Help: "Number of duplicate topics seen while rebuilding the chat list index",
		}),
		pointUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tinode_chatlist_point_updates",
			Help: "Number of single conversation updates, by whether the topic was in the index",
		}, []string{"found"}),
		countCollection: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "tinode_count_collection",
			Help: "Time spent collecting the tinode_*_total metrics",
		}),
		storedChats: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tinode_stored_chats_total",
			Help: "Number of conversations in the local database",
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tinode_update_subscribers",
			Help: "Number of connected row update websockets",
		}),
	}
}

func (mh *MetricsHandler) TrackResolve(kind avatar.Kind) {
	if !mh.running.Load() {
		return
	}
	mh.avatarResolves.With(prometheus.Labels{"kind": kind.String()}).Inc()
}

func (mh *MetricsHandler) TrackDecodeFailure(_ error) {
	if !mh.running.Load() {
		return
	}
	mh.decodeFailures.Inc()
}

func (mh *MetricsHandler) TrackRebuild(size, duplicates int) {
	if !mh.running.Load() {
		return
	}
	mh.rebuilds.Inc()
	mh.rebuildSize.Observe(float64(size))
	mh.duplicateTopics.Add(float64(duplicates))
}

func (mh *MetricsHandler) TrackPointUpdate(hit bool) {
	if !mh.running.Load() {
		return
	}
	mh.pointUpdates.With(prometheus.Labels{"found": strconv.FormatBool(hit)}).Inc()
}

func (mh *MetricsHandler) TrackSubscribers(delta int) {
	if !mh.running.Load() {
		return
	}
	mh.subscribers.Add(float64(delta))
}

func (mh *MetricsHandler) updateStats() {
	if mh.chats == nil {
		return
	}
	start := time.Now()
	count, err := mh.chats.Count(mh.ctx)
	if err != nil {
		mh.log.Warn().Err(err).Msg("Failed to scan number of stored chats")
	} else {
		mh.storedChats.Set(float64(count))
	}
	mh.countCollection.Observe(time.Since(start).Seconds())
}

func (mh *MetricsHandler) startUpdatingStats() {
	defer func() {
		err := recover()
		if err != nil {
			mh.log.WithLevel(zerolog.FatalLevel).
				Interface("panic", err).
				Bytes("stack", debug.Stack()).
				Msg("Panic in metric updater")
		}
	}()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		mh.updateStats()
		select {
		case <-mh.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (mh *MetricsHandler) Start() {
	mh.ctx, mh.stopRecorder = context.WithCancel(context.Background())
	mh.running.Store(true)
	go mh.startUpdatingStats()
	err := mh.server.ListenAndServe()
	mh.running.Store(false)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		mh.log.Err(err).Msg("Error in metrics listener")
	}
}

func (mh *MetricsHandler) Stop() {
	if !mh.running.Load() {
		return
	}
	mh.stopRecorder()
	err := mh.server.Close()
	if err != nil {
		mh.log.Err(err).Msg("Error closing metrics listener")
	}
}
