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

package chatlist

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

// ErrStaleIndex is returned by Update when the topic isn't in the current index.
// The caller should fetch the full list and call Display.
var ErrStaleIndex = errors.New("topic is not in the chat list index")

// Renderer is the presentation layer that draws the rows.
//
// ChatList calls the renderer while holding its lock, so events arrive in order.
// Renderers must not call back into the ChatList synchronously.
type Renderer interface {
	ReloadAll(rows []Row)
	ReloadRow(row Row)
}

// Observer receives statistics about list maintenance.
type Observer interface {
	TrackRebuild(size, duplicates int)
	TrackPointUpdate(hit bool)
}

// ChatList keeps the displayed conversations along with their index and turns
// sync events into full reloads or single row refreshes.
type ChatList struct {
	Resolver   *avatar.Resolver
	Prefetcher *avatar.Prefetcher
	Renderer   Renderer
	Observer   Observer
	// UnknownTitle is shown for conversations without a name.
	UnknownTitle string

	log   zerolog.Logger
	ctx   context.Context
	stop  context.CancelFunc
	lock  sync.Mutex
	convs []*types.Conversation
	index *Index

	cancelPrefetch context.CancelFunc
}

// New creates a chat list. If prefetcher is not nil, photos are decoded in the
// background and rows are refreshed as they become available. The resolver is
// copied, so the caller's instance is left untouched.
func New(log zerolog.Logger, renderer Renderer, resolver *avatar.Resolver, prefetcher *avatar.Prefetcher) *ChatList {
	var ownResolver avatar.Resolver
	if resolver != nil {
		ownResolver = *resolver
	}
	if prefetcher != nil {
		ownResolver.NonBlocking = true
	}
	ctx, stop := context.WithCancel(log.WithContext(context.Background()))
	return &ChatList{
		Resolver:     &ownResolver,
		Prefetcher:   prefetcher,
		Renderer:     renderer,
		UnknownTitle: DefaultUnknownTitle,

		log:   log,
		ctx:   ctx,
		stop:  stop,
		index: NewIndex(),
	}
}

// Close stops background decoding. Results of decodes that were already running
// are dropped.
func (cl *ChatList) Close() {
	cl.stop()
}

// Display replaces the whole list, rebuilds the index and reloads every row.
func (cl *ChatList) Display(ctx context.Context, convs []*types.Conversation) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	cl.convs = slices.Clone(convs)
	duplicates := cl.index.Rebuild(cl.convs)
	if len(duplicates) > 0 {
		zerolog.Ctx(ctx).Warn().
			Strs("topics", duplicates).
			Msg("Chat list contains duplicate topics, only the last occurrence can be updated")
	}
	if cl.Observer != nil {
		cl.Observer.TrackRebuild(len(cl.convs), len(duplicates))
	}
	rows := make([]Row, len(cl.convs))
	var jobs []avatar.Job
	for i := range cl.convs {
		rows[i] = cl.buildRow(ctx, i)
		if rows[i].Avatar.PhotoPending {
			jobs = append(jobs, avatar.Job{Topic: cl.convs[i].Topic, Photo: cl.convs[i].Photo()})
		}
	}
	if cl.Renderer != nil {
		cl.Renderer.ReloadAll(rows)
	}
	if cl.cancelPrefetch != nil {
		cl.cancelPrefetch()
		cl.cancelPrefetch = nil
	}
	if len(jobs) > 0 && cl.Prefetcher != nil {
		prefetchCtx, cancel := context.WithCancel(cl.ctx)
		cl.cancelPrefetch = cancel
		go cl.prefetch(prefetchCtx, jobs)
	}
}

// Update replaces a single conversation and refreshes only its row.
//
// If the topic isn't in the index, nothing is changed and ErrStaleIndex is returned.
func (cl *ChatList) Update(ctx context.Context, conv *types.Conversation) error {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	pos, ok := cl.index.PositionOf(conv.Topic)
	if cl.Observer != nil {
		cl.Observer.TrackPointUpdate(ok)
	}
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("topic", conv.Topic).Msg("Topic not found in chat list index")
		return ErrStaleIndex
	}
	cl.convs[pos] = conv
	row := cl.buildRow(ctx, pos)
	if cl.Renderer != nil {
		cl.Renderer.ReloadRow(row)
	}
	if row.Avatar.PhotoPending && cl.Prefetcher != nil {
		go cl.prefetch(cl.ctx, []avatar.Job{{Topic: conv.Topic, Photo: conv.Photo()}})
	}
	return nil
}

// Invalidate marks the index stale, e.g. when the sync layer reports that topics
// were added or removed. Every Update fails until the next Display.
func (cl *ChatList) Invalidate() {
	cl.lock.Lock()
	cl.index.Invalidate()
	cl.lock.Unlock()
}

func (cl *ChatList) prefetch(ctx context.Context, jobs []avatar.Job) {
	err := cl.Prefetcher.Prefetch(ctx, jobs, cl.photoDecoded)
	if err != nil && !errors.Is(err, context.Canceled) {
		cl.log.Err(err).Msg("Failed to prefetch avatars")
	}
}

// photoDecoded refreshes the row that showed the photo, unless the conversation
// has been removed or its card replaced in the meantime.
func (cl *ChatList) photoDecoded(job avatar.Job, _ image.Image) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	if cl.ctx.Err() != nil {
		return
	}
	pos, ok := cl.index.PositionOf(job.Topic)
	if !ok || cl.convs[pos].Photo() != job.Photo {
		cl.log.Debug().Str("topic", job.Topic).Msg("Discarding decoded avatar of replaced conversation")
		return
	}
	if cl.Renderer != nil {
		cl.Renderer.ReloadRow(cl.buildRow(cl.ctx, pos))
	}
}

func (cl *ChatList) buildRow(ctx context.Context, pos int) Row {
	conv := cl.convs[pos]
	title := conv.DisplayName()
	if title == "" {
		title = cl.UnknownTitle
	}
	return Row{
		Position:    pos,
		Topic:       conv.Topic,
		Title:       title,
		Subtitle:    conv.Comment,
		UnreadBadge: UnreadBadge(conv.Unread),
		Online:      conv.Online,
		OnlineColor: onlineColor(conv.Online),
		Avatar:      cl.Resolver.Resolve(ctx, conv.Topic, conv.Public, conv.DirectMessage),
	}
}

// Rows returns the view models of all rows.
func (cl *ChatList) Rows(ctx context.Context) []Row {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	rows := make([]Row, len(cl.convs))
	for i := range cl.convs {
		rows[i] = cl.buildRow(ctx, i)
	}
	return rows
}

// Row returns the view model of the row showing the given topic.
func (cl *ChatList) Row(ctx context.Context, topic string) (Row, bool) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	pos, ok := cl.index.PositionOf(topic)
	if !ok {
		return Row{}, false
	}
	return cl.buildRow(ctx, pos), true
}

// Conversation returns the conversation currently shown for the topic.
func (cl *ChatList) Conversation(topic string) (*types.Conversation, bool) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	pos, ok := cl.index.PositionOf(topic)
	if !ok {
		return nil, false
	}
	return cl.convs[pos], true
}

// Conversations returns a copy of the displayed list.
func (cl *ChatList) Conversations() []*types.Conversation {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	return slices.Clone(cl.convs)
}

func (cl *ChatList) PositionOf(topic string) (int, bool) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	return cl.index.PositionOf(topic)
}

func (cl *ChatList) Len() int {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	return len(cl.convs)
}
