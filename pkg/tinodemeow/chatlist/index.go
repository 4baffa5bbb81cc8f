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
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

// Index maps topic names to their row in the currently displayed list so that a
// single row can be refreshed without reloading everything.
//
// The index is either stale (before the first Rebuild, or after Invalidate) or
// valid. There's no incremental insert or delete: any structural change to the
// list requires a full Rebuild. Index is not safe for concurrent use.
type Index struct {
	positions map[string]int
	valid     bool
}

func NewIndex() *Index {
	return &Index{positions: make(map[string]int)}
}

// Rebuild replaces the index with the positions of the given conversations.
//
// Topics are expected to be unique. If one repeats, the last occurrence wins and
// the topic is included in the returned list so the caller can report it.
func (idx *Index) Rebuild(convs []*types.Conversation) (duplicates []string) {
	positions := make(map[string]int, len(convs))
	for i, conv := range convs {
		if _, seen := positions[conv.Topic]; seen {
			duplicates = append(duplicates, conv.Topic)
		}
		positions[conv.Topic] = i
	}
	idx.positions = positions
	idx.valid = true
	return
}

// PositionOf returns the row of the given topic. The second return value is false
// if the topic wasn't in the last rebuild or the index is stale.
func (idx *Index) PositionOf(topic string) (int, bool) {
	if !idx.valid {
		return 0, false
	}
	pos, ok := idx.positions[topic]
	return pos, ok
}

// Invalidate marks the index stale until the next Rebuild.
func (idx *Index) Invalidate() {
	idx.valid = false
	clear(idx.positions)
}

func (idx *Index) Valid() bool {
	return idx.valid
}

func (idx *Index) Len() int {
	return len(idx.positions)
}
