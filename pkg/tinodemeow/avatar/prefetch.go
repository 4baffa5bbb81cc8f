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

package avatar

import (
	"context"
	"image"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

const DefaultDecodeWorkers = 4

// Job is a photo waiting to be decoded along with the topic it was shown for.
type Job struct {
	Topic string
	Photo *types.Photo
}

// Prefetcher decodes avatar photos in the background so that the rendering path
// never has to.
type Prefetcher struct {
	Workers  int
	Observer Observer
}

// Prefetch decodes the photos of all jobs using at most Workers goroutines and
// calls onDone for each job once its photo has been decoded, successfully or not.
// onDone runs on the worker goroutine. Photos that were already decoded are
// reported without decoding again.
//
// Results are tied to the *types.Photo in the job, not to a row position: it's up
// to onDone to check whether the photo is still in use.
func (p *Prefetcher) Prefetch(ctx context.Context, jobs []Job, onDone func(job Job, img image.Image)) error {
	log := zerolog.Ctx(ctx).With().Str("action", "prefetch avatars").Logger()
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultDecodeWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			alreadyDecoded := job.Photo.Decoded()
			img, err := job.Photo.Decode()
			if err != nil && !alreadyDecoded {
				log.Debug().Err(err).Str("topic", job.Topic).Msg("Failed to decode avatar")
				if p.Observer != nil {
					p.Observer.TrackDecodeFailure(err)
				}
			}
			onDone(job, img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
