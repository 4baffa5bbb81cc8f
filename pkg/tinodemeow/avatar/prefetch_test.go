package avatar_test

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

func TestPrefetch_DecodesAll(t *testing.T) {
	good := pngPhoto(t)
	bad := &types.Photo{Data: "AAAA"}
	jobs := []avatar.Job{
		{Topic: "usrA", Photo: good},
		{Topic: "usrB", Photo: bad},
		{Topic: "usrC", Photo: good},
	}
	var lock sync.Mutex
	results := make(map[string]image.Image)
	prefetcher := &avatar.Prefetcher{Workers: 2}
	err := prefetcher.Prefetch(context.Background(), jobs, func(job avatar.Job, img image.Image) {
		lock.Lock()
		results[job.Topic] = img
		lock.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotNil(t, results["usrA"])
	assert.Nil(t, results["usrB"])
	assert.True(t, results["usrA"] == results["usrC"])
	assert.True(t, good.Decoded())
	assert.True(t, bad.Decoded())
}

func TestPrefetch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := (&avatar.Prefetcher{}).Prefetch(ctx, []avatar.Job{{Topic: "usrA", Photo: pngPhoto(t)}}, func(avatar.Job, image.Image) {
		called = true
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
