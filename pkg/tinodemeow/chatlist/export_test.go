package chatlist

import (
	"image"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
)

func (cl *ChatList) PhotoDecodedForTest(job avatar.Job, img image.Image) {
	cl.photoDecoded(job, img)
}
