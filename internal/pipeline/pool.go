package pipeline

import (
	"image"
	"sync"
)

// framePool recycles per-frame RGBA working copies. Frames of a live feed
// all share one size, so a buffer taken from the pool almost always fits;
// one that does not is dropped.
type framePool struct {
	pool sync.Pool
}

func (fp *framePool) get(b image.Rectangle) *image.RGBA {
	if img, ok := fp.pool.Get().(*image.RGBA); ok && img.Rect == b {
		return img
	}
	return image.NewRGBA(b)
}

func (fp *framePool) put(img *image.RGBA) {
	if img != nil {
		fp.pool.Put(img)
	}
}
