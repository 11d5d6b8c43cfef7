// Package framebuffer stores incoming simulation frames indexed by timestamp.
package framebuffer

// Option applies a configuration option to the MemoryBuffer.
type Option func(*MemoryBuffer)

// WithCountyCapacity presizes the per-county index.
func WithCountyCapacity(n int) Option {
	return func(b *MemoryBuffer) {
		if n > 0 {
			b.countyCap = n
		}
	}
}

// WithFrameCapacity presizes the timestamp index.
func WithFrameCapacity(n int) Option {
	return func(b *MemoryBuffer) {
		if n > 0 {
			b.frameCap = n
		}
	}
}
