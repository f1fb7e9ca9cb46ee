// Package oto outputs the engine's audio through the oto library. The
// device pulls: oto calls Read on its own goroutine and we render blocks on
// demand, so ProcessBlock runs at the device's pace.
package oto

import (
	"fmt"

	"github.com/ebitengine/oto/v3"
	"github.com/patchgrid/patchgrid"
)

type (
	Context struct {
		context   *oto.Context
		blockSize int
	}

	output struct {
		player *oto.Player
	}

	// renderReader adapts a block render callback to the io.Reader oto
	// pulls from. It renders whole blocks and carves them up into whatever
	// read sizes the device asks for.
	renderReader struct {
		render  patchgrid.BlockRenderFunc
		buf     patchgrid.AudioBuffer
		pending []byte
	}
)

func NewContext(sampleRate, blockSize int) (*Context, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: context, blockSize: blockSize}, nil
}

func (c *Context) Play(render patchgrid.BlockRenderFunc) patchgrid.AudioCloser {
	reader := &renderReader{
		render: render,
		buf:    make(patchgrid.AudioBuffer, c.blockSize),
	}
	player := c.context.NewPlayer(reader)
	player.Play()
	return &output{player: player}
}

// Close suspends the device. The underlying oto context cannot be torn down,
// it lives for the rest of the process.
func (c *Context) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *output) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func (r *renderReader) Read(p []byte) (int, error) {
	for len(r.pending) < len(p) {
		r.render(r.buf)
		r.pending = r.buf.Float32LE(r.pending)
	}
	n := copy(p, r.pending)
	rest := copy(r.pending, r.pending[n:])
	r.pending = r.pending[:rest]
	return n, nil
}
