// Package midi bridges hardware MIDI inputs to the graph engine using the
// rtmidi driver. Incoming note on/off messages are forwarded as control
// events to one target module, typically a midiin module.
package midi

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/patchgrid/patchgrid/engine"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	Context struct {
		driver             *rtmididrv.Driver
		currentIn          drivers.In
		inputDevices       []Device
		devicesInitialized bool

		engine *engine.Engine
		target atomic.Int64 // logical id of the module receiving note events
	}

	Device struct {
		context *Context
		in      drivers.In
	}
)

// NewContext opens the rtmidi driver. A failed driver init is not fatal,
// the context just reports no input devices.
func NewContext(e *engine.Engine) *Context {
	m := Context{engine: e}
	m.driver, _ = rtmididrv.New()
	return &m
}

// SetTarget routes subsequent note events to the given logical id. Safe to
// call at any time; events for an id that no longer exists are dropped by
// the engine.
func (c *Context) SetTarget(id int) {
	c.target.Store(int64(id))
}

func (c *Context) InputDevices(yield func(Device) bool) {
	if c.devicesInitialized {
		for _, device := range c.inputDevices {
			if !yield(device) {
				break
			}
		}
		return
	}
	if c.driver == nil {
		return
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return
	}
	for _, in := range ins {
		device := Device{context: c, in: in}
		c.inputDevices = append(c.inputDevices, device)
		if !yield(device) {
			break
		}
	}
	c.devicesInitialized = true
}

// TryToOpenBy opens the first input whose name starts with namePrefix, or
// just the first input when takeFirst is set.
func (c *Context) TryToOpenBy(namePrefix string, takeFirst bool) {
	if namePrefix == "" && !takeFirst {
		return
	}
	for input := range c.InputDevices {
		if takeFirst || strings.HasPrefix(input.String(), namePrefix) {
			input.Open()
			return
		}
	}
}

// Open an input device, closing the currently open one if necessary.
func (d Device) Open() error {
	if d.context.currentIn == d.in {
		return nil
	}
	if d.context.driver == nil {
		return errors.New("no driver available")
	}
	if d.context.HasDeviceOpen() {
		d.context.currentIn.Close()
	}
	d.context.currentIn = d.in
	if err := d.in.Open(); err != nil {
		d.context.currentIn = nil
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	if _, err := gomidi.ListenTo(d.in, d.context.handleMessage); err != nil {
		d.in.Close()
		d.context.currentIn = nil
		return err
	}
	return nil
}

func (d Device) String() string { return d.in.String() }

func (c *Context) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

func (c *Context) Close() {
	if c.driver == nil {
		return
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.driver.Close()
}

// handleMessage runs on the rtmidi listener goroutine. Only note messages
// are forwarded; the engine applies them at the start of the next block, so
// intra-block timestamps are not preserved.
func (c *Context) handleMessage(msg gomidi.Message, timestampms int32) {
	target := int(c.target.Load())
	if target == 0 {
		return
	}
	var channel, key, velocity uint8
	if msg.GetNoteOn(&channel, &key, &velocity) {
		c.engine.SendNote(target, true, key, velocity)
	} else if msg.GetNoteOff(&channel, &key, &velocity) {
		c.engine.SendNote(target, false, key, velocity)
	}
}
