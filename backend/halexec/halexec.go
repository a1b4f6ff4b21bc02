// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package halexec provides a backend that executes commands on a wgpu HAL
// device.
//
// Each scene is recorded into one HAL command encoder and submitted at
// EndScene. Render passes open lazily at the first draw; SetRenderTarget,
// ClearScreen, barriers, copies and dispatches end the open pass.
//
// By default the backend opens the first adapter of the HAL backend
// selected with WithAPI, the in-tree noop backend unless changed. WithDevice
// runs on a device the caller owns.
//
// Differences from the reference backend:
//
//   - ClearScreen uses render pass load operations and clears whole
//     attachments regardless of viewport and scissor;
//   - SetBlendState applies to the built-in pipelines only;
//   - texture, sampler and constant bindings are tracked but not bound,
//     since the built-in pipelines take no resources;
//   - debug events are logged, HAL has no debug markers.
package halexec

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/drawq/backend"
	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/internal/logx"
	"github.com/gogpu/drawq/resource"
)

func init() {
	backend.Register(backend.BackendHAL, func() backend.Backend { return New() })
}

// ErrNoAdapter is returned by Init when the HAL backend exposes no adapter.
var ErrNoAdapter = errors.New("halexec: no adapter")

// Option configures a Backend.
type Option func(*options)

type options struct {
	api    gputypes.Backend
	device hal.Device
	queue  hal.Queue
}

// WithAPI selects the registered HAL backend to open, for example
// gputypes.BackendVulkan after importing its package. The default is the
// noop backend.
func WithAPI(api gputypes.Backend) Option {
	return func(o *options) { o.api = api }
}

// WithDevice runs the backend on an open device and queue. The backend does
// not destroy them on Close.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(o *options) {
		o.device = device
		o.queue = queue
	}
}

// Stats counts the HAL work the backend recorded.
type Stats struct {
	Scenes       uint64
	Submits      uint64
	RenderPasses uint64
	Draws        uint64
	Dispatches   uint64
	Barriers     uint64
	Copies       uint64
	Writes       uint64
	Frames       uint64
}

// Texture is the native handle of a HAL-backed texture.
type Texture struct {
	Texture hal.Texture
	View    hal.TextureView
}

// Backend executes commands on a HAL device.
type Backend struct {
	opts options
	log  *slog.Logger
	cfg  backend.Config

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool

	shaders *shaders
	back    *resource.Texture

	enc      hal.CommandEncoder
	pass     hal.RenderPassEncoder
	inflight []hal.CommandBuffer
	st       state

	mu    sync.Mutex
	stats Stats
}

// New returns an uninitialized HAL backend.
func New(opts ...Option) *Backend {
	b := &Backend{log: logx.Nop(), opts: options{api: noop.API{}.Variant()}}
	for _, opt := range opts {
		opt(&b.opts)
	}
	b.st.reset(nil)
	return b
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return backend.BackendHAL }

// Init implements backend.Backend. It opens the device, compiles the
// built-in shaders and allocates the back buffer.
func (b *Backend) Init(cfg backend.Config) error {
	b.cfg = cfg.WithDefaults()
	b.log = logx.OrNop(cfg.Logger).With("backend", backend.BackendHAL)

	if b.opts.device != nil {
		b.device, b.queue = b.opts.device, b.opts.queue
	} else if err := b.open(); err != nil {
		return err
	}

	sh, err := newShaders(b.device)
	if err != nil {
		b.Close()
		return err
	}
	b.shaders = sh

	back, err := b.CreateTexture(&resource.TextureDescriptor{
		Label:         "back buffer",
		Size:          gputypes.NewExtent2D(b.cfg.Width, b.cfg.Height),
		Format:        b.cfg.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		SampleCount:   1,
		MipLevelCount: 1,
	})
	if err != nil {
		b.Close()
		return err
	}
	b.back = back
	b.st.reset(back)
	b.log.Info("initialized", "api", b.opts.api.String(), "width", b.cfg.Width, "height", b.cfg.Height)
	return nil
}

func (b *Backend) open() error {
	api, ok := hal.GetBackend(b.opts.api)
	if !ok {
		return fmt.Errorf("halexec: HAL backend %s not registered", b.opts.api)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return fmt.Errorf("halexec: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoAdapter
	}
	exposed := adapters[0]
	dev, err := exposed.Adapter.Open(exposed.Features, exposed.Capabilities.Limits)
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("halexec: open %s: %w", exposed.Info.Name, err)
	}
	b.log.Debug("adapter opened", "name", exposed.Info.Name, "driver", exposed.Info.Driver)

	b.instance = instance
	b.device, b.queue = dev.Device, dev.Queue
	b.owned = true
	return nil
}

// Close implements backend.Backend. It waits for the device to go idle and
// releases everything the backend created.
func (b *Backend) Close() {
	if b.device == nil {
		return
	}
	if b.enc != nil {
		b.endPass()
		b.enc.DiscardEncoding()
		b.enc = nil
	}
	b.retire()
	if b.back != nil {
		b.back.Destroy()
		b.back = nil
	}
	if b.shaders != nil {
		b.shaders.destroy()
		b.shaders = nil
	}
	b.st.reset(nil)
	if b.owned {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device, b.queue, b.instance = nil, nil, nil
	b.log.Debug("closed")
}

// Device returns the HAL device, or nil before Init.
func (b *Backend) Device() hal.Device { return b.device }

// BackBuffer returns the texture a nil render target selects.
func (b *Backend) BackBuffer() *resource.Texture { return b.back }

// Stats returns a snapshot of the recorded work counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Backend) count(fn func(s *Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// CreateTexture implements resource.Allocator.
func (b *Backend) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	if b.device == nil {
		return nil, backend.ErrNotInitialized
	}
	usage := desc.Usage
	if usage == gputypes.TextureUsageNone {
		usage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Size.Width, Height: desc.Size.Height, DepthOrArrayLayers: 1},
		MipLevelCount: max(desc.MipLevelCount, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halexec: create texture %q: %w", desc.Label, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("halexec: create view %q: %w", desc.Label, err)
	}

	device := b.device
	native := &Texture{Texture: tex, View: view}
	return resource.NewTexture(*desc, native, func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	}), nil
}

// CreateBuffer implements resource.Allocator. Buffers are always copy
// destinations so UpdateBuffer can write them.
func (b *Backend) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	if b.device == nil {
		return nil, backend.ErrNotInitialized
	}
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halexec: create buffer %q: %w", desc.Label, err)
	}
	device := b.device
	return resource.NewBuffer(*desc, buf, func() { device.DestroyBuffer(buf) }), nil
}

// CreateSampler implements resource.Allocator.
func (b *Backend) CreateSampler(desc *gputypes.SamplerDescriptor) (*resource.Sampler, error) {
	if b.device == nil {
		return nil, backend.ErrNotInitialized
	}
	mip := gputypes.FilterModeNearest
	if desc.MipmapFilter == gputypes.MipmapFilterModeLinear {
		mip = gputypes.FilterModeLinear
	}
	smp, err := b.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: mip,
		LodMinClamp:  desc.LodMinClamp,
		LodMaxClamp:  desc.LodMaxClamp,
		Compare:      desc.Compare,
		Anisotropy:   max(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("halexec: create sampler %q: %w", desc.Label, err)
	}
	device := b.device
	return resource.NewSampler(*desc, smp, func() { device.DestroySampler(smp) }), nil
}

// CreatePipelineState implements resource.Allocator. The pipeline runs the
// built-in shaders with the descriptor's fixed-function state.
func (b *Backend) CreatePipelineState(desc *resource.PipelineDescriptor) (*resource.PipelineState, error) {
	if b.device == nil || b.shaders == nil {
		return nil, backend.ErrNotInitialized
	}
	colors := desc.ColorFormats
	if len(colors) == 0 {
		colors = []gputypes.TextureFormat{b.cfg.Format}
	}
	p, err := b.device.CreateRenderPipeline(pipelineDescriptor(
		desc.Label, b.shaders, desc.Topology, colors, desc.DepthFormat, desc.Blend, desc.VertexStride))
	if err != nil {
		return nil, fmt.Errorf("halexec: create pipeline %q: %w", desc.Label, err)
	}
	device := b.device
	return resource.NewPipelineState(*desc, p, func() { device.DestroyRenderPipeline(p) }), nil
}

func nativeTexture(t *resource.Texture) *Texture {
	if t == nil {
		return nil
	}
	n, _ := t.Native.(*Texture)
	return n
}

func nativeBuffer(buf *resource.Buffer) hal.Buffer {
	if buf == nil {
		return nil
	}
	n, _ := buf.Native.(hal.Buffer)
	return n
}

var (
	_ backend.Backend  = (*Backend)(nil)
	_ command.Executor = (*Backend)(nil)
)
