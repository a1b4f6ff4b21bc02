// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command drawqdemo renders frames through the drawq command pipeline.
//
// Each frame draws a rotating triangle into a pooled offscreen target, then
// composites it with a tinted quad over a cycling background. With the soft
// backend the last presented frame is written to a PNG file.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq"
	"github.com/gogpu/drawq/backend"
	"github.com/gogpu/drawq/backend/soft"
	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/resource"
)

func main() {
	var (
		name    = flag.String("backend", backend.BackendSoft, "backend: "+strings.Join(backend.Available(), ", "))
		width   = flag.Int("width", 800, "back buffer width")
		height  = flag.Int("height", 600, "back buffer height")
		frames  = flag.Int("frames", 3, "frames to render")
		fps     = flag.Int("fps", 0, "frame rate limit, 0 for none")
		output  = flag.String("output", "demo.png", "output file (soft backend only)")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		drawq.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	eng, err := drawq.New(
		drawq.WithBackend(*name),
		drawq.WithBackendConfig(backend.Config{Width: uint32(*width), Height: uint32(*height)}),
		drawq.WithTargetFPS(*fps),
	)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	s, err := newScene(eng, *width, *height)
	if err != nil {
		log.Fatalf("Failed to create resources: %v", err)
	}
	for i := range *frames {
		if err := s.frame(i); err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
	}
	if err := eng.Finish(); err != nil {
		log.Fatalf("Failed to finish: %v", err)
	}

	st := eng.Stats()
	log.Printf("Rendered %d frames on %s: %d commands in %d passes, pool hits=%d misses=%d\n",
		*frames, eng.Backend().Name(), st.Draw.Commands, st.Draw.Frames, st.Pool.Hits, st.Pool.Misses)

	if sb, ok := eng.Backend().(*soft.Backend); ok {
		if err := savePNG(sb, *output); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Frame saved to %s (%dx%d)\n", *output, *width, *height)
	}

	s.destroy()
	if err := eng.Close(); err != nil {
		log.Fatalf("Failed to close: %v", err)
	}
}

// scene holds the resources shared by every frame.
type scene struct {
	eng    *drawq.Engine
	w, h   int
	quads  *resource.Buffer
	tint   *resource.Buffer
	linear *resource.Sampler
}

// quadVertices holds two triangle strips in clip space: a quad in the lower
// right, and the top-left quarter of the screen where the offscreen target
// is shown.
var quadVertices = []float32{
	0.2, -0.2, 0.9, -0.2, 0.2, -0.9, 0.9, -0.9,
	-1, 1, -0.5, 1, -1, 0.5, -0.5, 0.5,
}

func newScene(eng *drawq.Engine, w, h int) (*scene, error) {
	alloc, ok := eng.Executor().(resource.Allocator)
	if !ok {
		return nil, fmt.Errorf("backend %s cannot allocate resources", eng.Backend().Name())
	}
	quads, err := alloc.CreateBuffer(&resource.BufferDescriptor{
		Label: "quads",
		Size:  uint64(4 * len(quadVertices)),
		Usage: gputypes.BufferUsageVertex,
	})
	if err != nil {
		return nil, err
	}
	tint, err := alloc.CreateBuffer(&resource.BufferDescriptor{
		Label: "tint",
		Size:  16,
		Usage: gputypes.BufferUsageUniform,
	})
	if err != nil {
		return nil, err
	}
	linear, err := alloc.CreateSampler(&gputypes.SamplerDescriptor{
		Label:     "linear",
		MagFilter: gputypes.FilterModeLinear,
		MinFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, err
	}

	// The uploads are copied into the ring and land before the first draw.
	e := eng.Encoder()
	_ = e.UpdateBuffer(quads, 0, float32Bytes(quadVertices...))
	_ = e.UpdateBuffer(tint, 0, float32Bytes(1, 0.8, 0, 0.8))
	return &scene{eng: eng, w: w, h: h, quads: quads, tint: tint, linear: linear}, e.Err()
}

// frame encodes and flushes one frame.
func (s *scene) frame(i int) error {
	off, err := s.eng.Pool().GetRenderTarget(uint32(s.w/4), uint32(s.h/4), gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		return err
	}
	// Released before the commands using it run; the pool holds it back
	// until they have.
	defer off.Release()
	tex := off.Texture()
	angle := float32(i) * math.Pi / 8

	e := s.eng.Encoder()
	_ = e.BeginScene()

	_ = e.PushDebugEvent("offscreen")
	_ = e.SetRenderTarget([]*resource.Texture{tex}, nil)
	_ = e.ClearScreen(command.ClearColor, gputypes.Color{R: 0.1, G: 0.2, B: 0.6, A: 1}, 1, 0)
	_ = e.SetTransform(0, mgl32.HomogRotate3DZ(angle))
	_ = e.DrawPrimitive(gputypes.PrimitiveTopologyTriangleList, 0, 3)
	_ = e.ResourceBarrier(tex, resource.StateRenderTarget, resource.StateShaderResource)
	_ = e.PopDebugEvent()

	_ = e.PushDebugEvent("composite")
	_ = e.SetRenderTarget(nil, nil)
	_ = e.SetViewport(0, 0, float32(s.w), float32(s.h))
	_ = e.ClearScreen(command.ClearColor, background(i), 1, 0)
	_ = e.SetTransform(0, mgl32.Ident4())
	_ = e.BindVertexBuffer(0, s.quads, 0, 8)
	_ = e.BindConstantBuffer(0, s.tint, 0, 16)
	_ = e.SetBlendState(gputypes.BlendStateAlpha(), gputypes.Color{})
	_ = e.DrawPrimitive(gputypes.PrimitiveTopologyTriangleStrip, 0, 4)
	_ = e.SetBlendState(gputypes.BlendStateReplace(), gputypes.Color{})
	_ = e.BindSampler(0, s.linear)
	_ = e.BindTexture(0, tex)
	_ = e.DrawPrimitive(gputypes.PrimitiveTopologyTriangleStrip, 4, 4)
	_ = e.BindTexture(0, nil)
	_ = e.ResourceBarrier(tex, resource.StateShaderResource, resource.StateRenderTarget)
	_ = e.PopDebugEvent()

	_ = e.EndScene()
	if err := e.Present(); err != nil {
		return err
	}
	return s.eng.Flush()
}

func (s *scene) destroy() {
	s.quads.Destroy()
	s.tint.Destroy()
	s.linear.Destroy()
}

// background cycles the clear color across frames.
func background(i int) gputypes.Color {
	t := float64(i%8) / 8
	return gputypes.Color{R: 0.1 + t*0.4, G: 0.2 + t*0.3, B: 0.4 + t*0.2, A: 1}
}

func float32Bytes(vs ...float32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func savePNG(sb *soft.Backend, path string) error {
	frame := sb.Frame()
	if frame == nil {
		return fmt.Errorf("no frame presented")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
