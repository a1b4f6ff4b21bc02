// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package drawq is a deferred render-command pipeline.
//
// # Overview
//
// A producer goroutine records rendering commands into a fixed-size ring.
// A dedicated draw thread decodes them in order and dispatches each one to
// an executor, usually a backend. Resources referenced by a command stay
// alive until the command has executed, whatever the producer does with
// them in the meantime.
//
// # Quick Start
//
//	eng, err := drawq.New(drawq.WithBackend("soft"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//	if err := eng.Start(); err != nil {
//		log.Fatal(err)
//	}
//
//	enc := eng.Encoder()
//	enc.BeginScene()
//	enc.SetViewport(0, 0, 1920, 1080)
//	enc.ClearScreen(command.ClearColor, gputypes.Color{R: 1, A: 1}, 1, 0)
//	enc.DrawPrimitive(gputypes.PrimitiveTopologyTriangleList, 0, 3)
//	enc.EndScene()
//	enc.Present()
//	eng.Flush()
//
// # Architecture
//
// The library is organized into:
//   - command: the ring, the Encoder facade and the Executor interface
//   - drawthread: the draw thread, its handshake, task queue and pacing
//   - resource: reference-counted textures, buffers, samplers, pipelines
//   - rtpool: reuse of transient render targets across frames
//   - backend: the backend registry; trace, soft and halexec implement it
//
// An Engine wires one of each together. Several engines may coexist.
//
// # Threading
//
// Encoder and Flush belong to one producer goroutine at a time. Executor
// methods run only on the draw thread, or inside Exclusive. Pool and
// AddTask may be used from anywhere.
package drawq
