// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/gogpu/drawq/command"
)

// builtinTriangle is drawn when no vertex buffer is bound.
var builtinTriangle = [3]mgl32.Vec2{{0, 0.5}, {-0.5, -0.5}, {0.5, -0.5}}

// defaultStride is one float32x2 position.
const defaultStride = 8

// DrawPrimitive draws VertexCount vertices starting at StartVertex.
func (b *Backend) DrawPrimitive(c *command.DrawPrimitive) {
	if c.InstanceCount == 0 || c.VertexCount == 0 {
		return
	}
	fetch := b.vertexSource()
	pts := make([]mgl32.Vec2, 0, c.VertexCount)
	for i := range c.VertexCount {
		v, ok := fetch(int64(c.StartVertex) + int64(i))
		if !ok {
			b.log.Warn("draw reads past the vertex buffer", "vertex", c.StartVertex+i)
			return
		}
		pts = append(pts, v)
	}
	b.rasterize(c.Topology, pts)
}

// DrawIndexedPrimitive draws IndexCount indices from the bound index buffer.
func (b *Backend) DrawIndexedPrimitive(c *command.DrawIndexedPrimitive) {
	if c.InstanceCount == 0 || c.IndexCount == 0 {
		return
	}
	ib := b.st.index
	m := memory(ib.buf)
	size := uint64(ib.format.Size())
	if m == nil || size == 0 {
		b.log.Warn("indexed draw without a usable index buffer", "format", ib.format.String())
		return
	}

	fetch := b.vertexSource()
	pts := make([]mgl32.Vec2, 0, c.IndexCount)
	for i := range c.IndexCount {
		off := ib.offset + uint64(c.StartIndex+i)*size
		if off+size > uint64(len(m.Data)) {
			b.log.Warn("draw reads past the index buffer", "index", c.StartIndex+i)
			return
		}
		var idx int64
		if size == 2 {
			idx = int64(binary.LittleEndian.Uint16(m.Data[off:]))
		} else {
			idx = int64(binary.LittleEndian.Uint32(m.Data[off:]))
		}
		v, ok := fetch(idx + int64(c.BaseVertex))
		if !ok {
			b.log.Warn("draw reads past the vertex buffer", "vertex", idx+int64(c.BaseVertex))
			return
		}
		pts = append(pts, v)
	}
	b.rasterize(c.Topology, pts)
}

// vertexSource returns a function reading clip-space positions from vertex
// slot 0, or the built-in triangle when nothing is bound.
func (b *Backend) vertexSource() func(i int64) (mgl32.Vec2, bool) {
	vb := b.st.vertices[0]
	m := memory(vb.buf)
	if m == nil {
		return func(i int64) (mgl32.Vec2, bool) {
			return builtinTriangle[((i%3)+3)%3], true
		}
	}

	stride := uint64(vb.stride)
	if stride == 0 && b.st.pipeline != nil {
		stride = uint64(b.st.pipeline.Desc.VertexStride)
	}
	if stride == 0 {
		stride = defaultStride
	}
	return func(i int64) (mgl32.Vec2, bool) {
		if i < 0 {
			return mgl32.Vec2{}, false
		}
		off := vb.offset + uint64(i)*stride
		if off+8 > uint64(len(m.Data)) {
			return mgl32.Vec2{}, false
		}
		return mgl32.Vec2{
			math.Float32frombits(binary.LittleEndian.Uint32(m.Data[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(m.Data[off+4:])),
		}, true
	}
}

// project maps a clip-space position to pixels.
func (b *Backend) project(v mgl32.Vec2) mgl32.Vec2 {
	m, ok := b.st.transforms[0]
	if !ok {
		m = identity
	}
	p := m.Mul4x1(mgl32.Vec4{v[0], v[1], 0, 1})
	x, y := p[0], p[1]
	if w := p[3]; w != 0 {
		x, y = x/w, y/w
	}
	vp := b.st.viewport
	return mgl32.Vec2{
		vp.X + (x+1)*0.5*vp.Width,
		vp.Y + (1-y)*0.5*vp.Height,
	}
}

// triangles assembles clip-space vertices into triangles.
func triangles(topology gputypes.PrimitiveTopology, pts []mgl32.Vec2) ([][3]mgl32.Vec2, bool) {
	var tris [][3]mgl32.Vec2
	switch topology {
	case gputypes.PrimitiveTopologyTriangleList:
		for i := 0; i+2 < len(pts); i += 3 {
			tris = append(tris, [3]mgl32.Vec2{pts[i], pts[i+1], pts[i+2]})
		}
	case gputypes.PrimitiveTopologyTriangleStrip:
		for i := 2; i < len(pts); i++ {
			tris = append(tris, [3]mgl32.Vec2{pts[i-2], pts[i-1], pts[i]})
		}
	default:
		return nil, false
	}
	return tris, true
}

func (b *Backend) rasterize(topology gputypes.PrimitiveTopology, pts []mgl32.Vec2) {
	tris, ok := triangles(topology, pts)
	if !ok {
		b.log.Debug("topology not rasterized", "topology", int(topology))
		return
	}
	clip := b.st.clipRect()
	if clip.Empty() || len(tris) == 0 {
		return
	}

	z := vector.NewRasterizer(clip.Dx(), clip.Dy())
	ox, oy := float32(clip.Min.X), float32(clip.Min.Y)
	drawn := 0
	for _, t := range tris {
		p0, p1, p2 := b.project(t[0]), b.project(t[1]), b.project(t[2])
		area := (p1[0]-p0[0])*(p2[1]-p0[1]) - (p2[0]-p0[0])*(p1[1]-p0[1])
		if area == 0 {
			continue
		}
		// Coverage accumulates with sign; keep every triangle wound the
		// same way so strip neighbours do not cancel along shared edges.
		if area < 0 {
			p1, p2 = p2, p1
		}
		z.MoveTo(p0[0]-ox, p0[1]-oy)
		z.LineTo(p1[0]-ox, p1[1]-oy)
		z.LineTo(p2[0]-ox, p2[1]-oy)
		z.ClosePath()
		drawn++
	}
	if drawn == 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, clip.Dx(), clip.Dy()))
	z.DrawOp = xdraw.Src
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	src, sp := b.source(clip)
	blended := b.blended()
	for _, t := range b.st.colors {
		s := surface(t)
		if s == nil || s.Image == nil {
			continue
		}
		r := clip.Intersect(s.Bounds())
		if blended {
			xdraw.DrawMask(s.Image, r, src, sp.Add(r.Min.Sub(clip.Min)), mask, r.Min.Sub(clip.Min), xdraw.Over)
		} else {
			replace(s.Image, r, src, sp, mask, clip.Min)
		}
	}
}

// replace writes src over dst where mask covers it, interpolating partial
// coverage with the existing texel. Uncovered texels are left alone. The
// mask and src are both anchored at origin.
func replace(dst *image.RGBA, r image.Rectangle, src image.Image, sp image.Point, mask *image.Alpha, origin image.Point) {
	var (
		uniform        bool
		ur, ug, ub, ua uint32
	)
	if u, ok := src.(*image.Uniform); ok {
		uniform = true
		ur, ug, ub, ua = u.RGBA()
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := uint32(mask.AlphaAt(x-origin.X, y-origin.Y).A)
			if m == 0 {
				continue
			}
			sr, sg, sb, sa := ur, ug, ub, ua
			if !uniform {
				sr, sg, sb, sa = src.At(x-origin.X+sp.X, y-origin.Y+sp.Y).RGBA()
			}
			i := dst.PixOffset(x, y)
			px := dst.Pix[i : i+4 : i+4]
			for k, v := range [4]uint32{sr >> 8, sg >> 8, sb >> 8, sa >> 8} {
				px[k] = uint8((uint32(px[k])*(0xff-m) + v*m) / 0xff)
			}
		}
	}
}

// source returns the image draws composite: the texture at slot 0 in
// screen space, else the color in constant slot 0, else white.
func (b *Backend) source(clip image.Rectangle) (image.Image, image.Point) {
	if s := surface(b.st.textures[0]); s != nil && s.Image != nil {
		return s.Image, clip.Min
	}

	col := gputypes.Color{R: 1, G: 1, B: 1, A: 1}
	cb := b.st.constants[0]
	if m := memory(cb.buf); m != nil && cb.offset+16 <= uint64(len(m.Data)) {
		f := func(i uint64) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(m.Data[cb.offset+4*i:])))
		}
		col = gputypes.Color{R: f(0), G: f(1), B: f(2), A: f(3)}
	}
	return image.NewUniform(toNRGBA(col)), image.Point{}
}

// blended reports whether draws composite over the target rather than
// replace it.
func (b *Backend) blended() bool {
	blend := b.st.blend
	if blend == nil && b.st.pipeline != nil {
		blend = b.st.pipeline.Desc.Blend
	}
	return blend != nil && blend.Color != gputypes.BlendStateReplace().Color
}
