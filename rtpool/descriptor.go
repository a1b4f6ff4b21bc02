// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rtpool

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/resource"
)

// Descriptor is the pool key. Two requests share a texture only if their
// normalized descriptors are equal.
type Descriptor struct {
	Size        gputypes.Extent3D
	Format      gputypes.TextureFormat
	SampleCount uint32

	// Usage defaults to RenderAttachment|TextureBinding for color targets
	// and RenderAttachment for depth-stencils.
	Usage gputypes.TextureUsage
}

// DepthStencil reports whether the descriptor names a depth or stencil
// format.
func (d Descriptor) DepthStencil() bool {
	return d.Format.HasDepth() || d.Format.HasStencil()
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%dx%d %s x%d", d.Size.Width, d.Size.Height, d.Format, d.SampleCount)
}

// normalized fills defaulted fields so equal requests compare equal.
func (d Descriptor) normalized() Descriptor {
	if d.Size.DepthOrArrayLayers == 0 {
		d.Size.DepthOrArrayLayers = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	if d.Usage == gputypes.TextureUsageNone {
		d.Usage = gputypes.TextureUsageRenderAttachment
		if !d.DepthStencil() {
			d.Usage |= gputypes.TextureUsageTextureBinding
		}
	}
	return d
}

func (d Descriptor) validate() error {
	if d.Size.Width == 0 || d.Size.Height == 0 || d.Format == gputypes.TextureFormatUndefined {
		return fmt.Errorf("%w: %s", ErrInvalidDescriptor, d)
	}
	return nil
}

func (d Descriptor) texture(label string) *resource.TextureDescriptor {
	return &resource.TextureDescriptor{
		Label:         label,
		Size:          d.Size,
		Format:        d.Format,
		Usage:         d.Usage,
		SampleCount:   d.SampleCount,
		MipLevelCount: 1,
	}
}
