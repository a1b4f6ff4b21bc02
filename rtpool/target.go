// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rtpool

import (
	"sync/atomic"

	"github.com/gogpu/drawq/resource"
)

// Target is a pooled texture on loan. The loan ends at the last Release;
// the Target must not be used afterwards. Do not Destroy the texture of a
// Target; the pool owns it.
type Target struct {
	pool *Pool
	desc Descriptor
	tex  *resource.Texture
	refs atomic.Int32
}

func newTarget(p *Pool, desc Descriptor, tex *resource.Texture) *Target {
	t := &Target{pool: p, desc: desc, tex: tex}
	t.refs.Store(1)
	return t
}

// Texture returns the underlying texture for binding in commands.
func (t *Target) Texture() *resource.Texture { return t.tex }

// Descriptor returns the normalized descriptor the target was created for.
func (t *Target) Descriptor() Descriptor { return t.desc }

// AddRef takes another reference to the loan.
func (t *Target) AddRef() {
	if t.refs.Add(1) <= 1 {
		panic("rtpool: AddRef on a released target")
	}
}

// Release drops one reference. The last Release hands the texture back to
// the pool, which reuses it only after every command already encoded with
// it has executed.
func (t *Target) Release() {
	switch n := t.refs.Add(-1); {
	case n > 0:
		return
	case n < 0:
		panic("rtpool: target released too many times")
	}
	t.pool.giveBack(t.desc, t.tex)
}
