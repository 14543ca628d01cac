// Copyright 2024 The mactux Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package devtable implements the character-device registry keyed by
// (major, minor), supporting both fixed registrations and dynamic minor
// allocation for a major.
package devtable

import (
	"sync"

	"github.com/sisungo/mactux-server/internal/device"
	"github.com/sisungo/mactux-server/internal/vfd"
)

// Factory constructs a fresh backing object for a chardev each time it's
// opened.
type Factory func() vfd.Object

// Table is the (major, minor) -> Factory registry.
type Table struct {
	mu        sync.RWMutex
	chr       map[device.Number]Factory
	dynamicHi map[uint32]uint32 // major -> next free minor
}

// New returns an empty device table.
func New() *Table {
	return &Table{
		chr:       make(map[device.Number]Factory),
		dynamicHi: make(map[uint32]uint32),
	}
}

// AddChrFixed registers a character-device factory at a specific
// (major, minor).
func (t *Table) AddChrFixed(major, minor uint32, f Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chr[device.New(major, minor)] = f
}

// AddChrDynamic registers a character-device factory at the next free
// minor for major, returning the assigned device.Number.
func (t *Table) AddChrDynamic(major uint32, f Factory) device.Number {
	t.mu.Lock()
	defer t.mu.Unlock()
	minor := t.dynamicHi[major]
	for {
		n := device.New(major, minor)
		if _, taken := t.chr[n]; !taken {
			t.chr[n] = f
			t.dynamicHi[major] = minor + 1
			return n
		}
		minor++
	}
}

// Lookup returns the factory registered at n, if any.
func (t *Table) Lookup(n device.Number) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.chr[n]
	return f, ok
}

// Open instantiates a fresh backing object for the chardev at n.
func (t *Table) Open(n device.Number) (vfd.Object, bool) {
	f, ok := t.Lookup(n)
	if !ok {
		return nil, false
	}
	return f(), true
}
