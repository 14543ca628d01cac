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

package task

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sisungo/mactux-server/internal/abstractns"
)

// NetNamespace owns a process's abstract Unix-socket directory.
// Grounded on original_source/mactux_server/src/network/mod.rs, with the
// salt directory name switched from an atomic counter to a UUID (§3
// domain-stack enrichment) so concurrently-created namespaces never
// collide even across server restarts that reset the counter.
type NetNamespace struct {
	salt string
	Abs  *abstractns.Namespace
}

// NewNetNamespace creates a fresh abstract-socket directory under
// netDir/<uuid>.
func NewNetNamespace(netDir string) (*NetNamespace, error) {
	salt := uuid.New().String()
	abs, err := abstractns.New(filepath.Join(netDir, salt))
	if err != nil {
		return nil, err
	}
	return &NetNamespace{salt: salt, Abs: abs}, nil
}

// Salt returns the namespace's directory-name salt.
func (n *NetNamespace) Salt() string { return n.salt }
