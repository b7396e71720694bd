// Copyright 2025 Poiesic Systems
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

package search

import (
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query Query)
	AfterKeywordSearch(hits []storage.Hit)
	AfterVectorSearch(neighbors []storage.Neighbor)
	AfterFusion(fused []Fused)
	// Degraded is called when hybrid mode falls back to keyword only.
	Degraded(reason error)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                          {}
func (n *noopMonitor) AfterKeywordSearch(_ []storage.Hit)     {}
func (n *noopMonitor) AfterVectorSearch(_ []storage.Neighbor) {}
func (n *noopMonitor) AfterFusion(_ []Fused)                  {}
func (n *noopMonitor) Degraded(_ error)                       {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)          {}
