// Copyright 2025 Magnus Pierre
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

package windows

import (
	"sort"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"

	"datagrid/adapters/delta"
)

// TreeNodeType is the kind of a navigation tree node.
type TreeNodeType string

const (
	NodeTypeShare  TreeNodeType = "share"
	NodeTypeSchema TreeNodeType = "schema"
	NodeTypeTable  TreeNodeType = "table"
)

// TreeNode is one share, schema or table.
type TreeNode struct {
	ID       string
	NodeType TreeNodeType
	Name     string
	Table    delta_sharing.Table
	Children []string
}

// NavigationTree groups the tables of a sharing profile by share and
// schema. Node IDs are "share", "share.schema" and "share.schema.table".
type NavigationTree struct {
	mu      sync.RWMutex
	nodes   map[string]*TreeNode
	rootIDs []string

	// OnTableSelected is called when a table leaf is tapped.
	OnTableSelected func(delta_sharing.Table)

	tree *widget.Tree
}

// NewNavigationTree returns an empty tree.
func NewNavigationTree() *NavigationTree {
	return &NavigationTree{nodes: map[string]*TreeNode{}}
}

// SetTables replaces the tree contents. Shares, schemas and tables are
// sorted by name.
func (nt *NavigationTree) SetTables(tables []delta_sharing.Table) {
	nt.mu.Lock()
	nt.nodes = map[string]*TreeNode{}
	nt.rootIDs = nil

	sorted := append([]delta_sharing.Table(nil), tables...)
	sort.Slice(sorted, func(i, j int) bool {
		return delta.TableName(sorted[i]) < delta.TableName(sorted[j])
	})

	for _, t := range sorted {
		shareID := t.Share
		if _, ok := nt.nodes[shareID]; !ok {
			nt.nodes[shareID] = &TreeNode{ID: shareID, NodeType: NodeTypeShare, Name: t.Share}
			nt.rootIDs = append(nt.rootIDs, shareID)
		}
		schemaID := shareID + "." + t.Schema
		if _, ok := nt.nodes[schemaID]; !ok {
			nt.nodes[schemaID] = &TreeNode{ID: schemaID, NodeType: NodeTypeSchema, Name: t.Schema}
			nt.nodes[shareID].Children = append(nt.nodes[shareID].Children, schemaID)
		}
		tableID := delta.TableName(t)
		nt.nodes[tableID] = &TreeNode{ID: tableID, NodeType: NodeTypeTable, Name: t.Name, Table: t}
		nt.nodes[schemaID].Children = append(nt.nodes[schemaID].Children, tableID)
	}
	nt.mu.Unlock()

	if nt.tree != nil {
		nt.tree.Refresh()
	}
}

// GetChildren returns the children of nodeID; "" is the root.
func (nt *NavigationTree) GetChildren(nodeID widget.TreeNodeID) []widget.TreeNodeID {
	nt.mu.RLock()
	defer nt.mu.RUnlock()

	if nodeID == "" {
		return nt.rootIDs
	}
	if node, ok := nt.nodes[nodeID]; ok {
		return node.Children
	}
	return nil
}

// IsBranch reports whether nodeID is the root, a share or a schema.
func (nt *NavigationTree) IsBranch(nodeID widget.TreeNodeID) bool {
	if nodeID == "" {
		return true
	}
	node := nt.GetNode(nodeID)
	return node != nil && node.NodeType != NodeTypeTable
}

// GetNode returns the node with nodeID, or nil.
func (nt *NavigationTree) GetNode(nodeID widget.TreeNodeID) *TreeNode {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	return nt.nodes[nodeID]
}

// TableCount returns the number of table leaves.
func (nt *NavigationTree) TableCount() int {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	n := 0
	for _, node := range nt.nodes {
		if node.NodeType == NodeTypeTable {
			n++
		}
	}
	return n
}

// Widget returns the Fyne tree bound to nt.
func (nt *NavigationTree) Widget() *widget.Tree {
	if nt.tree != nil {
		return nt.tree
	}
	nt.tree = widget.NewTree(nt.GetChildren, nt.IsBranch,
		func(bool) fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(theme.DocumentIcon()), widget.NewLabel("template"))
		},
		nt.UpdateNodeDisplay,
	)
	nt.tree.OnSelected = func(id widget.TreeNodeID) {
		node := nt.GetNode(id)
		if node == nil || node.NodeType != NodeTypeTable {
			return
		}
		if nt.OnTableSelected != nil {
			nt.OnTableSelected(node.Table)
		}
		nt.tree.Unselect(id)
	}
	return nt.tree
}

// UpdateNodeDisplay sets the icon and label of a tree row.
func (nt *NavigationTree) UpdateNodeDisplay(nodeID widget.TreeNodeID, _ bool, obj fyne.CanvasObject) {
	node := nt.GetNode(nodeID)
	box, ok := obj.(*fyne.Container)
	if node == nil || !ok || len(box.Objects) < 2 {
		return
	}
	if icon, ok := box.Objects[0].(*widget.Icon); ok {
		switch node.NodeType {
		case NodeTypeShare:
			icon.SetResource(theme.FolderOpenIcon())
		case NodeTypeSchema:
			icon.SetResource(theme.FolderIcon())
		default:
			icon.SetResource(theme.GridIcon())
		}
	}
	if label, ok := box.Objects[1].(*widget.Label); ok {
		label.SetText(node.Name)
	}
}
