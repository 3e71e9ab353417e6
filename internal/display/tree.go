package display

import (
	"github.com/standardbeagle/assetindex/internal/asset"
)

// NodeType classifies a node of a dependency tree.
type NodeType int

const (
	// NodeTypeAsset is a file owned by an indexed record.
	NodeTypeAsset NodeType = iota
	// NodeTypeExternal is a file no record owns.
	NodeTypeExternal
	// NodeTypeRecursive is a record already on the path from the root.
	NodeTypeRecursive
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeExternal:
		return "external"
	case NodeTypeRecursive:
		return "recursive"
	default:
		return "asset"
	}
}

// TreeNode is one dependency in a tree.
type TreeNode struct {
	Path       string      `json:"path"`
	Owner      string      `json:"owner,omitempty"`
	UsageCount int         `json:"usage_count,omitempty"`
	Depth      int         `json:"depth"`
	NodeType   NodeType    `json:"-"`
	Kind       string      `json:"kind"`
	Children   []*TreeNode `json:"children,omitempty"`
}

// DependencyTree is the transitive dependency tree of one asset.
type DependencyTree struct {
	RootPath   string    `json:"root_path"`
	TotalNodes int       `json:"total_nodes"`
	MaxDepth   int       `json:"max_depth"`
	Root       *TreeNode `json:"tree"`
}

// Resolver looks up the record owning a file.
type Resolver interface {
	FindByAnyFile(path string) (*asset.Record, bool)
}

// BuildDependencyTree expands the dependencies of the asset owning path.
// maxDepth <= 0 means unlimited. It returns nil when no record owns path.
// Must run where record access is allowed (the registry owner).
func BuildDependencyTree(r Resolver, path string, maxDepth int) *DependencyTree {
	rec, ok := r.FindByAnyFile(path)
	if !ok {
		return nil
	}

	tree := &DependencyTree{RootPath: rec.PrimaryPath()}
	onPath := make(map[*asset.Record]bool)
	tree.Root = expand(r, rec, rec.PrimaryPath(), 0, 0, maxDepth, onPath, tree)
	return tree
}

func expand(r Resolver, rec *asset.Record, path string, usage, depth, maxDepth int, onPath map[*asset.Record]bool, tree *DependencyTree) *TreeNode {
	node := &TreeNode{Path: path, UsageCount: usage, Depth: depth}
	tree.TotalNodes++
	if depth > tree.MaxDepth {
		tree.MaxDepth = depth
	}

	switch {
	case rec == nil:
		node.NodeType = NodeTypeExternal
	case onPath[rec]:
		node.NodeType = NodeTypeRecursive
		node.Owner = rec.PrimaryPath()
	default:
		node.NodeType = NodeTypeAsset
		node.Owner = rec.PrimaryPath()
	}
	node.Kind = node.NodeType.String()

	if node.NodeType != NodeTypeAsset || (maxDepth > 0 && depth >= maxDepth) {
		return node
	}

	onPath[rec] = true
	for _, dep := range rec.Dependencies() {
		child, _ := r.FindByAnyFile(dep.Path)
		node.Children = append(node.Children, expand(r, child, dep.Path, dep.UsageCount, depth+1, maxDepth, onPath, tree))
	}
	delete(onPath, rec)
	return node
}
