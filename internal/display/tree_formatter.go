package display

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TreeFormatter formats dependency trees for display
type TreeFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls tree formatting
type FormatterOptions struct {
	Format     string // "text", "json", "compact"
	ShowCounts bool   // Show usage counts
	ShowOwners bool   // Show the owning metadata file when it differs from the path
	MaxDepth   int    // Maximum depth to display
	Indent     string // Indentation string
}

// NewTreeFormatter creates a new tree formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &TreeFormatter{options: options}
}

// Format formats a dependency tree for display
func (tf *TreeFormatter) Format(tree *DependencyTree) string {
	if tree == nil || tree.Root == nil {
		return "No tree data available"
	}

	switch tf.options.Format {
	case "json":
		return tf.formatJSON(tree)
	case "compact":
		return tf.formatCompact(tree)
	default:
		return tf.formatText(tree)
	}
}

func (tf *TreeFormatter) formatText(tree *DependencyTree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dependency tree for '%s'\n", tree.RootPath)
	fmt.Fprintf(&sb, "Total nodes: %d, Max depth: %d\n\n", tree.TotalNodes, tree.MaxDepth)
	tf.formatNode(&sb, tree.Root, "", true, true)
	return sb.String()
}

// formatNode recursively formats a tree node
func (tf *TreeFormatter) formatNode(sb *strings.Builder, node *TreeNode, prefix string, isLast bool, isRoot bool) {
	if node == nil {
		return
	}
	if tf.options.MaxDepth > 0 && node.Depth > tf.options.MaxDepth {
		return
	}

	var branch string
	switch {
	case isRoot:
		branch = "→ "
	case isLast:
		branch = "└─→ "
	default:
		branch = "├─→ "
	}

	sb.WriteString(prefix)
	sb.WriteString(branch)
	sb.WriteString(node.Path)
	if tf.options.ShowCounts && node.UsageCount > 0 {
		fmt.Fprintf(sb, " x%d", node.UsageCount)
	}
	if tf.options.ShowOwners && node.Owner != "" && node.Owner != node.Path {
		fmt.Fprintf(sb, " [%s]", node.Owner)
	}
	switch node.NodeType {
	case NodeTypeExternal:
		sb.WriteString(" (not indexed)")
	case NodeTypeRecursive:
		sb.WriteString(" (cycle)")
	}
	sb.WriteString("\n")

	childPrefix := prefix + "  "
	if !isRoot && !isLast {
		childPrefix = prefix + "│ "
	}
	for i, child := range node.Children {
		tf.formatNode(sb, child, childPrefix, i == len(node.Children)-1, false)
	}
}

// formatCompact follows the first dependency at each level on one line.
func (tf *TreeFormatter) formatCompact(tree *DependencyTree) string {
	var parts []string
	tf.collectCompactParts(tree.Root, &parts)
	return strings.Join(parts, " → ")
}

func (tf *TreeFormatter) collectCompactParts(node *TreeNode, parts *[]string) {
	if node == nil {
		return
	}
	*parts = append(*parts, node.Path)
	if len(node.Children) == 0 || (tf.options.MaxDepth > 0 && node.Depth >= tf.options.MaxDepth) {
		return
	}
	tf.collectCompactParts(node.Children[0], parts)
	if len(node.Children) > 1 {
		*parts = append(*parts, fmt.Sprintf("(+%d more)", len(node.Children)-1))
	}
}

func (tf *TreeFormatter) formatJSON(tree *DependencyTree) string {
	data, err := json.MarshalIndent(tree, "", tf.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
