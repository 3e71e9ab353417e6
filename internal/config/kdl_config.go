package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads .assetindex.kdl from dir. A missing file yields (nil, nil).
func LoadKDL(dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, ConfigFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// A relative root is relative to the directory holding the file
	if cfg.Project.Root != "" && filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	} else if cfg.Project.Root != "" {
		cfg.Project.Root = filepath.Clean(filepath.Join(absOr(dir), cfg.Project.Root))
	} else {
		cfg.Project.Root = absOr(dir)
	}

	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()
	cfg.Project.Root = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children { // project { root "." name "game" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "scan":
			parseScanSection(cfg, n)
		case "types":
			cfg.Types = parseTypes(n)
			cfg.typesSet = true
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "thumbnail_ttl_s":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.ThumbnailTTL = time.Duration(v) * time.Second
					}
				case "cleanup_interval_s":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.CleanupInterval = time.Duration(v) * time.Second
					}
				}
			}
		case "files":
			for _, cn := range n.Children {
				if nodeName(cn) == "delete_workers" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Files.DeleteWorkers = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude block replaces the default exclusions
			cfg.Exclude = collectStringArgs(n)
		default:
			log.Printf("Warning: unknown node '%s' in %s", nodeName(n), ConfigFileName)
		}
	}

	return cfg, nil
}

func parseScanSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "roots":
			cfg.Scan.Roots = collectStringArgs(cn)
		case "metadata_ext":
			if s, ok := firstStringArg(cn); ok {
				cfg.Scan.MetadataExt = s
			}
		case "workers":
			if v, ok := firstIntArg(cn); ok {
				cfg.Scan.Workers = v
			}
		case "max_file_size":
			if v, ok := firstIntArg(cn); ok {
				cfg.Scan.MaxFileSize = int64(v)
			}
			if s, ok := firstStringArg(cn); ok {
				if sz, err := parseSize(s); err == nil {
					cfg.Scan.MaxFileSize = sz
				} else {
					log.Printf("Warning: invalid max_file_size %q: %v", s, err)
				}
			}
		case "respect_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Scan.RespectGitignore = b
			}
		}
	}
}

// parseTypes reads
//
//	types {
//	    type "Model" { imported; thumbnail; derived "m" }
//	}
func parseTypes(n *document.Node) []TypeConfig {
	types := make([]TypeConfig, 0, len(n.Children))
	for _, tn := range n.Children {
		if nodeName(tn) != "type" {
			continue
		}
		name, ok := firstStringArg(tn)
		if !ok {
			log.Printf("Warning: type declaration without a name in %s", ConfigFileName)
			continue
		}
		tc := TypeConfig{Name: name}
		for _, cn := range tn.Children {
			switch nodeName(cn) {
			case "imported":
				tc.Imported = flagArg(cn)
			case "thumbnail":
				tc.Thumbnail = flagArg(cn)
			case "derived":
				tc.DerivedExts = append(tc.DerivedExts, collectStringArgs(cn)...)
			}
		}
		types = append(types, tc)
	}
	return types
}

// flagArg treats a bare node as true.
func flagArg(n *document.Node) bool {
	if len(n.Arguments) == 0 {
		return true
	}
	b, _ := firstBoolArg(n)
	return b
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block form: exclude { "**/tmp/**" } makes each string a child node name
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize parses "512KB", "1MB", "2GB" or a plain byte count.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
