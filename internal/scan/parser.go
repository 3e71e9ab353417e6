package scan

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/errors"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

// Parser turns the bytes of one metadata file into a record.
// assetPath is the root-relative, slash-separated path of the file.
type Parser interface {
	Parse(assetPath string, data []byte) (*asset.Record, error)
}

// metadataFile is the on-disk TOML layout. Source and work file paths are
// relative to the metadata folder unless they start with "/", which makes
// them relative to the project root. Data files are always folder-relative.
type metadataFile struct {
	ID           string            `toml:"id"`
	Type         string            `toml:"type"`
	Name         string            `toml:"name,omitempty"`
	Source       string            `toml:"source,omitempty"`
	WorkFiles    []string          `toml:"work_files,omitempty"`
	DataFiles    []string          `toml:"data_files,omitempty"`
	LastModified time.Time         `toml:"last_modified,omitempty"`
	Details      map[string]string `toml:"details,omitempty"`
	Dependencies []dependencyEntry `toml:"dependencies,omitempty"`
}

type dependencyEntry struct {
	Path       string `toml:"path"`
	UsageCount int    `toml:"usage_count,omitempty"`
}

// TOMLParser reads TOML metadata files and resolves type names through Types.
type TOMLParser struct {
	Types *asset.TypeTable
}

// NewTOMLParser creates a parser bound to a type table.
func NewTOMLParser(types *asset.TypeTable) *TOMLParser {
	return &TOMLParser{Types: types}
}

// Parse implements Parser.
func (p *TOMLParser) Parse(assetPath string, data []byte) (*asset.Record, error) {
	var m metadataFile
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.NewParseError(assetPath, "", err)
	}

	if m.ID == "" {
		return nil, errors.NewParseError(assetPath, "id", fmt.Errorf("missing"))
	}
	id, err := asset.ParseID(m.ID)
	if err != nil {
		return nil, errors.NewParseError(assetPath, "id", err)
	}
	if m.Type == "" {
		return nil, errors.NewParseError(assetPath, "type", fmt.Errorf("missing"))
	}
	typ, ok := p.Types.Lookup(m.Type)
	if !ok {
		return nil, errors.NewParseError(assetPath, "type", fmt.Errorf("unknown asset type %q", m.Type))
	}

	folder := pathutil.Dir(assetPath)
	work := make([]string, 0, len(m.WorkFiles))
	for _, w := range m.WorkFiles {
		work = append(work, resolve(folder, w))
	}

	details := make([]asset.Detail, 0, len(m.Details))
	for name, value := range m.Details {
		details = append(details, asset.Detail{Name: name, Value: value})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Name < details[j].Name })

	deps := make([]asset.Dependency, 0, len(m.Dependencies))
	for i, d := range m.Dependencies {
		if d.Path == "" {
			return nil, errors.NewParseError(assetPath, fmt.Sprintf("dependencies[%d].path", i), fmt.Errorf("missing"))
		}
		if d.UsageCount < 0 {
			return nil, errors.NewParseError(assetPath, fmt.Sprintf("dependencies[%d].usage_count", i), fmt.Errorf("negative count %d", d.UsageCount))
		}
		count := d.UsageCount
		if count == 0 {
			count = 1
		}
		deps = append(deps, asset.Dependency{Path: d.Path, UsageCount: count})
	}

	return asset.New(asset.Fields{
		ID:           id,
		Type:         typ,
		Name:         m.Name,
		PrimaryPath:  assetPath,
		SourceFile:   resolve(folder, m.Source),
		WorkFiles:    work,
		DataFiles:    m.DataFiles,
		Details:      details,
		Dependencies: deps,
		LastModified: m.LastModified,
	}), nil
}

// Encode writes r in the layout Parse reads.
func Encode(r *asset.Record) ([]byte, error) {
	folder := r.Folder()
	m := metadataFile{
		ID:           r.ID().String(),
		Type:         r.TypeName(),
		Name:         r.Name(),
		Source:       relativize(folder, r.SourceFile()),
		DataFiles:    r.DataFiles(),
		LastModified: r.LastModified(),
	}
	for _, w := range r.WorkFiles() {
		m.WorkFiles = append(m.WorkFiles, relativize(folder, w))
	}
	if details := r.Details(); len(details) > 0 {
		m.Details = make(map[string]string, len(details))
		for _, d := range details {
			m.Details[d.Name] = d.Value
		}
	}
	for _, d := range r.Dependencies() {
		m.Dependencies = append(m.Dependencies, dependencyEntry{Path: d.Path, UsageCount: d.UsageCount})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resolve(folder, p string) string {
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "/") {
		return strings.TrimPrefix(p, "/")
	}
	return pathutil.Join(folder, p)
}

func relativize(folder, p string) string {
	if p == "" {
		return ""
	}
	if folder == "" {
		return p
	}
	if strings.HasPrefix(p, folder+"/") {
		return strings.TrimPrefix(p, folder+"/")
	}
	return "/" + p
}
