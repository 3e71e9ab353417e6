package git

// AnalysisScope selects which changes GetChangedFiles reports.
type AnalysisScope string

const (
	// ScopeStaged reports staged changes (git diff --cached)
	ScopeStaged AnalysisScope = "staged"
	// ScopeWIP reports all uncommitted changes (staged + unstaged)
	ScopeWIP AnalysisScope = "wip"
	// ScopeCommit reports a specific commit vs its parent
	ScopeCommit AnalysisScope = "commit"
	// ScopeRange reports a commit range (base..target)
	ScopeRange AnalysisScope = "range"
)

// ParseScope validates a scope name. An empty name selects ScopeWIP.
func ParseScope(name string) (AnalysisScope, bool) {
	switch s := AnalysisScope(name); s {
	case "":
		return ScopeWIP, true
	case ScopeStaged, ScopeWIP, ScopeCommit, ScopeRange:
		return s, true
	default:
		return "", false
	}
}

// AnalysisParams selects the changes to report.
type AnalysisParams struct {
	Scope AnalysisScope `json:"scope"`

	// BaseRef is the commit for ScopeCommit or the range start for ScopeRange
	BaseRef string `json:"base_ref,omitempty"`

	// TargetRef is the range end for ScopeRange, HEAD when empty
	TargetRef string `json:"target_ref,omitempty"`
}

// FileChangeStatus indicates the type of change to a file
type FileChangeStatus string

const (
	FileStatusAdded    FileChangeStatus = "added"
	FileStatusModified FileChangeStatus = "modified"
	FileStatusDeleted  FileChangeStatus = "deleted"
	FileStatusRenamed  FileChangeStatus = "renamed"
	FileStatusCopied   FileChangeStatus = "copied"
)

// ChangedFile is one file reported by git, relative to the repository root.
type ChangedFile struct {
	Path    string           `json:"path"`
	OldPath string           `json:"old_path,omitempty"`
	Status  FileChangeStatus `json:"status"`
}
