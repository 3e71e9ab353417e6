package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/assetindex/internal/debug"
)

// Provider wraps the git commands that report changed files
type Provider struct {
	repoRoot string
}

// NewProvider creates a provider for the repository containing dir
func NewProvider(dir string) (*Provider, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid repo root: %w", err)
	}

	// rev-parse works from any subdirectory of the work tree
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s", absRoot)
	}

	return &Provider{repoRoot: strings.TrimSpace(string(output))}, nil
}

// GetRepoRoot returns the repository root path
func (p *Provider) GetRepoRoot() string {
	return p.repoRoot
}

// GetChangedFiles returns the list of changed files based on analysis scope
func (p *Provider) GetChangedFiles(ctx context.Context, params AnalysisParams) ([]ChangedFile, error) {
	switch params.Scope {
	case ScopeStaged:
		return p.run(ctx, "diff", "--cached", "--name-status", "--no-renames")
	case ScopeWIP, "":
		files, err := p.run(ctx, "diff", "HEAD", "--name-status", "--no-renames")
		if err != nil {
			// No HEAD yet, everything is staged
			debug.LogFileOps("git diff HEAD failed, falling back to staged: %v\n", err)
			return p.run(ctx, "diff", "--cached", "--name-status", "--no-renames")
		}
		return files, nil
	case ScopeCommit:
		ref := params.BaseRef
		if ref == "" {
			ref = "HEAD"
		}
		return p.run(ctx, "diff-tree", "--no-commit-id", "--name-status", "-r", "--root", ref)
	case ScopeRange:
		if params.BaseRef == "" {
			return nil, errors.New("base ref required for range scope")
		}
		target := params.TargetRef
		if target == "" {
			target = "HEAD"
		}
		return p.run(ctx, "diff", "--name-status", "--no-renames", params.BaseRef+".."+target)
	default:
		return nil, fmt.Errorf("unknown scope: %s", params.Scope)
	}
}

func (p *Provider) run(ctx context.Context, args ...string) ([]ChangedFile, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.repoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return parseNameStatus(output)
}

// parseNameStatus parses git --name-status output
func parseNameStatus(output []byte) ([]ChangedFile, error) {
	var files []ChangedFile

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		// Fields are tab separated so paths may contain spaces
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}

		file := ChangedFile{Path: parts[1], Status: parseStatus(parts[0])}
		if len(parts) >= 3 && (parts[0][0] == 'R' || parts[0][0] == 'C') {
			file.OldPath, file.Path = parts[1], parts[2]
		}
		files = append(files, file)
	}

	return files, scanner.Err()
}

// parseStatus converts git status letter to FileChangeStatus
func parseStatus(status string) FileChangeStatus {
	switch status[0] {
	case 'A':
		return FileStatusAdded
	case 'D':
		return FileStatusDeleted
	case 'R':
		return FileStatusRenamed
	case 'C':
		return FileStatusCopied
	default:
		return FileStatusModified
	}
}
