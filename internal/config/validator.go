package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	apperrors "github.com/standardbeagle/assetindex/internal/errors"
)

// MaxMetadataFileSize caps Scan.MaxFileSize. Metadata files are small text documents.
const MaxMetadataFileSize = 64 * 1024 * 1024

// Validator validates configuration and sets smart defaults
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Project.Root == "" {
		return apperrors.NewConfigError("project.root", "", errors.New("project root cannot be empty"))
	}

	if err := v.validateScanConfig(&cfg.Scan); err != nil {
		return err
	}

	if err := v.validateTypes(cfg.Types); err != nil {
		return err
	}

	if cfg.Cache.ThumbnailTTL < 0 {
		return apperrors.NewConfigError("cache.thumbnail_ttl_s", cfg.Cache.ThumbnailTTL.String(), errors.New("cannot be negative"))
	}
	if cfg.Cache.CleanupInterval < 0 {
		return apperrors.NewConfigError("cache.cleanup_interval_s", cfg.Cache.CleanupInterval.String(), errors.New("cannot be negative"))
	}
	if cfg.Files.DeleteWorkers < 0 {
		return apperrors.NewConfigError("files.delete_workers", strconv.Itoa(cfg.Files.DeleteWorkers), errors.New("cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateScanConfig(scan *Scan) error {
	size := strconv.FormatInt(scan.MaxFileSize, 10)
	if scan.MaxFileSize <= 0 {
		return apperrors.NewConfigError("scan.max_file_size", size, fmt.Errorf("must be positive, got %d", scan.MaxFileSize))
	}
	if scan.MaxFileSize > MaxMetadataFileSize {
		return apperrors.NewConfigError("scan.max_file_size", size, fmt.Errorf("should not exceed %d bytes", MaxMetadataFileSize))
	}

	// 0 means auto-detect
	if scan.Workers < 0 {
		return apperrors.NewConfigError("scan.workers", strconv.Itoa(scan.Workers), errors.New("cannot be negative"))
	}

	for _, root := range scan.Roots {
		if filepath.IsAbs(root) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(root)), "..") {
			return apperrors.NewConfigError("scan.roots", root, errors.New("scan roots must be inside the project"))
		}
	}
	return nil
}

func (v *Validator) validateTypes(types []TypeConfig) error {
	if len(types) == 0 {
		return apperrors.NewConfigError("types", "", errors.New("at least one asset type is required"))
	}
	seen := make(map[string]bool, len(types))
	for _, tc := range types {
		if tc.Name == "" {
			return apperrors.NewConfigError("types", "", errors.New("type name cannot be empty"))
		}
		key := strings.ToLower(tc.Name)
		if seen[key] {
			return apperrors.NewConfigError("types", tc.Name, errors.New("duplicate type name"))
		}
		seen[key] = true
	}
	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// cores-1 leaves headroom for the owner loop, minimum of 1
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = max(1, runtime.NumCPU()-1)
	}

	if cfg.Files.DeleteWorkers == 0 {
		cfg.Files.DeleteWorkers = DefaultDeleteWorkers
	}

	if cfg.Scan.MetadataExt == "" {
		cfg.Scan.MetadataExt = DefaultMetadataExt
	} else if !strings.HasPrefix(cfg.Scan.MetadataExt, ".") {
		cfg.Scan.MetadataExt = "." + cfg.Scan.MetadataExt
	}

	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
