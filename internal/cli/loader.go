package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/atomicfu/internal/config"
	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/library"
	"github.com/roach88/atomicfu/internal/source"
	"github.com/roach88/atomicfu/internal/transform"
)

// LoadError represents an error that occurred while locating or loading
// units and the library surface.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unit is a decoded unit document together with its source bytes.
type Unit struct {
	Path string
	Data []byte
	File *ir.File
}

// FindUnitFiles expands paths into unit document files. Directories are
// walked recursively; explicit files are taken as given. The result is
// sorted and free of duplicates. The project config file is never a unit.
func FindUnitFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "path not found", Path: p}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: err.Error(), Path: p}
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Base(path) == config.FileName || !source.IsUnitFile(path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Path: p}
		}
	}

	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoUnits, Message: fmt.Sprintf("no unit files found in %v", paths)}
	}
	sort.Strings(files)
	return files, nil
}

// LoadSurface loads the runtime library surface selected by cfg.
// Read failures are reported as library errors; compile errors keep their
// own type so version mismatches map to their own code.
func LoadSurface(ctx context.Context, cfg config.Config, logger *slog.Logger) (*library.Surface, error) {
	s, err := library.Load(ctx, library.Options{
		Path:       cfg.Library,
		Constraint: cfg.RuntimeConstraint,
		Logger:     logger,
	})
	if err != nil {
		var compileErr *library.CompileError
		if errors.As(err, &compileErr) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &LoadError{Code: ErrCodeLibrary, Message: err.Error(), Path: cfg.Library}
	}
	return s, nil
}

// LoadUnit reads and decodes one unit document against surface.
func LoadUnit(path string, surface *library.Surface) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: path}
	}
	f, err := source.Decode(path, bytes.NewReader(data), surface.Index())
	if err != nil {
		return nil, err
	}
	return &Unit{Path: path, Data: data, File: f}, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoUnits       = "E003" // No unit files found
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeJournal       = "E008" // Journal open/read/write error
	ErrCodeDuplicateUnit = "E009" // Two files declare the same unit

	// Front end errors
	ErrCodeDecode         = "E201" // Malformed or unresolvable unit document
	ErrCodeLibrary        = "E202" // Library surface failed to compile
	ErrCodeLibraryVersion = "E203" // Library version outside the constraint

	// Pass errors
	ErrCodeShapeViolation  = "E301" // Unrecognized wrapper initializer or receiver
	ErrCodeAmbiguousSymbol = "E302" // Several declarations matched a lookup
	ErrCodeMissingSymbol   = "E303" // No declaration matched a lookup
	ErrCodeMissingSibling  = "E304" // Inline extension without expanded sibling

	// Outcome errors
	ErrCodeLeftovers   = "E401" // Wrapper references survived the pass
	ErrCodeUnitsFailed = "E402" // One or more units failed
	ErrCodeScenarios   = "E403" // One or more conformance scenarios failed
)

// ErrorCode maps an error from loading or transforming a unit to an error code.
func ErrorCode(err error) string {
	var (
		loadErr    *LoadError
		decodeErr  *source.DecodeError
		compileErr *library.CompileError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code
	case errors.As(err, &decodeErr):
		return ErrCodeDecode
	case errors.As(err, &compileErr):
		if compileErr.Field == "version" || compileErr.Field == "constraint" {
			return ErrCodeLibraryVersion
		}
		return ErrCodeLibrary
	}
	return MapPassErrorCode(transform.CodeOf(err))
}

// MapPassErrorCode maps a pass error category to an error code.
func MapPassErrorCode(code transform.PassErrorCode) string {
	switch code {
	case transform.ErrCodeShapeViolation:
		return ErrCodeShapeViolation
	case transform.ErrCodeAmbiguousSymbol:
		return ErrCodeAmbiguousSymbol
	case transform.ErrCodeMissingSymbol:
		return ErrCodeMissingSymbol
	case transform.ErrCodeMissingSibling:
		return ErrCodeMissingSibling
	default:
		return ErrCodeGeneric
	}
}
