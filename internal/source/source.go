// Package source decodes translation units from YAML or CUE documents.
//
// A document lists declarations whose bodies are expression trees written as
// maps discriminated by an "op" key. Names are resolved against the unit
// itself first and then against the lookup context, so a unit can call into
// the runtime library without qualifying every name.
//
//	name: counter.kt
//	package: demo
//	declarations:
//	  - kind: class
//	    name: Counter
//	    declarations:
//	      - kind: field
//	        name: a
//	        type: kotlinx.atomicfu.AtomicInt
//	        init: {op: call, fn: atomic, args: [{op: const, value: 0}]}
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/resolve"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// DefaultImports are searched for unqualified names not found in the unit.
var DefaultImports = []string{wrapper.Package, wrapper.LocksPackage, ir.BuiltinPackage}

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".cue":
		return FormatCUE, true
	}
	return "", false
}

// IsUnitFile reports whether path has a unit document extension.
func IsUnitFile(path string) bool {
	_, ok := FormatOf(path)
	return ok
}

// DecodeError reports a malformed or unresolvable document.
type DecodeError struct {
	Path    string
	Decl    string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Decl != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Decl, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

type document struct {
	Name         string    `yaml:"name"`
	Package      string    `yaml:"package"`
	Declarations []declDoc `yaml:"declarations"`
}

type declDoc struct {
	Kind         string     `yaml:"kind"`
	Name         string     `yaml:"name"`
	Type         string     `yaml:"type"`
	Init         any        `yaml:"init"`
	Mutable      bool       `yaml:"mutable"`
	Inline       bool       `yaml:"inline"`
	Visibility   string     `yaml:"visibility"`
	TypeParams   []string   `yaml:"type_params"`
	Receiver     string     `yaml:"receiver"`
	Params       []paramDoc `yaml:"params"`
	Returns      string     `yaml:"returns"`
	Property     string     `yaml:"property"`
	Body         []any      `yaml:"body"`
	Declarations []declDoc  `yaml:"declarations"`
}

type paramDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Decode reads one unit from r. The format is chosen from path's extension;
// path also names the unit when the document does not.
func Decode(path string, r io.Reader, ctx resolve.PluginContext) (*ir.File, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, &DecodeError{Path: path, Message: "unsupported extension " + filepath.Ext(path)}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc document
	switch format {
	case FormatYAML:
		if err := decodeStrict(data, &doc); err != nil {
			return nil, &DecodeError{Path: path, Message: err.Error()}
		}
	case FormatCUE:
		if err := decodeCUE(path, data, &doc); err != nil {
			return nil, err
		}
	}
	return decodeDocument(path, &doc, ctx)
}

// decodeCUE evaluates a CUE document and decodes its concrete JSON form,
// so both formats share one schema.
func decodeCUE(path string, data []byte, doc *document) error {
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return &DecodeError{Path: path, Message: err.Error()}
	}
	js, err := v.MarshalJSON()
	if err != nil {
		return &DecodeError{Path: path, Message: err.Error()}
	}
	if err := decodeStrict(js, doc); err != nil {
		return &DecodeError{Path: path, Message: err.Error()}
	}
	return nil
}

// decodeStrict decodes data into doc, rejecting keys the schema does not
// know so a misspelled flag such as inline fails instead of defaulting.
// An empty document decodes to the zero document.
func decodeStrict(data []byte, doc *document) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeDocument(path string, doc *document, ctx resolve.PluginContext) (*ir.File, error) {
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if doc.Package == "" {
		return nil, &DecodeError{Path: path, Message: "package is required"}
	}
	d := &decoder{
		path:    path,
		ctx:     ctx,
		file:    &ir.File{Name: name, Package: doc.Package},
		classes: make(map[string]*ir.Class),
	}
	if err := d.declareAll(doc.Declarations); err != nil {
		return nil, err
	}
	if err := d.defineAll(); err != nil {
		return nil, err
	}
	return d.file, nil
}
