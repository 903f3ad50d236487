// Package resolve resolves qualified names to declarations.
//
// The PluginContext is the read-only lookup service the pass is given; the
// Resolver layers the strict single-match contract on top of it.
package resolve

import (
	"strings"

	"github.com/roach88/atomicfu/internal/ir"
)

// PluginContext looks up declarations by qualified name.
// Implementations must be safe for concurrent reads.
type PluginContext interface {
	// ReferenceFunctions returns every function with the qualified name
	// fqName: top-level "pkg.name" or member "pkg.Class.name".
	ReferenceFunctions(fqName string) []*ir.Function

	// ReferenceClass returns the class with the qualified name, or nil.
	ReferenceClass(fqName string) *ir.Class
}

// Index is a PluginContext over a set of files.
//
// Lookups scan the files' declaration lists on every call rather than a
// prebuilt table, so a declaration replaced in its slot is found in its
// replaced shape.
type Index struct {
	files []*ir.File
}

// NewIndex creates an index over files.
func NewIndex(files ...*ir.File) *Index {
	return &Index{files: append([]*ir.File(nil), files...)}
}

// With returns a new index over the receiver's files plus files.
// The receiver is not modified, so a shared library index can be extended
// per translation unit.
func (x *Index) With(files ...*ir.File) *Index {
	all := make([]*ir.File, 0, len(x.files)+len(files))
	all = append(all, files...)
	all = append(all, x.files...)
	return &Index{files: all}
}

// Files returns the indexed files.
func (x *Index) Files() []*ir.File {
	return x.files
}

// ReferenceFunctions implements PluginContext.
func (x *Index) ReferenceFunctions(fqName string) []*ir.Function {
	pkg, name := split(fqName)
	var out []*ir.Function
	for _, f := range x.files {
		if f.Package != pkg {
			continue
		}
		for _, d := range f.Decls {
			if fn, ok := d.(*ir.Function); ok && fn.Name == name {
				out = append(out, fn)
			}
		}
	}
	if cls := x.ReferenceClass(pkg); cls != nil {
		out = append(out, cls.Functions(name)...)
	}
	return out
}

// ReferenceClass implements PluginContext.
func (x *Index) ReferenceClass(fqName string) *ir.Class {
	pkg, name := split(fqName)
	for _, f := range x.files {
		if f.Package != pkg {
			continue
		}
		for _, d := range f.Decls {
			if c, ok := d.(*ir.Class); ok && c.Name == name {
				return c
			}
		}
	}
	return nil
}

// Fields returns the top-level fields named fqName.
func (x *Index) Fields(fqName string) []*ir.Field {
	pkg, name := split(fqName)
	var out []*ir.Field
	for _, f := range x.files {
		if f.Package != pkg {
			continue
		}
		for _, d := range f.Decls {
			if fd, ok := d.(*ir.Field); ok && fd.Name == name {
				out = append(out, fd)
			}
		}
	}
	return out
}

func split(fqName string) (pkg, name string) {
	i := strings.LastIndexByte(fqName, '.')
	if i < 0 {
		return "", fqName
	}
	return fqName[:i], fqName[i+1:]
}
