// Package permlint scans Go sources for permission-shaped string literals
// and reports the ones missing from the closed registry. It keeps the
// registry honest: a permission key cannot be introduced ad hoc at a call
// site without being declared first.
package permlint

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// keyPattern matches the "resource:action" shape of registry keys. Anything
// with spaces, slashes or uppercase is not a permission literal.
var keyPattern = regexp.MustCompile(`^[a-z][a-z_]*:[a-z][a-z_]*$`)

// CallSite is one occurrence of a permission-shaped literal.
type CallSite struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Literal string `json:"literal"`
}

func (c CallSite) String() string {
	return fmt.Sprintf("%s:%d: unregistered permission %q", c.File, c.Line, c.Literal)
}

// Report is the outcome of a scan.
type Report struct {
	FilesScanned int        `json:"files_scanned"`
	Unregistered []CallSite `json:"unregistered"`
}

// Clean reports whether the scan found no violations.
func (r Report) Clean() bool { return len(r.Unregistered) == 0 }

// Scan walks root, parses every .go file and collects permission-shaped
// literals not accepted by registered. Directories starting with "_" or "."
// and vendor/ are skipped.
func Scan(root string, registered func(string) bool) (Report, error) {
	var report Report
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".go") {
			return nil
		}
		sites, err := scanFile(fset, path, registered)
		if err != nil {
			return err
		}
		report.FilesScanned++
		report.Unregistered = append(report.Unregistered, sites...)
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	sort.Slice(report.Unregistered, func(i, j int) bool {
		a, b := report.Unregistered[i], report.Unregistered[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	return report, nil
}

func scanFile(fset *token.FileSet, path string, registered func(string) bool) ([]CallSite, error) {
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var sites []CallSite
	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		value, err := strconv.Unquote(lit.Value)
		if err != nil {
			return true
		}
		if !keyPattern.MatchString(value) {
			return true
		}
		if registered(value) {
			return true
		}
		pos := fset.Position(lit.Pos())
		sites = append(sites, CallSite{
			File:    pos.Filename,
			Line:    pos.Line,
			Literal: value,
		})
		return true
	})
	return sites, nil
}
