// Package queryfile decodes the YAML files run by the tidbit command: the
// collections to register and the query to execute against them.
//
//	collections:
//	  - name: employees
//	    files: [employees.json, employees2.json]
//	  - name: departments
//	    loadInMemory: true
//	    files:
//	      - files: [departments.ndjson]
//	        parser: ndjson
//	query:
//	  collection: employees
//	  where:
//	    or:
//	      - name: john doe
//	      - departmentID: {op: gte, value: 2}
//	  limit: 10
//	  select: [name, {departmentID: dept}]
//	  relation:
//	    collection: departments
//	    sourceField: departmentID
//	    foreignField: Id
//	    as: department
package queryfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	yaml "github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"

	"github.com/jacoelho/tidbit"
	"github.com/jacoelho/tidbit/internal/pathing"
	"github.com/jacoelho/tidbit/query"
	"github.com/jacoelho/tidbit/source"
)

// ErrQueryFile is the sentinel error for every invalid query file.
var ErrQueryFile = errors.New("query file error")

// Parser names accepted in file groups.
const (
	ParserJSON   = "json"
	ParserNDJSON = "ndjson"
)

// File is a decoded query file.
type File struct {
	Collections []Collection `yaml:"collections"`
	Query       Query        `yaml:"query"`
}

// Collection declares a collection and its files.
type Collection struct {
	Name         string      `yaml:"name"`
	LoadInMemory bool        `yaml:"loadInMemory,omitempty"`
	Files        []FileGroup `yaml:"files"`
}

// FileGroup is either a bare path or a list of paths sharing a parser.
type FileGroup struct {
	Paths  []string
	Parser string
}

// Query is the query to execute.
type Query struct {
	Collection string    `yaml:"collection"`
	Path       string    `yaml:"path,omitempty"`
	Where      Where     `yaml:"where,omitempty"`
	Skip       *int      `yaml:"skip,omitempty"`
	Limit      *int      `yaml:"limit,omitempty"`
	Select     []Field   `yaml:"select,omitempty"`
	Relation   *Relation `yaml:"relation,omitempty"`
}

// Field is a selected field: a bare name or a single {name: as} mapping.
type Field struct {
	Name string
	As   string
}

// Relation joins every record to another collection.
type Relation struct {
	Collection   string `yaml:"collection"`
	SourceField  string `yaml:"sourceField"`
	ForeignField string `yaml:"foreignField"`
	As           string `yaml:"as"`
}

// UnmarshalYAML accepts "path.json" or {files: [...], parser: name}.
func (g *FileGroup) UnmarshalYAML(node ast.Node) error {
	if s, ok := node.(*ast.StringNode); ok {
		g.Paths = []string{s.Value}
		return nil
	}

	pairs, ok := mappingPairs(node)
	if !ok {
		return errors.New("file must be a path or a mapping with files and parser")
	}

	for _, pair := range pairs {
		key, ok := pair.Key.(*ast.StringNode)
		if !ok {
			return errors.New("file group key must be a string")
		}

		switch key.Value {
		case "files":
			seq, ok := pair.Value.(*ast.SequenceNode)
			if !ok {
				return errors.New("files must be a list of paths")
			}
			for i, item := range seq.Values {
				s, ok := item.(*ast.StringNode)
				if !ok {
					return fmt.Errorf("files[%d] must be a string", i)
				}
				g.Paths = append(g.Paths, s.Value)
			}
		case "parser":
			s, ok := pair.Value.(*ast.StringNode)
			if !ok {
				return errors.New("parser must be a string")
			}
			g.Parser = s.Value
		default:
			return fmt.Errorf("unsupported file group key %q: use 'files' and 'parser'", key.Value)
		}
	}

	if len(g.Paths) == 0 {
		return errors.New("file group has no files")
	}
	return nil
}

// UnmarshalYAML accepts "name" or {name: as}.
func (f *Field) UnmarshalYAML(node ast.Node) error {
	if s, ok := node.(*ast.StringNode); ok {
		f.Name = s.Value
		return nil
	}

	pairs, ok := mappingPairs(node)
	if !ok {
		return errors.New("field must be a name or a {name: as} mapping")
	}
	if len(pairs) != 1 {
		return errors.New("renamed field must have exactly one entry")
	}
	key, ok := pairs[0].Key.(*ast.StringNode)
	if !ok {
		return errors.New("field name must be a string")
	}
	as, ok := pairs[0].Value.(*ast.StringNode)
	if !ok {
		return fmt.Errorf("new name of %q must be a string", key.Value)
	}
	f.Name, f.As = key.Value, as.Value
	return nil
}

// Parse decodes a query file. Relative paths are kept as written.
func Parse(r io.Reader) (*File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: failed to decode YAML: %v", ErrQueryFile, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the query file at path. Relative data file paths are
// resolved against the directory holding the query file.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFile, err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range f.Collections {
		for j := range f.Collections[i].Files {
			pathing.ResolveAll(f.Collections[i].Files[j].Paths, dir)
		}
	}
	return f, nil
}

// Validate checks the references between the query and the collections.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Collections))
	for i, c := range f.Collections {
		if c.Name == "" {
			return fmt.Errorf("%w: collections[%d]: missing name", ErrQueryFile, i)
		}
		if len(c.Files) == 0 {
			return fmt.Errorf("%w: collection %q: no files", ErrQueryFile, c.Name)
		}
		for _, g := range c.Files {
			if _, err := parserFor(g.Parser); err != nil {
				return fmt.Errorf("%w: collection %q: %v", ErrQueryFile, c.Name, err)
			}
		}
		seen[c.Name] = true
	}

	q := f.Query
	if q.Collection == "" {
		return fmt.Errorf("%w: query: missing collection", ErrQueryFile)
	}
	if !seen[q.Collection] {
		return fmt.Errorf("%w: query: unknown collection %q", ErrQueryFile, q.Collection)
	}
	if q.Skip != nil && *q.Skip < 0 {
		return fmt.Errorf("%w: query: skip must not be negative", ErrQueryFile)
	}
	if q.Limit != nil && *q.Limit < 0 {
		return fmt.Errorf("%w: query: limit must not be negative", ErrQueryFile)
	}
	for i, field := range q.Select {
		if field.Name == "" {
			return fmt.Errorf("%w: query: select[%d]: empty field name", ErrQueryFile, i)
		}
	}

	if r := q.Relation; r != nil {
		switch {
		case !seen[r.Collection]:
			return fmt.Errorf("%w: relation: unknown collection %q", ErrQueryFile, r.Collection)
		case r.SourceField == "" || r.ForeignField == "":
			return fmt.Errorf("%w: relation: sourceField and foreignField are required", ErrQueryFile)
		case r.As == "":
			return fmt.Errorf("%w: relation: missing as", ErrQueryFile)
		}
	}
	return nil
}

func parserFor(name string) (source.Parser, error) {
	switch name {
	case "", ParserJSON:
		return source.OpenFile, nil
	case ParserNDJSON:
		return source.OpenLines, nil
	default:
		return nil, fmt.Errorf("unknown parser %q", name)
	}
}

// Registry registers the declared collections.
func (f *File) Registry() (*tidbit.Tidbit, error) {
	collections := make([]source.Collection, 0, len(f.Collections))
	for _, c := range f.Collections {
		sc := source.Collection{Name: c.Name, LoadInMemory: c.LoadInMemory}
		for _, g := range c.Files {
			parser, err := parserFor(g.Parser)
			if err != nil {
				return nil, fmt.Errorf("%w: collection %q: %v", ErrQueryFile, c.Name, err)
			}
			sc.Files = append(sc.Files, source.Group(parser, g.Paths...))
		}
		collections = append(collections, sc)
	}
	return tidbit.New(collections...)
}

// Build turns the declared query into an executable one over db.
func (f *File) Build(db *tidbit.Tidbit) (*query.Query, error) {
	q := f.Query

	built, err := db.Collection(q.Collection)
	if err != nil {
		return nil, err
	}

	if tree := q.Where.Tree(); tree != nil {
		built.Find(tree)
	}
	if q.Path != "" {
		built.Path(q.Path)
	}
	if q.Skip != nil {
		built.Skip(*q.Skip)
	}
	if q.Limit != nil {
		built.Limit(*q.Limit)
	}

	fields := make([]query.Field, 0, len(q.Select))
	for _, field := range q.Select {
		fields = append(fields, query.Field{Name: field.Name, As: field.As})
	}

	switch {
	case q.Relation != nil:
		related, err := db.Lookup(q.Relation.Collection)
		if err != nil {
			return nil, err
		}
		built.Relation(query.RelationOptions{
			Collection:   related,
			SourceField:  q.Relation.SourceField,
			ForeignField: q.Relation.ForeignField,
		})
		if len(fields) == 0 {
			built.Project(query.Merge(q.Relation.As))
		} else {
			built.Project(query.SelectWithRelation(q.Relation.As, fields...))
		}
	case len(fields) > 0:
		built.Project(query.Select(fields...))
	}

	return built, nil
}
