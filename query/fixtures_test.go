package query

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jacoelho/tidbit/source"
)

const (
	usersJSON = `[
  {"name": "john", "surname": "doe", "age": 12},
  {"name": "john", "surname": "clark", "age": 21},
  {"name": "john", "surname": "junior", "age": 40},
  {"name": "john", "surname": "zack", "age": 35},
  {"name": "julienne", "surname": "santoni", "age": 30}
]`
	users2JSON = `[
  {"name": "mary", "surname": "doe", "age": 26},
  {"name": "hugh", "surname": "john", "age": 21},
  {"name": "elise", "surname": "santoni", "age": 25},
  {"name": "anne", "surname": "santoni", "age": 16}
]`
	bagsJSON = `[
  {"name": "bag1", "size": 10, "contents": {"pocket1": {"brand": "brand_a", "interior": ["pen"]}, "pocket2": {"brand2": "brand_b"}, "main": {}}},
  {"name": "bag2", "size": 20, "contents": {"pocket1": {"brand": "brand_c", "interior": []}, "pocket2": {"brand2": "brand_d"}, "main": {}}},
  {"name": "bag3", "size": 30, "contents": {"pocket1": {"brand": "brand_b", "interior": ["wallet", "money", "passport"]}, "pocket2": {}, "main": {}}}
]`
	responseJSON = `{
  "status": "ok",
  "data": {
    "results": [
      {"name": "john doe", "departmentID": 1},
      {"name": "billy doe", "departmentID": 3},
      {"name": "ana doe", "departmentID": 2}
    ]
  }
}`
	employeesJSON = `[
  {"name": "john doe", "departmentID": 1},
  {"name": "billy doe", "departmentID": 3},
  {"name": "ana doe", "departmentID": 2}
]`
	employees2JSON = `[
  {"name": "mary", "departmentID": 2},
  {"name": "william", "departmentID": 1},
  {"name": "ana doe", "departmentID": 2},
  {"name": "nobody", "departmentID": 9}
]`
	departmentsJSON = `[
  {"Id": 1, "name": "Human Resources"},
  {"Id": 2, "name": "Information Technology"},
  {"Id": 3, "name": "Financial office"}
]`
)

// fixtures holds the same collections declared for both strategies.
type fixtures struct {
	dir         string
	users       source.Collection
	bags        source.Collection
	response    source.Collection
	employees   source.Collection
	departments source.Collection
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFixtures(t *testing.T, inMemory bool) fixtures {
	t.Helper()

	dir := t.TempDir()
	files := func(names ...string) []source.File {
		var out []source.File
		for _, n := range names {
			out = append(out, source.Path(filepath.Join(dir, n)))
		}
		return out
	}

	writeFixture(t, dir, "users.json", usersJSON)
	writeFixture(t, dir, "users2.json", users2JSON)
	writeFixture(t, dir, "bags.json", bagsJSON)
	writeFixture(t, dir, "response.json", responseJSON)
	writeFixture(t, dir, "employees.json", employeesJSON)
	writeFixture(t, dir, "employees2.json", employees2JSON)
	writeFixture(t, dir, "departments.json", departmentsJSON)

	return fixtures{
		dir:         dir,
		users:       source.Collection{Name: "users", Files: files("users.json", "users2.json"), LoadInMemory: inMemory},
		bags:        source.Collection{Name: "bags", Files: files("bags.json"), LoadInMemory: inMemory},
		response:    source.Collection{Name: "response", Files: files("response.json"), LoadInMemory: inMemory},
		employees:   source.Collection{Name: "employees", Files: files("employees.json", "employees2.json"), LoadInMemory: inMemory},
		departments: source.Collection{Name: "departments", Files: files("departments.json"), LoadInMemory: inMemory},
	}
}

func person(name, surname string, age float64) map[string]any {
	return map[string]any{"name": name, "surname": surname, "age": age}
}

// bufferSink records what was written and whether it was closed.
type bufferSink struct {
	bytes.Buffer
	closed   bool
	closeErr error
	writeErr error
}

func (s *bufferSink) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.Buffer.Write(p)
}

func (s *bufferSink) Close() error {
	s.closed = true
	return s.closeErr
}
