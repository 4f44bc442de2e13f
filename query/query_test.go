package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jacoelho/tidbit/comparator"
	"github.com/jacoelho/tidbit/internal/jsonpath"
	"github.com/jacoelho/tidbit/source"
	"github.com/jacoelho/tidbit/where"
)

func names(t *testing.T, records []any) []string {
	t.Helper()

	out := make([]string, 0, len(records))
	for _, r := range records {
		obj, ok := r.(map[string]any)
		if !ok {
			t.Fatalf("record %v is %T, want object", r, r)
		}
		out = append(out, obj["name"].(string)+" "+obj["surname"].(string))
	}
	return out
}

func TestStrategiesAgree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(f fixtures) *Query
		want  []string
	}{
		{
			name:  "no predicate returns everything in file order",
			build: func(f fixtures) *Query { return New(f.users) },
			want: []string{
				"john doe", "john clark", "john junior", "john zack", "julienne santoni",
				"mary doe", "hugh john", "elise santoni", "anne santoni",
			},
		},
		{
			name: "literal",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"name": where.Eq("john")})
			},
			want: []string{"john doe", "john clark", "john junior", "john zack"},
		},
		{
			name: "skip and limit",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"name": where.Eq("john")}).Skip(1).Limit(2)
			},
			want: []string{"john clark", "john junior"},
		},
		{
			name: "skip past every match",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"name": where.Eq("john")}).Skip(10)
			},
			want: []string{},
		},
		{
			name:  "limit zero",
			build: func(f fixtures) *Query { return New(f.users).Limit(0) },
			want:  []string{},
		},
		{
			name: "limit spanning files",
			build: func(f fixtures) *Query {
				return New(f.users).Skip(4).Limit(2)
			},
			want: []string{"julienne santoni", "mary doe"},
		},
		{
			name: "comparator",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"age": where.Match(comparator.Gte(30))})
			},
			want: []string{"john junior", "john zack", "julienne santoni"},
		},
		{
			name: "or",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Or{
					where.Fields{"surname": where.Eq("doe")},
					where.Fields{"age": where.Match(comparator.Lt(18))},
				})
			},
			want: []string{"john doe", "mary doe", "anne santoni"},
		},
		{
			name: "and with between",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.And{
					where.Fields{"name": where.Eq("john")},
					where.Fields{"age": where.Match(comparator.Between(20)(36))},
				})
			},
			want: []string{"john clark", "john zack"},
		},
		{
			name: "regex",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"name": where.Match(comparator.Match("^ju"))})
			},
			want: []string{"julienne santoni"},
		},
		{
			name: "missing field",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"nickname": where.Eq("jo")})
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, inMemory := range []bool{true, false} {
				q := tt.build(newFixtures(t, inMemory))
				if q.InMemory() != inMemory {
					t.Fatalf("InMemory() = %v, want %v", q.InMemory(), inMemory)
				}

				got, err := q.ToArray(context.Background())
				if err != nil {
					t.Fatalf("ToArray(inMemory=%v) error = %v", inMemory, err)
				}
				if got == nil {
					t.Fatalf("ToArray(inMemory=%v) = nil, want non-nil slice", inMemory)
				}
				if gotNames := names(t, got); !reflect.DeepEqual(gotNames, tt.want) {
					t.Fatalf("ToArray(inMemory=%v) = %v, want %v", inMemory, gotNames, tt.want)
				}
			}
		})
	}
}

func TestNestedPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		where where.Tree
		want  []string
	}{
		{
			name: "includes in nested array",
			where: where.Fields{"contents": where.Sub(where.Fields{
				"pocket1": where.Sub(where.Fields{"interior": where.Match(comparator.Includes("wallet"))}),
			})},
			want: []string{"bag3"},
		},
		{
			name:  "empty object",
			where: where.Fields{"contents": where.Sub(where.Fields{"pocket2": where.Empty()})},
			want:  []string{"bag3"},
		},
		{
			name: "nested literal",
			where: where.Fields{"contents": where.Sub(where.Fields{
				"pocket2": where.Sub(where.Fields{"brand2": where.Eq("brand_b")}),
			})},
			want: []string{"bag1"},
		},
		{
			name: "literal compares arrays deeply",
			where: where.Fields{"contents": where.Sub(where.Fields{
				"pocket1": where.Sub(where.Fields{"interior": where.Eq([]any{"pen"})}),
			})},
			want: []string{"bag1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, inMemory := range []bool{true, false} {
				f := newFixtures(t, inMemory)
				got, err := New(f.bags).
					Find(tt.where).
					Project(Select(Pick("name"))).
					ToArray(context.Background())
				if err != nil {
					t.Fatalf("ToArray(inMemory=%v) error = %v", inMemory, err)
				}

				var gotNames []string
				for _, r := range got {
					gotNames = append(gotNames, r.(map[string]any)["name"].(string))
				}
				if !reflect.DeepEqual(gotNames, tt.want) {
					t.Fatalf("ToArray(inMemory=%v) = %v, want %v", inMemory, gotNames, tt.want)
				}
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Parallel()

	for _, inMemory := range []bool{true, false} {
		f := newFixtures(t, inMemory)

		got, err := New(f.response).
			Path("data.results").
			Find(where.Fields{"departmentID": where.Match(comparator.Gt(1))}).
			ToArray(context.Background())
		if err != nil {
			t.Fatalf("ToArray(inMemory=%v) error = %v", inMemory, err)
		}
		want := []any{
			map[string]any{"name": "billy doe", "departmentID": float64(3)},
			map[string]any{"name": "ana doe", "departmentID": float64(2)},
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ToArray(inMemory=%v) = %v, want %v", inMemory, got, want)
		}

		got, err = New(f.response).Path("data.missing").ToArray(context.Background())
		if err != nil {
			t.Fatalf("missing path (inMemory=%v) error = %v", inMemory, err)
		}
		if len(got) != 0 {
			t.Fatalf("missing path (inMemory=%v) = %v, want empty", inMemory, got)
		}

		_, err = New(f.response).Path("status").ToArray(context.Background())
		if !errors.Is(err, jsonpath.ErrNotArray) {
			t.Fatalf("non-array path (inMemory=%v) error = %v, want %v", inMemory, err, jsonpath.ErrNotArray)
		}
	}
}

func TestRelation(t *testing.T) {
	t.Parallel()

	type pair struct{ name, department string }

	project := func(record, related any) (any, error) {
		p := pair{name: record.(map[string]any)["name"].(string)}
		if related != nil {
			p.department = related.(map[string]any)["name"].(string)
		}
		return p, nil
	}

	want := []any{
		pair{"john doe", "Human Resources"},
		pair{"billy doe", "Financial office"},
		pair{"ana doe", "Information Technology"},
		pair{"mary", "Information Technology"},
		pair{"william", "Human Resources"},
		pair{"ana doe", "Information Technology"},
		pair{"nobody", ""},
	}

	for _, employeesInMemory := range []bool{true, false} {
		for _, departmentsInMemory := range []bool{true, false} {
			employees := newFixtures(t, employeesInMemory).employees
			departments := newFixtures(t, departmentsInMemory).departments

			got, err := New(employees).
				Relation(RelationOptions{
					Collection:   departments,
					SourceField:  "departmentID",
					ForeignField: "Id",
				}).
				Project(project).
				Concurrency(3).
				ToArray(context.Background())
			if err != nil {
				t.Fatalf("ToArray() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("ToArray(employees=%v, departments=%v) = %v, want %v",
					employeesInMemory, departmentsInMemory, got, want)
			}
		}
	}
}

func TestRelationMutate(t *testing.T) {
	t.Parallel()

	f := newFixtures(t, true)

	got, err := New(f.employees).
		Find(where.Fields{"name": where.Eq("john doe")}).
		Relation(RelationOptions{
			Collection:   f.departments,
			SourceField:  "departmentID",
			ForeignField: "Id",
			Mutate:       func(any) any { return 3 },
		}).
		Project(SelectWithRelation("department", Pick("name"))).
		ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}

	want := []any{map[string]any{
		"name":       "john doe",
		"department": map[string]any{"Id": float64(3), "name": "Financial office"},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToArray() = %v, want %v", got, want)
	}
}

func TestRelationWithoutProjection(t *testing.T) {
	t.Parallel()

	f := newFixtures(t, true)
	opened := false
	departments := source.Collection{
		Name: "departments",
		Files: []source.File{source.Group(func(context.Context, string) (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("[]")), nil
		}, "departments.json")},
		LoadInMemory: true,
	}

	got, err := New(f.employees).
		Relation(RelationOptions{Collection: departments, SourceField: "departmentID", ForeignField: "Id"}).
		Limit(1).
		ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}
	if opened {
		t.Fatalf("related collection opened without a projection")
	}
	want := []any{map[string]any{"name": "john doe", "departmentID": float64(1)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToArray() = %v, want %v", got, want)
	}
}

func TestToSink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(f fixtures) *Query
		want  string
	}{
		{
			name:  "nothing matches",
			build: func(f fixtures) *Query { return New(f.users).Find(where.Fields{"name": where.Eq("nobody")}) },
			want:  `[]`,
		},
		{
			name: "early stop keeps the array valid",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"surname": where.Eq("santoni")}).Limit(2).
					Project(Select(Pick("name")))
			},
			want: `[{"name":"julienne"},{"name":"elise"}]`,
		},
		{
			name: "projection",
			build: func(f fixtures) *Query {
				return New(f.users).Find(where.Fields{"surname": where.Eq("doe")}).
					Project(Select(Pick("name"), Rename("age", "years")))
			},
			want: `[{"name":"john","years":12},{"name":"mary","years":26}]`,
		},
		{
			name: "html is not escaped",
			build: func(f fixtures) *Query {
				return New(f.users).Limit(1).Project(func(any, any) (any, error) { return "<a&b>", nil })
			},
			want: `["<a&b>"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &bufferSink{}
			if err := tt.build(newFixtures(t, false)).ToSink(context.Background(), sink); err != nil {
				t.Fatalf("ToSink() error = %v", err)
			}
			if !sink.closed {
				t.Fatalf("ToSink() left the sink open")
			}
			if got := sink.String(); got != tt.want {
				t.Fatalf("ToSink() wrote %s, want %s", got, tt.want)
			}

			var decoded []any
			if err := json.Unmarshal(sink.Bytes(), &decoded); err != nil {
				t.Fatalf("ToSink() wrote invalid JSON: %v", err)
			}
		})
	}
}

func TestToSinkInMemory(t *testing.T) {
	t.Parallel()

	f := newFixtures(t, true)
	sink := &bufferSink{}

	err := New(f.users).ToSink(context.Background(), sink)
	if !errors.Is(err, ErrSinkUnsupported) {
		t.Fatalf("ToSink() error = %v, want %v", err, ErrSinkUnsupported)
	}
	if sink.Len() != 0 {
		t.Fatalf("ToSink() wrote %q, want nothing", sink.String())
	}

	err = FromArray([]any{1}).ToSink(context.Background(), sink)
	if !errors.Is(err, ErrSinkUnsupported) {
		t.Fatalf("FromArray().ToSink() error = %v, want %v", err, ErrSinkUnsupported)
	}
}

func TestToSinkErrors(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("close failed")
	writeErr := errors.New("write failed")

	t.Run("close error", func(t *testing.T) {
		t.Parallel()

		sink := &bufferSink{closeErr: closeErr}
		err := New(newFixtures(t, false).users).ToSink(context.Background(), sink)
		if !errors.Is(err, closeErr) {
			t.Fatalf("ToSink() error = %v, want %v", err, closeErr)
		}
	})

	t.Run("write error", func(t *testing.T) {
		t.Parallel()

		sink := &bufferSink{writeErr: writeErr}
		err := New(newFixtures(t, false).users).ToSink(context.Background(), sink)
		if !errors.Is(err, writeErr) {
			t.Fatalf("ToSink() error = %v, want %v", err, writeErr)
		}
		if !sink.closed {
			t.Fatalf("ToSink() left the sink open")
		}
	})

	t.Run("malformed source after some records", func(t *testing.T) {
		t.Parallel()

		sink := &bufferSink{}
		err := FromReader(strings.NewReader(`[{"a":1},{"a":2}, nope`)).ToSink(context.Background(), sink)
		if !errors.Is(err, jsonpath.ErrMalformed) {
			t.Fatalf("ToSink() error = %v, want %v", err, jsonpath.ErrMalformed)
		}
		if got, want := sink.String(), `[{"a":1},{"a":2}`; got != want {
			t.Fatalf("ToSink() wrote %s, want %s", got, want)
		}
	})
}

func TestEarlyStopDoesNotReadAhead(t *testing.T) {
	t.Parallel()

	f := newFixtures(t, false)

	var opens atomic.Int32
	counting := func(ctx context.Context, path string) (io.ReadCloser, error) {
		opens.Add(1)
		return source.OpenFile(ctx, path)
	}
	users := source.Collection{
		Name: "users",
		Files: []source.File{source.Group(counting,
			f.users.Files[0].Paths[0],
			f.users.Files[1].Paths[0],
		)},
	}

	got, err := New(users).Limit(1).ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ToArray() = %v, want one record", got)
	}
	if n := opens.Load(); n != 1 {
		t.Fatalf("files opened = %d, want 1", n)
	}

	// the garbage after the limit is never parsed
	got, err = FromReader(strings.NewReader(`[1, 2, 3, oops`)).Limit(2).ToArray(context.Background())
	if err != nil {
		t.Fatalf("FromReader().ToArray() error = %v", err)
	}
	if want := []any{float64(1), float64(2)}; !reflect.DeepEqual(got, want) {
		t.Fatalf("FromReader().ToArray() = %v, want %v", got, want)
	}
}

type closeFailReader struct {
	io.Reader
	err error
}

func (r closeFailReader) Close() error { return r.err }

func TestReaderCloseError(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("connection reset")

	got, err := FromReader(closeFailReader{strings.NewReader(`[1, 2, 3]`), closeErr}).
		Limit(1).
		ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() after early stop error = %v, want nil", err)
	}
	if len(got) != 1 {
		t.Fatalf("ToArray() = %v, want one record", got)
	}

	_, err = FromReader(closeFailReader{strings.NewReader(`[1, 2, 3]`), closeErr}).ToArray(context.Background())
	if !errors.Is(err, closeErr) {
		t.Fatalf("ToArray() error = %v, want %v", err, closeErr)
	}
}

func TestCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, inMemory := range []bool{true, false} {
		f := newFixtures(t, inMemory)
		_, err := New(f.users).ToArray(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ToArray(inMemory=%v) error = %v, want %v", inMemory, err, context.Canceled)
		}
	}
}

func TestNoSource(t *testing.T) {
	t.Parallel()

	_, err := (&Query{}).ToArray(context.Background())
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("ToArray() error = %v, want %v", err, ErrNoSource)
	}
}

func TestMissingFile(t *testing.T) {
	t.Parallel()

	users := source.Collection{Name: "users", Files: []source.File{source.Path("/does/not/exist.json")}}
	for _, inMemory := range []bool{true, false} {
		users.LoadInMemory = inMemory
		_, err := New(users).ToArray(context.Background())
		if !errors.Is(err, source.ErrOpen) {
			t.Fatalf("ToArray(inMemory=%v) error = %v, want %v", inMemory, err, source.ErrOpen)
		}
	}
}

func TestCustomParser(t *testing.T) {
	t.Parallel()

	// each "file" is a line of names turned into records by the parser
	lines := func(_ context.Context, path string) (io.ReadCloser, error) {
		var records []map[string]string
		for _, name := range strings.Fields(path) {
			records = append(records, map[string]string{"name": name})
		}
		b, err := json.Marshal(records)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(string(b))), nil
	}

	for _, inMemory := range []bool{true, false} {
		c := source.Collection{
			Name:         "names",
			Files:        []source.File{source.Group(lines, "ann bob", "cid"), source.Group(lines, "dan")},
			LoadInMemory: inMemory,
		}

		got, err := New(c).Skip(1).Limit(2).ToArray(context.Background())
		if err != nil {
			t.Fatalf("ToArray(inMemory=%v) error = %v", inMemory, err)
		}
		want := []any{map[string]any{"name": "bob"}, map[string]any{"name": "cid"}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ToArray(inMemory=%v) = %v, want %v", inMemory, got, want)
		}
	}
}

func TestFromArray(t *testing.T) {
	t.Parallel()

	records := []any{
		map[string]any{"id": float64(1), "tags": []any{"a", "b"}},
		map[string]any{"id": float64(2), "tags": []any{"c"}},
		"not an object",
		map[string]any{"id": float64(3), "tags": []any{"a"}},
	}

	got, err := FromArray(records).
		Find(where.Fields{"tags": where.Match(comparator.Includes("a"))}).
		Project(func(record, _ any) (any, error) { return record.(map[string]any)["id"], nil }).
		ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}
	if want := []any{float64(1), float64(3)}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ToArray() = %v, want %v", got, want)
	}

	got, err = FromArray(nil).ToArray(context.Background())
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("FromArray(nil).ToArray() = %v, %v, want empty slice", got, err)
	}
}

func TestFromReaderConcatenatedDocuments(t *testing.T) {
	t.Parallel()

	r := strings.NewReader(`{"items":[{"n":1},{"n":2}]} {"other":true} {"items":[{"n":3}]}`)

	got, err := FromReader(r).
		Path("items").
		Find(where.Fields{"n": where.Match(comparator.Not(2))}).
		ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}
	want := []any{map[string]any{"n": float64(1)}, map[string]any{"n": float64(3)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToArray() = %v, want %v", got, want)
	}
}

func TestProjectionError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	project := func(record, _ any) (any, error) {
		if record.(map[string]any)["surname"] == "zack" {
			return nil, boom
		}
		return record, nil
	}

	for _, inMemory := range []bool{true, false} {
		for _, concurrency := range []int{1, 4} {
			f := newFixtures(t, inMemory)
			_, err := New(f.users).Project(project).Concurrency(concurrency).ToArray(context.Background())
			if !errors.Is(err, boom) {
				t.Fatalf("ToArray(inMemory=%v, concurrency=%d) error = %v, want %v", inMemory, concurrency, err, boom)
			}
		}
	}
}

func TestConcurrentProjectionKeepsOrder(t *testing.T) {
	t.Parallel()

	records := make([]any, 100)
	for i := range records {
		records[i] = float64(i)
	}

	got, err := FromArray(records).
		Project(func(record, _ any) (any, error) { return record.(float64) * 2, nil }).
		Concurrency(8).
		ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}
	for i, v := range got {
		if v != float64(i*2) {
			t.Fatalf("ToArray()[%d] = %v, want %v", i, v, float64(i*2))
		}
	}
}

func TestQueryIsReusable(t *testing.T) {
	t.Parallel()

	f := newFixtures(t, false)
	q := New(f.users).Find(where.Fields{"name": where.Eq("john")}).Limit(2)

	for i := range 2 {
		got, err := q.ToArray(context.Background())
		if err != nil {
			t.Fatalf("run %d: ToArray() error = %v", i, err)
		}
		if want := []string{"john doe", "john clark"}; !reflect.DeepEqual(names(t, got), want) {
			t.Fatalf("run %d: ToArray() = %v, want %v", i, names(t, got), want)
		}
	}
}

func TestThrottle(t *testing.T) {
	t.Parallel()

	f := newFixtures(t, false)
	got, err := New(f.users).Throttle(1000).ToArray(context.Background())
	if err != nil {
		t.Fatalf("ToArray() error = %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("ToArray() returned %d records, want 9", len(got))
	}
}
