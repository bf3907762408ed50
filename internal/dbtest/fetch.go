package dbtest

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Stmt is a query with its arguments.
type Stmt struct {
	Query string
	Args  []any
}

// SQL builds a Stmt.
func SQL(query string, args ...any) Stmt {
	return Stmt{Query: query, Args: args}
}

func (st Stmt) String() string {
	if len(st.Args) == 0 {
		return fmt.Sprintf("%q", st.Query)
	}
	return fmt.Sprintf("%q with args %s", st.Query, repr(st.Args))
}

type fetchOptions struct {
	columns      []string
	singleColumn bool
	rowCount     int
	expect       any
	hasExpect    bool
}

// FetchOption constrains the shape of a result or sets an expectation.
type FetchOption func(*fetchOptions)

// Columns requires every row to have exactly these columns, in order.
func Columns(names ...string) FetchOption {
	return func(o *fetchOptions) {
		o.columns = names
		o.singleColumn = false
	}
}

// SingleColumn requires exactly one column, whatever its name.
func SingleColumn() FetchOption {
	return func(o *fetchOptions) {
		o.columns = nil
		o.singleColumn = true
	}
}

// Column requires exactly one column with the given name.
func Column(name string) FetchOption {
	return Columns(name)
}

// RowCount requires exactly n rows.
func RowCount(n int) FetchOption {
	return func(o *fetchOptions) { o.rowCount = n }
}

// Expecting compares the result of the fetch against v with Expect.
func Expecting(v any) FetchOption {
	return func(o *fetchOptions) {
		o.expect = v
		o.hasExpect = true
	}
}

func buildOptions(defaults []FetchOption, opts []FetchOption) fetchOptions {
	o := fetchOptions{rowCount: -1}
	for _, opt := range defaults {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fetch runs stmt and checks the shape of the result.
// A column constraint is only checked when there are rows.
func (s *Session) Fetch(ctx context.Context, stmt Stmt, opts ...FetchOption) ([]Row, error) {
	o := buildOptions(nil, opts)
	rows, err := s.fetch(ctx, stmt, o)
	if err != nil {
		return nil, err
	}
	if o.hasExpect {
		if _, err := s.Expect(rows, o.expect); err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func (s *Session) fetch(ctx context.Context, stmt Stmt, o fetchOptions) ([]Row, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	rows, err := s.conn.Query(qctx, stmt.Query, stmt.Args...)
	if cbErr := s.Err(); cbErr != nil {
		return nil, cbErr
	}
	if err != nil {
		fmt.Fprintf(s.out, "%stest error%s query failed:\n%s\n%v\n", red, normal, stmt, err)
		s.logger.Error("query failed", "query", stmt.Query, "args", stmt.Args, "error", err)
		return nil, err
	}

	if len(rows) > 0 {
		keys := rows[0].Columns()
		switch {
		case o.singleColumn && len(keys) != 1:
			return nil, s.fail("fetch", "expected a single column, but got %s", repr(keys))
		case o.columns != nil && !slices.Equal(o.columns, keys):
			return nil, s.fail("fetch", "expected column(s) %s, but got %s", repr(o.columns), repr(keys))
		}
	}

	if o.rowCount >= 0 && o.rowCount != len(rows) {
		return nil, s.fail("fetch", "expected %d rows, but got %d rows", o.rowCount, len(rows))
	}

	return rows, nil
}

// FetchRow runs stmt, requires exactly one row and returns it.
func (s *Session) FetchRow(ctx context.Context, stmt Stmt, opts ...FetchOption) (Row, error) {
	o := buildOptions(nil, opts)
	o.rowCount = 1

	rows, err := s.fetch(ctx, stmt, o)
	if err != nil {
		return Row{}, err
	}
	row := rows[0]

	if o.hasExpect {
		if _, err := s.Expect(row, o.expect); err != nil {
			return row, err
		}
	}
	return row, nil
}

// FetchVal runs stmt, requires a single row with a single column and
// returns the value.
func (s *Session) FetchVal(ctx context.Context, stmt Stmt, opts ...FetchOption) (any, error) {
	o := buildOptions([]FetchOption{SingleColumn()}, opts)
	o.rowCount = 1

	rows, err := s.fetch(ctx, stmt, o)
	if err != nil {
		return nil, err
	}
	val := rows[0].Index(0)

	if o.hasExpect {
		if _, err := s.Expect(val, o.expect); err != nil {
			return val, err
		}
	}
	return val, nil
}

// FetchVals runs stmt, requires a single column and returns its values.
func (s *Session) FetchVals(ctx context.Context, stmt Stmt, opts ...FetchOption) ([]any, error) {
	o := buildOptions([]FetchOption{SingleColumn()}, opts)

	rows, err := s.fetch(ctx, stmt, o)
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(rows))
	for i, row := range rows {
		vals[i] = row.Index(0)
	}

	if o.hasExpect {
		if _, err := s.Expect(vals, o.expect); err != nil {
			return vals, err
		}
	}
	return vals, nil
}

// FetchExpectError runs stmt and requires it to fail with an error of the
// given kind whose server message matches pattern. An empty pattern
// accepts any message.
func (s *Session) FetchExpectError(ctx context.Context, stmt Stmt, kind ErrorKind, pattern string) error {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid error pattern %q: %w", pattern, err)
		}
	}

	if err := s.Err(); err != nil {
		return err
	}

	qctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	rows, err := s.conn.Query(qctx, stmt.Query, stmt.Args...)
	if cbErr := s.Err(); cbErr != nil {
		return cbErr
	}

	switch {
	case err == nil:
		return s.fail("fetch", "expected %s\nto fail, but it returned\n%s", stmt, repr(rows))
	case !kind.matches(err):
		return s.fail("fetch", "expected %s\nto fail with %s\nbut it failed with %s\n%v", stmt, kind, describe(err), err)
	case re != nil && !re.MatchString(serverMessage(err)):
		return s.fail("fetch", "expected %s\nto fail with %s matching %q\nbut it failed with %s\n%s",
			stmt, kind, pattern, describe(err), serverMessage(err))
	}
	return nil
}

// FetchExpectRaise requires stmt to raise an exception whose message starts
// with "<errorID>:".
func (s *Session) FetchExpectRaise(ctx context.Context, stmt Stmt, errorID string) error {
	return s.FetchExpectError(ctx, stmt, RaiseError, "^"+regexp.QuoteMeta(strings.TrimSpace(errorID))+":")
}
