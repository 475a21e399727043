package dataservice

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func checkIdents(names []string) error {
	for _, n := range names {
		if err := checkIdent(n); err != nil {
			return err
		}
	}
	return nil
}

// compileWhere renders the filters as "a = $n AND b = $n+1", starting the
// placeholders after offset bound values. Values are never interpolated.
func compileWhere(filters []Filter, offset int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, ErrUnscoped
	}

	parts := make([]string, 0, len(filters))
	params := make([]any, 0, len(filters))
	for i, f := range filters {
		if err := checkIdent(f.Column); err != nil {
			return "", nil, err
		}
		if isEmpty(f.Value) {
			return "", nil, fmt.Errorf("%w: empty value for %s", ErrUnscoped, f.Column)
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", f.Column, offset+i+1))
		params = append(params, f.Value)
	}
	return strings.Join(parts, " AND "), params, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	}
	return false
}

func compileSelect(table string, columns []string, filters []Filter, order *Order) (string, []any, error) {
	if err := checkIdent(table); err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: no columns selected", ErrInvalidIdentifier)
	}
	if err := checkIdents(columns); err != nil {
		return "", nil, err
	}

	where, params, err := compileWhere(filters, 0)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), table, where)
	if order != nil {
		if err := checkIdent(order.Column); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", order.Column, dir)
	}
	return query, params, nil
}

// compileInsert emits one multi-row INSERT. Columns are taken from the first
// row in sorted order; every row must carry exactly the same set.
func compileInsert(table string, rows []Row) (string, []any, error) {
	if err := checkIdent(table); err != nil {
		return "", nil, err
	}
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no rows", table)
	}

	columns := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: empty row", table)
	}
	if err := checkIdents(columns); err != nil {
		return "", nil, err
	}

	params := make([]any, 0, len(rows)*len(columns))
	tuples := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert into %s: row %d has a different column set", table, i)
		}
		holders := make([]string, len(columns))
		for j, c := range columns {
			v, ok := row[c]
			if !ok {
				return "", nil, fmt.Errorf("insert into %s: row %d is missing %s", table, i, c)
			}
			params = append(params, v)
			holders[j] = fmt.Sprintf("$%d", len(params))
		}
		tuples = append(tuples, "("+strings.Join(holders, ", ")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), strings.Join(tuples, ", "))
	return query, params, nil
}

func compileDelete(table string, filters []Filter) (string, []any, error) {
	if err := checkIdent(table); err != nil {
		return "", nil, err
	}
	where, params, err := compileWhere(filters, 0)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), params, nil
}
