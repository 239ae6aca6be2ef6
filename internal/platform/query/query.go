// Package query builds parameterized SQL WHERE clauses from request
// filter parameters, encapsulating the filtered-list pattern shared by
// the domain repositories.
package query

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
)

// ParamType describes how a filter parameter maps to SQL.
type ParamType int

const (
	ParamToken  ParamType = iota // exact match on a code/status column
	ParamDate                    // supports gt/ge/lt/le prefixes
	ParamString                  // case-insensitive substring match
	ParamRef                     // uuid foreign key match
	ParamNumber                  // numeric, supports gt/ge/lt/le prefixes
	ParamBool                    // boolean column
)

// ParamConfig maps a filter parameter name to its database column.
type ParamConfig struct {
	Type   ParamType
	Column string
}

// Builder accumulates WHERE clause fragments with numbered placeholders.
type Builder struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewBuilder(table, cols string) *Builder {
	return &Builder{table: table, cols: cols, idx: 1}
}

// Where appends a raw clause fragment (without leading "AND"). The
// fragment must use placeholders starting at Idx().
func (b *Builder) Where(clause string, args ...interface{}) {
	b.where += " AND " + clause
	b.args = append(b.args, args...)
	b.idx += len(args)
}

// Idx returns the next available placeholder index.
func (b *Builder) Idx() int { return b.idx }

func (b *Builder) addEq(column string, value interface{}) {
	b.where += fmt.Sprintf(" AND %s = $%d", column, b.idx)
	b.args = append(b.args, value)
	b.idx++
}

// prefixed handles gt/ge/lt/le prefixes on date and number params.
func (b *Builder) addPrefixed(column, value string) {
	op := "="
	for prefix, sqlOp := range map[string]string{"gt": ">", "ge": ">=", "lt": "<", "le": "<="} {
		if strings.HasPrefix(value, prefix) {
			op = sqlOp
			value = value[len(prefix):]
			break
		}
	}
	b.where += fmt.Sprintf(" AND %s %s $%d", column, op, b.idx)
	b.args = append(b.args, value)
	b.idx++
}

// Apply adds one filter according to its config.
func (b *Builder) Apply(config ParamConfig, value string) {
	switch config.Type {
	case ParamToken, ParamRef:
		b.addEq(config.Column, value)
	case ParamBool:
		b.addEq(config.Column, value == "true")
	case ParamDate, ParamNumber:
		b.addPrefixed(config.Column, value)
	case ParamString:
		b.where += fmt.Sprintf(" AND %s ILIKE $%d", config.Column, b.idx)
		b.args = append(b.args, "%"+value+"%")
		b.idx++
	}
}

// ApplyAll adds every parameter that has a config entry; unknown
// parameters are ignored.
func (b *Builder) ApplyAll(params map[string]string, configs map[string]ParamConfig) {
	for name, value := range params {
		if config, ok := configs[name]; ok {
			b.Apply(config, value)
		}
	}
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (b *Builder) OrderBy(orderBy string) {
	b.orderBy = orderBy
}

// CountSQL returns the count query.
func (b *Builder) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", b.table, b.where)
}

func (b *Builder) CountArgs() []interface{} {
	return b.args
}

// DataSQL returns the row query with ORDER BY and LIMIT/OFFSET appended.
func (b *Builder) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", b.cols, b.table, b.where)
	if b.orderBy != "" {
		sql += " ORDER BY " + b.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", b.idx, b.idx+1)
	return sql
}

func (b *Builder) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(b.args)+2)
	copy(result, b.args)
	result[len(b.args)] = limit
	result[len(b.args)+1] = offset
	return result
}

// ExtractParams pulls filter parameters from the query string, skipping
// control parameters (limit, offset, sort).
func ExtractParams(c echo.Context) map[string]string {
	params := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) == 0 || k == "limit" || k == "offset" || k == "sort" {
			continue
		}
		params[k] = v[0]
	}
	return params
}
