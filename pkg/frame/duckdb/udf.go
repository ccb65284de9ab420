package duckdb

import (
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/cutflow/pkg/frame"
)

// managedUDF adapts a frame.ManagedFunc to a DuckDB scalar function with
// DOUBLE arguments and a DOUBLE result.
type managedUDF struct {
	arity  int
	fn     frame.ManagedFunc
	double goduckdb.TypeInfo
}

func newManagedUDF(arity int, fn frame.ManagedFunc) (*managedUDF, error) {
	if fn == nil {
		return nil, fmt.Errorf("managed function is nil")
	}
	if arity < 0 {
		return nil, fmt.Errorf("invalid arity %d", arity)
	}
	double, err := goduckdb.NewTypeInfo(goduckdb.TYPE_DOUBLE)
	if err != nil {
		return nil, fmt.Errorf("failed to build DOUBLE type: %w", err)
	}
	return &managedUDF{arity: arity, fn: fn, double: double}, nil
}

func (u *managedUDF) Config() goduckdb.ScalarFuncConfig {
	inputs := make([]goduckdb.TypeInfo, u.arity)
	for i := range inputs {
		inputs[i] = u.double
	}
	return goduckdb.ScalarFuncConfig{
		InputTypeInfos: inputs,
		ResultTypeInfo: u.double,
	}
}

func (u *managedUDF) Executor() goduckdb.ScalarFuncExecutor {
	return goduckdb.ScalarFuncExecutor{RowExecutor: u.execute}
}

func (u *managedUDF) execute(values []driver.Value) (any, error) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	out, err := u.fn(args)
	if err != nil {
		return nil, err
	}
	return toDouble(out)
}

func toDouble(v any) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case bool:
		if n {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return nil, fmt.Errorf("managed function returned %T, want a number", v)
}
