package testhelpers

import (
	"math"
	"sort"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maistodos/credit-forecast/pkg/presto"
	"github.com/maistodos/credit-forecast/pkg/util/slice"
)

const rowComparisonEpsilon = 0.0001

// AssertRowsEqual compares rows column by column. Values of the comparison
// columns may differ by a small relative error, to allow for floating point
// precision; every other column must match exactly.
func AssertRowsEqual(t require.TestingT, expected, actual []presto.Row, comparisonColumnNames []string) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	require.Len(t, actual, len(expected), "actual should have the same number of rows as expected")

	for i, actualRow := range actual {
		expectedRow := expected[i]
		assert.Equal(t, columns(expectedRow), columns(actualRow), "row %d: expected the same columns", i)

		for _, column := range columns(expectedRow) {
			expectedValue := expectedRow[column]
			actualValue, exists := actualRow[column]
			if !exists {
				t.Errorf("row %d: missing column %s value from actual row", i, column)
				continue
			}
			if slice.ContainsString(comparisonColumnNames, column, nil) {
				e, eok := numeric(expectedValue)
				a, aok := numeric(actualValue)
				if eok && aok {
					if e == 0 {
						assert.InDeltaf(t, e, a, rowComparisonEpsilon, "row %d: expected column %q value to be within delta of expected row", i, column)
					} else {
						assert.InEpsilonf(t, e, a, rowComparisonEpsilon, "row %d: expected column %q value to be within epsilon of expected row", i, column)
					}
					continue
				}
			}
			assert.Equalf(t, expectedValue, actualValue, "row %d: expected column %q values between actual and expected rows to be the same", i, column)
		}
	}
}

func columns(row presto.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case *float64:
		if n != nil {
			return *n, !math.IsNaN(*n)
		}
	}
	return 0, false
}
