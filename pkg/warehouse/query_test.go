package warehouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var perLenderLegacyExcluded = []string{"dr cash parcelex", "upp", "b2e legado", "losango", "nupay", "openco", "dr cash"}

type fragment struct {
	text  string
	count int
}

func normalize(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func TestRenderDefaultQuery(t *testing.T) {
	tests := map[string]struct {
		query    Query
		contains []fragment
		absent   []string
	}{
		"aggregate": {
			query: DefaultQuery(GroupNone, []string{"dr cash parcelex"}, []string{"dr cash parcelex"}),
			contains: []fragment{
				{"financiadoras not in ('dr cash parcelex') and", 2},
				{"financiadoras = 'parcelex' and", 2},
				{"id_funil_fluxo >= 7", 2},
				{"id_funil_fluxo = 7", 2},
				{"dt_merge <= date('2024-12-31')", 2},
				{"dt_merge >= date('2025-01-01')", 2},
				{"sum(vlr_requerido) vlr_total", 2},
				{"from pdgt_maistodos_credito.fl_report_credito_refactor", 4},
				{"union all", 3},
				{"select dt_merge, sum(vlr_total) as vlr_total from slices group by 1 order by 1", 1},
			},
			absent: []string{"financiadoras,"},
		},
		"per lender": {
			query: DefaultQuery(GroupLender, perLenderLegacyExcluded, append([]string{"dr cash parcelex"}, perLenderLegacyExcluded...)),
			contains: []fragment{
				{"financiadoras not in ('dr cash parcelex', 'upp', 'b2e legado', 'losango', 'nupay', 'openco', 'dr cash') and", 1},
				{"financiadoras not in ('dr cash parcelex', 'dr cash parcelex', 'upp', 'b2e legado', 'losango', 'nupay', 'openco', 'dr cash') and", 1},
				{"select dt_merge, financiadoras, sum(vlr_total) vlr_total", 2},
				{"select dt_merge, financiadoras, sum(vlr_requerido) vlr_total", 2},
				{"group by 1, 2 )", 4},
				{"select dt_merge, financiadoras, sum(vlr_total) as vlr_total from slices group by 1, 2 order by 1", 1},
			},
		},
		"no exclusions": {
			query: DefaultQuery(GroupNone, nil, nil),
			contains: []fragment{
				{"and true and", 2},
			},
			absent: []string{"not in"},
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			rendered, err := tt.query.Render()
			require.NoError(t, err)
			query := normalize(rendered)
			for _, f := range tt.contains {
				assert.Equal(t, f.count, strings.Count(query, f.text), "fragment %q in %s", f.text, query)
			}
			for _, fragment := range tt.absent {
				assert.NotContains(t, query, fragment)
			}
		})
	}
}

func TestRenderQueryErrors(t *testing.T) {
	q := DefaultQuery("daily", nil, nil)
	_, err := q.Render()
	assert.EqualError(t, err, `invalid grouping "daily", must be "none" or "lender"`)

	_, err = RenderQuery("select {| .Table", QueryTemplateContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing query")

	_, err = RenderQuery("select {| .Missing |}", QueryTemplateContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error executing template")
}

func TestRenderQueryFunctions(t *testing.T) {
	query, err := RenderQuery(`select * from {| .Table | lower |} where x in ({| sqlStringList .LegacyExcludedLenders |}) and d > {| prestoDate .LegacyEnd |}`, QueryTemplateContext{
		Table:                 "T.Credit",
		LegacyExcludedLenders: []string{"a", "a", "o'b"},
		LegacyEnd:             DefaultLegacyEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, `select * from t.credit where x in ('a', 'a', 'o''b') and d > date('2024-12-31')`, query)
}
