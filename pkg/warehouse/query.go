package warehouse

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"

	"github.com/maistodos/credit-forecast/pkg/presto"
)

const (
	// Result column names every query template must produce.
	DateColumn  = "dt_merge"
	ValueColumn = "vlr_total"

	DefaultTable                = "pdgt_maistodos_credito.fl_report_credito_refactor"
	DefaultLenderColumn         = "financiadoras"
	DefaultAlternateValueLender = "parcelex"
	DefaultFunnelStage          = 7
)

var (
	DefaultLegacyEnd    = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	DefaultCurrentStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Grouping is the granularity a query aggregates values at.
type Grouping string

const (
	GroupNone   Grouping = "none"
	GroupLender Grouping = "lender"
)

func (g Grouping) Validate() error {
	switch g {
	case GroupNone, GroupLender:
		return nil
	default:
		return fmt.Errorf("invalid grouping %q, must be %q or %q", g, GroupNone, GroupLender)
	}
}

// QueryTemplateContext is the data query templates are executed with.
type QueryTemplateContext struct {
	Table        string
	Grouping     Grouping
	LenderColumn string
	FunnelStage  int
	// AlternateValueLender has its value taken from vlr_requerido instead
	// of vlr_total.
	AlternateValueLender   string
	LegacyExcludedLenders  []string
	CurrentExcludedLenders []string
	// LegacyEnd is the last day of the legacy funnel, CurrentStart the
	// first day of the current one.
	LegacyEnd    time.Time
	CurrentStart time.Time
}

// Grouped reports whether results are split per lender.
func (c QueryTemplateContext) Grouped() bool {
	return c.Grouping == GroupLender
}

// DefaultQueryTemplate unions four slices of the credit report: the legacy
// and current funnels, each split between lenders measured by vlr_total and
// the alternate value lender measured by vlr_requerido. The slices are then
// summed per day, and per lender when grouped.
const DefaultQueryTemplate = `
{|- define "slice" -|}
    {| .Name |} as (
        select
            dt_merge,
            {|- if .Root.Grouped |}
            {| .Root.LenderColumn |},
            {|- end |}
            sum({| .ValueColumn |}) vlr_total
        from
            {| .Root.Table |}
        where
            id_funil_fluxo {| .StageOp |} {| .Root.FunnelStage |}
            and {| if .Lender -|}
                {| .Root.LenderColumn |} = {| quoteString .Lender |}
            {|- else if .Excluded -|}
                {| .Root.LenderColumn |} not in ({| sqlStringList .Excluded |})
            {|- else -|}
                true
            {|- end |}
            and {| .Period |}
        group by
            {| if .Root.Grouped |}1, 2{| else |}1{| end |}
    )
{|- end -|}
with
{| template "slice" (dict "Root" . "Name" "legacy_standard" "ValueColumn" "vlr_total" "StageOp" ">=" "Excluded" .LegacyExcludedLenders "Period" (printf "dt_merge <= %s" (prestoDate .LegacyEnd))) |},
{| template "slice" (dict "Root" . "Name" "legacy_alternate" "ValueColumn" "vlr_requerido" "StageOp" ">=" "Lender" .AlternateValueLender "Period" (printf "dt_merge <= %s" (prestoDate .LegacyEnd))) |},
{| template "slice" (dict "Root" . "Name" "current_standard" "ValueColumn" "vlr_total" "StageOp" "=" "Excluded" .CurrentExcludedLenders "Period" (printf "dt_merge >= %s" (prestoDate .CurrentStart))) |},
{| template "slice" (dict "Root" . "Name" "current_alternate" "ValueColumn" "vlr_requerido" "StageOp" "=" "Lender" .AlternateValueLender "Period" (printf "dt_merge >= %s" (prestoDate .CurrentStart))) |},
    slices as (
        select * from legacy_standard
        union all
        select * from legacy_alternate
        union all
        select * from current_standard
        union all
        select * from current_alternate
    )
select
    dt_merge,
    {|- if .Grouped |}
    {| .LenderColumn |},
    {|- end |}
    sum(vlr_total) as vlr_total
from slices
group by
    {| if .Grouped |}1, 2{| else |}1{| end |}
order by
    1
`

func newQueryTemplate(queryTemplate string) (*template.Template, error) {
	var templateFuncMap = template.FuncMap{
		"prestoDate":    presto.Date,
		"sqlStringList": presto.StringList,
		"quoteString":   presto.QuoteString,
	}

	tmpl, err := template.New("credit-history-query").Delims("{|", "|}").Funcs(sprig.TxtFuncMap()).Funcs(templateFuncMap).Parse(queryTemplate)
	if err != nil {
		return nil, fmt.Errorf("error parsing query: %w", err)
	}
	return tmpl, nil
}

// RenderQuery executes queryTemplate against tmplCtx.
func RenderQuery(queryTemplate string, tmplCtx QueryTemplateContext) (string, error) {
	tmpl, err := newQueryTemplate(queryTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tmplCtx); err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return buf.String(), nil
}
