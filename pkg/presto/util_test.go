package presto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDate(t *testing.T) {
	assert.Equal(t, "date('2024-12-31')", Date(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestStringList(t *testing.T) {
	tests := map[string]struct {
		values   []string
		expected string
	}{
		"empty list": {
			expected: "",
		},
		"single value": {
			values:   []string{"dr cash parcelex"},
			expected: "'dr cash parcelex'",
		},
		"duplicates are kept": {
			values:   []string{"dr cash parcelex", "dr cash parcelex", "upp"},
			expected: "'dr cash parcelex', 'dr cash parcelex', 'upp'",
		},
		"quotes are escaped": {
			values:   []string{"d'or"},
			expected: "'d''or'",
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StringList(tt.values))
		})
	}
}

func TestConnConfigDSN(t *testing.T) {
	tests := map[string]struct {
		cfg      ConnConfig
		expected string
	}{
		"defaults the user": {
			cfg:      ConnConfig{Host: "presto:8080"},
			expected: "http://credit-forecast@presto:8080",
		},
		"catalog and schema": {
			cfg:      ConnConfig{Host: "presto:8080", User: "etl", Catalog: "hive", Schema: "pdgt_maistodos_credito"},
			expected: "http://etl@presto:8080?catalog=hive&schema=pdgt_maistodos_credito",
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.DSN())
		})
	}
}
