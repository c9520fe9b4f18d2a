package html

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacsift/internal/resource"
	"iacsift/internal/rules"
	"iacsift/internal/verdict"
)

func TestRender(t *testing.T) {
	verdicts := []verdict.Verdict{
		{
			ResourceName: "safe",
			ResourceKind: resource.KindStorageBucket,
			ResourceType: "aws_s3_bucket",
			RiskLabel:    verdict.Safe,
			RiskScore:    0.1,
			Metadata:     verdict.Metadata{ModelStatus: verdict.ModelDisabled},
		},
		{
			ResourceName: "admin",
			ResourceKind: resource.KindNetworkRuleSet,
			ResourceType: "aws_security_group",
			RiskLabel:    verdict.Risky,
			RiskScore:    0.97,
			Findings: []rules.Finding{{
				RuleID:   "IAC-NET-001",
				Severity: rules.Critical,
				Message:  "Port(s) 22 reachable from 0.0.0.0/0 <script>",
			}},
			Metadata: verdict.Metadata{ModelStatus: verdict.ModelTimeout},
		},
	}
	meta := Meta{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Version:     "1.0.0",
		Files:       []string{"a.tf", "b.tf"},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, meta, verdict.Summarize(verdicts), verdicts))
	page := buf.String()

	assert.Contains(t, page, "run-1")
	assert.Contains(t, page, "2024-01-02 03:04:05 UTC")
	assert.Contains(t, page, "a.tf, b.tf")
	assert.Contains(t, page, "IAC-NET-001")
	assert.NotContains(t, page, "0.0.0.0/0 <script>", "messages are escaped")
	assert.NotContains(t, page, "Skipped files")

	// riskiest first
	assert.Less(t, strings.Index(page, "aws_security_group.admin"), strings.Index(page, "aws_s3_bucket.safe"))
}

func TestProcessVerdicts(t *testing.T) {
	model := 0.4
	data := processVerdicts([]verdict.Verdict{
		{ResourceName: "a", ResourceKind: resource.KindStorageBucket, RiskLabel: verdict.Risky, RiskScore: 0.6, ModelScore: &model},
		{ResourceName: "b", ResourceKind: resource.KindStorageBucket, RiskLabel: verdict.Safe, RiskScore: 0.2},
		{ResourceName: "c", ResourceKind: resource.KindManagedDatabase, RiskLabel: verdict.Safe, RiskScore: 0.9},
	})

	require.Len(t, data.Resources, 3)
	assert.Equal(t, "c", data.Resources[0].ID)
	assert.Equal(t, "0.40", data.Resources[1].ModelScore)
	assert.Equal(t, "n/a", data.Resources[2].ModelScore)

	require.Len(t, data.KindCounts, 2)
	assert.Equal(t, KindCount{Kind: string(resource.KindManagedDatabase), Total: 1}, data.KindCounts[0])
	assert.Equal(t, KindCount{Kind: string(resource.KindStorageBucket), Total: 2, Risky: 1}, data.KindCounts[1])
}
