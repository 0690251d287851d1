package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"bridgeus/internal/handlers/api/v1/apitest"
	"bridgeus/internal/models"
	"bridgeus/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedIsRepeatable(t *testing.T) {
	sc := apitest.NewServices(t)
	ctx := context.Background()
	seedTasks = 3
	seedPassword = "demo-password"

	first, err := seed(ctx, sc, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, first.TaskIDs, 3)

	company, err := sc.UserService.GetCompanyProfile(ctx, first.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, 3, company.PublishedTaskCount)

	tasks, err := sc.TaskService.ListVisibleTasks(ctx, first.StudentID, models.TaskFilter{Category: models.CategoryAll})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	// a second run signs in to the existing accounts
	second, err := seed(ctx, sc, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, first.CompanyID, second.CompanyID)
	assert.Equal(t, first.StudentID, second.StudentID)
}

func TestRender(t *testing.T) {
	result := &services.ReconcileResult{Kind: "task", ID: "t1", Field: "applicantCount", Before: 3, After: 2, Changed: true}

	tests := []struct {
		format string
		want   string
	}{
		{"text", "repaired"},
		{"json", `"applicantCount"`},
		{"yaml", "kind: task"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			output = tt.format
			defer func() { output = "text" }()

			var buf bytes.Buffer
			require.NoError(t, render(&buf, result, func() string { return formatResult(result) }))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	output = "xml"
	defer func() { output = "text" }()
	assert.Error(t, render(&bytes.Buffer{}, result, func() string { return "" }))
}

func TestFormatReportSkipsUnchanged(t *testing.T) {
	report := &services.ReconcileReport{
		Tasks: []*services.ReconcileResult{
			{Kind: "task", ID: "t1", Field: "applicantCount", Before: 1, After: 1},
			{Kind: "task", ID: "t2", Field: "applicantCount", Before: 4, After: 2, Changed: true},
		},
		Repaired: 1,
	}

	text := formatReport(report)
	assert.NotContains(t, text, "t1")
	assert.Contains(t, text, "t2")
	assert.True(t, strings.HasSuffix(text, "repaired 1 in 0s\n"), text)
}
