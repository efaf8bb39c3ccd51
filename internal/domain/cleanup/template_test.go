package cleanup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsweeper/dbsweeper/internal/domain/cleanup"
	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
)

var intervalEnd = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

func TestRender(t *testing.T) {
	params := map[string]string{
		"table_name": "validation_runs",
		"batch_size": "1000",
	}
	template := "DELETE FROM {{ table_name }} WHERE created_at < '{{ data_interval_end }}' LIMIT {{ batch_size }}"

	sql, err := cleanup.Render(template, params, intervalEnd)
	require.NoError(t, err)
	assert.Equal(t,
		"DELETE FROM validation_runs WHERE created_at < '2024-03-20 00:00:00' LIMIT 1000",
		sql)
}

func TestRender_NoParams(t *testing.T) {
	sql, err := cleanup.Render("end: {{ data_interval_end }}", nil, intervalEnd)
	require.NoError(t, err)
	assert.Equal(t, "end: 2024-03-20 00:00:00", sql)
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	sql, err := cleanup.Render("{{table_name}} {{  table_name  }}", map[string]string{"table_name": "t"}, intervalEnd)
	require.NoError(t, err)
	assert.Equal(t, "t t", sql)
}

func TestRender_UndefinedParameter(t *testing.T) {
	_, err := cleanup.Render("DELETE FROM {{ table_name }} WHERE x < {{ cutoff }}", nil, intervalEnd)
	require.Error(t, err)
	assert.True(t, apperrors.IsRender(err))
	assert.Contains(t, err.Error(), "cutoff")
	assert.Contains(t, err.Error(), "table_name")
}

func TestRender_ConvertsIntervalEndToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	local := time.Date(2024, 3, 20, 8, 0, 0, 0, loc)

	sql, err := cleanup.Render("{{ data_interval_end }}", nil, local)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20 00:00:00", sql)
}
