package remote_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rpggio/hq/internal/remote"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLookup_Unknown(t *testing.T) {
	_, err := remote.Lookup("nope")
	require.ErrorIs(t, err, remote.ErrUnknownCollection)
}

func TestValidateQuery(t *testing.T) {
	tbl, err := remote.Lookup(remote.Projects)
	require.NoError(t, err)

	q := remote.Query{}.Where("owner_id", "u1").OrderBy("created_at", true).
		With("stages", remote.ProjectStages, "project_id")
	require.NoError(t, tbl.ValidateQuery(q))

	bad := remote.Query{}.Where("drop table", 1)
	require.ErrorIs(t, tbl.ValidateQuery(bad), remote.ErrUnknownField)

	badChild := remote.Query{}.With("stages", remote.ProjectStages, "owner_id")
	require.ErrorIs(t, tbl.ValidateQuery(badChild), remote.ErrUnknownField)
}

func TestQueryBuildersDoNotAlias(t *testing.T) {
	base := remote.Query{}.Where("owner_id", "u1")
	a := base.Where("pinned", true)
	b := base.Where("pinned", false)
	require.Len(t, base.Filters, 1)
	require.Equal(t, true, a.Filters[1].Value)
	require.Equal(t, false, b.Filters[1].Value)
}

func TestStamp(t *testing.T) {
	tbl, err := remote.Lookup(remote.Thoughts)
	require.NoError(t, err)

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	row := tbl.Stamp(remote.Row{"content": "x"}, now)
	require.NotEmpty(t, row["id"])
	require.Equal(t, now, row["created_at"])

	kept := tbl.Stamp(remote.Row{"id": "fixed"}, now)
	require.Equal(t, "fixed", kept["id"])
}

func TestNormalize(t *testing.T) {
	tbl, err := remote.Lookup(remote.Transactions)
	require.NoError(t, err)

	row, err := tbl.Normalize(remote.Row{
		"amount": "1000.50",
		"date":   "2024-03-05T00:00:00Z",
		"type":   "expense",
	})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1000.5").Equal(row["amount"].(decimal.Decimal)))
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), row["date"])

	_, err = tbl.Normalize(remote.Row{"amount": "abc"})
	require.ErrorIs(t, err, remote.ErrInvalidInput)

	_, err = tbl.Normalize(remote.Row{"unknown": 1})
	require.ErrorIs(t, err, remote.ErrUnknownField)
}

func TestRestore(t *testing.T) {
	tbl, err := remote.Lookup(remote.Thoughts)
	require.NoError(t, err)

	row, err := tbl.Restore(remote.Row{
		"tags":       `["a","b"]`,
		"pinned":     int64(1),
		"created_at": "2024-03-05T10:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, row["tags"])
	require.Equal(t, true, row["pinned"])
	require.IsType(t, time.Time{}, row["created_at"])
}

func TestNormalizeJSON(t *testing.T) {
	tbl, err := remote.Lookup(remote.Thoughts)
	require.NoError(t, err)

	row, err := tbl.Normalize(remote.Row{"tags": []string{"x", "x"}})
	require.NoError(t, err)
	require.JSONEq(t, `["x","x"]`, string(row["tags"].(json.RawMessage)))
}
