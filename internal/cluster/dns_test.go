package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRecords(t *testing.T) {
	records := []aRecord{
		{ID: "1", Name: "entrance.verseengine.cloud", IP: "1.2.3.4"},
		{ID: "2", Name: "entrance-1111111111111111.verseengine.cloud", IP: "1.2.3.4"},
		{ID: "3", Name: "entrance-1111111111111112.verseengine.cloud", IP: "1.2.3.4"},
		{ID: "4", Name: "entrance-1.verseengine.cloud", IP: "1.2.3.4"},
	}
	groups := splitRecords(records, "entrance", "verseengine.cloud", "entrance.verseengine.cloud")
	require.Len(t, groups.clusterRecords, 1)
	require.Equal(t, "1", groups.clusterRecords[0].ID)
	require.Len(t, groups.singleRecords, 2)
	require.Equal(t, "2", groups.singleRecords[0].ID)
	require.Equal(t, "3", groups.singleRecords[1].ID)
}

func TestSplitRecordsNoPrefix(t *testing.T) {
	records := []aRecord{
		{ID: "1", Name: "1111111111111111.verseengine.cloud", IP: "1.2.3.4"},
		{ID: "2", Name: "too-long-1111111111111111.verseengine.cloud", IP: "1.2.3.4"},
	}
	groups := splitRecords(records, "", "verseengine.cloud", "verseengine.cloud")
	require.Len(t, groups.singleRecords, 1)
	require.Equal(t, "1", groups.singleRecords[0].ID)
}

func TestDiffRecordsAllAdds(t *testing.T) {
	d := diffRecords(nil, []string{"1.1.1.0"})
	require.Empty(t, d.dels)
	require.Equal(t, []string{"1.1.1.0"}, d.adds)
}

func TestDiffRecordsAllDeletes(t *testing.T) {
	records := []aRecord{
		{ID: "1", Name: "entrance.verseengine.cloud", IP: "1.1.1.0"},
		{ID: "2", Name: "entrance.verseengine.cloud", IP: "1.1.1.1"},
	}
	d := diffRecords(records, nil)
	require.Empty(t, d.adds)
	require.Len(t, d.dels, 2)
}

func TestDiffRecordsMixed(t *testing.T) {
	records := []aRecord{
		{ID: "1", Name: "entrance.verseengine.cloud", IP: "1.1.1.0"},
		{ID: "2", Name: "entrance.verseengine.cloud", IP: "1.1.1.1"},
	}
	d := diffRecords(records, []string{"1.1.1.1", "1.1.1.2"})
	require.Equal(t, []string{"1.1.1.2"}, d.adds)
	require.Len(t, d.dels, 1)
	require.Equal(t, "1", d.dels[0].ID)
}
