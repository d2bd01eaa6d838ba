package cluster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateClusterJSONDerivesNodeHosts(t *testing.T) {
	m := NewManager("entrance.verseengine.cloud", "CellServer", "dev", "ap-northeast-1", S3Path{}, CloudflareAuth{})
	js, err := m.createClusterJSON([]BackendNode{{PublicIP: "1.2.3.4"}})
	require.NoError(t, err)

	var data NodeListData
	require.NoError(t, json.Unmarshal(js, &data))
	require.Len(t, data.Nodes, 1)
	require.Equal(t, "entrance-76f67dfc1573f0e7.verseengine.cloud", data.Nodes[0].Host)
}
