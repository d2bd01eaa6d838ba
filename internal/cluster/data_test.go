package cluster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
)

func TestNodeListDataJSONShape(t *testing.T) {
	data := NodeListData{Nodes: []clusterhash.NodeListNode{
		{Host: "entrance-8247f23c98f7f944.verseengine.cloud"},
		{Host: "entrance-0000000000000000.verseengine.cloud"},
	}}
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"nodes":[{"host":"entrance-8247f23c98f7f944.verseengine.cloud"},{"host":"entrance-0000000000000000.verseengine.cloud"}]}`,
		string(b))

	var round NodeListData
	require.NoError(t, json.Unmarshal(b, &round))
	require.Equal(t, data, round)
}
