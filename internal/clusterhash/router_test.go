package clusterhash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterNoNodeList(t *testing.T) {
	r := NewRouter("node0", "all")
	require.Nil(t, r.NodeList())
	require.False(t, r.IsMyWork("a"))
	require.Equal(t, WorkerNothing, r.GetWorker("a").Kind)
	require.True(t, r.CanRedirect("all"))
	require.False(t, r.CanRedirect("node0"))
}

func TestRouterDistributesAllRequestsAcrossNodes(t *testing.T) {
	const numNodes = 10
	const numRequests = 300

	nodes := make([]NodeListNode, numNodes)
	routers := make([]*Router, numNodes)
	for i := 0; i < numNodes; i++ {
		host := fmt.Sprintf("node%d", i)
		nodes[i] = NodeListNode{Host: host}
		routers[i] = NewRouter(host, "all")
	}
	for _, r := range routers {
		r.SetNodeList(nodes)
	}

	counts := make([]int, numNodes)
	total := 0
	for i := 0; i < numRequests; i++ {
		url := fmt.Sprintf("%d", i)
		for ci, r := range routers {
			if r.IsMyWork(url) {
				total++
				counts[ci]++
			}
		}
	}
	require.Equal(t, numRequests, total)
	for _, c := range counts {
		require.Greater(t, c, 10)
	}
}

func TestRouterGetWorkerOther(t *testing.T) {
	nodes := []NodeListNode{{Host: "node0"}, {Host: "node1"}}
	r := NewRouter("node0", "all")
	r.SetNodeList(nodes)

	var sawMe, sawOther bool
	for i := 0; i < 50; i++ {
		w := r.GetWorker(fmt.Sprintf("url-%d", i))
		switch w.Kind {
		case WorkerMe:
			sawMe = true
		case WorkerOther:
			sawOther = true
			require.Equal(t, "node1", w.Host)
		}
	}
	require.True(t, sawMe)
	require.True(t, sawOther)
}
