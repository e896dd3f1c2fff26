package cluster

import (
	"fmt"

	consul "github.com/hashicorp/consul/api"

	"relaylobby/internal/utils"
)

// NewConsulClient tries each agent address in turn and returns a client for
// the first one that can see a cluster leader.
func NewConsulClient(addrs string) (*consul.Client, string, error) {
	for _, node := range utils.SplitList(addrs) {
		cfg := consul.DefaultConfig()
		cfg.Address = node

		client, err := consul.NewClient(cfg)
		if err != nil {
			utils.LogWarning("[Consul] could not build client for %s: %v", node, err)
			continue
		}

		if _, err := client.Status().Leader(); err != nil {
			utils.LogWarning("[Consul] %s failed the leader check: %v", node, err)
			continue
		}

		utils.LogDebug("[Consul] using agent %s", node)
		return client, node, nil
	}

	return nil, "", fmt.Errorf("no Consul agent available in %q", addrs)
}
