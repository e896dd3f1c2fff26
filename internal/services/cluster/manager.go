package cluster

import (
	"context"
	"sync"
	"time"

	consul "github.com/hashicorp/consul/api"

	"relaylobby/internal/utils"
)

const monitorInterval = 10 * time.Second

// ConsulManager keeps a working Consul client, moving to another agent from
// its list when the current one loses the cluster leader.
type ConsulManager struct {
	addrs       string
	currentAddr string
	client      *consul.Client
	mu          sync.RWMutex

	onReconnect []func()
}

// NewConsulManager connects to the first healthy agent and keeps watching it
// until ctx is cancelled.
func NewConsulManager(ctx context.Context, addrs string) (*ConsulManager, error) {
	m := &ConsulManager{addrs: addrs}
	if err := m.reconnect(); err != nil {
		return nil, err
	}
	go m.monitor(ctx)
	return m, nil
}

// OnReconnect registers fn to run after every successful switch of agent.
func (m *ConsulManager) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// GetClient returns the current client, nil while no agent is reachable.
func (m *ConsulManager) GetClient() *consul.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

func (m *ConsulManager) Address() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentAddr
}

func (m *ConsulManager) reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, addr, err := NewConsulClient(m.addrs)
	if err != nil {
		m.client = nil
		return err
	}
	changed := addr != m.currentAddr
	m.client = client
	m.currentAddr = addr

	if changed {
		utils.LogInfo("[Consul] connected to agent %s", addr)
		for _, fn := range m.onReconnect {
			go fn()
		}
	}
	return nil
}

func (m *ConsulManager) monitor(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		client := m.GetClient()
		if client == nil {
			if err := m.reconnect(); err != nil {
				utils.LogWarning("[Consul] still no agent: %v", err)
			}
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			utils.LogWarning("[Consul] agent %s failed the leader check: %v", m.Address(), err)
			if err := m.reconnect(); err != nil {
				utils.LogWarning("[Consul] %v", err)
			}
		}
	}
}
