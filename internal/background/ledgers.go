package background

import (
	"sync"

	"gemwallet/internal/ledger"
	"gemwallet/internal/network"
)

// Pool 按 RPC 地址复用 ledger 客户端，切换网络不会丢掉已缓存的储备参数
type Pool struct {
	opts []ledger.Option

	mu      sync.Mutex
	clients map[string]*ledger.Client
}

func NewPool(opts ...ledger.Option) *Pool {
	return &Pool{opts: opts, clients: make(map[string]*ledger.Client)}
}

func (p *Pool) Client(n network.Network) *ledger.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[n.RPC]
	if !ok {
		c = ledger.New(n.RPC, p.opts...)
		p.clients[n.RPC] = c
	}
	return c
}

// Source 作为 Service 的 LedgerSource
func (p *Pool) Source() LedgerSource {
	return func(n network.Network) Ledger {
		return p.Client(n)
	}
}
