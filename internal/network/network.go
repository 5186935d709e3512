// Package network 预置网络和当前网络选择
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gemwallet/internal/protocol"
	"gemwallet/internal/storage"
)

const (
	ChainXRPL  = "XRPL"
	ChainXahau = "XAHAU"
)

const (
	Mainnet      = "mainnet"
	Testnet      = "testnet"
	Devnet       = "devnet"
	XahauMainnet = "xahau-mainnet"
	XahauTestnet = "xahau-testnet"
	Custom       = "custom"
)

type Network struct {
	Name      string `json:"name"`
	Chain     string `json:"chain"`
	Label     string `json:"label"`
	Websocket string `json:"websocket"`
	RPC       string `json:"rpc"`
	NetworkID uint32 `json:"network_id"`
}

// Info REQUEST_NETWORK 返回给页面的内容
func (n Network) Info() protocol.NetworkInfo {
	return protocol.NetworkInfo{Chain: n.Chain, Network: n.Label, Websocket: n.Websocket, NetworkID: n.NetworkID}
}

var presets = []Network{
	{Name: Mainnet, Chain: ChainXRPL, Label: "Mainnet", Websocket: "wss://xrplcluster.com", RPC: "https://xrplcluster.com", NetworkID: 0},
	{Name: Testnet, Chain: ChainXRPL, Label: "Testnet", Websocket: "wss://s.altnet.rippletest.net:51233", RPC: "https://s.altnet.rippletest.net:51234", NetworkID: 1},
	{Name: Devnet, Chain: ChainXRPL, Label: "Devnet", Websocket: "wss://s.devnet.rippletest.net:51233", RPC: "https://s.devnet.rippletest.net:51234", NetworkID: 2},
	{Name: XahauMainnet, Chain: ChainXahau, Label: "Mainnet", Websocket: "wss://xahau.network", RPC: "https://xahau.network", NetworkID: 21337},
	{Name: XahauTestnet, Chain: ChainXahau, Label: "Testnet", Websocket: "wss://xahau-test.net", RPC: "https://xahau-test.net", NetworkID: 21338},
}

var ErrUnknownNetwork = errors.New("network: unknown network")

// Presets 预置网络 (不含 custom)
func Presets() []Network {
	return append([]Network(nil), presets...)
}

// Lookup 按名字查找预置网络；custom 需要给出节点地址
func Lookup(name, customURL string) (Network, error) {
	if name == Custom {
		if customURL == "" {
			return Network{}, fmt.Errorf("%w: custom network needs a node url", ErrUnknownNetwork)
		}
		return Network{Name: Custom, Chain: ChainXRPL, Label: "Custom", Websocket: customURL, RPC: customURL}, nil
	}
	for _, n := range presets {
		if n.Name == name {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}

type selection struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Store 当前网络，选择结果以明文写在 storage.KeyNetwork 下
type Store struct {
	kv storage.Store

	mu       sync.RWMutex
	current  Network
	watchers []func(Network)
}

// NewStore 读取已保存的选择，没有时使用 defaultName
func NewStore(ctx context.Context, kv storage.Store, defaultName, customURL string) (*Store, error) {
	sel := selection{Name: defaultName, URL: customURL}
	raw, err := kv.Get(ctx, storage.KeyNetwork)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &sel); err != nil {
			return nil, fmt.Errorf("network: decode selection: %w", err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	n, err := Lookup(sel.Name, sel.URL)
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv, current: n}, nil
}

func (s *Store) Current() Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange 网络切换后回调
func (s *Store) OnChange(fn func(Network)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Select 切换并持久化
func (s *Store) Select(ctx context.Context, name, customURL string) (Network, error) {
	n, err := Lookup(name, customURL)
	if err != nil {
		return Network{}, err
	}
	raw, err := json.Marshal(selection{Name: n.Name, URL: customURLOf(n)})
	if err != nil {
		return Network{}, err
	}
	if err := s.kv.Set(ctx, storage.KeyNetwork, raw); err != nil {
		return Network{}, err
	}

	s.mu.Lock()
	s.current = n
	watchers := make([]func(Network), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(n)
	}
	return n, nil
}

func customURLOf(n Network) string {
	if n.Name == Custom {
		return n.RPC
	}
	return ""
}
