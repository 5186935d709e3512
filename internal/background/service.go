// Package background 对应扩展的后台：消费 runtime 请求并立即 ack，
// 为需要用户同意的请求创建确认，确认关闭后把结果作为 RECEIVE_* 事件发回 relay。
package background

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gemwallet/internal/fee"
	"gemwallet/internal/ledger"
	"gemwallet/internal/network"
	"gemwallet/internal/protocol"
	"gemwallet/internal/runtime"
	"gemwallet/internal/submission"
	"gemwallet/internal/telemetry"
	"gemwallet/internal/txbuilder"
	"gemwallet/internal/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const hookTimeout = 10 * time.Second

// Emitter background -> relay，*runtime.Channel 实现了它
type Emitter interface {
	Emit(ctx context.Context, msg protocol.RuntimeMessage) error
}

type Wallets interface {
	Current() (*wallet.Account, error)
}

type Networks interface {
	Current() network.Network
}

// Ledger 执行器和手续费检查用到的 ledger 能力，*ledger.Client 实现了它
type Ledger interface {
	fee.Ledger
	NetworkID(ctx context.Context) (uint32, error)
	GetNFTs(ctx context.Context, address string, limit uint32, marker json.RawMessage) (*protocol.NFTPage, error)
	Autofill(ctx context.Context, tx txbuilder.Transaction) (txbuilder.Transaction, error)
	SignAndSubmit(ctx context.Context, tx txbuilder.Transaction, signer ledger.Signer) (*txbuilder.Signed, *ledger.SubmitResult, error)
	SubmitAndWait(ctx context.Context, tx txbuilder.Transaction, signer ledger.Signer) (*ledger.TxResult, error)
}

// LedgerSource 返回某个网络的 ledger 客户端
type LedgerSource func(n network.Network) Ledger

type Service struct {
	emitter  Emitter
	wallets  Wallets
	networks Networks
	ledgers  LedgerSource
	registry *submission.Registry
	sink     telemetry.Sink
	log      *zap.Logger
	newID    func() string

	mu      sync.Mutex
	pending map[string]*entry
}

type Option func(*Service)

// WithSink 终态确认的记录方，默认只写日志
func WithSink(s telemetry.Sink) Option {
	return func(svc *Service) {
		if s != nil {
			svc.sink = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.log = l
		}
	}
}

func New(emitter Emitter, wallets Wallets, networks Networks, ledgers LedgerSource, registry *submission.Registry, opts ...Option) *Service {
	s := &Service{
		emitter:  emitter,
		wallets:  wallets,
		networks: networks,
		ledgers:  ledgers,
		registry: registry,
		log:      zap.NewNop(),
		newID:    uuid.NewString,
		pending:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = telemetry.NewLogSink(s.log)
	}
	return s
}

// Server runtime 请求的来源，*runtime.Channel 实现了它
type Server interface {
	Serve(ctx context.Context, handler runtime.Handler) error
}

// Handle 处理一条 runtime 请求。不做网络 IO，可以在消费循环里同步调用
func (s *Service) Handle(ctx context.Context, msg protocol.RuntimeMessage) {
	if msg.App != protocol.AppID {
		return
	}
	log := s.log.With(zap.String("type", string(msg.Type)), zap.String("id", msg.ID))

	receive, ok := protocol.ReceiveType(msg.Type)
	if !ok {
		s.ack(ctx, log, msg.ID, &protocol.Result{Error: "Unsupported request type"})
		return
	}
	if msg.Type == protocol.RequestNetwork {
		info := s.networks.Current().Info()
		s.ack(ctx, log, msg.ID, &protocol.Result{Network: &info})
		return
	}

	p, err := s.prepare(msg)
	if err != nil {
		log.Info("请求未通过校验", zap.Error(err))
		s.ack(ctx, log, msg.ID, &protocol.Result{Error: userMessage(err)})
		return
	}

	var conn protocol.ConnectionInfo
	if msg.Connection != nil {
		conn = *msg.Connection
	}
	e := &entry{account: p.account, txs: p.txs, gated: p.gated, watcher: fee.NewWatcher(log)}
	c := submission.New(s.newID(), msg.Type, conn,
		func(ctx context.Context) (protocol.Result, error) {
			result, err := p.run(ctx, e)
			if err != nil {
				log.Warn("确认执行失败", zap.String("confirmation", e.conf.ID), zap.Error(err))
			}
			return result, err
		},
		submission.WithTransactions(p.txs...),
		submission.WithDetails(msg.Payload),
		submission.WithOnTerminal(s.record(e, log)),
		submission.WithOnClose(s.complete(msg.ID, receive, log)),
	)
	e.conf = c

	s.mu.Lock()
	s.pending[c.ID] = e
	s.mu.Unlock()
	s.registry.Add(c)

	log.Info("等待用户确认", zap.String("confirmation", c.ID), zap.String("origin", conn.URL))
	s.ack(ctx, log, msg.ID, nil)
}

// Start 在 runtime 通道上开始消费请求
func (s *Service) Start(ctx context.Context, srv Server) error {
	return srv.Serve(ctx, s.Handle)
}

func (s *Service) ack(ctx context.Context, log *zap.Logger, id string, result *protocol.Result) {
	if err := s.emitter.Emit(ctx, protocol.NewAck(id, result)); err != nil {
		log.Error("ack 发送失败", zap.Error(err))
	}
}

// complete 关闭确认时把结果发回 relay
func (s *Service) complete(runtimeID string, receive protocol.MessageType, log *zap.Logger) submission.Hook {
	return func(c *submission.Confirmation) {
		s.mu.Lock()
		delete(s.pending, c.ID)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := s.emitter.Emit(ctx, protocol.NewEvent(receive, runtimeID, c.Outcome())); err != nil {
			log.Error("完成事件发送失败", zap.String("confirmation", c.ID), zap.Error(err))
			return
		}
		log.Info("确认已关闭", zap.String("confirmation", c.ID), zap.String("state", string(c.State())))
	}
}

// record 终态确认交给 telemetry
func (s *Service) record(e *entry, log *zap.Logger) submission.Hook {
	return func(c *submission.Confirmation) {
		out := c.Outcome()
		reason, code := c.Reason()
		ev := telemetry.Event{
			ConfirmationID: c.ID,
			Type:           string(c.Type),
			State:          string(c.State()),
			Account:        e.account.Address(),
			Network:        s.networks.Current().Name,
			Origin:         c.Connection.URL,
			Hash:           out.Hash,
			ResultCode:     code,
			Error:          reason,
			At:             time.Now(),
		}
		if snap := e.watcher.Current(); snap != nil {
			ev.FeeDrops = snap.EstimatedFeesDrops
		}
		if len(c.Transactions) > 0 {
			if raw, err := json.Marshal(c.Transactions); err == nil {
				ev.Transactions = raw
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := s.sink.Capture(ctx, ev); err != nil {
			log.Warn("确认记录失败", zap.String("confirmation", c.ID), zap.Error(err))
		}
	}
}

func (s *Service) ledger() Ledger {
	return s.ledgers(s.networks.Current())
}
