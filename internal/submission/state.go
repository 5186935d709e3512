// Package submission 确认流程的状态机：Waiting → Pending → Success | Rejected
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/monitor"
)

type State string

const (
	Waiting  State = "waiting"
	Pending  State = "pending"
	Success  State = "success"
	Rejected State = "rejected"
)

func (s State) Terminal() bool {
	return s == Success || s == Rejected
}

type Action string

const (
	ActionConfirm Action = "confirm"
	ActionReject  Action = "reject"
	ActionClose   Action = "close"
)

// GenericFailure 无法给出具体原因时展示的文案
const GenericFailure = "Something went wrong"

// Executor 用户确认后执行的操作 (签名 / 提交 / 共享地址等)
type Executor func(ctx context.Context) (protocol.Result, error)

// ResultCodeError ledger 返回了非成功的结果码
type ResultCodeError struct {
	Code string
}

func (e *ResultCodeError) Error() string {
	return "transaction failed with " + e.Code
}

// Hook 在状态变化时回调，回调时不持有锁
type Hook func(c *Confirmation)

type Confirmation struct {
	ID           string                  `json:"id"`
	Type         protocol.MessageType    `json:"type"`
	Connection   protocol.ConnectionInfo `json:"connection"`
	Transactions []txbuilder.Transaction `json:"transactions,omitempty"`
	Details      json.RawMessage         `json:"details,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`

	exec       Executor
	onTerminal Hook
	onClose    Hook
	now        func() time.Time

	mu       sync.Mutex
	state    State
	result   protocol.Result
	reason   string
	code     string
	closed   bool
	closedAt time.Time
	done     chan struct{}
}

type Option func(*Confirmation)

func WithTransactions(txs ...txbuilder.Transaction) Option {
	return func(c *Confirmation) { c.Transactions = txs }
}

// WithDetails 确认页展示用的原始请求参数
func WithDetails(raw json.RawMessage) Option {
	return func(c *Confirmation) { c.Details = raw }
}

// WithOnTerminal 进入 Success / Rejected 时调用一次
func WithOnTerminal(h Hook) Option {
	return func(c *Confirmation) { c.onTerminal = h }
}

// WithOnClose Close 时调用一次，用来把最终结果发回页面
func WithOnClose(h Hook) Option {
	return func(c *Confirmation) { c.onClose = h }
}

func WithClock(now func() time.Time) Option {
	return func(c *Confirmation) { c.now = now }
}

func New(id string, t protocol.MessageType, conn protocol.ConnectionInfo, exec Executor, opts ...Option) *Confirmation {
	c := &Confirmation{
		ID:         id,
		Type:       t,
		Connection: conn,
		exec:       exec,
		now:        time.Now,
		state:      Waiting,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.CreatedAt = c.now()
	return c
}

func (c *Confirmation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done 进入终态后关闭
func (c *Confirmation) Done() <-chan struct{} {
	return c.done
}

// Wait 等待终态
func (c *Confirmation) Wait(ctx context.Context) (State, error) {
	select {
	case <-c.done:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

func (c *Confirmation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Confirmation) closedBefore(t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed && c.closedAt.Before(t)
}

func notAllowed(a Action, s State) error {
	return errno.ErrActionNotAllowed.WithMessage(fmt.Sprintf("cannot %s a %s confirmation", a, s))
}

// Confirm 只能从 Waiting 调用。执行器在后台运行，不受调用方 ctx 取消影响
func (c *Confirmation) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Waiting {
		s := c.state
		c.mu.Unlock()
		return notAllowed(ActionConfirm, s)
	}
	c.state = Pending
	c.mu.Unlock()

	execCtx := context.WithoutCancel(ctx)
	go c.run(execCtx)
	return nil
}

func (c *Confirmation) run(ctx context.Context) {
	var (
		result protocol.Result
		err    error
	)
	if c.exec == nil {
		err = errors.New("no executor")
	} else {
		result, err = c.exec(ctx)
	}
	if err != nil {
		c.finish(Rejected, result, err)
		return
	}
	c.finish(Success, result, nil)
}

// Reject 用户拒绝，只能从 Waiting 调用
func (c *Confirmation) Reject() error {
	c.mu.Lock()
	if c.state != Waiting {
		s := c.state
		c.mu.Unlock()
		return notAllowed(ActionReject, s)
	}
	c.settleLocked(Rejected, protocol.Result{Rejected: true}, errno.ErrUserRejected)
	c.mu.Unlock()
	c.terminated(Rejected)
	return nil
}

func (c *Confirmation) finish(s State, result protocol.Result, err error) {
	c.mu.Lock()
	if c.state != Pending {
		c.mu.Unlock()
		return
	}
	c.settleLocked(s, result, err)
	c.mu.Unlock()
	c.terminated(s)
}

func (c *Confirmation) settleLocked(s State, result protocol.Result, err error) {
	c.state = s
	c.result = result
	if err != nil {
		c.reason, c.code = explain(err)
		if !result.Rejected {
			c.result.Error = c.reason
		}
	}
}

func (c *Confirmation) terminated(s State) {
	close(c.done)
	monitor.ObserveConfirmation(string(c.Type), string(s))
	if c.onTerminal != nil {
		c.onTerminal(c)
	}
}

// explain 失败原因：ledger 结果码、errno 文案，其他情况用通用文案
func explain(err error) (reason, code string) {
	var rc *ResultCodeError
	if errors.As(err, &rc) {
		return rc.Error(), rc.Code
	}
	var e errno.Errno
	if errors.As(err, &e) {
		return e.Message, ""
	}
	return GenericFailure, ""
}

// Close 只能在终态调用，关闭钩子只触发一次
func (c *Confirmation) Close() error {
	c.mu.Lock()
	if !c.state.Terminal() {
		s := c.state
		c.mu.Unlock()
		return notAllowed(ActionClose, s)
	}
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closedAt = c.now()
	c.mu.Unlock()

	if c.onClose != nil {
		c.onClose(c)
	}
	return nil
}

// Actions 当前可用的操作
func (c *Confirmation) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == Waiting:
		return []Action{ActionConfirm, ActionReject}
	case c.state.Terminal() && !c.closed:
		return []Action{ActionClose}
	}
	return []Action{}
}

// Outcome 发回页面的结果
func (c *Confirmation) Outcome() protocol.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Reason 失败原因和 ledger 结果码
func (c *Confirmation) Reason() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.code
}
