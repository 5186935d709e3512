package runtime

import (
	"context"
	"testing"
	"time"

	"gemwallet/internal/protocol"
	"gemwallet/internal/service/mq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := mq.NewMemoryBroker()
	relaySide := NewChannel(broker, "relay-1", nil)
	bgSide := NewChannel(broker, "bg-1", nil)
	require.NoError(t, relaySide.Start(ctx))

	require.NoError(t, bgSide.Serve(ctx, func(ctx context.Context, msg protocol.RuntimeMessage) {
		_ = bgSide.Emit(ctx, protocol.NewAck(msg.ID, nil))
		_ = bgSide.Emit(ctx, protocol.NewEvent(protocol.ReceiveAddress, msg.ID, protocol.Result{Address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"}))
	}))

	ack, cancelAck := relaySide.Once(protocol.RuntimeAck, "req-1")
	defer cancelAck()
	done, cancelDone := relaySide.Once(protocol.ReceiveAddress, "req-1")
	defer cancelDone()
	assert.Equal(t, 2, relaySide.Pending())

	require.NoError(t, relaySide.SendMessage(ctx, protocol.RuntimeMessage{Type: protocol.RequestAddress, ID: "req-1"}))

	select {
	case msg := <-ack:
		assert.Equal(t, "req-1", msg.ID)
		assert.Nil(t, msg.Result)
	case <-time.After(time.Second):
		t.Fatal("没有收到 ack")
	}
	select {
	case msg := <-done:
		require.NotNil(t, msg.Result)
		assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", msg.Result.Address)
	case <-time.After(time.Second):
		t.Fatal("没有收到完成事件")
	}
	assert.Equal(t, 0, relaySide.Pending(), "一次性监听投递后自动移除")
}

func TestChannel_IgnoresOtherIDsAndApps(t *testing.T) {
	ch := NewChannel(mq.NewMemoryBroker(), "relay", nil)
	got, cancel := ch.Once(protocol.ReceivePaymentHash, "mine")
	defer cancel()

	_ = ch.dispatch(&mq.Message{Payload: []byte(`{"app":"gem-wallet","type":"RECEIVE_PAYMENT_HASH","id":"other"}`)})
	_ = ch.dispatch(&mq.Message{Payload: []byte(`{"app":"evil","type":"RECEIVE_PAYMENT_HASH","id":"mine"}`)})
	_ = ch.dispatch(&mq.Message{Payload: []byte(`not json`)})

	select {
	case <-got:
		t.Fatal("不应收到不匹配的事件")
	default:
	}

	_ = ch.dispatch(&mq.Message{Payload: []byte(`{"app":"gem-wallet","type":"RECEIVE_PAYMENT_HASH","id":"mine","result":{"hash":"H"}}`)})
	_ = ch.dispatch(&mq.Message{Payload: []byte(`{"app":"gem-wallet","type":"RECEIVE_PAYMENT_HASH","id":"mine","result":{"hash":"SECOND"}}`)})

	msg := <-got
	assert.Equal(t, "H", msg.Result.Hash)
	assert.Len(t, got, 0, "同一 ID 只投递一次")
}

func TestChannel_CancelRemovesWaiter(t *testing.T) {
	ch := NewChannel(mq.NewMemoryBroker(), "relay", nil)
	_, cancel := ch.Once(protocol.RuntimeAck, "x")
	assert.Equal(t, 1, ch.Pending())
	cancel()
	cancel()
	assert.Equal(t, 0, ch.Pending())
}
