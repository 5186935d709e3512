package protocol

import "encoding/json"

// RuntimeMessage relay 与 background 之间的消息 (对应扩展内部的 runtime messaging)。
// ID 由 relay 生成，background 的 ack 和完成事件都带回同一个 ID
type RuntimeMessage struct {
	App        string          `json:"app"`
	Type       MessageType     `json:"type"`
	ID         string          `json:"id"`
	Connection *ConnectionInfo `json:"connection,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     *Result         `json:"result,omitempty"`
}

// NewAck 构造 ack；result 非空时 relay 直接以它作为最终结果
func NewAck(id string, result *Result) RuntimeMessage {
	return RuntimeMessage{App: AppID, Type: RuntimeAck, ID: id, Result: result}
}

// NewEvent 构造完成事件
func NewEvent(t MessageType, id string, result Result) RuntimeMessage {
	return RuntimeMessage{App: AppID, Type: t, ID: id, Result: &result}
}
