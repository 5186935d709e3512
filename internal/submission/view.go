package submission

import "gemwallet/internal/protocol"

// View 确认页的展示内容
type View struct {
	ID         string                  `json:"id"`
	Type       protocol.MessageType    `json:"type"`
	State      State                   `json:"state"`
	Title      string                  `json:"title"`
	Subtitle   string                  `json:"subtitle,omitempty"`
	Actions    []Action                `json:"actions"`
	Connection protocol.ConnectionInfo `json:"connection"`
	Hash       string                  `json:"hash,omitempty"`
	ResultCode string                  `json:"result_code,omitempty"`
	Closed     bool                    `json:"closed"`
}

func (c *Confirmation) View() View {
	state := c.State()
	reason, code := c.Reason()
	result := c.Outcome()

	v := View{
		ID:         c.ID,
		Type:       c.Type,
		State:      state,
		Actions:    c.Actions(),
		Connection: c.Connection,
		Hash:       result.Hash,
		ResultCode: code,
		Closed:     c.Closed(),
	}
	switch state {
	case Waiting:
		v.Title = "Confirm Transaction"
		if !protocol.IsTransactionType(c.Type) {
			v.Title = "Confirm Request"
		}
		if c.Connection.URL != "" {
			v.Subtitle = c.Connection.URL
		}
	case Pending:
		v.Title = "Transaction in progress"
		v.Subtitle = "We are processing your transaction\nPlease wait"
	case Success:
		v.Title = "Transaction accepted"
		v.Subtitle = "Transaction Successful"
		if !protocol.IsTransactionType(c.Type) {
			v.Title = "Request accepted"
			v.Subtitle = ""
		}
	case Rejected:
		v.Title = "Transaction rejected"
		v.Subtitle = reason
		if result.Rejected {
			v.Subtitle = "The request was rejected by the user"
		}
		if v.Subtitle == "" {
			v.Subtitle = GenericFailure
		}
	}
	return v
}
