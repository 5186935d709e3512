package request

// ConfirmRequest 确认时可选的手续费 (drops)
type ConfirmRequest struct {
	Fee string `json:"fee" binding:"omitempty,numeric"`
}
