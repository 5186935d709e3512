package handler

import (
	"context"
	"encoding/json"

	"gemwallet/internal/fee"
	"gemwallet/internal/handler/request"
	"gemwallet/internal/handler/response"
	"gemwallet/internal/submission"
	"gemwallet/internal/txbuilder"
	"gemwallet/pkg/errno"
	"gemwallet/pkg/validator"

	"github.com/gin-gonic/gin"
)

// Confirmations 确认页需要的操作，*background.Service 实现了它
type Confirmations interface {
	List() []*submission.Confirmation
	Get(id string) (*submission.Confirmation, error)
	Snapshot(ctx context.Context, id string) (*fee.Snapshot, error)
	Confirm(ctx context.Context, id, feeOverride string) error
	Reject(id string) error
	Close(id string) error
}

// TransactionView 确认页展示的单笔交易
type TransactionView struct {
	Type  string                `json:"type"`
	Flags []string              `json:"flags,omitempty"`
	Raw   txbuilder.Transaction `json:"raw"`
}

// ConfirmationDetail 确认详情
type ConfirmationDetail struct {
	submission.View
	Transactions []TransactionView `json:"transactions,omitempty"`
	Details      json.RawMessage   `json:"details,omitempty"`
	Fee          *fee.Snapshot     `json:"fee,omitempty"`
	FeeError     string            `json:"fee_error,omitempty"`
	CanConfirm   bool              `json:"can_confirm"`
}

type ConfirmationHandler struct {
	svc Confirmations
}

func NewConfirmationHandler(svc Confirmations) *ConfirmationHandler {
	return &ConfirmationHandler{svc: svc}
}

// List 未关闭的确认
// @Summary 确认列表
// @Tags Confirmation
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/confirmations [get]
func (h *ConfirmationHandler) List(c *gin.Context) {
	list := h.svc.List()
	views := make([]submission.View, 0, len(list))
	for _, conf := range list {
		views = append(views, conf.View())
	}
	response.Success(c, views)
}

// Detail 确认详情，包含交易和手续费快照
// @Summary 确认详情
// @Tags Confirmation
// @Produce json
// @Param id path string true "Confirmation ID"
// @Success 200 {object} response.Response
// @Router /api/v1/confirmations/{id} [get]
func (h *ConfirmationHandler) Detail(c *gin.Context) {
	id := c.Param("id")
	conf, err := h.svc.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail := ConfirmationDetail{View: conf.View(), Details: conf.Details}
	for _, tx := range conf.Transactions {
		tv := TransactionView{Type: tx.Type(), Raw: tx}
		if mask, ok := tx.Uint("Flags"); ok {
			tv.Flags = txbuilder.DescribeFlags(tx.Type(), mask)
		}
		detail.Transactions = append(detail.Transactions, tv)
	}

	// 只有等待确认时才需要手续费快照
	if detail.State == submission.Waiting {
		snap, err := h.svc.Snapshot(c.Request.Context(), id)
		if err != nil {
			_, detail.FeeError = errno.Decode(err)
		} else {
			detail.Fee = snap
			detail.CanConfirm = snap == nil || snap.CanConfirm()
		}
	}
	response.Success(c, detail)
}

// Confirm 用户确认
// @Summary 确认请求
// @Tags Confirmation
// @Accept json
// @Produce json
// @Param id path string true "Confirmation ID"
// @Param request body request.ConfirmRequest false "Fee override"
// @Success 200 {object} response.Response
// @Router /api/v1/confirmations/{id}/confirm [post]
func (h *ConfirmationHandler) Confirm(c *gin.Context) {
	var req request.ConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
			return
		}
	}
	if err := h.svc.Confirm(c.Request.Context(), c.Param("id"), req.Fee); err != nil {
		response.Error(c, err)
		return
	}
	h.view(c)
}

// Reject 用户拒绝
// @Summary 拒绝请求
// @Tags Confirmation
// @Produce json
// @Param id path string true "Confirmation ID"
// @Success 200 {object} response.Response
// @Router /api/v1/confirmations/{id}/reject [post]
func (h *ConfirmationHandler) Reject(c *gin.Context) {
	if err := h.svc.Reject(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.view(c)
}

// Close 关闭终态确认，结果发回页面
// @Summary 关闭确认
// @Tags Confirmation
// @Produce json
// @Param id path string true "Confirmation ID"
// @Success 200 {object} response.Response
// @Router /api/v1/confirmations/{id}/close [post]
func (h *ConfirmationHandler) Close(c *gin.Context) {
	if err := h.svc.Close(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.view(c)
}

func (h *ConfirmationHandler) view(c *gin.Context) {
	conf, err := h.svc.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conf.View())
}
