package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-portal/internal/interface/http/dto"
	"github.com/ignatzorin/proposal-portal/internal/interface/http/response"
	"github.com/ignatzorin/proposal-portal/internal/usecase/approval"
	"github.com/ignatzorin/proposal-portal/internal/usecase/contestation"
	"github.com/ignatzorin/proposal-portal/internal/usecase/proposal"
)

// PublicHandler маршруты клиента по capability-ссылкам. Аутентификации нет: доступ даёт сам токен.
type PublicHandler struct {
	portalUC        *proposal.PortalUseCase
	approveUC       *approval.ApproveUseCase
	submitCommentUC *contestation.SubmitCommentUseCase
}

func NewPublicHandler(
	portalUC *proposal.PortalUseCase,
	approveUC *approval.ApproveUseCase,
	submitCommentUC *contestation.SubmitCommentUseCase,
) *PublicHandler {
	return &PublicHandler{
		portalUC:        portalUC,
		approveUC:       approveUC,
		submitCommentUC: submitCommentUC,
	}
}

func (h *PublicHandler) GetPortal(c *gin.Context) {
	page, err := h.portalUC.View(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToPortalResponse(page.View, page.Items, page.Company, page.ClientSeenUpdate))
}

// MarkSeen снимает баннер «предложение обновлено».
func (h *PublicHandler) MarkSeen(c *gin.Context) {
	if err := h.portalUC.MarkSeen(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"client_seen_update": true})
}

func (h *PublicHandler) Approve(c *gin.Context) {
	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token обязателен")
		return
	}

	input := approval.ApproveInput{
		Secret: req.Token,
		Client: clientInfo(c, req.ClientIP, req.UserAgent),
	}
	if req.ClientName != nil {
		input.ClientName = *req.ClientName
	}

	proposalID, err := h.approveUC.Execute(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ApproveResponse{ProposalID: proposalID})
}

func (h *PublicHandler) SubmitComment(c *gin.Context) {
	var req dto.SubmitCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные комментария")
		return
	}

	comment, err := h.submitCommentUC.Execute(c.Request.Context(), contestation.SubmitCommentInput{
		Secret:      req.Token,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Comment:     req.Comments,
		Client:      clientInfo(c, req.ClientIP, req.UserAgent),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToCommentResponse(comment))
}
