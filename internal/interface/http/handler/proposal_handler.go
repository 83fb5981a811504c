package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/interface/http/dto"
	"github.com/ignatzorin/proposal-portal/internal/interface/http/response"
	"github.com/ignatzorin/proposal-portal/internal/usecase/contestation"
	"github.com/ignatzorin/proposal-portal/internal/usecase/proposal"
)

// ProposalHandler маршруты владельца предложений.
type ProposalHandler struct {
	listMyProposalsUC *proposal.ListMyProposalsUseCase
	getProposalUC     *proposal.GetProposalUseCase
	getHistoryUC      *proposal.GetHistoryUseCase
	listCommentsUC    *proposal.ListCommentsUseCase
	listTokensUC      *proposal.ListTokensUseCase
	sendProposalUC    *proposal.SendProposalUseCase
	issueTokenUC      *proposal.IssueTokenUseCase
	resolveUC         *contestation.ResolveContestedUseCase
}

func NewProposalHandler(
	listMyProposalsUC *proposal.ListMyProposalsUseCase,
	getProposalUC *proposal.GetProposalUseCase,
	getHistoryUC *proposal.GetHistoryUseCase,
	listCommentsUC *proposal.ListCommentsUseCase,
	listTokensUC *proposal.ListTokensUseCase,
	sendProposalUC *proposal.SendProposalUseCase,
	issueTokenUC *proposal.IssueTokenUseCase,
	resolveUC *contestation.ResolveContestedUseCase,
) *ProposalHandler {
	return &ProposalHandler{
		listMyProposalsUC: listMyProposalsUC,
		getProposalUC:     getProposalUC,
		getHistoryUC:      getHistoryUC,
		listCommentsUC:    listCommentsUC,
		listTokensUC:      listTokensUC,
		sendProposalUC:    sendProposalUC,
		issueTokenUC:      issueTokenUC,
		resolveUC:         resolveUC,
	}
}

func (h *ProposalHandler) ListMyProposals(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	views, err := h.listMyProposalsUC.Execute(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponses(views))
}

func (h *ProposalHandler) GetProposal(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	view, err := h.getProposalUC.Execute(c.Request.Context(), proposalID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponse(view))
}

func (h *ProposalHandler) GetHistory(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	entries, err := h.getHistoryUC.Execute(c.Request.Context(), proposalID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToChangeLogResponses(entries))
}

func (h *ProposalHandler) ListComments(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	comments, err := h.listCommentsUC.Execute(c.Request.Context(), proposalID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToCommentResponses(comments))
}

func (h *ProposalHandler) ListTokens(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	tokens, err := h.listTokensUC.Execute(c.Request.Context(), proposalID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToTokenResponses(tokens))
}

// SendProposal отправляет черновик клиенту и возвращает обе ссылки.
func (h *ProposalHandler) SendProposal(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	var req dto.SendProposalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}

	result, err := h.sendProposalUC.Execute(c.Request.Context(), proposal.SendProposalInput{
		ProposalID: proposalID,
		OwnerID:    ownerID,
		Notify:     req.Notify,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.SendProposalResponse{
		Proposal:    dto.ToProposalResponse(&entity.ProposalView{Proposal: result.Proposal}),
		PortalURL:   result.PortalURL,
		ApprovalURL: result.ApprovalURL,
	})
}

func (h *ProposalHandler) IssueToken(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "purpose должен быть portal или approval")
		return
	}

	issued, err := h.issueTokenUC.Execute(c.Request.Context(), proposal.IssueTokenInput{
		ProposalID: proposalID,
		OwnerID:    ownerID,
		Purpose:    valueobject.TokenPurpose(req.Purpose),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.IssuedTokenResponse{
		TokenResponse: dto.ToTokenResponse(issued.Token),
		URL:           issued.URL,
	})
}

// ResolveContested применяет правки владельца к оспоренному предложению и возвращает его клиенту.
func (h *ProposalHandler) ResolveContested(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	proposalID, err := parseIDParam(c, "id")
	if err != nil {
		response.BadRequest(c, "некорректный ID предложения")
		return
	}

	var req dto.ResolveContestedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	result, err := h.resolveUC.Execute(c.Request.Context(), contestation.ResolveInput{
		ProposalID:      proposalID,
		OwnerID:         ownerID,
		ExpectedVersion: req.Version,
		Title:           req.Title,
		Notes:           req.Notes,
		Subtotal:        req.Subtotal,
		Discount:        req.Discount,
		Tax:             req.Tax,
		ValidityDays:    req.ValidityDays,
		Notify:          req.Notify,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToResolveResponse(result.Proposal, result.Changes))
}
