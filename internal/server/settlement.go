package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/smallbiznis/cargosettle/internal/settlement/domain"
)

func (s *Server) ListSettlements(c *gin.Context) {
	var req settlementdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateSettlement(c *gin.Context) {
	var req settlementdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (s *Server) GetSettlementByID(c *gin.Context) {
	view, err := s.settlementSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) SetSettlementQuantities(c *gin.Context) {
	var req settlementdomain.SetQuantitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SettlementID = c.Param("id")
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.SetQuantities(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) CalculateSettlement(c *gin.Context) {
	var req settlementdomain.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SettlementID = c.Param("id")
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.Calculate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) TransitionSettlement(c *gin.Context) {
	var req settlementdomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SettlementID = c.Param("id")
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.Transition(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) BulkTransitionSettlements(c *gin.Context) {
	var req settlementdomain.BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.SettlementIDs) == 0 {
		AbortWithError(c, newValidationError("settlement_ids", "invalid_request", "at least one settlement id is required"))
		return
	}
	req.ActorID = actorID(c)

	resp, err := s.settlementSvc.BulkTransition(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Partial failure is still a processed request.
	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, resp)
}

func (s *Server) UpdateSettlementPayment(c *gin.Context) {
	var req settlementdomain.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SettlementID = c.Param("id")
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.UpdatePayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) GetSettlementHistory(c *gin.Context) {
	records, err := s.settlementSvc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) ListSettlementCharges(c *gin.Context) {
	charges, err := s.settlementSvc.ListCharges(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charges})
}

func (s *Server) AddSettlementCharge(c *gin.Context) {
	var req settlementdomain.AddChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SettlementID = c.Param("id")
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.AddCharge(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (s *Server) UpdateSettlementCharge(c *gin.Context) {
	var req settlementdomain.UpdateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SettlementID = c.Param("id")
	req.ChargeID = c.Param("chargeId")
	req.ActorID = actorID(c)

	view, err := s.settlementSvc.UpdateCharge(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) RemoveSettlementCharge(c *gin.Context) {
	req := settlementdomain.RemoveChargeRequest{
		SettlementID: c.Param("id"),
		ChargeID:     c.Param("chargeId"),
		ActorID:      actorID(c),
	}

	view, err := s.settlementSvc.RemoveCharge(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
