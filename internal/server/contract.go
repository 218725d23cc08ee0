package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetContractByID(c *gin.Context) {
	contract, err := s.contractSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

func (s *Server) CompleteContract(c *gin.Context) {
	contract, err := s.contractSvc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}
