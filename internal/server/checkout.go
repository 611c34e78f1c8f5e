package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
)

func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutdomain.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.TierID = strings.TrimSpace(req.TierID)
	req.BuyerEmail = strings.TrimSpace(req.BuyerEmail)

	resp, err := s.checkoutSvc.Start(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(contextOrderIDKey, resp.OrderID)
	c.JSON(http.StatusCreated, resp)
}
