package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/pkg/db/pagination"
)

type listFulfillmentsQuery struct {
	pagination.Pagination
	Status string `form:"status"`
}

func (s *Server) GetFulfillment(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	c.Set(contextOrderIDKey, orderID)

	record, err := s.fulfillmentSvc.Get(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

// ListFulfillments pages through records in id order, failed ones by default.
func (s *Server) ListFulfillments(c *gin.Context) {
	var query listFulfillmentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := query.Validate(); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be between 1 and 250"))
		return
	}

	status := fulfillmentdomain.Status(strings.ToLower(strings.TrimSpace(query.Status)))
	switch status {
	case "":
		status = fulfillmentdomain.StatusFailed
	case fulfillmentdomain.StatusPending, fulfillmentdomain.StatusPackaged,
		fulfillmentdomain.StatusNotified, fulfillmentdomain.StatusFailed:
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "unknown fulfillment status"))
		return
	}

	filter := fulfillmentdomain.ListFilter{
		Status: status,
		Limit:  query.PageSize + 1,
	}
	cursor, err := pagination.DecodeCursor(query.PageToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			AbortWithError(c, pagination.ErrInvalidPageToken)
			return
		}
		filter.AfterID = afterID
	}

	records, err := s.fulfillmentSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page, pageInfo := pagination.BuildCursorPageInfo(records, query.PageSize, func(r fulfillmentdomain.Record) string {
		return r.ID.String()
	})
	c.JSON(http.StatusOK, gin.H{"data": page, "page_info": pageInfo})
}

// RedriveFulfillment runs one more attempt for an order outside the
// provider's redelivery schedule.
func (s *Server) RedriveFulfillment(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	c.Set(contextOrderIDKey, orderID)
	ctx := c.Request.Context()

	record, err := s.fulfillmentSvc.Get(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.fulfillmentSvc.Redrive(ctx, record)
	if result.Outcome == "" && err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(contextOutcomeKey, string(result.Outcome))

	resp := gin.H{"outcome": result.Outcome, "data": result.Record}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
