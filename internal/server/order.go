package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	matchingdomain "github.com/smallbiznis/dispatch/internal/matching/domain"
	orderdomain "github.com/smallbiznis/dispatch/internal/order/domain"
	"github.com/smallbiznis/dispatch/internal/ranking"
)

type assignRequest struct {
	RestaurantID string `json:"restaurant_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type pendingMatch struct {
	OrderID     string              `json:"order_id"`
	Total       decimal.Decimal     `json:"total"`
	Restaurants []ranking.Candidate `json:"restaurants"`
	Error       *errorPayload       `json:"error,omitempty"`
}

func (s *Server) RegisterOrder(c *gin.Context) {
	var req orderdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query orderdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            resp.Orders,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	})
}

func (s *Server) GetOrderByID(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListPendingMatches runs a matching pass over every accepted order.
func (s *Server) ListPendingMatches(c *gin.Context) {
	results, err := s.matchingSvc.MatchPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toPendingMatches(results)})
}

func (s *Server) AssignRestaurant(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.AssignRestaurant(c.Request.Context(), orderdomain.AssignRequest{
		OrderID:      strings.TrimSpace(c.Param("id")),
		RestaurantID: strings.TrimSpace(req.RestaurantID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdvanceOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.AdvanceStatus(c.Request.Context(), orderdomain.AdvanceStatusRequest{
		OrderID: strings.TrimSpace(c.Param("id")),
		Status:  orderdomain.Status(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func toPendingMatches(results []matchingdomain.Result) []pendingMatch {
	out := make([]pendingMatch, 0, len(results))
	for _, res := range results {
		item := pendingMatch{
			OrderID:     snowflake.ID(res.OrderID).String(),
			Total:       res.Total,
			Restaurants: res.Candidates,
		}
		if item.Restaurants == nil {
			item.Restaurants = []ranking.Candidate{}
		}
		if res.Err != nil {
			item.Error = matchErrorPayload(res.Err)
		}
		out = append(out, item)
	}
	return out
}

func matchErrorPayload(err error) *errorPayload {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidOrder):
		return &errorPayload{Type: "invalid_order", Message: "order has no products"}
	case errors.Is(err, orderdomain.ErrProductNotFound):
		return &errorPayload{Type: "product_not_found", Message: err.Error()}
	case errors.Is(err, geocodedomain.ErrGeocodeUnavailable):
		return &errorPayload{Type: "geocode_unavailable", Message: "customer address could not be geocoded"}
	default:
		return &errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
