package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
)

type setAvailabilityRequest struct {
	Availability *bool `json:"availability"`
}

func (s *Server) CreateRestaurant(c *gin.Context) {
	var req restaurantdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.restaurantSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRestaurants(c *gin.Context) {
	resp, err := s.restaurantSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRestaurantByID(c *gin.Context) {
	resp, err := s.restaurantSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetMenuAvailability(c *gin.Context) {
	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Availability == nil {
		AbortWithError(c, newValidationError("availability", "required", "availability is required"))
		return
	}

	resp, err := s.restaurantSvc.SetAvailability(c.Request.Context(), restaurantdomain.SetAvailabilityRequest{
		RestaurantID: strings.TrimSpace(c.Param("id")),
		ProductID:    strings.TrimSpace(c.Param("product_id")),
		Available:    *req.Availability,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
