// Shop and maintenance HTTP handlers.
//
// This file exposes the cosmetics shop:
//   - GET  /shop/items   (catalog)
//   - POST /shop/buy     (purchase and apply an item)
//
// and the operator endpoint:
//   - POST /maintenance  (run one settlement + finalization pass)
//
// The maintenance pass also runs on a background schedule; the endpoint
// exists so operators and tests can force it deterministically.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BuyRequest is the JSON payload for purchasing a shop item.
type BuyRequest struct {
	ItemID string `json:"item_id" binding:"required,min=1" example:"theme_ocean"`
}

// BuyResponse reports whether the item's effect applied immediately (boosts
// apply later, on publish) and the caller's new balance.
type BuyResponse struct {
	Applied bool `json:"applied"`
	Balance int  `json:"balance"`
}

// ShopItems returns the current catalog.
func (h *Handlers) ShopItems(c *gin.Context) {
	items, err := h.shop.Items(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"items": items})
}

// BuyItem debits the item price and applies its effect to the caller.
func (h *Handlers) BuyItem(c *gin.Context) {
	var req BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id required")
		return
	}
	applied, balance, err := h.shop.Buy(c.Request.Context(), userID(c), req.ItemID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BuyResponse{Applied: applied, Balance: balance})
}

// RunMaintenance executes one settlement and finalization pass and reports
// what it did. Safe to call repeatedly.
func (h *Handlers) RunMaintenance(c *gin.Context) {
	res, err := h.maint.Run(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
