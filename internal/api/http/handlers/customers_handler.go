package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bankcore/banking-api/internal/service"
	apperrors "github.com/bankcore/banking-api/pkg/util/errorutil"
)

// CustomersHandler serves administrator lookups.
type CustomersHandler struct {
	auth *service.AuthService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(authService *service.AuthService) *CustomersHandler {
	return &CustomersHandler{auth: authService}
}

// Search handles GET /api/customers/search?email=.
func (h *CustomersHandler) Search(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return apperrors.NewValidationError("email query parameter required", nil)
	}

	customer, err := h.auth.SearchCustomer(c.UserContext(), email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}
