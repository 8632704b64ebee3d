package handlers

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"

	"github.com/bankcore/banking-api/internal/api/dto"
	"github.com/bankcore/banking-api/internal/domain"
	apperrors "github.com/bankcore/banking-api/pkg/util/errorutil"
)

type validatable interface {
	Validate() error
}

// bindAndValidate parses the JSON body into req and runs its validation rules.
func bindAndValidate(c *fiber.Ctx, req validatable) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}

func customerResponse(c *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:         c.ID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		NationalID: c.NationalID,
		Active:     c.Active,
	}
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
