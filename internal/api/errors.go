package api

import (
	"errors"
	"net/http"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/client"
	"github.com/example/storefront/internal/command"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/query"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/task"
)

var errBadBody = errors.New("invalid request body")

func newErrorMapper() *apperr.Mapper {
	return apperr.NewMapper(
		apperr.Mapping{Target: command.ErrProductNotFound, Code: http.StatusNotFound},
		apperr.Mapping{Target: client.ErrNotFound, Code: http.StatusNotFound, Message: "not found"},
		apperr.Mapping{Target: errBadBody, Code: http.StatusBadRequest},
		apperr.Mapping{Target: cart.ErrInvalidQuantity, Code: http.StatusBadRequest},
		apperr.Mapping{Target: cart.ErrInvalidProduct, Code: http.StatusBadRequest},
		apperr.Mapping{Target: cart.ErrInvalidCartID, Code: http.StatusBadRequest},
		apperr.Mapping{Target: cart.ErrMergeSource, Code: http.StatusBadRequest},
		apperr.Mapping{Target: command.ErrEmptyCart, Code: http.StatusBadRequest},
		apperr.Mapping{Target: task.ErrInFlight, Code: http.StatusConflict},
		apperr.Mapping{Target: query.ErrUnauthenticated, Code: http.StatusUnauthorized},
		apperr.Mapping{Target: session.ErrInvalidCredentials, Code: http.StatusUnauthorized},
		apperr.Mapping{Target: query.ErrForbidden, Code: http.StatusForbidden},
	).WithFallback(func(err error) *apperr.Error {
		var backendErr *client.Error
		if errors.As(err, &backendErr) {
			return apperr.New(http.StatusBadGateway, "backend unavailable", err)
		}
		return nil
	})
}
