package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/lensguard/gatekeeper/pkg/errtaxonomy"
)

// mapTaxonomyError maps a closed-enumeration errtaxonomy.Code to an HTTP
// status, so handlers never hand-pick a status per call site.
func mapTaxonomyError(err error) *echo.HTTPError {
	code := errtaxonomy.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errtaxonomy.ValidationError, errtaxonomy.InvalidInput:
		status = http.StatusBadRequest
	case errtaxonomy.NotFound, errtaxonomy.UserNotFound:
		status = http.StatusNotFound
	case errtaxonomy.Unauthorized:
		status = http.StatusUnauthorized
	case errtaxonomy.Forbidden:
		status = http.StatusForbidden
	case errtaxonomy.RateLimited:
		status = http.StatusTooManyRequests
	case errtaxonomy.Timeout:
		status = http.StatusGatewayTimeout
	case errtaxonomy.ProviderError, errtaxonomy.NetworkError:
		status = http.StatusBadGateway
	case errtaxonomy.ConfigurationError, errtaxonomy.InternalError:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("unexpected pipeline error", "code", code, "error", err)
	}
	return echo.NewHTTPError(status, map[string]string{"code": string(code), "message": err.Error()})
}
