package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/lensguard/gatekeeper/pkg/errtaxonomy"
)

// dataSubjectExportHandler handles GET /api/v1/data-subject/:userId/export.
func (s *Server) dataSubjectExportHandler(c *echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.ValidationError, "userId is required"))
	}
	bundle, err := s.dataSubject.Export(c.Request().Context(), userID)
	if err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "export failed", err))
	}
	return c.JSON(http.StatusOK, bundle)
}

// dataSubjectDeleteHandler handles DELETE /api/v1/data-subject/:userId.
func (s *Server) dataSubjectDeleteHandler(c *echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.ValidationError, "userId is required"))
	}
	if err := s.dataSubject.Delete(c.Request().Context(), userID); err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "delete failed", err))
	}
	return c.NoContent(http.StatusNoContent)
}
