package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/usecase"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var tileExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

func parseCoordinate(c *gin.Context) (tile.Coordinate, bool) {
	l := requestLogger(c)

	strZ := c.Param("z")
	strX := c.Param("x")
	strY := c.Param("y")
	for _, ext := range tileExtensions {
		strY = strings.TrimSuffix(strY, ext)
	}

	z, err := strconv.Atoi(strZ)
	if err != nil || z < 0 {
		l.Warn("invalid z parameter", "z", strZ, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "z should be a non-negative integer",
		})
		return tile.Coordinate{}, false
	}

	x, err := strconv.Atoi(strX)
	if err != nil {
		l.Warn("invalid x parameter", "x", strX, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "x should be integer",
		})
		return tile.Coordinate{}, false
	}

	y, err := strconv.Atoi(strY)
	if err != nil {
		l.Warn("invalid y parameter", "y", strY, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "y should be integer",
		})
		return tile.Coordinate{}, false
	}

	return tile.Coordinate{X: x, Y: y, Z: z}, true
}

// Tile serves a tile of the local pyramid, reconstructing it from the
// nearest ancestor when needed. Every failure is answered with 204 so the
// map client skips the tile instead of showing an error.
func (h *Handler) Tile(c *gin.Context) {
	coord, ok := parseCoordinate(c)
	if !ok {
		return
	}

	t, err := h.tileUseCase.GetTile(c.Request.Context(), coord)
	if err != nil {
		requestLogger(c).Warn("serving no tile after failure", "tile", coord.String(), "error", err)
	}

	writeTile(c, t)
}

func (h *Handler) RemoteTile(c *gin.Context) {
	coord, ok := parseCoordinate(c)
	if !ok {
		return
	}

	t, err := h.remoteTileUseCase.GetTile(c.Request.Context(), coord)
	if err != nil {
		requestLogger(c).Warn("serving no remote tile after failure", "tile", coord.String(), "error", err)
	}

	writeTile(c, t)
}

func writeTile(c *gin.Context, t usecase.Tile) {
	span := telemetry.SpanFromContext(c)
	span.SetAttributes(attribute.Bool("tile.found", t.Found))

	if !t.Found {
		c.Status(http.StatusNoContent)
		return
	}

	tileSource := "overzoom"
	if t.Exact {
		tileSource = "exact"
	}
	span.SetAttributes(
		attribute.String("tile.source", tileSource),
		attribute.Int("tile.source_z", t.Source.Z),
	)
	c.Header("X-Tile-Source", tileSource)
	c.Header("X-Tile-Source-Zoom", strconv.Itoa(t.Source.Z))

	c.Data(http.StatusOK, mimetype.Detect(t.Data).String(), t.Data)
}
