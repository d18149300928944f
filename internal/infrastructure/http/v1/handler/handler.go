package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/usecase"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate          *validator.Validate
	tileUseCase       *usecase.TileUseCase
	remoteTileUseCase *usecase.RemoteTileUseCase
}

func NewHandler(v *validator.Validate, uc *usecase.TileUseCase, remote *usecase.RemoteTileUseCase) *Handler {
	if err := dto.RegisterValidations(v); err != nil {
		panic(err)
	}
	return &Handler{
		validate:          v,
		tileUseCase:       uc,
		remoteTileUseCase: remote,
	}
}

func requestLogger(c *gin.Context) logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if l, ok := l.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}
