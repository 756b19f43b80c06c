package verification

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	verify := rg.Group("/verify")
	{
		verify.GET("/:token", h.VerifyChecksum)
		verify.POST("/upload", h.VerifyUpload)
	}
}

func (h *Handler) VerifyChecksum(c *gin.Context) {
	report, err := h.service.VerifyChecksum(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, report)
}

func (h *Handler) VerifyUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.VerifyUpload(c.Request.Context(), content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, report)
}

func (h *Handler) respond(c *gin.Context, report *Report) {
	if !report.Found {
		c.JSON(http.StatusNotFound, report)
		return
	}
	c.JSON(http.StatusOK, report)
}
