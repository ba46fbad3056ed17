package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docchat-be/service"
	"github.com/tieubaoca/docchat-be/types"
)

const previewChars = 500

type DocumentHandler struct {
	store *service.ContextStore
}

func NewDocumentHandler(store *service.ContextStore) *DocumentHandler {
	return &DocumentHandler{
		store: store,
	}
}

// HandlePDFInfo reports whether the document context is loaded, its length in
// characters and the start of its text.
func (h *DocumentHandler) HandlePDFInfo(c *gin.Context) {
	if !h.store.Loaded() {
		c.JSON(http.StatusOK, types.PDFInfoResponse{Error: service.ErrContextNotLoaded.Error()})
		return
	}
	c.JSON(http.StatusOK, types.PDFInfoResponse{
		Status:  "loaded",
		Length:  h.store.Length(),
		Preview: h.store.Preview(previewChars),
	})
}

func (h *DocumentHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthResponse{Status: "ok"})
}
