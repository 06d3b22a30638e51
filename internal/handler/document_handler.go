package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/service"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/response"
)

// DocumentHandler exposes contract attachment endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload godoc
// @Summary Attach a document to a contract
// @Description Attachments are accepted while the contract is in drafting or review.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Contract ID"
// @Param file formData file true "Document file"
// @Param description formData string false "Document description"
// @Success 201 {object} response.Envelope
// @Router /contracts/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	doc, err := h.documents.Upload(c.Request.Context(), c.Param("id"), header, c.PostForm("description"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// DownloadURL godoc
// @Summary Issue a signed download token
// @Tags Documents
// @Produce json
// @Param id path string true "Contract ID"
// @Param docId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/documents/{docId}/url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	token, expiresAt, err := h.documents.SignedDownloadToken(c.Request.Context(), c.Param("id"), c.Param("docId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"token": token, "expires_at": expiresAt}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Download godoc
// @Summary Download an attachment
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Contract ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file "Document payload"
// @Router /contracts/{id}/documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.documents.ResolveDownload(c.Request.Context(), c.Param("id"), token, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.documents.Open(download.Path)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document"))
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Document.Filename))
	c.Header("Content-Type", download.Document.MimeType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
