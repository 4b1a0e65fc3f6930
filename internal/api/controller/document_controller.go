package controller

import (
	"errors"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/logger"
	"github.com/bassista/docsweep/internal/save"
	"github.com/bassista/docsweep/internal/sweeper"
)

// DocumentController exposes the document lifecycle over HTTP: open (track),
// close (untrack), edit content and force a save.
type DocumentController struct {
	registry *document.Registry
	sweeper  *sweeper.Sweeper
	exec     *save.Executor
	fs       afero.Fs
	validate *validator.Validate
}

// NewDocumentController creates the controller. fs backs newly opened
// documents.
func NewDocumentController(registry *document.Registry, sw *sweeper.Sweeper, exec *save.Executor, fs afero.Fs) *DocumentController {
	return &DocumentController{
		registry: registry,
		sweeper:  sw,
		exec:     exec,
		fs:       fs,
		validate: validator.New(),
	}
}

type openRequest struct {
	ID   string `json:"id"`
	Path string `json:"path" validate:"required"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// documentInfo is the wire representation of a tracked document.
type documentInfo struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Modified bool   `json:"modified"`
}

func infoFor(doc document.Document) documentInfo {
	return documentInfo{ID: doc.ID(), Path: doc.Path(), Modified: doc.Modified()}
}

// List handles GET /documents - returns all tracked documents.
func (dc *DocumentController) List(c *gin.Context) {
	docs := dc.registry.Snapshot()
	out := make([]documentInfo, 0, len(docs))
	for _, doc := range docs {
		out = append(out, infoFor(doc))
	}
	c.JSON(http.StatusOK, out)
}

// Open handles POST /document - starts tracking a file-backed document.
func (dc *DocumentController) Open(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := dc.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc := document.NewFile(req.ID, req.Path, dc.fs)
	if err := dc.sweeper.OnOpen(doc); err != nil {
		if errors.Is(err, errdefs.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.WithComponent("doc-controller").Errorf("open %s: %v", doc.ID(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to track document"})
		return
	}

	logger.WithDocument("doc-controller", doc.ID()).Infof("opened %s", doc.Path())
	c.JSON(http.StatusOK, infoFor(doc))
}

// Close handles DELETE /document/:id - stops tracking a document.
func (dc *DocumentController) Close(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing document id"})
		return
	}

	doc, ok := dc.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not tracked"})
		return
	}

	if file, ok := doc.(*document.File); ok {
		file.Close()
	}
	dc.sweeper.OnClose(doc)

	logger.WithDocument("doc-controller", id).Info("closed")
	c.Status(http.StatusNoContent)
}

// SetContent handles POST /document/:id/content - replaces the in-memory
// content, marks the document dirty and counts as activity, so the idle
// countdown restarts.
func (dc *DocumentController) SetContent(c *gin.Context) {
	id := c.Param("id")
	doc, ok := dc.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not tracked"})
		return
	}

	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	file, ok := doc.(*document.File)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "document content is not managed by this server"})
		return
	}

	file.SetContent([]byte(req.Content))
	dc.sweeper.Activity()
	c.JSON(http.StatusOK, infoFor(doc))
}

// SaveNow handles POST /document/:id/save - flushes one document through
// the executor without waiting for the idle window.
func (dc *DocumentController) SaveNow(c *gin.Context) {
	id := c.Param("id")
	doc, ok := dc.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not tracked"})
		return
	}

	out, err := dc.exec.Save(c.Request.Context(), doc)
	if err != nil {
		logger.WithDocument("doc-controller", id).Errorf("save error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	if out.Evict {
		dc.registry.Remove(id)
		c.JSON(http.StatusNotFound, gin.H{"error": "document no longer open"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": out.Result, "document": infoFor(doc)})
}
