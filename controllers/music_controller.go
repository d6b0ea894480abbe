package controllers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/audio"
	"github.com/audiodrop/musicbox/storage"
	"github.com/audiodrop/musicbox/utils"
)

// UploadField is the multipart field carrying the uploaded files.
const UploadField = "files"

// AudioMediaType is the Content-Type of streamed files.
const AudioMediaType = "audio/mpeg"

// MusicController handles uploads and streaming of stored audio.
type MusicController struct {
	store     *storage.Store
	validator *audio.Validator
	log       *zap.Logger
}

// NewMusicController creates a MusicController.
func NewMusicController(store *storage.Store, validator *audio.Validator, log *zap.Logger) *MusicController {
	return &MusicController{store: store, validator: validator, log: log}
}

// UploadResult is the JSON body answered by Upload.
type UploadResult struct {
	Result   string            `json:"result"`
	Filename map[string]string `json:"filename,omitempty"`
}

// UploadForm renders the upload page.
func (m *MusicController) UploadForm(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "upload.html", nil)
}

// Upload stores every acceptable file of the request. Rejected files are skipped; the response maps
// original names to stored names for the accepted ones.
func (m *MusicController) Upload(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41300, "request body too large")
			return
		}
		ctx.JSON(http.StatusOK, UploadResult{Result: "file not selected"})
		return
	}
	files := form.File[UploadField]
	if len(files) == 0 {
		ctx.JSON(http.StatusOK, UploadResult{Result: "file not selected"})
		return
	}

	stored, err := m.storeAll(ctx.Request.Context(), files)
	if err != nil {
		m.log.Error("upload aborted", zap.Error(err), zap.Int("stored", len(stored)))
		utils.ErrorFrom(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, summarize(stored))
}

type storedFile struct {
	original string
	stored   string
}

// storeAll processes files independently. Validation failures are skipped; storage failures abort.
func (m *MusicController) storeAll(ctx context.Context, files []*multipart.FileHeader) ([]storedFile, error) {
	var out []storedFile
	for _, fh := range files {
		if !m.validator.CheckName(fh.Filename) {
			m.log.Info("upload rejected", zap.String("original", fh.Filename), zap.String("reason", "extension not allowed"))
			continue
		}
		name, err := m.storeOne(ctx, fh)
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				continue
			}
			return out, err
		}
		out = append(out, storedFile{original: fh.Filename, stored: name})
	}
	return out, nil
}

func (m *MusicController) storeOne(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", apperr.Storage("open", fh.Filename, err)
	}
	defer f.Close()
	return m.store.Put(ctx, f, fh.Filename)
}

func summarize(stored []storedFile) UploadResult {
	if len(stored) == 0 {
		return UploadResult{Result: "file not uploaded"}
	}
	mapping := make(map[string]string, len(stored))
	for _, s := range stored {
		mapping[s.original] = s.stored
	}
	msg := "a file uploaded"
	if len(stored) > 1 {
		msg = fmt.Sprintf("%d files uploaded", len(stored))
	}
	return UploadResult{Result: msg, Filename: mapping}
}

// Serve streams a stored file as audio/mpeg. Range requests are honored.
func (m *MusicController) Serve(ctx *gin.Context) {
	path, err := m.store.Get(ctx.Param("id"))
	if err != nil {
		if apperr.IsStorage(err) {
			m.log.Error("serve music", zap.Error(err))
		}
		utils.ErrorFrom(ctx, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		m.log.Error("open music", zap.String("path", path), zap.Error(err))
		utils.ErrorFrom(ctx, apperr.ErrNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		utils.ErrorFrom(ctx, apperr.Storage("stat", path, err))
		return
	}

	ctx.Header("Content-Type", AudioMediaType)
	ctx.Header("Content-Disposition", "inline")
	http.ServeContent(ctx.Writer, ctx.Request, info.Name(), info.ModTime(), f)
}
