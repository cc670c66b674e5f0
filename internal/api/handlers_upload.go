package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/dashboard"
	"github.com/aaronlmathis/timesplit/internal/datasets"
)

// multipartOverhead is allowed on top of the file size limit.
const multipartOverhead = 1 << 20

// handleUpload reads an uploaded file and renders it as the data source.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxMB := s.config.Uploads.MaxMB
	if maxMB <= 0 {
		s.renderError(w, http.StatusNotFound, &dashboard.Problem{Title: "Uploads are disabled.", Detail: "Set UPLOAD_MAX_MB to enable uploads."})
		return
	}
	limit := int64(maxMB) << 20
	tooLarge := &dashboard.Problem{
		Title:  fmt.Sprintf("File exceeds the upload limit of %d MB.", maxMB),
		Detail: "Select a smaller file or increase UPLOAD_MAX_MB.",
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.renderError(w, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{Title: "Bad upload.", Detail: err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{Title: "Select a file to upload.", Err: err})
		return
	}
	defer file.Close()
	if header.Size > limit {
		s.renderError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	upload, err := s.uploads.Read(header.Filename, header.Size, file)
	if errors.Is(err, datasets.ErrTooLarge) {
		s.logger.Info("Upload expands past the size limit", zap.String("name", header.Filename))
		tooLarge.Detail = fmt.Sprintf("Decompressed data may not exceed %d MB.", maxMB*dashboard.UploadExpansion)
		s.renderError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	if err != nil {
		s.logger.Info("Failed to read upload", zap.String("name", header.Filename), zap.Error(err))
		s.renderError(w, http.StatusBadRequest, &dashboard.Problem{
			Title:  fmt.Sprintf("Failed to read file '%s'.", header.Filename),
			Detail: err.Error(),
			Err:    err,
		})
		return
	}
	s.logger.Info("File uploaded",
		zap.String("id", upload.ID),
		zap.String("name", upload.Name),
		zap.Int64("size", upload.Size),
		zap.Int("rows", upload.Table.Rows()),
		zap.Duration("elapsed", upload.Elapsed))

	state := stateFrom(r.FormValue("state"))
	state.Set(dashboard.FieldSource, string(dashboard.SourceUpload))
	state.Set(dashboard.FieldUpload, upload.ID)
	state.Del(dashboard.FieldIndex)
	for key := range state {
		if strings.HasPrefix(key, dashboard.FieldAggregation) {
			state.Del(key)
		}
	}
	s.renderView(w, r, dashboard.State{Values: state, Limits: s.sessionLimits(r)})
}

// uploadInfo describes a stored upload.
type uploadInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Size         int64    `json:"size"`
	Rows         int      `json:"rows"`
	Columns      []string `json:"columns"`
	IndexChoices []string `json:"index_choices"`
	Index        string   `json:"index,omitempty"`
	Caption      string   `json:"caption"`
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	upload, ok := s.uploads.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "The uploaded file has expired.")
		return
	}
	writeJSON(w, http.StatusOK, uploadInfo{
		ID:           upload.ID,
		Name:         upload.Name,
		Size:         upload.Size,
		Rows:         upload.Table.Rows(),
		Columns:      upload.Table.Header,
		IndexChoices: upload.Table.IndexChoices(),
		Index:        upload.Table.DetectIndex(),
		Caption:      upload.Caption(),
	})
}
