package http

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/segmenter/internal/domain"
	"github.com/xiaot623/gogo/segmenter/internal/service"
)

const version = "0.1.0"

// Failure details returned to clients.
const (
	DetailProcessingFailed = "YOLOv5 segmentation failed to produce output."
	DetailNoProcessed      = "No processed images found."
	DetailNoOutputDirs     = "No output directories found."
	DetailNoLatestImages   = "No processed images found in the latest directory."
)

// Response headers set by UploadFile.
const (
	HeaderRunID   = "X-Run-Id"
	HeaderFileURL = "X-File-Url"
)

// uploadFields lists the accepted multipart field names in order.
var uploadFields = []string{"file_upload", "file"}

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/uploadfile/", h.UploadFile)
	e.POST("/uploadfile", h.UploadFile)
	e.GET("/outputfile/", h.OutputFile)
	e.GET("/outputfile", h.OutputFile)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// UploadFile stores an image, runs segmentation on it and reports the outcome.
func (h *Handler) UploadFile(c echo.Context) error {
	fh, err := formFile(c)
	if err != nil {
		return detail(c, http.StatusBadRequest, "no file uploaded")
	}

	src, err := fh.Open()
	if err != nil {
		return detail(c, http.StatusBadRequest, "failed to read uploaded file")
	}
	defer src.Close()

	run, err := h.service.ProcessUpload(c.Request().Context(), domain.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        src,
	})
	if run != nil {
		c.Response().Header().Set(HeaderRunID, run.RunID)
	}
	if err != nil {
		return uploadError(c, err)
	}
	c.Response().Header().Set(HeaderFileURL, run.FileURL)

	return c.JSON(http.StatusOK, domain.UploadResponse{Message: "Processing successful."})
}

// OutputFile returns the URL of the newest processed image.
func (h *Handler) OutputFile(c echo.Context) error {
	out, err := h.service.LatestOutput(c.Request().Context())
	switch {
	case errors.Is(err, domain.ErrNoOutputDirs):
		return detail(c, http.StatusNotFound, DetailNoOutputDirs)
	case errors.Is(err, domain.ErrNoOutputImages):
		return detail(c, http.StatusNotFound, DetailNoLatestImages)
	case err != nil:
		return detail(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, domain.OutputFileResponse{File: out.URL})
}

func formFile(c echo.Context) (*multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		fh, err := c.FormFile(field)
		if err == nil {
			return fh, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func uploadError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidFilename):
		return detail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUploadRejected):
		return detail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrToolTimeout):
		return detail(c, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, domain.ErrWorkerStopped):
		return detail(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrProcessingFailed):
		return detail(c, http.StatusInternalServerError, DetailProcessingFailed)
	case errors.Is(err, domain.ErrNoArtifactProduced):
		return detail(c, http.StatusInternalServerError, DetailNoProcessed)
	default:
		return detail(c, http.StatusInternalServerError, err.Error())
	}
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, domain.ErrorResponse{Detail: msg})
}
