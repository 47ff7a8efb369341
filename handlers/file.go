package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/basit/shifter/auth/middleware"
	"github.com/basit/shifter/files"
	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/metrics"
	"github.com/basit/shifter/models"
	"github.com/basit/shifter/settings"
	"github.com/basit/shifter/storage"
)

// multipart framing allowance on top of max_file_size
const uploadOverhead = 1 << 20

type fileResponse struct {
	models.File
	PrettySize  string `json:"pretty_size"`
	ShareURL    string `json:"share_url"`
	DownloadURL string `json:"download_url"`
}

func (h *Handler) fileResponse(f *models.File) fileResponse {
	return fileResponse{
		File:        *f,
		PrettySize:  files.PrettySize(f.Size),
		ShareURL:    h.shareURL(f.PublicToken),
		DownloadURL: h.downloadURL(f.PublicToken),
	}
}

func (h *Handler) UploadOptions(c *gin.Context) {
	ctx := c.Request.Context()
	bounds, err := h.files.Policy().Bounds(ctx, h.files.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	maxSize, err := h.settings.String(ctx, settings.MaxFileSize)
	if err != nil {
		respondError(c, err)
		return
	}
	maxBytes, err := settings.ParseByteSize(maxSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"default_expiry":        bounds.Default,
		"min_expiry":            bounds.Min,
		"max_expiry":            bounds.Max,
		"allow_optional_expiry": bounds.AllowOptional,
		"max_file_size":         maxSize,
		"max_file_size_bytes":   maxBytes,
	})
}

// parseExpiryForm reads expiry_datetime and enable_expiry. enable_expiry
// defaults to whether a datetime was sent.
func parseExpiryForm(c *gin.Context) (*time.Time, bool, bool) {
	var requested *time.Time
	if raw := strings.TrimSpace(c.PostForm("expiry_datetime")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fieldErrors(c, http.StatusBadRequest, map[string]string{"expiry_datetime": "Enter a valid date/time."})
			return nil, false, false
		}
		requested = &t
	}

	enable := requested != nil
	if raw, ok := c.GetPostForm("enable_expiry"); ok && raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fieldErrors(c, http.StatusBadRequest, map[string]string{"enable_expiry": "Enter true or false."})
			return nil, false, false
		}
		enable = b
	}
	return requested, enable, true
}

func (h *Handler) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	limitStr, err := h.settings.String(ctx, settings.MaxFileSize)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := settings.ParseByteSize(limitStr)
	if err != nil {
		respondError(c, err)
		return
	}
	if limit <= (1<<63-1)-uploadOverhead {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+uploadOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.UploadsRejected.WithLabelValues(files.CodeFileTooLarge).Inc()
			respondError(c, files.FileTooLarge(limitStr))
			return
		}
		fieldErrors(c, http.StatusBadRequest, map[string]string{"file": "No file was submitted."})
		return
	}
	if fh.Size > limit {
		metrics.UploadsRejected.WithLabelValues(files.CodeFileTooLarge).Inc()
		respondError(c, files.FileTooLarge(limitStr))
		return
	}

	requested, enable, ok := parseExpiryForm(c)
	if !ok {
		return
	}

	content, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer content.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file, err := h.files.Create(ctx, files.CreateRequest{
		Owner:           user.ID,
		DisplayName:     fh.Filename,
		Content:         content,
		ContentType:     contentType,
		RequestedExpiry: requested,
		EnableExpiry:    enable,
	})
	if err != nil {
		var verr *files.ValidationError
		if errors.As(err, &verr) {
			metrics.UploadsRejected.WithLabelValues(verr.Code).Inc()
		}
		respondError(c, err)
		return
	}
	metrics.FilesUploaded.Inc()

	c.JSON(http.StatusCreated, gin.H{"file": h.fileResponse(file)})
}

func (h *Handler) ListFiles(c *gin.Context) {
	user := middleware.CurrentUser(c)
	list, err := h.files.ListNonExpired(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]fileResponse, 0, len(list))
	for i := range list {
		out = append(out, h.fileResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"files": out})
}

func (h *Handler) GetFile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	file, err := h.files.GetByToken(ctx, c.Param("token"), &user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	downloads, err := h.files.DownloadCount(ctx, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": h.fileResponse(file), "download_count": downloads})
}

// DeleteFile expires the file at once; its content is removed by the next
// cleanup.
func (h *Handler) DeleteFile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if _, err := h.files.ForceExpire(c.Request.Context(), c.Param("token"), user.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) PublicFile(c *gin.Context) {
	file, err := h.files.GetByToken(c.Request.Context(), c.Param("token"), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename":        file.DisplayName,
		"size":            file.Size,
		"pretty_size":     files.PrettySize(file.Size),
		"upload_datetime": file.UploadedAt,
		"expiry_datetime": file.ExpiresAt,
		"download_url":    h.downloadURL(file.PublicToken),
	})
}

func (h *Handler) FileQR(c *gin.Context) {
	file, err := h.files.GetByToken(c.Request.Context(), c.Param("token"), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	png, err := qrcode.Encode(h.shareURL(file.PublicToken), qrcode.Medium, 256)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// DownloadFile redirects to the storage backend when it can hand out a
// direct link and streams the content otherwise.
func (h *Handler) DownloadFile(c *gin.Context) {
	ctx := c.Request.Context()
	file, err := h.files.GetByToken(ctx, c.Param("token"), nil)
	if err != nil {
		respondError(c, err)
		return
	}

	download := files.Download{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if user := middleware.CurrentUser(c); user != nil {
		download.User = &user.ID
	}
	if err := h.files.RecordDownload(ctx, file, download); err != nil {
		logging.FromContext(ctx).Warn("download not recorded", zap.Error(err))
	}

	url, err := h.blobs.URL(ctx, file.BlobRef)
	if err != nil {
		respondError(c, err)
		return
	}
	if url != "" {
		c.Redirect(http.StatusFound, url)
		return
	}

	content, err := h.blobs.Open(ctx, file.BlobRef)
	if errors.Is(err, storage.ErrNotExist) {
		respondError(c, files.ErrNotFound)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer content.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.DisplayName})
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, content, map[string]string{
		"Content-Disposition": disposition,
	})
}
