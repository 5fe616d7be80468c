package main

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/edudesk/campus-chat/internal/data"
	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

const maxUploadBytes = 25 << 20 // 25 MB

// contentTypeForMime classifies an upload by its MIME type prefix.
func contentTypeForMime(mime string) string {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return data.ContentTypeImage
	case strings.HasPrefix(mime, "video/"):
		return data.ContentTypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return data.ContentTypeAudio
	default:
		return data.ContentTypeDocument
	}
}

// handleUpload accepts a multipart file, stores it under the upload
// directory with a generated key, and creates the message plus its
// attachment metadata. The message body is the file's public path.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	senderID, err := s.currentUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, apperr.InvalidArg("invalid multipart body or file too large"))
		return
	}

	receiverID, err := bson.ObjectIDFromHex(r.FormValue("receiverId"))
	if err != nil {
		s.writeError(w, apperr.InvalidArg("receiverId is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, apperr.InvalidArg("file is required"))
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.writeError(w, err)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	fileKey := uuid.NewString() + ext

	dst, err := os.Create(filepath.Join(s.uploadDir, fileKey))
	if err != nil {
		s.writeError(w, err)
		return
	}
	size, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	body := "/uploads/" + fileKey

	msg, err := s.deliverMessage(r, senderID, receiverID, &body, contentTypeForMime(mimeType))
	if err != nil {
		// The stored file is orphaned if the message was rejected.
		_ = os.Remove(filepath.Join(s.uploadDir, fileKey))
		s.writeError(w, err)
		return
	}

	att := &data.Attachment{
		MessageID: msg.ID,
		Storage:   "local",
		FileKey:   fileKey,
		MimeType:  mimeType,
		Size:      size,
	}
	if _, err := s.atts.Create(r.Context(), att); err != nil {
		// The message exists and is already pushed; losing the metadata row
		// is logged, not rolled back.
		s.logger.Error().Err(err).Str("message", msg.ID.Hex()).Msg("attachment create failed")
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    msg,
		"attachment": att,
	})
}
