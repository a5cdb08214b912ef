package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
	"github.com/Tomlord1122/todo-pics/internal/service"
)

const formFileField = "file"

func (s *Server) uploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	filename := r.URL.Query().Get("filename")
	data, partName, err := s.readUpload(r)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	if filename == "" {
		filename = partName
	}

	ref, err := s.attachmentService.Upload(r.Context(), filename, data)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ref)
}

// readUpload returns the uploaded bytes from a multipart "file" field or,
// for any other content type, the raw body. partName is the client-side
// filename of the multipart part, if any.
func (s *Server) readUpload(r *http.Request) (data []byte, partName string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, "", uploadReadError(err, s.maxUploadBytes)
		}
		return data, "", nil
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return nil, "", uploadReadError(err, s.maxUploadBytes)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", apperror.InvalidArgument(service.MsgNoFile)
	}
	if err != nil {
		return nil, "", uploadReadError(err, s.maxUploadBytes)
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", uploadReadError(err, s.maxUploadBytes)
	}
	return data, header.Filename, nil
}

func uploadReadError(err error, limit int64) error {
	var maxBytesError *http.MaxBytesError
	if errors.As(err, &maxBytesError) {
		return apperror.InvalidArgument(fmt.Sprintf("File must not be larger than %d bytes", limit))
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(err.Error(), "multipart") {
		return apperror.InvalidArgument("Malformed multipart upload")
	}
	return fmt.Errorf("read upload: %w", err)
}

func (s *Server) downloadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	obj, err := s.attachmentService.Fetch(r.Context(), r.URL.Query().Get("filename"))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	name := strings.ReplaceAll(path.Base(obj.Key), `"`, "")
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

func (s *Server) deleteAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if err := s.attachmentService.Delete(r.Context(), filename); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s deleted", filename)})
}
