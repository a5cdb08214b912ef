package server

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
	"github.com/Tomlord1122/todo-pics/internal/blobstore"
	"github.com/Tomlord1122/todo-pics/internal/service"
)

var imageBytes = []byte("\x89PNG\r\n\x1a\nimage")

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUploadAttachment_Multipart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Upload", mock.Anything, "a.png", imageBytes).
		Return(&blobstore.Reference{Path: "pics_folder/a.png", URL: "https://cdn/pics_folder/a.png", ContentType: "image/png", Size: int64(len(imageBytes))}, nil).Once()

	body, contentType := multipartBody(t, "file", "local-name.png", imageBytes)
	req := httptest.NewRequest(http.MethodPost, "/attachments?filename=a.png", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "https://cdn/pics_folder/a.png", got["url"])
	assert.Equal(t, "pics_folder/a.png", got["path"])
	env.attachments.AssertExpectations(t)
}

func TestUploadAttachment_MultipartFilenameFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Upload", mock.Anything, "local-name.png", imageBytes).
		Return(&blobstore.Reference{Path: "pics_folder/local-name.png"}, nil).Once()

	body, contentType := multipartBody(t, "file", "local-name.png", imageBytes)
	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	env.attachments.AssertExpectations(t)
}

func TestUploadAttachment_RawBody(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Upload", mock.Anything, "a.png", imageBytes).
		Return(&blobstore.Reference{Path: "pics_folder/a.png"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/attachments?filename=a.png", bytes.NewReader(imageBytes))
	req.Header.Set("Content-Type", "image/png")

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	env.attachments.AssertExpectations(t)
}

func TestUploadAttachment_MissingFilePart(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := multipartBody(t, "picture", "a.png", imageBytes)
	req := httptest.NewRequest(http.MethodPost, "/attachments?filename=a.png", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
	env.attachments.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadAttachment_TooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/attachments?filename=a.png", bytes.NewReader(make([]byte, 4<<10)))

	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "must not be larger than")
}

func TestUploadAttachment_ServiceErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Upload", mock.Anything, "", mock.Anything).
		Return(nil, apperror.InvalidArgument("Filename is missing")).Once()
	env.attachments.On("Upload", mock.Anything, "taken.png", mock.Anything).
		Return(nil, apperror.StoreFailure("blob.upload", blobstore.ErrExists)).Once()

	rec := env.do(httptest.NewRequest(http.MethodPost, "/attachments", strings.NewReader("bytes")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Filename is missing"}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodPost, "/attachments?filename=taken.png", strings.NewReader("bytes")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exists")
}

func TestDownloadAttachment(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Fetch", mock.Anything, "a.png").
		Return(&blobstore.Object{Key: "pics_folder/a.png", ContentType: "image/png", Size: int64(len(imageBytes)), Data: imageBytes}, nil).Once()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/attachments?filename=a.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, imageBytes, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="a.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
}

func TestDownloadAttachment_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Fetch", mock.Anything, "").
		Return(nil, apperror.InvalidArgument("Filename is missing")).Once()
	env.attachments.On("Fetch", mock.Anything, "gone.png").
		Return(nil, apperror.StoreFailure("blob.download", blobstore.ErrNotExist)).Once()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/attachments", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/attachments?filename=gone.png", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestDeleteAttachment(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Delete", mock.Anything, "a.png").Return(nil).Once()
	env.attachments.On("Delete", mock.Anything, "b.png").
		Return(apperror.StoreFailure("blob.remove", errors.New("forbidden"))).Once()

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/attachments?filename=a.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"File a.png deleted"}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/attachments?filename=b.png", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadAttachment_EmptyBody(t *testing.T) {
	env := newTestEnv(t, nil)
	env.attachments.On("Upload", mock.Anything, "a.png", []byte{}).
		Return(nil, apperror.InvalidArgument(service.MsgNoFile)).Once()

	rec := env.do(httptest.NewRequest(http.MethodPost, "/attachments?filename=a.png", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
}
