// Package blobstore stores attachment bytes in an object store and hands out
// durable references to them.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
)

var (
	ErrNotExist = errors.New("blobstore: object does not exist")
	ErrExists   = errors.New("blobstore: object already exists")
	// ErrForeign marks a URL that points outside the configured backend.
	ErrForeign  = errors.New("blobstore: reference belongs to another host")
)

type PutOptions struct {
	CacheControl string
	Overwrite    bool
}

type Object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
}

// Backend is an object store addressed by key.
type Backend interface {
	// Put fails with ErrExists when the key is taken and Overwrite is false.
	Put(ctx context.Context, key string, data []byte, contentType string, opts PutOptions) error
	// Get fails with ErrNotExist when the key is absent.
	Get(ctx context.Context, key string) (*Object, error)
	// Delete succeeds when the key is absent.
	Delete(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
}

type UploadOptions struct {
	// CacheControl is a max-age in seconds. Zero sends no cache header.
	CacheControl int
	Overwrite    bool
}

// Reference identifies an uploaded object.
type Reference struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Adapter struct {
	backend     Backend
	folder      string
	uniqueNames bool
	newID       func() string
}

type Option func(*Adapter)

// WithUniqueNames prefixes every uploaded name with a random UUID.
func WithUniqueNames() Option {
	return func(a *Adapter) { a.uniqueNames = true }
}

func NewAdapter(backend Backend, folder string, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		folder:  strings.Trim(folder, "/"),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Upload(ctx context.Context, filename string, data []byte, opts UploadOptions) (*Reference, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return nil, apperror.InvalidArgument("Filename is missing")
	}
	if a.uniqueNames {
		name = a.newID() + "_" + name
	}
	key := a.join(name)
	contentType := DetectContentType(name, data)

	put := PutOptions{Overwrite: opts.Overwrite}
	if opts.CacheControl > 0 {
		put.CacheControl = fmt.Sprintf("public, max-age=%d", opts.CacheControl)
	}
	if err := a.backend.Put(ctx, key, data, contentType, put); err != nil {
		return nil, apperror.FromStore("blob.upload", fmt.Errorf("put %q: %w", key, err))
	}
	return &Reference{
		Path:        key,
		URL:         a.backend.URL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Download returns the object named by ref. An absent object is a store
// failure, not a distinct not-found outcome.
func (a *Adapter) Download(ctx context.Context, ref string) (*Object, error) {
	key, ok := a.Key(ref)
	if !ok {
		return nil, apperror.FromStore("blob.download", fmt.Errorf("get %q: %w", ref, ErrForeign))
	}
	obj, err := a.backend.Get(ctx, key)
	if err != nil {
		return nil, apperror.FromStore("blob.download", fmt.Errorf("get %q: %w", key, err))
	}
	return obj, nil
}

// Remove deletes the object named by ref. A missing object and a URL that
// belongs to another host are both left alone.
func (a *Adapter) Remove(ctx context.Context, ref string) error {
	key, ok := a.Key(ref)
	if !ok {
		return nil
	}
	err := a.backend.Delete(ctx, key)
	if err != nil && !errors.Is(err, ErrNotExist) {
		return apperror.FromStore("blob.remove", fmt.Errorf("delete %q: %w", key, err))
	}
	return nil
}

// Key resolves a bare filename, a folder path or one of this backend's
// public URLs to a key. ok is false for an absolute URL the backend did not
// issue.
func (a *Adapter) Key(ref string) (key string, ok bool) {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		return a.keyFromURL(ref)
	}
	ref = strings.TrimPrefix(ref, "/")
	if ref == "" {
		return "", false
	}
	if a.folder == "" || strings.HasPrefix(ref, a.folder+"/") {
		return ref, true
	}
	return a.join(ref), true
}

// keyFromURL strips the backend's URL prefix. The remainder is the key,
// query-escaped when the prefix ends inside a query string.
func (a *Adapter) keyFromURL(ref string) (string, bool) {
	base := a.backend.URL("")
	rest, found := strings.CutPrefix(ref, base)
	if !found || rest == "" {
		return "", false
	}
	if strings.Contains(base, "?") {
		key, err := url.QueryUnescape(rest)
		if err != nil || key == "" {
			return "", false
		}
		return key, true
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}

func (a *Adapter) URL(key string) string {
	return a.backend.URL(key)
}

// References lists the forms under which a todo may point at ref.
func (a *Adapter) References(ref string) []string {
	key, ok := a.Key(ref)
	if !ok {
		return nil
	}
	return []string{key, a.backend.URL(key)}
}

func (a *Adapter) join(name string) string {
	if a.folder == "" {
		return name
	}
	return a.folder + "/" + name
}

// DetectContentType uses the file extension first and sniffs the bytes otherwise.
func DetectContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
