package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
	"github.com/Tomlord1122/todo-pics/internal/blobstore"
	"github.com/Tomlord1122/todo-pics/internal/repository"
	"github.com/Tomlord1122/todo-pics/internal/validation"
)

const MsgNoFile = "No file uploaded"

type AttachmentService interface {
	Upload(ctx context.Context, filename string, data []byte) (*blobstore.Reference, error)
	Fetch(ctx context.Context, filename string) (*blobstore.Object, error)
	// Delete removes the object and then, best effort, clears every todo
	// image_name that pointed at it.
	Delete(ctx context.Context, filename string) error
}

type attachmentService struct {
	blobs        AttachmentStore
	repo         repository.TodoRepository
	cache        ListCache
	cacheControl int
	timeout      time.Duration
	logger       *zap.Logger
}

// NewAttachmentService wires the attachment operations. repo and cache may be nil.
func NewAttachmentService(blobs AttachmentStore, repo repository.TodoRepository, cache ListCache, cacheControl int, storeTimeout time.Duration, logger *zap.Logger) AttachmentService {
	return &attachmentService{
		blobs:        blobs,
		repo:         repo,
		cache:        cache,
		cacheControl: cacheControl,
		timeout:      storeTimeout,
		logger:       logger.Named("attachment"),
	}
}

func (s *attachmentService) Upload(ctx context.Context, filename string, data []byte) (*blobstore.Reference, error) {
	name, err := validation.ValidateFilename(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperror.InvalidArgument(MsgNoFile)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ref, err := s.blobs.Upload(ctx, name, data, blobstore.UploadOptions{
		CacheControl: s.cacheControl,
		Overwrite:    false,
	})
	if err != nil {
		return nil, s.fail("attachment.upload", name, err)
	}
	return ref, nil
}

func (s *attachmentService) Fetch(ctx context.Context, filename string) (*blobstore.Object, error) {
	name, err := validation.ValidateFilename(filename)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj, err := s.blobs.Download(ctx, name)
	if err != nil {
		return nil, s.fail("attachment.fetch", name, err)
	}
	return obj, nil
}

func (s *attachmentService) Delete(ctx context.Context, filename string) error {
	name, err := validation.ValidateFilename(filename)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.blobs.Remove(ctx, name); err != nil {
		return s.fail("attachment.delete", name, err)
	}

	if s.repo == nil {
		return nil
	}
	refs := s.blobs.References(name)
	if len(refs) == 0 {
		return nil
	}
	cleared, err := s.repo.ClearImageReference(ctx, refs...)
	if err != nil {
		s.logger.Warn("clearing image references failed", zap.String("filename", name), zap.Error(err))
		return nil
	}
	if cleared > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("list cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

func (s *attachmentService) fail(op, filename string, err error) error {
	err = apperror.FromStore(op, err)
	if apperror.Is(err, apperror.KindStoreFailure) {
		s.logger.Error("store failure", zap.String("op", op), zap.String("filename", filename), zap.Error(err))
	}
	return err
}
