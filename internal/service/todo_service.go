package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
	"github.com/Tomlord1122/todo-pics/internal/blobstore"
	"github.com/Tomlord1122/todo-pics/internal/domain"
	"github.com/Tomlord1122/todo-pics/internal/repository"
	"github.com/Tomlord1122/todo-pics/internal/validation"
)

// CreateTodoRequest holds the fields accepted when creating a todo.
type CreateTodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	StartDate   *string `json:"start_date" validate:"omitempty,isodate"`
	EndDate     *string `json:"end_date" validate:"omitempty,isodate"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
	ImageName   *string `json:"image_name"`
}

// UpdateTodoRequest is shared by full and partial updates. A nil field was
// absent (or null) in the request body.
type UpdateTodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	Completed   *bool   `json:"completed"`
	StartDate   *string `json:"start_date" validate:"omitempty,isodate"`
	EndDate     *string `json:"end_date" validate:"omitempty,isodate"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
	ImageName   *string `json:"image_name"`
}

func (r UpdateTodoRequest) patch() domain.TodoPatch {
	return domain.TodoPatch{
		Title:       r.Title,
		Completed:   r.Completed,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Status:      r.Status,
		Description: r.Description,
		ImageName:   r.ImageName,
	}
}

// TodoResponse is the wire representation of a todo.
type TodoResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
	ImageName   *string `json:"image_name"`
}

func toResponse(t domain.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.Format(validation.DateLayout),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
		StartDate:   formatDate(t.StartDate),
		EndDate:     formatDate(t.EndDate),
		Status:      t.Status,
		Description: t.Description,
		ImageName:   t.ImageName,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(validation.DateLayout)
	return &s
}

// ListCache is a read-through cache for the full list. SetList must drop a
// list whose version was superseded by an Invalidate.
type ListCache interface {
	GetList(ctx context.Context) ([]domain.Todo, error)
	Version(ctx context.Context) (int64, error)
	SetList(ctx context.Context, version int64, list []domain.Todo) error
	Invalidate(ctx context.Context) error
}

// AttachmentStore is the blob store as seen by the services.
type AttachmentStore interface {
	Upload(ctx context.Context, filename string, data []byte, opts blobstore.UploadOptions) (*blobstore.Reference, error)
	Download(ctx context.Context, ref string) (*blobstore.Object, error)
	Remove(ctx context.Context, ref string) error
	References(ref string) []string
}

type TodoService interface {
	GetAllTodos(ctx context.Context) ([]TodoResponse, error)
	GetTodoByID(ctx context.Context, id int64) (*TodoResponse, error)
	CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error)
	// ReplaceTodo writes only when at least one field is present, then
	// returns the current record.
	ReplaceTodo(ctx context.Context, id int64, req UpdateTodoRequest) (*TodoResponse, error)
	// MergeTodo always writes the present fields, then returns the current record.
	MergeTodo(ctx context.Context, id int64, req UpdateTodoRequest) (*TodoResponse, error)
	ToggleCompleted(ctx context.Context, id int64) (*TodoResponse, error)
	// DeleteTodo removes the todo and, best effort, its attachment. A missing
	// todo is not an error.
	DeleteTodo(ctx context.Context, id int64) error
}

type todoService struct {
	repo    repository.TodoRepository
	blobs   AttachmentStore
	cache   ListCache
	sf      singleflight.Group
	timeout time.Duration
	logger  *zap.Logger
}

// NewTodoService wires the todo operations. blobs and cache may be nil.
func NewTodoService(repo repository.TodoRepository, blobs AttachmentStore, cache ListCache, storeTimeout time.Duration, logger *zap.Logger) TodoService {
	return &todoService{
		repo:    repo,
		blobs:   blobs,
		cache:   cache,
		timeout: storeTimeout,
		logger:  logger.Named("todo"),
	}
}

func (s *todoService) GetAllTodos(ctx context.Context) ([]TodoResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	todos, err := s.list(ctx)
	if err != nil {
		return nil, s.fail("todo.list", err)
	}
	responses := make([]TodoResponse, 0, len(todos))
	for _, t := range todos {
		responses = append(responses, toResponse(t))
	}
	return responses, nil
}

func (s *todoService) list(ctx context.Context) ([]domain.Todo, error) {
	if s.cache == nil {
		return s.repo.List(ctx)
	}
	ch := s.sf.DoChan("list", func() (interface{}, error) {
		// The flight is shared, so it must not end with its first caller.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.loadList(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Todo), nil
	}
}

func (s *todoService) loadList(ctx context.Context) ([]domain.Todo, error) {
	list, err := s.cache.GetList(ctx)
	if err != nil {
		s.logger.Warn("list cache read failed", zap.Error(err))
	} else if list != nil {
		return list, nil
	}

	version, verErr := s.cache.Version(ctx)
	if verErr != nil {
		s.logger.Warn("list cache version read failed", zap.Error(verErr))
	}
	list, err = s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if verErr == nil {
		if err := s.cache.SetList(ctx, version, list); err != nil {
			s.logger.Warn("list cache write failed", zap.Error(err))
		}
	}
	return list, nil
}

func (s *todoService) GetTodoByID(ctx context.Context, id int64) (*TodoResponse, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("todo.get", err, zap.Int64("id", id))
	}
	resp := toResponse(*todo)
	return &resp, nil
}

func (s *todoService) CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error) {
	title, err := validation.ValidateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	todo := &domain.Todo{
		Title:       title,
		Completed:   false,
		Status:      req.Status,
		Description: req.Description,
		ImageName:   emptyToNil(req.ImageName),
	}
	if todo.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		return nil, err
	}
	if todo.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, s.fail("todo.create", err)
	}
	s.invalidateCache(ctx)

	resp := toResponse(*todo)
	return &resp, nil
}

func (s *todoService) ReplaceTodo(ctx context.Context, id int64, req UpdateTodoRequest) (*TodoResponse, error) {
	return s.update(ctx, "todo.replace", id, req, false)
}

func (s *todoService) MergeTodo(ctx context.Context, id int64, req UpdateTodoRequest) (*TodoResponse, error) {
	return s.update(ctx, "todo.merge", id, req, true)
}

func (s *todoService) update(ctx context.Context, op string, id int64, req UpdateTodoRequest, always bool) (*TodoResponse, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	patch := req.patch()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if always || patch.HasChanges() {
		if err := s.repo.Update(ctx, id, patch); err != nil {
			return nil, s.fail(op, err, zap.Int64("id", id))
		}
		s.invalidateCache(ctx)
	}

	// The record may have been deleted between the write and this read.
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, err, zap.Int64("id", id))
	}
	resp := toResponse(*todo)
	return &resp, nil
}

func (s *todoService) ToggleCompleted(ctx context.Context, id int64) (*TodoResponse, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("todo.toggle", err, zap.Int64("id", id))
	}
	completed := !todo.Completed
	if err := s.repo.Update(ctx, id, domain.TodoPatch{Completed: &completed}); err != nil {
		return nil, s.fail("todo.toggle", err, zap.Int64("id", id))
	}
	s.invalidateCache(ctx)

	todo, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("todo.toggle", err, zap.Int64("id", id))
	}
	resp := toResponse(*todo)
	return &resp, nil
}

func (s *todoService) DeleteTodo(ctx context.Context, id int64) error {
	if err := checkID(id); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var image string
	todo, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		if todo.ImageName != nil {
			image = *todo.ImageName
		}
	case apperror.Is(err, apperror.KindNotFound):
	default:
		return s.fail("todo.delete", err, zap.Int64("id", id))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail("todo.delete", err, zap.Int64("id", id))
	}
	s.invalidateCache(ctx)

	if image != "" && s.blobs != nil {
		if err := s.blobs.Remove(ctx, image); err != nil {
			s.logger.Warn("attachment cleanup failed",
				zap.Int64("id", id), zap.String("image_name", image), zap.Error(err))
		}
	}
	return nil
}

// fail classifies err and logs store failures. The returned error is safe
// to hand to the HTTP layer.
func (s *todoService) fail(op string, err error, fields ...zap.Field) error {
	err = apperror.FromStore(op, err)
	if apperror.Is(err, apperror.KindStoreFailure) {
		s.logger.Error("store failure", append(fields, zap.String("op", op), zap.Error(err))...)
	}
	return err
}

func (s *todoService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("list cache invalidation failed", zap.Error(err))
	}
}

func checkID(id int64) error {
	if id <= 0 {
		return apperror.InvalidArgument(validation.MsgInvalidID)
	}
	return nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := validation.ParseDate(*s)
	if err != nil {
		return nil, apperror.InvalidArgument("invalid date '" + *s + "'")
	}
	return t, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
