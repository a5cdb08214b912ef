package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Tomlord1122/todo-pics/internal/blobstore"
	"github.com/Tomlord1122/todo-pics/internal/domain"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) List(ctx context.Context) ([]domain.Todo, error) {
	args := m.Called(ctx)
	var todos []domain.Todo
	if v := args.Get(0); v != nil {
		todos = v.([]domain.Todo)
	}
	return todos, args.Error(1)
}

func (m *repoMock) FindByID(ctx context.Context, id int64) (*domain.Todo, error) {
	args := m.Called(ctx, id)
	var todo *domain.Todo
	if v := args.Get(0); v != nil {
		todo = v.(*domain.Todo)
	}
	return todo, args.Error(1)
}

func (m *repoMock) Create(ctx context.Context, todo *domain.Todo) error {
	return m.Called(ctx, todo).Error(0)
}

func (m *repoMock) Update(ctx context.Context, id int64, patch domain.TodoPatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *repoMock) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *repoMock) ClearImageReference(ctx context.Context, refs ...string) (int64, error) {
	args := m.Called(ctx, refs)
	return args.Get(0).(int64), args.Error(1)
}

type blobMock struct {
	mock.Mock
}

func (m *blobMock) Upload(ctx context.Context, filename string, data []byte, opts blobstore.UploadOptions) (*blobstore.Reference, error) {
	args := m.Called(ctx, filename, data, opts)
	var ref *blobstore.Reference
	if v := args.Get(0); v != nil {
		ref = v.(*blobstore.Reference)
	}
	return ref, args.Error(1)
}

func (m *blobMock) Download(ctx context.Context, ref string) (*blobstore.Object, error) {
	args := m.Called(ctx, ref)
	var obj *blobstore.Object
	if v := args.Get(0); v != nil {
		obj = v.(*blobstore.Object)
	}
	return obj, args.Error(1)
}

func (m *blobMock) Remove(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *blobMock) References(ref string) []string {
	refs, _ := m.Called(ref).Get(0).([]string)
	return refs
}

type cacheMock struct {
	mock.Mock
}

func (m *cacheMock) GetList(ctx context.Context) ([]domain.Todo, error) {
	args := m.Called(ctx)
	var todos []domain.Todo
	if v := args.Get(0); v != nil {
		todos = v.([]domain.Todo)
	}
	return todos, args.Error(1)
}

func (m *cacheMock) Version(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *cacheMock) SetList(ctx context.Context, version int64, list []domain.Todo) error {
	return m.Called(ctx, version, list).Error(0)
}

func (m *cacheMock) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func ptr[T any](v T) *T { return &v }
