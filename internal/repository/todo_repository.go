package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
	"github.com/Tomlord1122/todo-pics/internal/domain"
	"github.com/Tomlord1122/todo-pics/internal/validation"
)

const msgTodoNotFound = "Todo not found"

// TodoRepository is the record store for todos. Every method returns
// apperror-classified errors.
type TodoRepository interface {
	List(ctx context.Context) ([]domain.Todo, error)
	FindByID(ctx context.Context, id int64) (*domain.Todo, error)
	Create(ctx context.Context, todo *domain.Todo) error
	// Update applies the present fields of patch and touches updated_at.
	// It succeeds without error when no row matches.
	Update(ctx context.Context, id int64, patch domain.TodoPatch) error
	Delete(ctx context.Context, id int64) error
	// ClearImageReference nulls image_name on every todo whose value is one
	// of refs and reports how many rows changed.
	ClearImageReference(ctx context.Context, refs ...string) (int64, error)
}

type gormTodoRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db, now: time.Now}
}

func (r *gormTodoRepository) List(ctx context.Context) ([]domain.Todo, error) {
	todos := make([]domain.Todo, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&todos).Error; err != nil {
		return nil, translate("todo.list", err)
	}
	return todos, nil
}

func (r *gormTodoRepository) FindByID(ctx context.Context, id int64) (*domain.Todo, error) {
	var todo domain.Todo
	if err := r.db.WithContext(ctx).First(&todo, id).Error; err != nil {
		return nil, translate("todo.get", err)
	}
	return &todo, nil
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if strings.TrimSpace(todo.Title) == "" {
		return apperror.InvalidArgument(validation.MsgInvalidTitle)
	}
	todo.ID = 0
	todo.UpdatedAt = r.now()
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return translate("todo.create", err)
	}
	return nil
}

func (r *gormTodoRepository) Update(ctx context.Context, id int64, patch domain.TodoPatch) error {
	updates, err := patchColumns(patch)
	if err != nil {
		return err
	}
	updates["updated_at"] = r.now()

	err = r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return translate("todo.update", err)
	}
	return nil
}

func (r *gormTodoRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Todo{}, id).Error; err != nil {
		return translate("todo.delete", err)
	}
	return nil
}

func (r *gormTodoRepository) ClearImageReference(ctx context.Context, refs ...string) (int64, error) {
	refs = nonEmpty(refs)
	if len(refs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("image_name IN ?", refs).
		Updates(map[string]any{"image_name": nil, "updated_at": r.now()})
	if res.Error != nil {
		return 0, translate("todo.clear_image", res.Error)
	}
	return res.RowsAffected, nil
}

// patchColumns maps the present fields of patch to column values. Empty
// date and image strings become NULL.
func patchColumns(p domain.TodoPatch) (map[string]any, error) {
	cols := make(map[string]any)
	if p.Title != nil {
		title, err := validation.ValidateTitle(p.Title)
		if err != nil {
			return nil, err
		}
		cols["title"] = title
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
	}
	for column, raw := range map[string]*string{"start_date": p.StartDate, "end_date": p.EndDate} {
		if raw == nil {
			continue
		}
		date, err := validation.ParseDate(*raw)
		if err != nil {
			return nil, apperror.InvalidArgument("invalid '" + column + "' with value '" + *raw + "'")
		}
		if date == nil {
			cols[column] = nil
		} else {
			cols[column] = *date
		}
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.ImageName != nil {
		if *p.ImageName == "" {
			cols["image_name"] = nil
		} else {
			cols["image_name"] = *p.ImageName
		}
	}
	return cols, nil
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(msgTodoNotFound)
	}
	return apperror.FromStore(op, err)
}
