// Package catalog answers existence questions about records owned by the
// academic catalog. Billing references students and academic years by id
// but never writes those tables.
package catalog

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("catalog",
	fx.Provide(NewGormCatalog),
)

type Catalog interface {
	StudentExists(ctx context.Context, id snowflake.ID) (bool, error)
	AcademicYearExists(ctx context.Context, id snowflake.ID) (bool, error)
	// Labels returns display names for printed documents. Unknown ids come
	// back as empty strings.
	Labels(ctx context.Context, studentID, academicYearID snowflake.ID) (Labels, error)
}

type Labels struct {
	StudentName       string
	AcademicYearLabel string
}

// Student mirrors the columns billing reads from the catalog's table.
type Student struct {
	ID       snowflake.ID  `gorm:"primaryKey"`
	FullName string        `gorm:"type:text;not null"`
	ParentID *snowflake.ID `gorm:"index"`
	Active   bool          `gorm:"not null;default:true"`
}

func (Student) TableName() string { return "students" }

type AcademicYear struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	Label string       `gorm:"type:text;not null"`
}

func (AcademicYear) TableName() string { return "academic_years" }

type gormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) Catalog {
	return &gormCatalog{db: db}
}

func (c *gormCatalog) StudentExists(ctx context.Context, id snowflake.ID) (bool, error) {
	return c.exists(ctx, &Student{}, id)
}

func (c *gormCatalog) AcademicYearExists(ctx context.Context, id snowflake.ID) (bool, error) {
	return c.exists(ctx, &AcademicYear{}, id)
}

func (c *gormCatalog) exists(ctx context.Context, model any, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := c.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *gormCatalog) Labels(ctx context.Context, studentID, academicYearID snowflake.ID) (Labels, error) {
	var out Labels

	var student Student
	err := c.db.WithContext(ctx).Select("full_name").Where("id = ?", studentID).Take(&student).Error
	switch {
	case err == nil:
		out.StudentName = student.FullName
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Labels{}, err
	}

	var year AcademicYear
	err = c.db.WithContext(ctx).Select("label").Where("id = ?", academicYearID).Take(&year).Error
	switch {
	case err == nil:
		out.AcademicYearLabel = year.Label
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Labels{}, err
	}
	return out, nil
}
