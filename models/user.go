package models

import (
	"context"
	"time"

	"bitbucket.org/flowlogic/wms_backend/config"
	"bitbucket.org/flowlogic/wms_backend/utils"
	"gorm.io/gorm"
)

// User mirrors the warehouse staff table. Operator attribution in evidence
// and timelines resolves through here.
type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	FullName  string    `gorm:"size:128" json:"full_name"`
	Role      string    `gorm:"size:32" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ResolveUsers loads a username map for the given ids. Unknown ids are simply
// absent from the result.
func ResolveUsers(ctx context.Context, ids []int) (map[int]User, error) {
	out := make(map[int]User)
	if len(ids) == 0 {
		return out, nil
	}
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var rows []User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	for _, u := range rows {
		out[u.ID] = u
	}
	return out, nil
}

// GetUser loads one user or returns a not-found error.
func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	if db == nil {
		return nil, &utils.DependencyError{Dependency: "database", Err: gorm.ErrInvalidDB}
	}
	var u User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("user", id)
		}
		return nil, &utils.DependencyError{Dependency: "database", Err: err}
	}
	return &u, nil
}
