package dao

import (
	"context"
	"errors"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type UserDAO struct {
	DB *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{DB: db}
}

func (dao *UserDAO) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := dao.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (dao *UserDAO) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := dao.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (dao *UserDAO) CreateUser(ctx context.Context, user *models.User) error {
	return dao.DB.WithContext(ctx).Create(user).Error
}

// UpdateUser updates user fields in DB based on the values in the struct.
func (dao *UserDAO) UpdateUser(ctx context.Context, user *models.User) error {
	return dao.DB.WithContext(ctx).Save(user).Error
}

func (dao *UserDAO) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := dao.DB.WithContext(ctx).Order("created_at asc").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (dao *UserDAO) DeleteUser(ctx context.Context, id string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// AdminIDs returns the ids of every user in the admins group.
func (dao *UserDAO) AdminIDs(ctx context.Context) (map[string]bool, error) {
	var users []models.User
	err := dao.DB.WithContext(ctx).
		Select("id", "group_names").
		Where("group_names LIKE ?", "%"+models.GroupAdmins+"%").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(users))
	for _, u := range users {
		if u.IsAdmin() {
			ids[u.ID] = true
		}
	}
	return ids, nil
}
