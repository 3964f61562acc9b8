package dao

import (
	"context"
	"errors"

	"wellness/wellness/sources/psql/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProfileDAO struct {
	DB *gorm.DB
}

func NewProfileDAO(db *gorm.DB) *ProfileDAO {
	return &ProfileDAO{DB: db}
}

func (dao *ProfileDAO) GetByUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := dao.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert stores the profile and returns the saved row, whether it was created,
// and the onboarding flag it had before the write.
func (dao *ProfileDAO) Upsert(ctx context.Context, userID string, profile datatypes.JSON, onboarded bool) (*models.UserProfile, bool, bool, error) {
	var (
		saved        models.UserProfile
		created      bool
		wasOnboarded bool
	)
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&saved, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			saved = models.UserProfile{
				UserID:              userID,
				Profile:             profile,
				OnboardingCompleted: onboarded,
				Version:             models.ProfileVersion,
			}
			return tx.Create(&saved).Error
		}
		if err != nil {
			return err
		}
		wasOnboarded = saved.OnboardingCompleted
		saved.Profile = profile
		saved.OnboardingCompleted = onboarded
		return tx.Save(&saved).Error
	})
	if err != nil {
		return nil, false, false, err
	}
	return &saved, created, wasOnboarded, nil
}

func (dao *ProfileDAO) ListAll(ctx context.Context) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	if err := dao.DB.WithContext(ctx).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (dao *ProfileDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserProfile{})
	return res.RowsAffected, res.Error
}
