package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"wellness/wellness/services/activity"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/logging"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	return v
}

type CurrentActivity struct {
	Type      string `json:"type" validate:"required,oneof=nutrition_counseling personal_training mindfulness_coaching yoga meditation sleep_coaching"`
	Frequency string `json:"frequency" validate:"required"`
	Provider  string `json:"provider,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}

type FamilyMember struct {
	Name                string            `json:"name" validate:"required,min=2,max=100"`
	Age                 *int              `json:"age" validate:"required,min=0,max=120"`
	WellnessLevel       string            `json:"wellness_level" validate:"required,oneof=beginner intermediate advanced"`
	PrimaryGoals        []string          `json:"primary_goals" validate:"required,dive,oneof=weight_management fitness_improvement stress_reduction better_sleep nutrition_improvement energy_boost"`
	CurrentActivities   []CurrentActivity `json:"current_activities" validate:"dive"`
	HealthConditions    []string          `json:"health_conditions,omitempty"`
	DietaryRestrictions []string          `json:"dietary_restrictions,omitempty"`
	PreferredActivities []string          `json:"preferred_activities,omitempty"`
	Challenges          []string          `json:"challenges,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Relationship string `json:"relationship" validate:"required,min=2,max=50"`
	Phone        string `json:"phone" validate:"required,phone"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

// FamilyProfile is the onboarding questionnaire.
type FamilyProfile struct {
	MaritalStatus              string             `json:"marital_status" validate:"required,oneof=single married divorced widowed separated domestic_partnership"`
	NumberOfChildren           int                `json:"number_of_children" validate:"min=1"`
	Location                   string             `json:"location" validate:"required,min=2,max=200"`
	SupportSystemType          []string           `json:"support_system_type" validate:"required,dive,oneof=family_nearby professional_help community_support online_support limited_support"`
	FamilyMembers              []FamilyMember     `json:"family_members" validate:"required,dive"`
	PreferredCommunicationTime []string           `json:"preferred_communication_time,omitempty" validate:"dive,clock"`
	EmergencyContacts          []EmergencyContact `json:"emergency_contacts,omitempty" validate:"dive"`
	OnboardingCompleted        bool               `json:"onboarding_completed"`
	BiggestChallenges          []string           `json:"biggest_challenges,omitempty" validate:"dive,oneof=nutrition exercise sleep stress work_life_balance consistency motivation"`
	OtherChallengeText         string             `json:"other_challenge_text,omitempty"`
	OtherChallengeTexts        []string           `json:"other_challenge_texts,omitempty"`
	DesiredOutcomes            []string           `json:"desired_outcomes,omitempty" validate:"dive,oneof=feel_healthier build_habits reduce_stress reach_goals support_system"`
	OtherOutcomeText           string             `json:"other_outcome_text,omitempty"`
	OtherOutcomeTexts          []string           `json:"other_outcome_texts,omitempty"`
	FamilyMembersInfo          []map[string]any   `json:"family_members_info,omitempty"`
}

// fieldErrors turns validator output into client facing details.
func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, FieldError{Field: field, Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "phone":
		return "invalid phone number"
	case "clock":
		return "must be a time in HH:MM or HH:MM:SS format"
	case "email":
		return "invalid email address"
	}
	return "invalid value"
}

// ParseProfile decodes and validates a profile body.
func ParseProfile(body []byte) (*FamilyProfile, error) {
	var p FamilyProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ValidationError{Message: "Invalid profile data", Details: []FieldError{{Field: "body", Message: err.Error()}}}
	}
	if err := validate.Struct(&p); err != nil {
		return nil, &ValidationError{Message: "Invalid profile data", Details: fieldErrors(err)}
	}
	return &p, nil
}

type ProfileController struct {
	profileDAO *dao.ProfileDAO
	activity   *activity.Recorder
}

func NewProfileController(profileDAO *dao.ProfileDAO, rec *activity.Recorder) *ProfileController {
	return &ProfileController{profileDAO: profileDAO, activity: rec}
}

func (c *ProfileController) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := c.profileDAO.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("Profile not found")
	}
	return p, nil
}

// Family returns the parsed profile of a user, or nil when none is stored.
func (c *ProfileController) Family(ctx context.Context, userID string) (*FamilyProfile, datatypes.JSON, error) {
	p, err := c.profileDAO.GetByUser(ctx, userID)
	if err != nil || p == nil {
		return nil, nil, err
	}
	var fp FamilyProfile
	if err := json.Unmarshal(p.Profile, &fp); err != nil {
		return nil, nil, fmt.Errorf("decode profile: %w", err)
	}
	return &fp, p.Profile, nil
}

// Save upserts the profile. It reports whether the row was created.
func (c *ProfileController) Save(ctx context.Context, userID string, body []byte) (map[string]any, bool, error) {
	defer logging.LogDuration(ctx, "profile_save")()

	profile, err := ParseProfile(body)
	if err != nil {
		return nil, false, err
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, false, err
	}

	saved, created, wasOnboarded, err := c.profileDAO.Upsert(ctx, userID, datatypes.JSON(raw), profile.OnboardingCompleted)
	if err != nil {
		return nil, false, fmt.Errorf("save profile: %w", err)
	}
	if profile.OnboardingCompleted && !wasOnboarded {
		c.activity.Record(ctx, userID, activity.OnboardingComplete, map[string]any{
			"familyMembers": len(profile.FamilyMembers),
		})
	}
	logging.AppLogger.Info("profile saved", zap.String("user_id", userID), zap.Bool("created", created))

	msg := "Profile updated successfully"
	if created {
		msg = "Profile created successfully"
	}
	return map[string]any{
		"message": msg,
		"userId":  saved.UserID,
		"profile": profile,
	}, created, nil
}
