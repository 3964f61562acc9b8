package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"wellness/wellness/services/activity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(familyJSON))
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumberOfChildren)
	assert.Len(t, p.FamilyMembers, 2)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", `{`, "body"},
		{"bad marital status", `{"marital_status":"complicated","number_of_children":1,"location":"NY","support_system_type":["family_nearby"],"family_members":[{"name":"Al","age":3,"wellness_level":"beginner","primary_goals":["energy_boost"]}]}`, "marital_status"},
		{"no children", `{"marital_status":"single","number_of_children":0,"location":"NY","support_system_type":["family_nearby"],"family_members":[{"name":"Al","age":3,"wellness_level":"beginner","primary_goals":["energy_boost"]}]}`, "number_of_children"},
		{"member without age", `{"marital_status":"single","number_of_children":1,"location":"NY","support_system_type":["family_nearby"],"family_members":[{"name":"Al","wellness_level":"beginner","primary_goals":["energy_boost"]}]}`, "family_members[0].age"},
		{"bad phone", `{"marital_status":"single","number_of_children":1,"location":"NY","support_system_type":["family_nearby"],"family_members":[{"name":"Al","age":3,"wellness_level":"beginner","primary_goals":["energy_boost"]}],"emergency_contacts":[{"name":"Bo","relationship":"aunt","phone":"call me"}]}`, "emergency_contacts[0].phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.body))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, http.StatusBadRequest, StatusCode(err))
			fields := make([]string, 0, len(ve.Details))
			for _, d := range ve.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestProfileSave(t *testing.T) {
	e := newEnv(t)
	ctrl := e.profiles()
	ctx := context.Background()

	_, err := ctrl.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	body, created, err := ctrl.Save(ctx, "u1", []byte(familyJSON))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Profile created successfully", body["message"])

	_, created, err = ctrl.Save(ctx, "u1", []byte(familyJSON))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Len(t, e.activities(t, activity.OnboardingComplete), 1, "onboarding is recorded once")

	fp, raw, err := ctrl.Family(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Austin, TX", fp.Location)
	assert.NotEmpty(t, raw)

	stored, err := ctrl.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.OnboardingCompleted)

	missing, _, err := ctrl.Family(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileContext(t *testing.T) {
	p, err := ParseProfile([]byte(familyJSON))
	require.NoError(t, err)

	got := ProfileContext(p)
	assert.Contains(t, got, "The user is married with 2 family member(s) living in Austin, TX.")
	assert.Contains(t, got, "Family member 1: 8 years old, beginner wellness level. Goals: better_sleep.")
	assert.Contains(t, got, "Current activities: yoga (weekly).")
	assert.Contains(t, got, "Available support: family_nearby.")
	assert.Empty(t, ProfileContext(nil))
}
