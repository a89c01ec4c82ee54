package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"streetlight-watch/apperrors"
	"streetlight-watch/models"
	"streetlight-watch/services"
)

func ptr[T any](v T) *T { return &v }

func TestCheckUpdate(t *testing.T) {
	owner := primitive.NewObjectID()
	worker := primitive.NewObjectID()
	report := &models.Report{ReportedBy: owner, AssignedTo: &worker, Status: models.StatusAssigned}

	tests := []struct {
		name     string
		actor    services.Actor
		update   services.ReportUpdate
		wantKind apperrors.Kind
	}{
		{
			name:   "citizen edits own title",
			actor:  services.Actor{ID: owner, Role: models.RoleCitizen},
			update: services.ReportUpdate{Title: ptr("New title here")},
		},
		{
			name:     "citizen edits someone else's report",
			actor:    services.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
			update:   services.ReportUpdate{Title: ptr("New title here")},
			wantKind: apperrors.KindForbidden,
		},
		{
			name:     "citizen changes status",
			actor:    services.Actor{ID: owner, Role: models.RoleCitizen},
			update:   services.ReportUpdate{Status: ptr(models.StatusClosed)},
			wantKind: apperrors.KindForbidden,
		},
		{
			name:   "assigned worker starts work",
			actor:  services.Actor{ID: worker, Role: models.RoleWorker},
			update: services.ReportUpdate{Status: ptr(models.StatusInProgress)},
		},
		{
			name:     "worker verifies",
			actor:    services.Actor{ID: worker, Role: models.RoleWorker},
			update:   services.ReportUpdate{Status: ptr(models.StatusVerified)},
			wantKind: apperrors.KindForbidden,
		},
		{
			name:     "worker edits title",
			actor:    services.Actor{ID: worker, Role: models.RoleWorker},
			update:   services.ReportUpdate{Title: ptr("New title here")},
			wantKind: apperrors.KindForbidden,
		},
		{
			name:     "unassigned worker",
			actor:    services.Actor{ID: primitive.NewObjectID(), Role: models.RoleWorker},
			update:   services.ReportUpdate{Status: ptr(models.StatusInProgress)},
			wantKind: apperrors.KindForbidden,
		},
		{
			name:  "admin edits everything",
			actor: services.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin},
			update: services.ReportUpdate{
				Title:    ptr("New title here"),
				Severity: ptr(models.SeverityHigh),
				Status:   ptr(models.StatusInProgress),
			},
		},
		{
			name:     "unknown role",
			actor:    services.Actor{ID: owner, Role: models.Role("guest")},
			update:   services.ReportUpdate{Title: ptr("New title here")},
			wantKind: apperrors.KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := services.CheckUpdate(tt.actor, report, tt.update)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
		})
	}
}

func TestMutableFields(t *testing.T) {
	assert.Equal(t, []string{"description", "title"}, services.MutableFields(models.RoleCitizen))
	assert.Equal(t, []string{"resolutionNotes", "status"}, services.MutableFields(models.RoleWorker))
	assert.NotContains(t, services.MutableFields(models.RoleAdmin), "reportedBy")
	assert.Empty(t, services.MutableFields(models.Role("guest")))
}
