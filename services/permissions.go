package services

import (
	"sort"
	"strings"

	"streetlight-watch/apperrors"
	"streetlight-watch/models"
)

// Report fields that can be changed through an update.
const (
	FieldTitle                   = "title"
	FieldDescription             = "description"
	FieldStatus                  = "status"
	FieldSeverity                = "severity"
	FieldLightCondition          = "lightCondition"
	FieldPoleNumber              = "poleNumber"
	FieldAssignedTo              = "assignedTo"
	FieldResolutionNotes         = "resolutionNotes"
	FieldReviewNotes             = "reviewNotes"
	FieldRequiresReview          = "requiresReview"
	FieldEstimatedResolutionTime = "estimatedResolutionTime"
)

type fieldSet map[string]bool

// capabilities maps each role to the report fields it may change.
var capabilities = map[models.Role]fieldSet{
	models.RoleCitizen: {
		FieldTitle:       true,
		FieldDescription: true,
	},
	models.RoleWorker: {
		FieldStatus:          true,
		FieldResolutionNotes: true,
	},
	models.RoleAdmin: {
		FieldTitle:                   true,
		FieldDescription:             true,
		FieldStatus:                  true,
		FieldSeverity:                true,
		FieldLightCondition:          true,
		FieldPoleNumber:              true,
		FieldAssignedTo:              true,
		FieldResolutionNotes:         true,
		FieldReviewNotes:             true,
		FieldRequiresReview:          true,
		FieldEstimatedResolutionTime: true,
	},
}

// workerStatuses are the only statuses a worker may move a report to.
var workerStatuses = map[models.Status]bool{
	models.StatusInProgress: true,
	models.StatusResolved:   true,
}

// MutableFields returns the fields role may change, sorted.
func MutableFields(role models.Role) []string {
	fields := make([]string, 0, len(capabilities[role]))
	for f := range capabilities[role] {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// CheckUpdate verifies that actor may apply update to report.
func CheckUpdate(actor Actor, report *models.Report, update ReportUpdate) error {
	switch actor.Role {
	case models.RoleCitizen:
		if report.ReportedBy != actor.ID {
			return apperrors.Forbidden("Not authorized to update this report")
		}
	case models.RoleWorker:
		if report.AssignedTo == nil || *report.AssignedTo != actor.ID {
			return apperrors.Forbidden("Not authorized to update this report")
		}
		if update.Status != nil && !workerStatuses[*update.Status] {
			return apperrors.Newf(apperrors.KindForbidden, "Workers may not set status %s", *update.Status)
		}
	case models.RoleAdmin:
	default:
		return apperrors.Forbidden("Not authorized to update this report")
	}

	allowed := capabilities[actor.Role]
	var denied []string
	for _, f := range update.Fields() {
		if !allowed[f] {
			denied = append(denied, f)
		}
	}
	if len(denied) > 0 {
		return apperrors.Newf(apperrors.KindForbidden, "Role %s may not update: %s", actor.Role, strings.Join(denied, ", "))
	}
	return nil
}
