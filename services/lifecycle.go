package services

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streetlight-watch/apperrors"
	"streetlight-watch/models"
)

var transitions = map[models.Status][]models.Status{
	models.StatusPending:     {models.StatusUnderReview, models.StatusAssigned, models.StatusRejected},
	models.StatusUnderReview: {models.StatusPending, models.StatusAssigned, models.StatusRejected},
	models.StatusAssigned:    {models.StatusInProgress, models.StatusPending},
	models.StatusInProgress:  {models.StatusResolved, models.StatusAssigned},
	models.StatusResolved:    {models.StatusVerified, models.StatusInProgress},
	models.StatusVerified:    {models.StatusClosed, models.StatusResolved},
	models.StatusClosed:      {},
	models.StatusRejected:    {models.StatusPending},
}

// AllowedTransitions returns the statuses reachable from status in one step.
func AllowedTransitions(status models.Status) []models.Status {
	next := transitions[status]
	out := make([]models.Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type TransitionInput struct {
	Actor Actor
	// AssignTo is the worker receiving an assigned report. The actor is
	// used when it is nil.
	AssignTo *primitive.ObjectID
	Notes    string
	Now      time.Time
}

// ApplyTransition moves report to status to and stamps the fields that
// belong to the target status. The report is left untouched on error.
func ApplyTransition(report *models.Report, to models.Status, in TransitionInput) error {
	from := report.Status
	if !CanTransition(from, to) {
		return apperrors.Newf(apperrors.KindValidation, "Invalid status transition from %s to %s", from, to)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	actor := in.Actor.ID

	report.Status = to
	switch to {
	case models.StatusAssigned:
		assignee := actor
		if in.AssignTo != nil {
			assignee = *in.AssignTo
		}
		report.AssignedTo = &assignee
		report.AssignedAt = &now
	case models.StatusResolved:
		report.ResolvedBy = &actor
		report.ResolvedAt = &now
		if in.Notes != "" {
			report.ResolutionNotes = in.Notes
		}
	case models.StatusVerified:
		report.VerifiedBy = &actor
		report.VerifiedAt = &now
	case models.StatusClosed:
		report.ActualResolutionTime = &now
	case models.StatusRejected:
		report.ReviewedBy = &actor
		report.ReviewedAt = &now
		if in.Notes != "" {
			report.ReviewNotes = in.Notes
		}
	}
	return nil
}
