package services

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streetlight-watch/models"
)

const (
	ReviewWarning     = "Report requires manual review"
	reviewNoImages    = "no images attached"
	reviewImageIssues = "image quality warnings"
	reviewCritical    = "critical severity"
)

type ReviewDecision struct {
	RequiresReview bool
	// Status is the status the report must take; empty when unchanged.
	Status  models.Status
	Reasons []string
}

// DecideReview flags a report for manual triage when it has no images,
// any image carries a quality warning, or its severity is critical.
func DecideReview(report *models.Report) ReviewDecision {
	var reasons []string
	if !report.HasImages() {
		reasons = append(reasons, reviewNoImages)
	}
	for _, img := range report.Images {
		if img.HasWarnings() {
			reasons = append(reasons, reviewImageIssues)
			break
		}
	}
	if report.Severity == models.SeverityCritical {
		reasons = append(reasons, reviewCritical)
	}

	if len(reasons) == 0 {
		return ReviewDecision{}
	}
	return ReviewDecision{
		RequiresReview: true,
		Status:         models.StatusUnderReview,
		Reasons:        reasons,
	}
}

type DuplicateDecision struct {
	IsDuplicate bool
	DuplicateOf *primitive.ObjectID
	Count       int
}

// DecideDuplicate expects matches ordered nearest first.
func DecideDuplicate(matches []models.Report) DuplicateDecision {
	if len(matches) == 0 {
		return DuplicateDecision{}
	}
	id := matches[0].ID
	return DuplicateDecision{IsDuplicate: true, DuplicateOf: &id, Count: len(matches)}
}

func DuplicateNotice(count int) string {
	return fmt.Sprintf("Similar report found nearby (%d reports)", count)
}
