package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"streetlight-watch/geo"
	"streetlight-watch/models"
)

// MemoryStore is an in-process Store. Documents are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]models.User
	reports map[primitive.ObjectID]models.Report
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[primitive.ObjectID]models.User),
		reports: make(map[primitive.ObjectID]models.Report),
		now:     time.Now,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ====================== USERS ======================

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindUserByResetToken(ctx context.Context, digest string, now time.Time) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if digest != "" && u.PasswordResetToken == digest &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryStore) mutateUser(id primitive.ObjectID, fn func(u *models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return &u, nil
}

func (s *MemoryStore) IncrementLoginAttempts(ctx context.Context, id primitive.ObjectID, lockUntil *time.Time) error {
	_, err := s.mutateUser(id, func(u *models.User) {
		u.LoginAttempts++
		if lockUntil != nil {
			t := *lockUntil
			u.LockUntil = &t
		}
	})
	return err
}

func (s *MemoryStore) ResetLoginAttempts(ctx context.Context, id primitive.ObjectID, attempts int) error {
	_, err := s.mutateUser(id, func(u *models.User) {
		u.LoginAttempts = attempts
		u.LockUntil = nil
	})
	return err
}

func (s *MemoryStore) RecordLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.mutateUser(id, func(u *models.User) {
		u.LoginAttempts = 0
		u.LockUntil = nil
		u.LastLogin = &at
	})
	return err
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, changedAt time.Time) error {
	_, err := s.mutateUser(id, func(u *models.User) {
		u.Password = hash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
		u.UpdatedAt = s.now()
	})
	return err
}

func (s *MemoryStore) SetPasswordResetToken(ctx context.Context, id primitive.ObjectID, digest string, expires time.Time) error {
	_, err := s.mutateUser(id, func(u *models.User) {
		u.PasswordResetToken = digest
		u.PasswordResetExpires = &expires
	})
	return err
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.User, error) {
	return s.mutateUser(id, func(u *models.User) {
		if update.Name != nil {
			u.Name = *update.Name
		}
		if update.Phone != nil {
			u.Phone = *update.Phone
		}
		if update.Address != nil {
			u.Address = *update.Address
		}
		u.UpdatedAt = s.now()
	})
}

func (s *MemoryStore) IncrementReportsSubmitted(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.mutateUser(id, func(u *models.User) { u.ReportsSubmitted++ })
	return err
}

func (s *MemoryStore) IncrementReportsResolved(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.mutateUser(id, func(u *models.User) { u.ReportsResolved++ })
	return err
}

func (s *MemoryStore) CountUsersByRole(ctx context.Context) ([]RoleCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRole := map[models.Role]*RoleCount{}
	for _, u := range s.users {
		rc, ok := byRole[u.Role]
		if !ok {
			rc = &RoleCount{Role: u.Role}
			byRole[u.Role] = rc
		}
		rc.Count++
		rc.ReportsSubmitted += int64(u.ReportsSubmitted)
		rc.ReportsResolved += int64(u.ReportsResolved)
	}

	counts := make([]RoleCount, 0, len(byRole))
	for _, rc := range byRole {
		counts = append(counts, *rc)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Role < counts[j].Role })
	return counts, nil
}

// ====================== REPORTS ======================

func (s *MemoryStore) InsertReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	now := s.now()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	s.reports[report.ID] = cloneReport(*report)
	return nil
}

func (s *MemoryStore) FindReportByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = cloneReport(r)
	return &r, nil
}

func (s *MemoryStore) SaveReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[report.ID]; !ok {
		return ErrNotFound
	}
	report.UpdatedAt = s.now()
	s.reports[report.ID] = cloneReport(*report)
	return nil
}

func (s *MemoryStore) DeleteReport(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

func matchesFilter(r models.Report, f ReportFilter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.LightCondition != "" && r.LightCondition != f.LightCondition {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.City != "" && r.Location.City != f.City {
		return false
	}
	if f.ReportedBy != nil && r.ReportedBy != *f.ReportedBy {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Title), needle) &&
			!strings.Contains(strings.ToLower(r.Description), needle) {
			return false
		}
	}
	if f.WorkerID != nil {
		working := r.Status == models.StatusAssigned || r.Status == models.StatusInProgress
		mine := r.AssignedTo != nil && *r.AssignedTo == *f.WorkerID
		if !working && !mine {
			return false
		}
	}
	return true
}

func lessBy(field string, a, b models.Report) bool {
	switch field {
	case "updatedAt":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "title":
		return a.Title < b.Title
	case "status":
		return a.Status < b.Status
	case "severity":
		return a.Severity < b.Severity
	case "viewCount":
		return a.ViewCount < b.ViewCount
	case "duplicateCount":
		return a.DuplicateCount < b.DuplicateCount
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (s *MemoryStore) ListReports(ctx context.Context, f ReportFilter) ([]models.Report, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.Report{}
	for _, r := range s.reports {
		if matchesFilter(r, f) {
			matched = append(matched, cloneReport(r))
		}
	}

	sortBy := f.SortBy
	if !SortableFields[sortBy] {
		sortBy = "createdAt"
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if f.SortDesc {
			a, b = b, a
		}
		if lessBy(sortBy, a, b) {
			return true
		}
		if lessBy(sortBy, b, a) {
			return false
		}
		return a.ID.Hex() < b.ID.Hex()
	})

	total := int64(len(matched))
	start := f.Skip
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) FindNear(ctx context.Context, q NearQuery) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		report   models.Report
		distance float64
	}

	var hits []hit
	for _, r := range s.reports {
		if q.ExcludeID != nil && r.ID == *q.ExcludeID {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, r.Status) {
			continue
		}
		d := geo.Distance(q.Lat, q.Lng, r.Location.Lat(), r.Location.Lng())
		if d > q.RadiusMeters {
			continue
		}
		hits = append(hits, hit{report: r, distance: d})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].report.CreatedAt.Before(hits[j].report.CreatedAt)
	})
	if q.Limit > 0 && int64(len(hits)) > q.Limit {
		hits = hits[:q.Limit]
	}

	reports := make([]models.Report, 0, len(hits))
	for _, h := range hits {
		reports = append(reports, cloneReport(h.report))
	}
	return reports, nil
}

func (s *MemoryStore) mutateReport(id primitive.ObjectID, fn func(r *models.Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	fn(&r)
	s.reports[id] = r
	return nil
}

func (s *MemoryStore) IncrementDuplicateCount(ctx context.Context, id primitive.ObjectID) error {
	return s.mutateReport(id, func(r *models.Report) { r.DuplicateCount++ })
}

func (s *MemoryStore) IncrementViewCount(ctx context.Context, id primitive.ObjectID) error {
	return s.mutateReport(id, func(r *models.Report) { r.ViewCount++ })
}

func (s *MemoryStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := map[models.Status]int64{}
	for _, r := range s.reports {
		byStatus[r.Status]++
	}

	counts := []StatusCount{}
	for _, st := range models.AllStatuses {
		if n := byStatus[st]; n > 0 {
			counts = append(counts, StatusCount{Status: st, Count: n})
		}
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Status < counts[j].Status })
	return counts, nil
}

func (s *MemoryStore) DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[string]*DailyCount{}
	for _, r := range s.reports {
		if r.CreatedAt.Before(since) {
			continue
		}
		day := r.CreatedAt.UTC().Format("2006-01-02")
		dc, ok := byDay[day]
		if !ok {
			dc = &DailyCount{Date: day}
			byDay[day] = dc
		}
		dc.Count++
		if containsStatus(resolvedStatuses, r.Status) {
			dc.Resolved++
		}
	}

	counts := make([]DailyCount, 0, len(byDay))
	for _, dc := range byDay {
		dc.Pending = dc.Count - dc.Resolved
		counts = append(counts, *dc)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Date < counts[j].Date })
	return counts, nil
}

func containsStatus(list []models.Status, s models.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneReport(r models.Report) models.Report {
	r.Location.Coordinates = append([]float64(nil), r.Location.Coordinates...)
	if r.Images != nil {
		images := make([]models.Image, len(r.Images))
		for i, img := range r.Images {
			if img.Quality != nil {
				q := *img.Quality
				q.Warnings = append([]string(nil), q.Warnings...)
				img.Quality = &q
			}
			images[i] = img
		}
		r.Images = images
	}
	return r
}
