package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"streetlight-watch/apperrors"
	"streetlight-watch/geo"
	"streetlight-watch/models"
	"streetlight-watch/repository"
	"streetlight-watch/services"
	"streetlight-watch/services/mocks"
)

const (
	testLat = 19.0760
	testLng = 72.8777
)

type reportFixture struct {
	store    *repository.MemoryStore
	media    *mocks.MockMediaStore
	assessor *mocks.MockImageAssessor
	geocoder *mocks.MockGeocoder
	svc      *services.ReportService

	citizen services.Actor
	worker  services.Actor
	admin   services.Actor
	now     time.Time
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &reportFixture{
		store:    repository.NewMemoryStore(),
		media:    mocks.NewMockMediaStore(ctrl),
		assessor: mocks.NewMockImageAssessor(ctrl),
		geocoder: mocks.NewMockGeocoder(ctrl),
		now:      time.Date(2026, 10, 1, 18, 30, 0, 0, time.UTC),
	}
	f.svc = services.NewReportService(
		services.DefaultReportConfig(),
		f.store, f.store,
		f.media, f.assessor, f.geocoder,
		zaptest.NewLogger(t),
	).WithClock(func() time.Time { return f.now })

	f.citizen = f.createUser(t, "citizen@example.com", models.RoleCitizen)
	f.worker = f.createUser(t, "worker@example.com", models.RoleWorker)
	f.admin = f.createUser(t, "admin@example.com", models.RoleAdmin)
	return f
}

func (f *reportFixture) createUser(t *testing.T, email string, role models.Role) services.Actor {
	t.Helper()
	u := &models.User{Name: "Test User", Email: email, Role: role, IsActive: true}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return services.ActorFromUser(u)
}

func (f *reportFixture) user(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := f.store.FindUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *reportFixture) report(t *testing.T, id primitive.ObjectID) *models.Report {
	t.Helper()
	r, err := f.store.FindReportByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func baseInput() services.CreateReportInput {
	return services.CreateReportInput{
		Title:          "Streetlight not working",
		Description:    "Completely dark since Monday",
		Latitude:       testLat,
		Longitude:      testLng,
		LightCondition: models.ConditionNotWorking,
		Severity:       models.SeverityLow,
		Address:        "Marine Drive",
		City:           "Mumbai",
		Pincode:        "400020",
	}
}

func jpegFile(name string) services.ImageFile {
	return services.ImageFile{Filename: name, ContentType: "image/jpeg", Size: 4, Data: []byte{0xff, 0xd8, 0xff, 0xe0}}
}

func cleanQuality() *services.QualityReport {
	return &services.QualityReport{Brightness: 130, Width: 1280, Height: 720, Resolution: "1280x720", Orientation: "landscape"}
}

func uploaded(id string) *services.UploadResult {
	return &services.UploadResult{
		PublicID:     id,
		URL:          "https://storage.googleapis.com/bucket/" + id + ".jpg",
		ThumbnailURL: "https://storage.googleapis.com/bucket/" + id + "_thumb.jpg",
		Width:        1280,
		Height:       720,
		Format:       "jpeg",
	}
}

func TestCreateReport_SameCoordinatesIsDuplicate(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	assert.False(t, first.Report.IsDuplicate)
	assert.Empty(t, first.DuplicateInfo)

	second, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	assert.True(t, second.Report.IsDuplicate)
	require.NotNil(t, second.Report.DuplicateOf)
	assert.Equal(t, first.Report.ID, *second.Report.DuplicateOf)
	assert.Equal(t, 1, second.Report.DuplicateCount)
	assert.Equal(t, "Similar report found nearby (1 reports)", second.DuplicateInfo)

	assert.Equal(t, 1, f.report(t, first.Report.ID).DuplicateCount)
	assert.True(t, f.report(t, second.Report.ID).IsDuplicate)
	assert.Equal(t, 2, f.user(t, f.citizen.ID).ReportsSubmitted)
}

// flakyReportStore fails writes on demand.
type flakyReportStore struct {
	*repository.MemoryStore
	failInsert bool
	saves      int
}

func (s *flakyReportStore) InsertReport(ctx context.Context, r *models.Report) error {
	if s.failInsert {
		return errors.New("write concern timeout")
	}
	return s.MemoryStore.InsertReport(ctx, r)
}

func (s *flakyReportStore) SaveReport(ctx context.Context, r *models.Report) error {
	s.saves++
	return errors.New("write concern timeout")
}

func TestCreateReport_StoresDecisionsInOneWrite(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	store := &flakyReportStore{MemoryStore: f.store}
	svc := services.NewReportService(services.DefaultReportConfig(), store, f.store, f.media, f.assessor, f.geocoder, zaptest.NewLogger(t))

	first, err := svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)

	second, err := svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	assert.Zero(t, store.saves)

	stored := f.report(t, second.Report.ID)
	assert.True(t, stored.IsDuplicate)
	assert.True(t, stored.RequiresReview)
	assert.Equal(t, models.StatusUnderReview, stored.Status)
	assert.Equal(t, 1, f.report(t, first.Report.ID).DuplicateCount)
}

func TestCreateReport_FailedInsertLeavesNoTrace(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	store := &flakyReportStore{MemoryStore: f.store}
	svc := services.NewReportService(services.DefaultReportConfig(), store, f.store, f.media, f.assessor, f.geocoder, zaptest.NewLogger(t))

	first, err := svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)

	store.failInsert = true
	_, err = svc.CreateReport(ctx, f.citizen, baseInput())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	assert.Zero(t, f.report(t, first.Report.ID).DuplicateCount)
	_, total, err := f.store.ListReports(ctx, repository.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 1, f.user(t, f.citizen.ID).ReportsSubmitted)
}

func TestCreateReport_DuplicateRadius(t *testing.T) {
	tests := []struct {
		name          string
		offsetMeters  float64
		wantDuplicate bool
	}{
		{name: "40 m north", offsetMeters: 40, wantDuplicate: true},
		{name: "60 m north", offsetMeters: 60, wantDuplicate: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportFixture(t)
			ctx := context.Background()

			_, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
			require.NoError(t, err)

			in := baseInput()
			in.Latitude = geo.OffsetNorth(testLat, tt.offsetMeters)
			got, err := f.svc.CreateReport(ctx, f.citizen, in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDuplicate, got.Report.IsDuplicate)
		})
	}
}

func TestCreateReport_IgnoresClosedReports(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	closed := &models.Report{
		Title:    "Old fixed light",
		Location: models.NewLocation(testLat, testLng),
		Status:   models.StatusClosed,
	}
	require.NoError(t, f.store.InsertReport(ctx, closed))

	got, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	assert.False(t, got.Report.IsDuplicate)
	assert.Zero(t, f.report(t, closed.ID).DuplicateCount)
}

func TestCreateReport_ZeroImagesRequiresReview(t *testing.T) {
	f := newReportFixture(t)

	got, err := f.svc.CreateReport(context.Background(), f.citizen, baseInput())
	require.NoError(t, err)
	assert.True(t, got.Report.RequiresReview)
	assert.Equal(t, models.StatusUnderReview, got.Report.Status)
	assert.Equal(t, services.ReviewWarning, got.Warning)

	stored := f.report(t, got.Report.ID)
	assert.Equal(t, models.StatusUnderReview, stored.Status)
	assert.True(t, stored.RequiresReview)
}

func TestCreateReport_CriticalWithCleanImageRequiresReview(t *testing.T) {
	f := newReportFixture(t)
	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(cleanQuality(), nil)
	f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(uploaded("img-1"), nil)

	in := baseInput()
	in.Severity = models.SeverityCritical
	in.Images = []services.ImageFile{jpegFile("pole.jpg")}

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	require.Len(t, got.Report.Images, 1)
	assert.True(t, got.Report.RequiresReview)
	assert.Equal(t, models.StatusUnderReview, got.Report.Status)
}

func TestCreateReport_CleanLowSeverityIsPending(t *testing.T) {
	f := newReportFixture(t)
	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(cleanQuality(), nil)
	f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(uploaded("img-1"), nil)

	in := baseInput()
	in.Images = []services.ImageFile{jpegFile("pole.jpg")}

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	assert.False(t, got.Report.RequiresReview)
	assert.Equal(t, models.StatusPending, got.Report.Status)
	assert.Empty(t, got.Warning)
	assert.Empty(t, got.DuplicateInfo)

	img := got.Report.Images[0]
	assert.Equal(t, "img-1", img.PublicID)
	assert.Equal(t, "1280x720", img.Quality.Resolution)
	assert.Equal(t, f.now, img.UploadedAt)
}

func TestCreateReport_QualityWarningRequiresReview(t *testing.T) {
	f := newReportFixture(t)
	dark := cleanQuality()
	dark.Brightness = 20
	dark.Warnings = []string{"Image is too dark"}
	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(dark, nil)
	f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(uploaded("img-1"), nil)

	in := baseInput()
	in.Images = []services.ImageFile{jpegFile("night.jpg")}

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	assert.True(t, got.Report.RequiresReview)
	assert.Equal(t, []string{"Image is too dark"}, got.Report.Images[0].Quality.Warnings)
}

func TestCreateReport_AssessmentFailureBecomesWarning(t *testing.T) {
	f := newReportFixture(t)
	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(nil, errors.New("decode failed"))
	f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(uploaded("img-1"), nil)

	in := baseInput()
	in.Images = []services.ImageFile{jpegFile("odd.jpg")}

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	require.Len(t, got.Report.Images, 1)
	assert.True(t, got.Report.Images[0].HasWarnings())
	assert.True(t, got.Report.RequiresReview)
}

func TestCreateReport_UploadFailureSkipsImage(t *testing.T) {
	f := newReportFixture(t)
	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(cleanQuality(), nil).Times(2)
	gomock.InOrder(
		f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(nil, errors.New("bucket unavailable")),
		f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(uploaded("img-2"), nil),
	)

	in := baseInput()
	in.Images = []services.ImageFile{jpegFile("a.jpg"), jpegFile("b.jpg")}

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	require.Len(t, got.Report.Images, 1)
	assert.Equal(t, "img-2", got.Report.Images[0].PublicID)
	assert.Equal(t, models.StatusPending, got.Report.Status)
}

func TestCreateReport_AllUploadsFailRequiresReview(t *testing.T) {
	f := newReportFixture(t)
	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(cleanQuality(), nil)
	f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(nil, errors.New("bucket unavailable"))

	in := baseInput()
	in.Images = []services.ImageFile{jpegFile("a.jpg")}

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	assert.Empty(t, got.Report.Images)
	assert.True(t, got.Report.RequiresReview)
}

func TestCreateReport_GeocodeBackfill(t *testing.T) {
	f := newReportFixture(t)
	f.geocoder.EXPECT().Lookup(gomock.Any(), testLat, testLng).Return(&services.Address{
		FormattedAddress: "Nariman Point, Mumbai",
		City:             "Mumbai",
		Pincode:          "400021",
	}, nil)

	in := baseInput()
	in.Address, in.City, in.Pincode = "", "", ""

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	assert.Equal(t, "Nariman Point, Mumbai", got.Report.Location.Address)
	assert.Equal(t, "Mumbai", got.Report.Location.City)
	assert.Equal(t, "400021", got.Report.Location.Pincode)
}

func TestCreateReport_GeocodeFailureIsSwallowed(t *testing.T) {
	f := newReportFixture(t)
	f.geocoder.EXPECT().Lookup(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	in := baseInput()
	in.Address = ""

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	assert.Empty(t, got.Report.Location.Address)
	assert.Equal(t, "Mumbai", got.Report.Location.City)
}

func TestCreateReport_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *services.CreateReportInput)
		wantKind apperrors.Kind
	}{
		{
			name:     "latitude out of range",
			mutate:   func(in *services.CreateReportInput) { in.Latitude = 91 },
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "longitude out of range",
			mutate:   func(in *services.CreateReportInput) { in.Longitude = -181 },
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "outside the declared city",
			mutate:   func(in *services.CreateReportInput) { in.City = "Delhi" },
			wantKind: apperrors.KindOutOfServiceArea,
		},
		{
			name:     "short title",
			mutate:   func(in *services.CreateReportInput) { in.Title = "Out" },
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "unknown light condition",
			mutate:   func(in *services.CreateReportInput) { in.LightCondition = "dim" },
			wantKind: apperrors.KindValidation,
		},
		{
			name: "too many images",
			mutate: func(in *services.CreateReportInput) {
				for i := 0; i < 6; i++ {
					in.Images = append(in.Images, jpegFile("x.jpg"))
				}
			},
			wantKind: apperrors.KindValidation,
		},
		{
			name: "not an image",
			mutate: func(in *services.CreateReportInput) {
				in.Images = []services.ImageFile{{Filename: "notes.pdf", ContentType: "application/pdf", Size: 10}}
			},
			wantKind: apperrors.KindValidation,
		},
		{
			name: "image too large",
			mutate: func(in *services.CreateReportInput) {
				img := jpegFile("huge.jpg")
				img.Size = 6 << 20
				in.Images = []services.ImageFile{img}
			},
			wantKind: apperrors.KindValidation,
		},
		{
			name: "image declares too many pixels",
			mutate: func(in *services.CreateReportInput) {
				img := jpegFile("bomb.jpg")
				img.Width, img.Height = 30000, 30000
				in.Images = []services.ImageFile{img}
			},
			wantKind: apperrors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportFixture(t)
			in := baseInput()
			tt.mutate(&in)

			_, err := f.svc.CreateReport(context.Background(), f.citizen, in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))

			_, total, err := f.store.ListReports(context.Background(), repository.ReportFilter{})
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestCreateReport_UnknownCityIsAccepted(t *testing.T) {
	f := newReportFixture(t)
	in := baseInput()
	in.City = "Pune"

	got, err := f.svc.CreateReport(context.Background(), f.citizen, in)
	require.NoError(t, err)
	assert.Equal(t, "Pune", got.Report.Location.City)
}

func TestGetReport(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	id := created.Report.ID.Hex()

	got, err := f.svc.GetReport(ctx, f.citizen, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)

	_, err = f.svc.GetReport(ctx, f.worker, id)
	require.NoError(t, err)
	assert.Equal(t, 2, f.report(t, created.Report.ID).ViewCount)

	other := f.createUser(t, "other@example.com", models.RoleCitizen)
	_, err = f.svc.GetReport(ctx, other, id)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.svc.GetReport(ctx, f.admin, "not-an-id")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = f.svc.GetReport(ctx, f.admin, primitive.NewObjectID().Hex())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestListReports_RoleScoping(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	other := f.createUser(t, "other@example.com", models.RoleCitizen)

	for i := 0; i < 3; i++ {
		in := baseInput()
		in.Latitude = geo.OffsetNorth(testLat, float64(i)*500)
		_, err := f.svc.CreateReport(ctx, f.citizen, in)
		require.NoError(t, err)
	}
	_, err := f.svc.CreateReport(ctx, other, baseInput())
	require.NoError(t, err)

	page, err := f.svc.ListReports(ctx, f.citizen, services.ReportQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Reports, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)
	assert.Nil(t, page.Stats)
	for _, r := range page.Reports {
		assert.Equal(t, f.citizen.ID, r.ReportedBy)
	}

	page, err = f.svc.ListReports(ctx, f.admin, services.ReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Pagination.Total)
	assert.Equal(t, 10, page.Pagination.Limit)
	assert.NotEmpty(t, page.Stats)

	page, err = f.svc.ListReports(ctx, f.worker, services.ReportQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Pagination.Total)

	_, err = f.svc.ListReports(ctx, f.admin, services.ReportQuery{Limit: 101})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.ListReports(ctx, f.admin, services.ReportQuery{Status: "archived"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func insertAssigned(t *testing.T, f *reportFixture, worker primitive.ObjectID) *models.Report {
	t.Helper()
	r := &models.Report{
		Title:          "Pole leaning over road",
		Location:       models.NewLocation(testLat, testLng),
		LightCondition: models.ConditionBrokenPole,
		Severity:       models.SeverityHigh,
		Status:         models.StatusAssigned,
		AssignedTo:     &worker,
		ReportedBy:     f.citizen.ID,
	}
	require.NoError(t, f.store.InsertReport(context.Background(), r))
	return r
}

func TestUpdateReport_WorkerResolves(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	r := insertAssigned(t, f, f.worker.ID)

	got, err := f.svc.UpdateReport(ctx, f.worker, r.ID.Hex(), services.ReportUpdate{Status: ptr(models.StatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)

	got, err = f.svc.UpdateReport(ctx, f.worker, r.ID.Hex(), services.ReportUpdate{
		Status:          ptr(models.StatusResolved),
		ResolutionNotes: ptr("Replaced the bulb"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedBy)
	assert.Equal(t, f.worker.ID, *got.ResolvedBy)
	assert.Equal(t, f.now, *got.ResolvedAt)
	assert.Equal(t, "Replaced the bulb", got.ResolutionNotes)

	assert.Equal(t, models.StatusResolved, f.report(t, r.ID).Status)
	assert.Equal(t, 1, f.user(t, f.worker.ID).ReportsResolved)
}

func TestUpdateReport_IllegalTransition(t *testing.T) {
	f := newReportFixture(t)
	r := insertAssigned(t, f, f.worker.ID)

	_, err := f.svc.UpdateReport(context.Background(), f.admin, r.ID.Hex(), services.ReportUpdate{Status: ptr(models.StatusClosed)})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, "Invalid status transition from assigned to closed", apperrors.MessageOf(err))
	assert.Equal(t, models.StatusAssigned, f.report(t, r.ID).Status)
}

func TestUpdateReport_AdminAssigns(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	id := created.Report.ID.Hex()

	_, err = f.svc.UpdateReport(ctx, f.admin, id, services.ReportUpdate{
		Status:     ptr(models.StatusAssigned),
		AssignedTo: &f.citizen.ID,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	got, err := f.svc.UpdateReport(ctx, f.admin, id, services.ReportUpdate{
		Status:     ptr(models.StatusAssigned),
		AssignedTo: &f.worker.ID,
		Severity:   ptr(models.SeverityHigh),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, got.Status)
	assert.Equal(t, f.worker.ID, *got.AssignedTo)
	assert.Equal(t, models.SeverityHigh, got.Severity)
}

func TestUpdateReport_ReassignStampsAssignedAt(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	id := created.Report.ID.Hex()
	firstAssigned := f.now

	_, err = f.svc.UpdateReport(ctx, f.admin, id, services.ReportUpdate{
		Status:     ptr(models.StatusAssigned),
		AssignedTo: &f.worker.ID,
	})
	require.NoError(t, err)

	second := f.createUser(t, "worker2@example.com", models.RoleWorker)
	f.now = f.now.Add(3 * time.Hour)

	got, err := f.svc.UpdateReport(ctx, f.admin, id, services.ReportUpdate{AssignedTo: &second.ID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, got.Status)
	assert.Equal(t, second.ID, *got.AssignedTo)
	require.NotNil(t, got.AssignedAt)
	assert.True(t, got.AssignedAt.Equal(f.now))
	assert.True(t, got.AssignedAt.After(firstAssigned))
}

func TestUpdateReport_AssigneeRequiresAssignment(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)

	_, err = f.svc.UpdateReport(ctx, f.admin, created.Report.ID.Hex(), services.ReportUpdate{AssignedTo: &f.worker.ID})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, "Cannot reassign a report in under_review status", apperrors.MessageOf(err))
	assert.Nil(t, f.report(t, created.Report.ID).AssignedTo)

	r := insertAssigned(t, f, f.worker.ID)
	_, err = f.svc.UpdateReport(ctx, f.admin, r.ID.Hex(), services.ReportUpdate{
		Status:     ptr(models.StatusInProgress),
		AssignedTo: &f.admin.ID,
	})
	require.Error(t, err)
	assert.Equal(t, "assignedTo can only be set when assigning the report", apperrors.MessageOf(err))
	assert.Equal(t, models.StatusAssigned, f.report(t, r.ID).Status)
}

func TestUpdateReport_CitizenFieldsOnly(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	id := created.Report.ID.Hex()

	got, err := f.svc.UpdateReport(ctx, f.citizen, id, services.ReportUpdate{Title: ptr("Two lights out near gate")})
	require.NoError(t, err)
	assert.Equal(t, "Two lights out near gate", got.Title)

	_, err = f.svc.UpdateReport(ctx, f.citizen, id, services.ReportUpdate{Severity: ptr(models.SeverityCritical)})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.svc.UpdateReport(ctx, f.citizen, id, services.ReportUpdate{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestDeleteReport(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	r := insertAssigned(t, f, f.worker.ID)
	r.Images = []models.Image{{PublicID: "img-1"}, {PublicID: "img-2"}}
	require.NoError(t, f.store.SaveReport(ctx, r))

	err := f.svc.DeleteReport(ctx, f.citizen, r.ID.Hex())
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	f.media.EXPECT().Delete(gomock.Any(), "img-1").Return(errors.New("gone"))
	f.media.EXPECT().Delete(gomock.Any(), "img-2").Return(nil)

	require.NoError(t, f.svc.DeleteReport(ctx, f.admin, r.ID.Hex()))
	_, err = f.store.FindReportByID(ctx, r.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNearbyReports(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	for _, meters := range []float64{900, 100, 5000} {
		in := baseInput()
		in.Latitude = geo.OffsetNorth(testLat, meters)
		_, err := f.svc.CreateReport(ctx, f.citizen, in)
		require.NoError(t, err)
	}

	got, err := f.svc.NearbyReports(ctx, services.NearbyQuery{Lat: testLat, Lng: testLng})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0].Location.Lat(), got[1].Location.Lat())

	got, err = f.svc.NearbyReports(ctx, services.NearbyQuery{Lat: testLat, Lng: testLng, Radius: 1e9, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.NearbyReports(ctx, services.NearbyQuery{Lat: 100, Lng: testLng})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestAddImages(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)
	id := created.Report.ID.Hex()

	_, err = f.svc.AddImages(ctx, f.citizen, id, nil)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	other := f.createUser(t, "other@example.com", models.RoleCitizen)
	_, err = f.svc.AddImages(ctx, other, id, []services.ImageFile{jpegFile("a.jpg")})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	f.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).Return(cleanQuality(), nil)
	f.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(uploaded("img-9"), nil)

	got, err := f.svc.AddImages(ctx, f.citizen, id, []services.ImageFile{jpegFile("a.jpg")})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalImages)
	assert.Equal(t, "img-9", got.Images[0].PublicID)
	assert.Len(t, f.report(t, created.Report.ID).Images, 1)
}

func TestStatistics(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	f.now = time.Now()

	_, err := f.svc.CreateReport(ctx, f.citizen, baseInput())
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, []repository.StatusCount{{Status: models.StatusUnderReview, Count: 1}}, stats.Overall)
	require.Len(t, stats.Daily, 1)
	assert.Equal(t, int64(1), stats.Daily[0].Pending)
	assert.Len(t, stats.Users, 3)
}
