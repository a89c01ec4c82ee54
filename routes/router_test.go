package routes

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"streetlight-watch/controllers"
	"streetlight-watch/middlewares"
	"streetlight-watch/models"
	"streetlight-watch/repository"
	"streetlight-watch/services"
	"streetlight-watch/services/mocks"
	authUtils "streetlight-watch/utils"
)

const password = "Secret123"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	store    *repository.MemoryStore
	media    *mocks.MockMediaStore
	assessor *mocks.MockImageAssessor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	ctrl := gomock.NewController(t)

	store := repository.NewMemoryStore()
	tokens, err := authUtils.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)

	authCfg := services.DefaultAuthConfig()
	authCfg.BcryptCost = bcrypt.MinCost
	authSvc := services.NewAuthService(authCfg, store, tokens, log)

	media := mocks.NewMockMediaStore(ctrl)
	assessor := mocks.NewMockImageAssessor(ctrl)
	geocoder := mocks.NewMockGeocoder(ctrl)
	geocoder.EXPECT().Lookup(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	reportSvc := services.NewReportService(services.DefaultReportConfig(), store, store, media, assessor, geocoder, log)

	h := Handlers{
		Auth:    controllers.NewAuthController(authSvc, controllers.AuthControllerConfig{ExposeResetToken: true}, log),
		Users:   controllers.NewUserController(authSvc),
		Reports: controllers.NewReportController(reportSvc, 0, log),
		Health:  controllers.NewHealthController(store),
	}
	router := NewRouter(h, authSvc, nil, RouterConfig{}, log)
	return &testServer{router: router, store: store, media: media, assessor: assessor}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.send(t, req, token)
}

func (s *testServer) send(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

// seedUser stores an active user with the test password and logs it in.
func (s *testServer) seedUser(t *testing.T, email string, role models.Role) (string, *models.User) {
	t.Helper()
	u := &models.User{Name: "Seed User", Email: email, Phone: "9876543210", Password: password, Role: role, IsActive: true}
	require.NoError(t, u.HashPassword(bcrypt.MinCost))
	require.NoError(t, s.store.CreateUser(context.Background(), u))

	w, body := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return body["token"].(string), u
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return data
}

func reportBody() gin.H {
	return gin.H{
		"title":          "Streetlight not working",
		"description":    "Dark since Monday",
		"latitude":       19.0760,
		"longitude":      72.8777,
		"lightCondition": "not_working",
		"severity":       "low",
		"address":        "Marine Drive",
		"city":           "Mumbai",
		"pincode":        "400020",
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	register := gin.H{
		"name":            "Asha Rao",
		"email":           "asha@example.com",
		"phone":           "9876543210",
		"password":        password,
		"confirmPassword": password,
		"role":            "admin",
	}
	w, body := s.do(t, http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := dataOf(t, body)["user"].(map[string]any)
	assert.Equal(t, "citizen", user["role"])
	assert.NotContains(t, user, "password")

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middlewares.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	w, body = s.send(t, req, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asha@example.com", dataOf(t, body)["user"].(map[string]any)["email"])

	w, _ = s.do(t, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, w.Code)

	register["email"] = "other@example.com"
	register["password"] = "weak"
	w, body = s.do(t, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["details"])
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "lock@example.com", models.RoleCitizen)

	wrong := gin.H{"email": "lock@example.com", "password": "Wrong1234"}
	for i := 0; i < 5; i++ {
		w, _ := s.do(t, http.MethodPost, "/api/auth/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w, body := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "lock@example.com", "password": password})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "Account is locked. Try again in 60 minutes", body["error"])
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "reset@example.com", models.RoleCitizen)

	w, body := s.do(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "reset@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := body["resetToken"].(string)
	require.NotEmpty(t, token)

	w, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	newPassword := gin.H{"password": "Fresh1234", "confirmPassword": "Fresh1234"}
	w, _ = s.do(t, http.MethodPatch, "/api/auth/reset-password/"+token, "", newPassword)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(t, http.MethodPatch, "/api/auth/reset-password/"+token, "", newPassword)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Token is invalid or has expired", body["error"])

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "reset@example.com", "password": "Fresh1234"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReportLifecycle(t *testing.T) {
	s := newTestServer(t)
	citizen, _ := s.seedUser(t, "citizen@example.com", models.RoleCitizen)
	worker, workerUser := s.seedUser(t, "worker@example.com", models.RoleWorker)
	admin, _ := s.seedUser(t, "admin@example.com", models.RoleAdmin)

	w, body := s.do(t, http.MethodPost, "/api/reports", citizen, reportBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataOf(t, body)
	report := data["report"].(map[string]any)
	id := report["id"].(string)
	assert.Equal(t, "under_review", report["status"])
	assert.Equal(t, services.ReviewWarning, data["warnings"])

	w, body = s.do(t, http.MethodGet, "/api/reports/nearby?lat=19.0760&lng=72.8777", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["results"])

	w, _ = s.do(t, http.MethodPatch, "/api/reports/"+id, worker, gin.H{"status": "in_progress"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/reports/"+id, citizen, gin.H{"severity": "critical"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(t, http.MethodPatch, "/api/reports/"+id, admin, gin.H{"status": "assigned", "assignedTo": workerUser.ID.Hex()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "assigned", dataOf(t, body)["report"].(map[string]any)["status"])

	w, _ = s.do(t, http.MethodPatch, "/api/reports/"+id, worker, gin.H{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(t, http.MethodPatch, "/api/reports/"+id, worker, gin.H{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, w.Code, body)

	w, body = s.do(t, http.MethodPatch, "/api/reports/"+id, worker, gin.H{"status": "resolved", "resolutionNotes": "Replaced bulb"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "resolved", dataOf(t, body)["report"].(map[string]any)["status"])

	w, body = s.do(t, http.MethodPatch, "/api/reports/"+id, admin, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status transition from resolved to pending", body["error"])

	w, body = s.do(t, http.MethodGet, "/api/reports", citizen, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["results"])
	assert.NotContains(t, dataOf(t, body), "stats")

	w, body = s.do(t, http.MethodGet, "/api/reports", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, dataOf(t, body), "stats")

	w, _ = s.do(t, http.MethodGet, "/api/reports/stats", citizen, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/reports/stats", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/reports/"+id, citizen, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodDelete, "/api/reports/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/reports/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateReport_Validation(t *testing.T) {
	s := newTestServer(t)
	citizen, _ := s.seedUser(t, "citizen@example.com", models.RoleCitizen)

	tests := []struct {
		name   string
		mutate func(gin.H)
		want   int
	}{
		{name: "missing coordinates", mutate: func(b gin.H) { delete(b, "latitude") }, want: http.StatusBadRequest},
		{name: "latitude out of range", mutate: func(b gin.H) { b["latitude"] = 91.0 }, want: http.StatusBadRequest},
		{name: "short title", mutate: func(b gin.H) { b["title"] = "Hi" }, want: http.StatusBadRequest},
		{name: "outside service area", mutate: func(b gin.H) { b["city"] = "Delhi" }, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := reportBody()
			tt.mutate(body)
			w, _ := s.do(t, http.MethodPost, "/api/reports", citizen, body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w, _ := s.do(t, http.MethodPost, "/api/reports", "", reportBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartReport(t *testing.T, fields gin.H, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		value := string(b)
		if s, ok := v.(string); ok {
			value = s
		}
		require.NoError(t, mw.WriteField(k, value))
	}
	for name, data := range files {
		// the declared type is ignored in favour of the sniffed one
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateReport_Multipart(t *testing.T) {
	s := newTestServer(t)
	citizen, _ := s.seedUser(t, "citizen@example.com", models.RoleCitizen)

	s.assessor.EXPECT().Assess(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f services.ImageFile) (*services.QualityReport, error) {
			assert.Equal(t, "image/png", f.ContentType)
			assert.Equal(t, "pole.jpg", f.Filename)
			return &services.QualityReport{Brightness: 200, Width: 1280, Height: 720, Resolution: "1280x720", Orientation: "landscape"}, nil
		})
	s.media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(&services.UploadResult{
		PublicID: "streetlight-reports/one",
		URL:      "https://cdn.example.com/one",
		Format:   "png",
	}, nil)

	req := multipartReport(t, reportBody(), map[string][]byte{"pole.jpg": pngBytes(t)})
	req.Header.Set("User-Agent", "test-browser")
	req.Header.Set("Sec-CH-UA-Mobile", "?1")
	w, body := s.send(t, req, citizen)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	report := dataOf(t, body)["report"].(map[string]any)
	assert.Equal(t, "pending", report["status"])
	assert.Len(t, report["images"], 1)
	assert.Nil(t, dataOf(t, body)["warnings"])

	stored, total, err := s.store.ListReports(context.Background(), repository.ReportFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.NotNil(t, stored[0].DeviceInfo)
	assert.Equal(t, "mobile", stored[0].DeviceInfo.Device)
	assert.Equal(t, "test-browser", stored[0].DeviceInfo.Browser)
}

func TestCreateReport_RejectsNonImage(t *testing.T) {
	s := newTestServer(t)
	citizen, _ := s.seedUser(t, "citizen@example.com", models.RoleCitizen)

	req := multipartReport(t, reportBody(), map[string][]byte{"pole.jpg": []byte("definitely not an image")})
	w, body := s.send(t, req, citizen)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image files are allowed (jpeg, jpg, png, gif, webp)", body["error"])
}

// oversizedPNG declares a 30000x30000 image in a body of a few dozen bytes.
func oversizedPNG() []byte {
	chunk := func(typ string, data []byte) []byte {
		out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
		out = append(out, typ...)
		out = append(out, data...)
		return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(append([]byte(typ), data...)))
	}
	ihdr := binary.BigEndian.AppendUint32(nil, 30000)
	ihdr = binary.BigEndian.AppendUint32(ihdr, 30000)
	ihdr = append(ihdr, 8, 6, 0, 0, 0)

	data := append([]byte("\x89PNG\r\n\x1a\n"), chunk("IHDR", ihdr)...)
	data = append(data, chunk("IDAT", nil)...)
	return append(data, chunk("IEND", nil)...)
}

func TestCreateReport_RejectsOversizedDimensions(t *testing.T) {
	s := newTestServer(t)
	citizen, _ := s.seedUser(t, "citizen@example.com", models.RoleCitizen)

	req := multipartReport(t, reportBody(), map[string][]byte{"pole.png": oversizedPNG()})
	w, body := s.send(t, req, citizen)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Image pole.png exceeds the 50 megapixel limit", body["error"])

	_, total, err := s.store.ListReports(context.Background(), repository.ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "streetlight_api_requests_total")

	w, body = s.do(t, http.MethodGet, "/api/docs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docs := dataOf(t, body)
	assert.Equal(t, "active", docs["status"])
	endpoints := docs["endpoints"].(map[string]any)
	assert.Contains(t, endpoints, "auth")
	assert.Contains(t, endpoints, "health")
	assert.Contains(t, endpoints["reports"], map[string]any{"method": "GET", "path": "/api/reports/nearby"})
	assert.NotContains(t, endpoints, "metrics")

	w, body = s.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
}
