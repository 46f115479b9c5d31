package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetworks/fleet-api/internal/domain"
	"github.com/fleetworks/fleet-api/internal/http/handlers"
	httpmw "github.com/fleetworks/fleet-api/internal/http/middleware"
	"github.com/fleetworks/fleet-api/internal/repo/postgres"
	"github.com/fleetworks/fleet-api/internal/service"
	"github.com/fleetworks/fleet-api/pkg/config"
)

const testSecret = "handlers-test-secret"

// ---------- Mocks ----------

type mockUserRepo struct {
	nextID    int64
	users     map[int64]*domain.User
	byEmail   map[string]int64
	drivers   *mockDriverRepo
	lastLimit int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		nextID:  1,
		users:   make(map[int64]*domain.User),
		byEmail: make(map[string]int64),
	}
}

func (m *mockUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	if _, exists := m.byEmail[u.Email]; exists {
		return nil, domain.ErrEmailTaken
	}
	created := *u
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.nextID++
	m.users[created.ID] = &created
	m.byEmail[created.Email] = created.ID
	return &created, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	id, exists := m.byEmail[email]
	if !exists {
		return nil, nil
	}
	u := *m.users[id]
	return &u, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, exists := m.users[id]
	if !exists {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) Update(_ context.Context, id int64, patch postgres.UserPatch) (*domain.User, error) {
	u, exists := m.users[id]
	if !exists {
		return nil, nil
	}
	if patch.Email != nil && *patch.Email != u.Email {
		if _, taken := m.byEmail[*patch.Email]; taken {
			return nil, domain.ErrEmailTaken
		}
		delete(m.byEmail, u.Email)
		u.Email = *patch.Email
		m.byEmail[u.Email] = id
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Mobile != nil {
		u.Mobile = *patch.Mobile
	}
	if patch.DOB != nil {
		u.DOB = patch.DOB
	}
	if patch.ProfilePicURL != nil {
		u.ProfilePicURL = *patch.ProfilePicURL
	}
	if patch.Roles != nil {
		u.Roles = patch.Roles
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	u, exists := m.users[id]
	if !exists {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id int64) error {
	u, exists := m.users[id]
	if !exists {
		return domain.ErrNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.users, id)
	// FK cascade
	if m.drivers != nil {
		delete(m.drivers.byUserID, id)
	}
	return nil
}

func (m *mockUserRepo) ListWithDrivers(_ context.Context, limit, offset int) ([]domain.DriverProfile, error) {
	m.lastLimit = limit
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var profiles []domain.DriverProfile
	for _, id := range ids {
		u := m.users[id]
		p := domain.DriverProfile{UserInfo: *u.ToUserInfo()}
		if m.drivers != nil {
			if d, ok := m.drivers.byUserID[id]; ok {
				p.LicenseNumber = d.LicenseNumber
				p.LicenseExpiry = d.LicenseExpiry
				p.Address = d.Address
				p.Experience = d.Experience
				p.LicenseFileURL = d.LicenseFileURL
				p.AssignedVehicleID = d.AssignedVehicleID
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

type mockDriverRepo struct {
	nextID   int64
	byUserID map[int64]*domain.Driver
	users    *mockUserRepo
}

func newMockDriverRepo() *mockDriverRepo {
	return &mockDriverRepo{nextID: 1, byUserID: make(map[int64]*domain.Driver)}
}

func (m *mockDriverRepo) EnsureForUser(_ context.Context, userID int64) (*domain.Driver, error) {
	if d, exists := m.byUserID[userID]; exists {
		cp := *d
		return &cp, nil
	}
	d := &domain.Driver{ID: m.nextID, UserID: userID}
	m.nextID++
	m.byUserID[userID] = d
	cp := *d
	return &cp, nil
}

func (m *mockDriverRepo) FindByUserID(_ context.Context, userID int64) (*domain.Driver, error) {
	d, exists := m.byUserID[userID]
	if !exists {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *mockDriverRepo) Update(_ context.Context, userID int64, patch postgres.DriverPatch) (*domain.Driver, error) {
	d, exists := m.byUserID[userID]
	if !exists {
		return nil, nil
	}
	if patch.LicenseNumber != nil {
		d.LicenseNumber = *patch.LicenseNumber
	}
	if patch.LicenseExpiry != nil {
		d.LicenseExpiry = patch.LicenseExpiry
	}
	if patch.Address != nil {
		d.Address = *patch.Address
	}
	if patch.Experience != nil {
		d.Experience = *patch.Experience
	}
	if patch.LicenseFileURL != nil {
		d.LicenseFileURL = *patch.LicenseFileURL
	}
	cp := *d
	return &cp, nil
}

func (m *mockDriverRepo) AssignVehicle(_ context.Context, driverUserID, vehicleID, assignedBy int64) (*domain.Driver, error) {
	d, exists := m.byUserID[driverUserID]
	if !exists {
		return nil, nil
	}
	d.AssignedVehicleID = &vehicleID
	d.AssignedByID = &assignedBy
	cp := *d
	return &cp, nil
}

func (m *mockDriverRepo) List(_ context.Context, limit, offset int) ([]domain.DriverProfile, error) {
	type entry struct {
		userID int64
		d      *domain.Driver
	}
	var entries []entry
	for userID, d := range m.byUserID {
		entries = append(entries, entry{userID, d})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].d.ID < entries[j].d.ID })

	var profiles []domain.DriverProfile
	for _, e := range entries {
		p := domain.DriverProfile{
			LicenseNumber:     e.d.LicenseNumber,
			LicenseExpiry:     e.d.LicenseExpiry,
			Address:           e.d.Address,
			Experience:        e.d.Experience,
			LicenseFileURL:    e.d.LicenseFileURL,
			AssignedVehicleID: e.d.AssignedVehicleID,
		}
		if m.users != nil {
			if u, ok := m.users.users[e.userID]; ok {
				p.UserInfo = *u.ToUserInfo()
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

type mockVehicleRepo struct {
	nextID   int64
	vehicles map[int64]*domain.Vehicle
}

func newMockVehicleRepo() *mockVehicleRepo {
	return &mockVehicleRepo{nextID: 1, vehicles: make(map[int64]*domain.Vehicle)}
}

func (m *mockVehicleRepo) duplicate(id int64, chassis, registration string) bool {
	for _, v := range m.vehicles {
		if v.ID == id {
			continue
		}
		if v.ChassisNumber == chassis || v.RegistrationNumber == registration {
			return true
		}
	}
	return false
}

func (m *mockVehicleRepo) Create(_ context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	if m.duplicate(0, v.ChassisNumber, v.RegistrationNumber) {
		return nil, domain.ErrDuplicateVehicle
	}
	created := *v
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.nextID++
	m.vehicles[created.ID] = &created
	cp := created
	return &cp, nil
}

func (m *mockVehicleRepo) FindByID(_ context.Context, id int64) (*domain.Vehicle, error) {
	v, exists := m.vehicles[id]
	if !exists {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *mockVehicleRepo) List(_ context.Context, limit, offset int) ([]domain.Vehicle, error) {
	ids := make([]int64, 0, len(m.vehicles))
	for id := range m.vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.Vehicle
	for _, id := range ids {
		out = append(out, *m.vehicles[id])
	}
	return out, nil
}

func (m *mockVehicleRepo) Update(_ context.Context, id int64, patch postgres.VehiclePatch) (*domain.Vehicle, error) {
	v, exists := m.vehicles[id]
	if !exists {
		return nil, nil
	}
	chassis := v.ChassisNumber
	registration := v.RegistrationNumber
	if patch.ChassisNumber != nil {
		chassis = *patch.ChassisNumber
	}
	if patch.RegistrationNumber != nil {
		registration = *patch.RegistrationNumber
	}
	if m.duplicate(id, chassis, registration) {
		return nil, domain.ErrDuplicateVehicle
	}

	v.ChassisNumber = chassis
	v.RegistrationNumber = registration
	if patch.Name != nil {
		v.Name = *patch.Name
	}
	if patch.Model != nil {
		v.Model = *patch.Model
	}
	if patch.Year != nil {
		v.Year = *patch.Year
	}
	if patch.Type != nil {
		v.Type = *patch.Type
	}
	if patch.Photos != nil {
		v.Photos = patch.Photos
	}
	if patch.Description != nil {
		v.Description = *patch.Description
	}
	if patch.Status != nil {
		v.Status = *patch.Status
	}
	if patch.UpdatedBy != nil {
		v.UpdatedBy = patch.UpdatedBy
	}
	v.UpdatedAt = time.Now()
	cp := *v
	return &cp, nil
}

func (m *mockVehicleRepo) Delete(_ context.Context, id int64) error {
	if _, exists := m.vehicles[id]; !exists {
		return domain.ErrNotFound
	}
	delete(m.vehicles, id)
	return nil
}

type resetEntry struct {
	userID    int64
	expiresAt time.Time
}

type mockResetRepo struct {
	byDigest map[string]resetEntry
}

func newMockResetRepo() *mockResetRepo {
	return &mockResetRepo{byDigest: make(map[string]resetEntry)}
}

func (m *mockResetRepo) Create(_ context.Context, userID int64, codeDigest string, expiresAt time.Time) error {
	m.byDigest[codeDigest] = resetEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *mockResetRepo) Consume(_ context.Context, codeDigest string) (int64, error) {
	entry, exists := m.byDigest[codeDigest]
	if !exists {
		return 0, nil
	}
	delete(m.byDigest, codeDigest)
	if time.Now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.userID, nil
}

func (m *mockResetRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for digest, entry := range m.byDigest {
		if time.Now().After(entry.expiresAt) {
			delete(m.byDigest, digest)
			n++
		}
	}
	return n, nil
}

type mockStore struct {
	objects map[string][]byte
}

func newMockStore() *mockStore {
	return &mockStore{objects: make(map[string][]byte)}
}

func (m *mockStore) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return "http://store.local/" + key, nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *mockStore) KeyFromURL(url string) string {
	return strings.TrimPrefix(url, "http://store.local/")
}

type mockMailer struct {
	lastTo   string
	lastCode string
	lastURL  string
	sendErr  error
}

func (m *mockMailer) SendPasswordReset(toEmail, toName, code, resetURL string) error {
	m.lastTo = toEmail
	m.lastCode = code
	m.lastURL = resetURL
	return m.sendErr
}

type mockPublisher struct {
	subjects []string
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

// ---------- Test Setup ----------

type fixtures struct {
	users    *mockUserRepo
	drivers  *mockDriverRepo
	vehicles *mockVehicleRepo
	resets   *mockResetRepo
	store    *mockStore
	mailer   *mockMailer
	events   *mockPublisher
}

func setupServer() (*httptest.Server, *fixtures) {
	f := &fixtures{
		users:    newMockUserRepo(),
		drivers:  newMockDriverRepo(),
		vehicles: newMockVehicleRepo(),
		resets:   newMockResetRepo(),
		store:    newMockStore(),
		mailer:   &mockMailer{},
		events:   &mockPublisher{},
	}
	f.users.drivers = f.drivers
	f.drivers.users = f.users

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:    testSecret,
			TokenTTL:     time.Hour,
			OTPTTL:       30 * time.Minute,
			ResetBaseURL: "http://localhost:5173",
		},
	}

	authSvc := service.NewAuthService(f.users, f.drivers, f.resets, f.store, f.mailer, f.events, cfg)
	userSvc := service.NewUserService(f.users, f.drivers, f.store, f.events)
	driverSvc := service.NewDriverService(f.drivers, f.vehicles, f.events)
	vehicleSvc := service.NewVehicleService(f.vehicles, f.store, f.events)

	authH := handlers.NewAuthHandler(authSvc)
	userH := handlers.NewUserHandler(userSvc)
	driverH := handlers.NewDriverHandler(driverSvc, userSvc)
	vehicleH := handlers.NewVehicleHandler(vehicleSvc, userSvc)

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Post("/register", authH.Register)
		api.Post("/login", authH.Login)
		api.Post("/forgot-password", authH.ForgotPassword)
		api.Post("/reset", authH.ResetPassword)

		api.Group(func(priv chi.Router) {
			priv.Use(httpmw.RequireAuth(testSecret))

			priv.Put("/changepassword", authH.ChangePassword)

			priv.Get("/list", userH.List)
			priv.Get("/user/{id}", userH.Get)
			priv.Put("/update/{id}", userH.Update)
			priv.Delete("/delete/{id}", userH.Delete)

			priv.Get("/drivers", driverH.List)
			priv.Put("/drivers/{driverId}", driverH.UpdateProfile)
			priv.Put("/assign-vehicle/{driverId}", driverH.AssignVehicle)

			priv.Post("/add", vehicleH.Add)
			priv.Get("/vehiclelist", vehicleH.List)
			priv.Get("/{id}", vehicleH.Get)
			priv.Put("/updatevehicle/{id}", vehicleH.Update)
			priv.Delete("/vehicle/{id}", vehicleH.Delete)
		})
	})

	return httptest.NewServer(r), f
}

// ---------- Helper Functions ----------

func doJSON(t *testing.T, method, url, token string, body interface{}, expectedStatus int) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	if resp.StatusCode != expectedStatus {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("%s %s: expected status %d, got %d (%s)", method, url, expectedStatus, resp.StatusCode, body)
	}
	return resp
}

// doMultipart sends a multipart/form-data request carrying text fields and at
// most one file part.
func doMultipart(t *testing.T, method, url, token string, fields map[string]string, fileField, filename, contentType string, content []byte, expectedStatus int) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	if resp.StatusCode != expectedStatus {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("%s %s: expected status %d, got %d (%s)", method, url, expectedStatus, resp.StatusCode, body)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// registerUser creates an account and returns its token and id.
func registerUser(t *testing.T, serverURL, email string, roles []string) (string, int64) {
	t.Helper()

	body := map[string]interface{}{
		"firstName": "Test",
		"lastName":  "User",
		"email":     email,
		"password":  "password123",
		"mobile":    "+1 555 000 1111",
	}
	if roles != nil {
		body["role"] = roles
	}

	resp := doJSON(t, "POST", serverURL+"/api/register", "", body, http.StatusCreated)
	var out domain.LoginResponse
	decodeBody(t, resp, &out)

	if out.Token == "" || out.User == nil {
		t.Fatal("expected token and user in register response")
	}
	return out.Token, out.User.ID
}

func addVehicle(t *testing.T, serverURL, token, chassis, registration string) int64 {
	t.Helper()

	resp := doJSON(t, "POST", serverURL+"/api/add", token, map[string]interface{}{
		"vehicleName":        "Hauler",
		"vehicleModel":       "FH16",
		"vehicleYear":        2021,
		"vehicleType":        "HTV",
		"chassiNumber":       chassis,
		"registrationNumber": registration,
	}, http.StatusCreated)

	var v domain.Vehicle
	decodeBody(t, resp, &v)
	if v.ID == 0 {
		t.Fatal("expected vehicle id")
	}
	return v.ID
}

// ---------- Tests ----------

func TestRegister_DuplicateEmail(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	registerUser(t, server.URL, "dup@example.com", nil)

	body := map[string]interface{}{
		"firstName": "Other", "lastName": "User",
		"email": "dup@example.com", "password": "password123",
		"mobile": "+1 555 000 2222",
	}
	resp := doJSON(t, "POST", server.URL+"/api/register", "", body, http.StatusBadRequest)
	resp.Body.Close()
}

func TestRegister_DriverRoleProvisionsProfile(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	// Default role is driver
	_, driverID := registerUser(t, server.URL, "driver@example.com", nil)

	if _, exists := f.drivers.byUserID[driverID]; !exists {
		t.Fatal("expected a driver profile for the new driver user")
	}

	// Staff accounts get no driver profile
	_, adminID := registerUser(t, server.URL, "admin@example.com", []string{"admin"})
	if _, exists := f.drivers.byUserID[adminID]; exists {
		t.Fatal("did not expect a driver profile for an admin-only user")
	}
}

func TestLogin(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	registerUser(t, server.URL, "login@example.com", nil)

	// Correct credentials
	resp := doJSON(t, "POST", server.URL+"/api/login", "", map[string]string{
		"email": "login@example.com", "password": "password123",
	}, http.StatusOK)
	var out domain.LoginResponse
	decodeBody(t, resp, &out)
	if out.Token == "" {
		t.Fatal("expected token")
	}

	// Wrong password and unknown email answer identically
	doJSON(t, "POST", server.URL+"/api/login", "", map[string]string{
		"email": "login@example.com", "password": "wrong-password",
	}, http.StatusBadRequest).Body.Close()
	doJSON(t, "POST", server.URL+"/api/login", "", map[string]string{
		"email": "nobody@example.com", "password": "password123",
	}, http.StatusBadRequest).Body.Close()
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	doJSON(t, "GET", server.URL+"/api/list", "", nil, http.StatusUnauthorized).Body.Close()
	doJSON(t, "GET", server.URL+"/api/list", "garbage-token", nil, http.StatusUnauthorized).Body.Close()
}

func TestListUsers_RoleGate(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	driverTok, _ := registerUser(t, server.URL, "d1@example.com", nil)
	managerTok, _ := registerUser(t, server.URL, "m1@example.com", []string{"manager"})

	doJSON(t, "GET", server.URL+"/api/list", driverTok, nil, http.StatusForbidden).Body.Close()

	resp := doJSON(t, "GET", server.URL+"/api/list", managerTok, nil, http.StatusOK)
	var profiles []domain.DriverProfile
	decodeBody(t, resp, &profiles)
	if len(profiles) != 2 {
		t.Fatalf("expected 2 users, got %d", len(profiles))
	}
}

func TestGetUser_SelfAccess(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	tok1, id1 := registerUser(t, server.URL, "self@example.com", nil)
	_, id2 := registerUser(t, server.URL, "other@example.com", nil)
	adminTok, _ := registerUser(t, server.URL, "boss@example.com", []string{"admin"})

	// Own record is readable
	resp := doJSON(t, "GET", fmt.Sprintf("%s/api/user/%d", server.URL, id1), tok1, nil, http.StatusOK)
	var u domain.User
	decodeBody(t, resp, &u)
	if u.Email != "self@example.com" {
		t.Fatalf("expected own record, got %q", u.Email)
	}

	// Someone else's is not, unless staff
	doJSON(t, "GET", fmt.Sprintf("%s/api/user/%d", server.URL, id2), tok1, nil, http.StatusForbidden).Body.Close()
	doJSON(t, "GET", fmt.Sprintf("%s/api/user/%d", server.URL, id2), adminTok, nil, http.StatusOK).Body.Close()

	// Unknown id
	doJSON(t, "GET", server.URL+"/api/user/9999", adminTok, nil, http.StatusNotFound).Body.Close()
}

func TestUpdateUser_RoleChangeRequiresAdmin(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	tok, id := registerUser(t, server.URL, "upgrade@example.com", nil)
	adminTok, _ := registerUser(t, server.URL, "root@example.com", []string{"admin"})

	// A driver cannot grant themselves roles
	doJSON(t, "PUT", fmt.Sprintf("%s/api/update/%d", server.URL, id), tok, map[string]interface{}{
		"role": []string{"admin"},
	}, http.StatusForbidden).Body.Close()

	// But can change their own name
	resp := doJSON(t, "PUT", fmt.Sprintf("%s/api/update/%d", server.URL, id), tok, map[string]interface{}{
		"firstName": "Renamed",
	}, http.StatusOK)
	var u domain.User
	decodeBody(t, resp, &u)
	if u.FirstName != "Renamed" {
		t.Fatalf("expected updated first name, got %q", u.FirstName)
	}

	// Admin can grant roles
	doJSON(t, "PUT", fmt.Sprintf("%s/api/update/%d", server.URL, id), adminTok, map[string]interface{}{
		"role": []string{"manager", "driver"},
	}, http.StatusOK).Body.Close()
}

func TestUpdateUser_AddingDriverRoleProvisionsProfile(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	adminTok, _ := registerUser(t, server.URL, "hq@example.com", []string{"admin"})
	_, id := registerUser(t, server.URL, "clerk@example.com", []string{"manager"})

	if _, exists := f.drivers.byUserID[id]; exists {
		t.Fatal("manager should not have a driver profile yet")
	}

	doJSON(t, "PUT", fmt.Sprintf("%s/api/update/%d", server.URL, id), adminTok, map[string]interface{}{
		"role": []string{"manager", "driver"},
	}, http.StatusOK).Body.Close()

	if _, exists := f.drivers.byUserID[id]; !exists {
		t.Fatal("expected driver profile after adding the driver role")
	}
}

func TestDeleteUser_CascadesDriverProfile(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	adminTok, _ := registerUser(t, server.URL, "ops@example.com", []string{"admin"})
	driverTok, driverID := registerUser(t, server.URL, "leaving@example.com", nil)

	// Drivers cannot delete accounts
	doJSON(t, "DELETE", fmt.Sprintf("%s/api/delete/%d", server.URL, driverID), driverTok, nil, http.StatusForbidden).Body.Close()

	doJSON(t, "DELETE", fmt.Sprintf("%s/api/delete/%d", server.URL, driverID), adminTok, nil, http.StatusOK).Body.Close()

	if _, exists := f.users.users[driverID]; exists {
		t.Fatal("expected user to be gone")
	}
	if _, exists := f.drivers.byUserID[driverID]; exists {
		t.Fatal("expected driver profile to cascade")
	}

	// The deleted user's token no longer works
	doJSON(t, "GET", fmt.Sprintf("%s/api/user/%d", server.URL, driverID), driverTok, nil, http.StatusUnauthorized).Body.Close()
}

func TestForgotAndReset_SingleUseCode(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	registerUser(t, server.URL, "forgot@example.com", nil)

	// Unknown email
	doJSON(t, "POST", server.URL+"/api/forgot-password", "", map[string]string{
		"email": "nobody@example.com",
	}, http.StatusNotFound).Body.Close()

	doJSON(t, "POST", server.URL+"/api/forgot-password", "", map[string]string{
		"email": "forgot@example.com",
	}, http.StatusOK).Body.Close()

	if f.mailer.lastTo != "forgot@example.com" || f.mailer.lastCode == "" {
		t.Fatalf("expected reset email with code, got to=%q code=%q", f.mailer.lastTo, f.mailer.lastCode)
	}
	code := f.mailer.lastCode

	// Wrong code
	doJSON(t, "POST", server.URL+"/api/reset", "", map[string]string{
		"otp": "000000", "newPassword": "freshpassword",
	}, http.StatusBadRequest).Body.Close()

	// Correct code works once
	doJSON(t, "POST", server.URL+"/api/reset", "", map[string]string{
		"otp": code, "newPassword": "freshpassword",
	}, http.StatusOK).Body.Close()

	// And only once
	doJSON(t, "POST", server.URL+"/api/reset", "", map[string]string{
		"otp": code, "newPassword": "anotherpassword",
	}, http.StatusBadRequest).Body.Close()

	// Old password rejected, new one accepted
	doJSON(t, "POST", server.URL+"/api/login", "", map[string]string{
		"email": "forgot@example.com", "password": "password123",
	}, http.StatusBadRequest).Body.Close()
	doJSON(t, "POST", server.URL+"/api/login", "", map[string]string{
		"email": "forgot@example.com", "password": "freshpassword",
	}, http.StatusOK).Body.Close()
}

func TestChangePassword(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	tok, _ := registerUser(t, server.URL, "change@example.com", nil)

	// Wrong old password
	doJSON(t, "PUT", server.URL+"/api/changepassword", tok, map[string]string{
		"oldPassword": "wrong", "newPassword": "updatedpassword",
	}, http.StatusUnauthorized).Body.Close()

	doJSON(t, "PUT", server.URL+"/api/changepassword", tok, map[string]string{
		"oldPassword": "password123", "newPassword": "updatedpassword",
	}, http.StatusOK).Body.Close()

	doJSON(t, "POST", server.URL+"/api/login", "", map[string]string{
		"email": "change@example.com", "password": "updatedpassword",
	}, http.StatusOK).Body.Close()
}

func TestVehicles_CRUDAndUniqueness(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	adminTok, _ := registerUser(t, server.URL, "fleet@example.com", []string{"admin"})
	driverTok, _ := registerUser(t, server.URL, "wheel@example.com", nil)

	id := addVehicle(t, server.URL, adminTok, "CH-100", "REG-100")

	// Duplicate chassis rejected
	doJSON(t, "POST", server.URL+"/api/add", adminTok, map[string]interface{}{
		"vehicleName": "Clone", "vehicleModel": "FH16", "vehicleYear": 2021,
		"vehicleType": "HTV", "chassiNumber": "CH-100", "registrationNumber": "REG-999",
	}, http.StatusBadRequest).Body.Close()

	// Any authenticated user can read a vehicle
	resp := doJSON(t, "GET", fmt.Sprintf("%s/api/%d", server.URL, id), driverTok, nil, http.StatusOK)
	var v domain.Vehicle
	decodeBody(t, resp, &v)
	if v.ChassisNumber != "CH-100" || v.Status != domain.VehicleStatusActive {
		t.Fatalf("unexpected vehicle %+v", v)
	}

	// Listing is staff-only
	doJSON(t, "GET", server.URL+"/api/vehiclelist", driverTok, nil, http.StatusForbidden).Body.Close()
	listResp := doJSON(t, "GET", server.URL+"/api/vehiclelist", adminTok, nil, http.StatusOK)
	var vehicles []domain.Vehicle
	decodeBody(t, listResp, &vehicles)
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(vehicles))
	}

	// Update is staff-only
	doJSON(t, "PUT", fmt.Sprintf("%s/api/updatevehicle/%d", server.URL, id), driverTok, map[string]interface{}{
		"status": "Inactive",
	}, http.StatusForbidden).Body.Close()
	updResp := doJSON(t, "PUT", fmt.Sprintf("%s/api/updatevehicle/%d", server.URL, id), adminTok, map[string]interface{}{
		"status": "Inactive",
	}, http.StatusOK)
	decodeBody(t, updResp, &v)
	if v.Status != domain.VehicleStatusInactive {
		t.Fatalf("expected Inactive, got %q", v.Status)
	}

	// Delete, then the record is gone
	doJSON(t, "DELETE", fmt.Sprintf("%s/api/vehicle/%d", server.URL, id), driverTok, nil, http.StatusForbidden).Body.Close()
	doJSON(t, "DELETE", fmt.Sprintf("%s/api/vehicle/%d", server.URL, id), adminTok, nil, http.StatusOK).Body.Close()
	doJSON(t, "GET", fmt.Sprintf("%s/api/%d", server.URL, id), adminTok, nil, http.StatusNotFound).Body.Close()
}

func TestAssignVehicle(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	adminTok, adminID := registerUser(t, server.URL, "dispatch@example.com", []string{"admin"})
	driverTok, driverID := registerUser(t, server.URL, "assignee@example.com", nil)
	vehicleID := addVehicle(t, server.URL, adminTok, "CH-200", "REG-200")

	// Drivers cannot assign
	doJSON(t, "PUT", fmt.Sprintf("%s/api/assign-vehicle/%d", server.URL, driverID), driverTok, map[string]int64{
		"vehicleId": vehicleID,
	}, http.StatusForbidden).Body.Close()

	// Unknown vehicle
	doJSON(t, "PUT", fmt.Sprintf("%s/api/assign-vehicle/%d", server.URL, driverID), adminTok, map[string]int64{
		"vehicleId": 9999,
	}, http.StatusNotFound).Body.Close()

	// Target without a driver profile
	doJSON(t, "PUT", fmt.Sprintf("%s/api/assign-vehicle/%d", server.URL, adminID), adminTok, map[string]int64{
		"vehicleId": vehicleID,
	}, http.StatusNotFound).Body.Close()

	resp := doJSON(t, "PUT", fmt.Sprintf("%s/api/assign-vehicle/%d", server.URL, driverID), adminTok, map[string]int64{
		"vehicleId": vehicleID,
	}, http.StatusOK)
	var d domain.Driver
	decodeBody(t, resp, &d)
	if d.AssignedVehicleID == nil || *d.AssignedVehicleID != vehicleID {
		t.Fatalf("expected assigned vehicle %d, got %+v", vehicleID, d.AssignedVehicleID)
	}
	if d.AssignedByID == nil || *d.AssignedByID != adminID {
		t.Fatalf("expected assigned_by %d, got %+v", adminID, d.AssignedByID)
	}
}

func TestDriverList_AndProfileUpdate(t *testing.T) {
	server, _ := setupServer()
	defer server.Close()

	adminTok, _ := registerUser(t, server.URL, "hr@example.com", []string{"admin"})
	_, driverID := registerUser(t, server.URL, "pro@example.com", nil)

	resp := doJSON(t, "PUT", fmt.Sprintf("%s/api/drivers/%d", server.URL, driverID), adminTok, map[string]string{
		"licenseNumber": "LIC-42",
		"licenseExpiry": "2030-06-01",
		"address":       "12 Depot Road",
		"experience":    "8 years",
	}, http.StatusOK)
	var d domain.Driver
	decodeBody(t, resp, &d)
	if d.LicenseNumber != "LIC-42" || d.LicenseExpiry == nil {
		t.Fatalf("unexpected driver %+v", d)
	}

	listResp := doJSON(t, "GET", server.URL+"/api/drivers", adminTok, nil, http.StatusOK)
	var profiles []domain.DriverProfile
	decodeBody(t, listResp, &profiles)
	if len(profiles) != 1 {
		t.Fatalf("expected 1 driver, got %d", len(profiles))
	}
	if profiles[0].ID != driverID || profiles[0].LicenseNumber != "LIC-42" {
		t.Fatalf("unexpected profile %+v", profiles[0])
	}

	// No profile behind that user id
	doJSON(t, "PUT", server.URL+"/api/drivers/9999", adminTok, map[string]string{
		"licenseNumber": "LIC-0",
	}, http.StatusNotFound).Body.Close()
}

func TestRegister_DriverLicenseStored(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	// Default role is driver; the license lands on the provisioned profile
	resp := doMultipart(t, "POST", server.URL+"/api/register", "", map[string]string{
		"firstName": "Road", "lastName": "Runner",
		"email": "licensed@example.com", "password": "password123",
		"mobile": "+1 555 000 4444",
	}, "drivingLicense", "license.pdf", "application/pdf", []byte("%PDF-1.4 license"), http.StatusCreated)
	var out domain.LoginResponse
	decodeBody(t, resp, &out)

	if n := len(f.store.objects); n != 1 {
		t.Fatalf("expected 1 stored object, got %d", n)
	}
	d := f.drivers.byUserID[out.User.ID]
	if d == nil || d.LicenseFileURL == "" {
		t.Fatalf("expected the driver profile to reference the license file, got %+v", d)
	}
}

func TestRegister_LicenseSkippedForNonDrivers(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	// A manager has no driver profile, so a license file has nowhere to
	// land; nothing may be left behind in storage.
	doMultipart(t, "POST", server.URL+"/api/register", "", map[string]string{
		"firstName": "Desk", "lastName": "Manager",
		"email": "deskmgr@example.com", "password": "password123",
		"mobile": "+1 555 000 5555", "role": "manager",
	}, "drivingLicense", "license.pdf", "application/pdf", []byte("%PDF-1.4 license"), http.StatusCreated).Body.Close()

	if n := len(f.store.objects); n != 0 {
		t.Fatalf("expected no stored objects after a non-driver registration, got %d", n)
	}
}

func TestUpdateUser_LicenseCleanedUpForNonDrivers(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	adminTok, _ := registerUser(t, server.URL, "lead@example.com", []string{"admin"})
	_, id := registerUser(t, server.URL, "clerk2@example.com", []string{"manager"})

	doMultipart(t, "PUT", fmt.Sprintf("%s/api/update/%d", server.URL, id), adminTok, map[string]string{
		"firstName": "Clerk",
	}, "drivingLicense", "license.pdf", "application/pdf", []byte("%PDF-1.4 license"), http.StatusOK).Body.Close()

	if n := len(f.store.objects); n != 0 {
		t.Fatalf("expected the unreferenced license upload to be removed, got %d objects", n)
	}
}

func TestListUsers_LimitClamped(t *testing.T) {
	server, f := setupServer()
	defer server.Close()

	adminTok, _ := registerUser(t, server.URL, "pager@example.com", []string{"admin"})

	// Out-of-range limits fall back to the 100-row cap the repositories
	// accept, never to a surprise page size.
	doJSON(t, "GET", server.URL+"/api/list?limit=150", adminTok, nil, http.StatusOK).Body.Close()
	if f.users.lastLimit != 100 {
		t.Fatalf("expected limit=150 to clamp to 100, repo saw %d", f.users.lastLimit)
	}

	doJSON(t, "GET", server.URL+"/api/list?limit=30", adminTok, nil, http.StatusOK).Body.Close()
	if f.users.lastLimit != 30 {
		t.Fatalf("expected limit=30 to pass through, repo saw %d", f.users.lastLimit)
	}

	doJSON(t, "GET", server.URL+"/api/list", adminTok, nil, http.StatusOK).Body.Close()
	if f.users.lastLimit != 50 {
		t.Fatalf("expected default limit 50, repo saw %d", f.users.lastLimit)
	}
}
