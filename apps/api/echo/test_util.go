package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/announcement"
	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
	authsvc "github.com/masjidku/backend/services/auth"
	emailsvc "github.com/masjidku/backend/services/email"
	dummydb "github.com/masjidku/backend/storage/database/dummy"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	wantLoc  string // expected Location header on redirects
	extra    interface{}
}

type testEnv struct {
	conf       *core.Config
	db         *dummydb.DB
	memberRepo member.Repository
	memberSvc  member.Service
	notifySvc  notify.Service
	hub        *Hub
	server     Server
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Server.ResolveTimeout = time.Second

	db, err := dummydb.Open(nil)
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	memberRepo := dummydb.NewMemberRepository(db)
	memberSvc := member.NewService(memberRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	notifySvc := notify.NewService(dummydb.NewNotificationRepository(db))

	hub := NewHub()
	go hub.Run()

	srv := NewServer(&Options{
		Addr:            ":0",
		DisableReqLogs:  true,
		Conf:            conf,
		Logger:          nil,
		MemberSvc:       memberSvc,
		DonationSvc:     donation.NewService(dummydb.NewDonationRepository(db)),
		AnnouncementSvc: announcement.NewService(dummydb.NewAnnouncementRepository(db)),
		NotifySvc:       notifySvc,
		Resolver:        member.NewResolver(memberRepo, nil),
		Broker:          db.Bus(),
		Hub:             hub,
	})
	return &testEnv{
		conf:       conf,
		db:         db,
		memberRepo: memberRepo,
		memberSvc:  memberSvc,
		notifySvc:  notifySvc,
		hub:        hub,
		server:     srv,
	}
}

func (env *testEnv) createMember(t *testing.T, email, pwd string, role member.Role, status member.Status) member.Member {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	m := member.Member{Email: email, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := m.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	p := member.Profile{FullName: "Test Member", Status: status, CreatedAt: now, UpdatedAt: now}
	m, err := env.memberRepo.CreateMember(ctx, m, p)
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	if role.Valid() {
		if m, err = env.memberRepo.SetMemberRole(ctx, m.ID, role); err != nil {
			t.Fatalf("SetMemberRole() failed: %v", err)
		}
	}
	return m
}

func (env *testEnv) getToken(t *testing.T, m member.Member) string {
	t.Helper()
	token, err := authsvc.GenerateToken(env.conf, authsvc.GetMemberClaims(env.conf, m))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantLoc != "" {
		if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
			t.Errorf("failed! location = %q; wantLoc %q", loc, tt.wantLoc)
		}
		return
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
