package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/masjidku/backend/core/member"
)

func Test_memberApi_register(t *testing.T) {
	env := setupServer(t)

	env.createMember(t, "taken@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)

	tests := []httpTest{
		{
			name: "valid registration", method: http.MethodPost, path: "/v1/members/register",
			body: marchallObj(t, map[string]string{
				"email": "baru@test.id", "full_name": "Anggota Baru",
				"password": "Sabar&Tawakal1", "password_confirm": "Sabar&Tawakal1",
			}),
			wantCode: http.StatusCreated,
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/members/register",
			body:     marchallObj(t, map[string]string{"email": "x@test.id"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/v1/members/register",
			body: marchallObj(t, map[string]string{
				"email": "dua@test.id", "full_name": "Dua",
				"password": "Sabar&Tawakal1", "password_confirm": "beda-sama-sekali",
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate email", method: http.MethodPost, path: "/v1/members/register",
			body: marchallObj(t, map[string]string{
				"email": "taken@test.id", "full_name": "Kembar",
				"password": "Sabar&Tawakal1", "password_confirm": "Sabar&Tawakal1",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a member with this email already exists"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// registration always yields a pending jamaah
	m, err := env.memberSvc.GetByEmail(context.Background(), "baru@test.id")
	if err != nil {
		t.Fatalf("GetByEmail() failed: %v", err)
	}
	if m.Role != member.RoleJamaah {
		t.Errorf("Role = %v, want jamaah", m.Role)
	}
	p, err := env.memberSvc.GetProfile(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetProfile() failed: %v", err)
	}
	if p.Status != member.StatusPending {
		t.Errorf("Status = %v, want pending", p.Status)
	}
}

func Test_authApi_login(t *testing.T) {
	env := setupServer(t)

	m := env.createMember(t, "imam@test.id", "Sabar&Tawakal1", member.RoleAdmin, member.StatusApproved)

	tests := []httpTest{
		{
			name: "valid credentials", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, map[string]string{"email": m.Email, "password": "Sabar&Tawakal1"}),
			wantCode: http.StatusOK,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, map[string]string{"email": m.Email, "password": "salah"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, map[string]string{"email": "ghost@test.id", "password": "apa-saja"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "missing body", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
					t.Errorf("expected a token, got %q (err %v)", rec.Body.String(), err)
				}
			}
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setupServer(t)
	m := env.createMember(t, "imam@test.id", "Sabar&Tawakal1", member.RoleAdmin, member.StatusApproved)
	token := env.getToken(t, m)

	req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token)
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Errorf("expected a fresh token, got %q", rec.Body.String())
	}

	req, rec = newRequest(http.MethodPost, "/v1/auth/token-refresh")
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("code without token = %v, want 401", rec.Code)
	}
}

func Test_authApi_passwordReset(t *testing.T) {
	env := setupServer(t)
	m := env.createMember(t, "jamaah@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)

	// the request endpoint never discloses whether the email is known
	for _, email := range []string{m.Email, "ghost@test.id"} {
		req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset",
			marchallObj(t, map[string]string{"email": email}))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code for %q = %v, want 200: %s", email, rec.Code, rec.Body.String())
		}
	}

	token, err := member.MakeToken(env.conf, m)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	uid := member.EncodeUID(m)

	tests := []httpTest{
		{
			name: "tampered token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body: marchallObj(t, member.ResetMemberPassword{
				UID: uid, Token: "HE4TS-sigsig-sig", Password: "Ikhlas&Istiqomah2", PasswordConfirm: "Ikhlas&Istiqomah2",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body: marchallObj(t, member.ResetMemberPassword{
				UID: uid, Token: token, Password: "Ikhlas&Istiqomah2", PasswordConfirm: "beda",
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "valid token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body: marchallObj(t, member.ResetMemberPassword{
				UID: uid, Token: token, Password: "Ikhlas&Istiqomah2", PasswordConfirm: "Ikhlas&Istiqomah2",
			}),
			wantCode: http.StatusOK,
		},
		{
			// the password change invalidates the token
			name: "token reuse", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body: marchallObj(t, member.ResetMemberPassword{
				UID: uid, Token: token, Password: "CobaLagi3", PasswordConfirm: "CobaLagi3",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	refreshed, err := env.memberRepo.GetMemberByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMemberByID() failed: %v", err)
	}
	if err := refreshed.CheckPassword("Ikhlas&Istiqomah2"); err != nil {
		t.Errorf("new password not set: %v", err)
	}
}

// the route guard re-evaluates role and approval on every request
func Test_memberApi_routeGuard(t *testing.T) {
	env := setupServer(t)

	admin := env.createMember(t, "imam@test.id", "Sabar&Tawakal1", member.RoleAdmin, member.StatusApproved)
	bendahara := env.createMember(t, "kas@test.id", "Sabar&Tawakal1", member.RoleBendahara, member.StatusApproved)
	pending := env.createMember(t, "calon@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusPending)
	norole := env.createMember(t, "norole@test.id", "Sabar&Tawakal1", "", member.StatusApproved)

	tests := []httpTest{
		{
			name: "no token is unauthorized", method: http.MethodGet, path: "/v1/members",
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "admin allowed on admin route", method: http.MethodGet, path: "/v1/members",
			token: env.getToken(t, admin), wantCode: http.StatusOK,
		},
		{
			name: "bendahara bounced to own dashboard", method: http.MethodGet, path: "/v1/members",
			token: env.getToken(t, bendahara), wantCode: http.StatusSeeOther, wantLoc: "/bendahara/dashboard",
		},
		{
			name: "no role redirects to login", method: http.MethodGet, path: "/v1/members/me/profile",
			token: env.getToken(t, norole), wantCode: http.StatusSeeOther, wantLoc: "/login",
		},
		{
			name: "pending jamaah is signed out to login", method: http.MethodGet, path: "/v1/members/me/profile",
			token: env.getToken(t, pending), wantCode: http.StatusSeeOther, wantLoc: "/login",
		},
		{
			name: "approved admin reads own profile", method: http.MethodGet, path: "/v1/members/me/profile",
			token: env.getToken(t, admin), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// approval flips the gate without a new token
	pendingToken := env.getToken(t, pending)
	if _, err := env.memberSvc.Approve(context.Background(), pending.ID); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	req, rec := newAuthRequest(http.MethodGet, "/v1/members/me/profile", pendingToken)
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code after approval = %v, want 200: %s", rec.Code, rec.Body.String())
	}
}

func Test_memberApi_adminOperations(t *testing.T) {
	env := setupServer(t)

	admin := env.createMember(t, "imam@test.id", "Sabar&Tawakal1", member.RoleAdmin, member.StatusApproved)
	candidate := env.createMember(t, "calon@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusPending)
	adminToken := env.getToken(t, admin)

	t.Run("approve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/members/"+candidate.ID+"/approve", adminToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}
		var p member.Profile
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil || p.Status != member.StatusApproved {
			t.Errorf("profile = %s, want approved", rec.Body.String())
		}
	})

	t.Run("assign role", func(t *testing.T) {
		body := marchallObj(t, member.AssignRole{Role: member.RoleBendahara})
		req, rec := newAuthRequest(http.MethodPut, "/v1/members/"+candidate.ID+"/role", adminToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}
		var m member.Member
		if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil || m.Role != member.RoleBendahara {
			t.Errorf("member = %s, want bendahara role", rec.Body.String())
		}
	})

	t.Run("assign invalid role", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"role": "ketua"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/members/"+candidate.ID+"/role", adminToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v, want 400", rec.Code)
		}
	})

	t.Run("admin cannot delete themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/members?id="+admin.ID, adminToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v, want 403", rec.Code)
		}
	})

	t.Run("reject unknown member", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/members/ghost/reject", adminToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v, want 404", rec.Code)
		}
	})
}

func Test_memberApi_updateProfile(t *testing.T) {
	env := setupServer(t)
	m := env.createMember(t, "jamaah@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)
	token := env.getToken(t, m)

	body := marchallObj(t, member.UpdateProfile{FullName: "Nama Baru", Phone: "0812345678", Address: "Jl. Masjid 1"})
	req, rec := newAuthRequest(http.MethodPut, "/v1/members/me/profile", token, body)
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
	}
	var p member.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshalling profile: %v", err)
	}
	if p.FullName != "Nama Baru" || !p.Phone.Valid {
		t.Errorf("profile = %+v, want updated fields", p)
	}
	if p.Status != member.StatusApproved {
		t.Error("self profile edit must not move the approval status")
	}
}
