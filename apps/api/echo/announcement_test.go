package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/masjidku/backend/core/announcement"
	"github.com/masjidku/backend/core/member"
	"github.com/masjidku/backend/core/notify"
)

func Test_announcementApi(t *testing.T) {
	env := setupServer(t)

	admin := env.createMember(t, "imam@test.id", "Sabar&Tawakal1", member.RoleAdmin, member.StatusApproved)
	jamaah := env.createMember(t, "jamaah@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)
	adminToken := env.getToken(t, admin)
	jamaahToken := env.getToken(t, jamaah)

	var published announcement.Announcement

	t.Run("admin publishes", func(t *testing.T) {
		body := marchallObj(t, announcement.NewAnnouncement{Title: "Kajian Subuh", Body: "Setiap Ahad ba'da Subuh."})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &published); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if !published.IsActive || published.AuthorID != admin.ID {
			t.Errorf("announcement = %+v, want active, authored by admin", published)
		}
	})

	t.Run("jamaah cannot publish", func(t *testing.T) {
		body := marchallObj(t, announcement.NewAnnouncement{Title: "Iseng", Body: "..."})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", jamaahToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther {
			t.Errorf("code = %v, want 303", rec.Code)
		}
	})

	t.Run("missing title rejected", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"body": "tanpa judul"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v, want 400", rec.Code)
		}
	})

	t.Run("jamaah lists active announcements", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements", jamaahToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}
		var announcements []announcement.Announcement
		if err := json.Unmarshal(rec.Body.Bytes(), &announcements); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if len(announcements) != 1 {
			t.Errorf("got %d announcements, want 1", len(announcements))
		}
	})

	t.Run("deactivated announcement disappears from the active list", func(t *testing.T) {
		body := marchallObj(t, map[string]bool{"is_active": false})
		req, rec := newAuthRequest(http.MethodPut, "/v1/announcements/"+published.ID+"/active", adminToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/announcements", jamaahToken)
		env.server.ServeHTTP(rec, req)
		var announcements []announcement.Announcement
		if err := json.Unmarshal(rec.Body.Bytes(), &announcements); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if len(announcements) != 0 {
			t.Errorf("got %d active announcements, want 0", len(announcements))
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/announcements/all", adminToken)
		env.server.ServeHTTP(rec, req)
		if err := json.Unmarshal(rec.Body.Bytes(), &announcements); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if len(announcements) != 1 {
			t.Errorf("admin sees %d announcements, want 1", len(announcements))
		}
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/announcements/"+published.ID, adminToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v, want 204", rec.Code)
		}
	})
}

func Test_notificationApi(t *testing.T) {
	env := setupServer(t)

	jamaah := env.createMember(t, "jamaah@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)
	other := env.createMember(t, "lain@test.id", "Sabar&Tawakal1", member.RoleJamaah, member.StatusApproved)
	own, err := env.notifySvc.Create(context.Background(), notify.Notification{
		PrincipalID: jamaah.ID, Kind: notify.KindAccountApproved, Message: "Disetujui.",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := env.notifySvc.Create(context.Background(), notify.Notification{
		Kind: notify.KindAnnouncementPosted, Message: "Pengumuman baru: Kajian",
	}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	t.Run("member sees own plus broadcasts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", env.getToken(t, jamaah))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v: %s", rec.Code, rec.Body.String())
		}
		var notifications []notify.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &notifications); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if len(notifications) != 2 {
			t.Errorf("got %d notifications, want 2", len(notifications))
		}
	})

	t.Run("other member only sees the broadcast", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", env.getToken(t, other))
		env.server.ServeHTTP(rec, req)
		var notifications []notify.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &notifications); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if len(notifications) != 1 {
			t.Errorf("got %d notifications, want 1", len(notifications))
		}
	})

	t.Run("mark read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+own.ID+"/read", env.getToken(t, jamaah))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v, want 204", rec.Code)
		}
	})

	t.Run("cannot mark another member's notification", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+own.ID+"/read", env.getToken(t, other))
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v, want 404", rec.Code)
		}
	})
}
