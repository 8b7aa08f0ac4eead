package user

import (
	"testing"
)

func TestUserPassword(t *testing.T) {
	usr := User{Username: "toto"}
	if err := usr.SetPassword("LokiMok0!"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if len(usr.PasswordHash) == 0 {
		t.Fatal("SetPassword() did not set PasswordHash")
	}
	if err := usr.CheckPassword("LokiMok0!"); err != nil {
		t.Errorf("CheckPassword() error = %v", err)
	}
	if err := usr.CheckPassword("nope"); err == nil {
		t.Error("CheckPassword() expected error for wrong password")
	}
}

func TestUserIsAdmin(t *testing.T) {
	tests := []struct {
		name string
		role string
		want bool
	}{
		{name: "admin", role: RoleAdmin, want: true},
		{name: "user", role: RoleUser, want: false},
		{name: "empty", role: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{Role: tt.role}
			if got := usr.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want %q", s.Timezone, "UTC")
	}
	if !s.Notifications.Email || !s.Notifications.Push {
		t.Errorf("Notifications = %+v, want all enabled", s.Notifications)
	}
}

func TestUpdateSettingsMerge(t *testing.T) {
	tz := "Africa/Dar_es_Salaam"
	off := false

	tests := []struct {
		name string
		us   UpdateSettings
		want Settings
	}{
		{
			name: "empty leaves settings untouched",
			us:   UpdateSettings{},
			want: DefaultSettings(),
		},
		{
			name: "timezone only",
			us:   UpdateSettings{Timezone: &tz},
			want: Settings{Timezone: tz, Notifications: NotificationSettings{Email: true, Push: true}},
		},
		{
			name: "disable email notifications",
			us:   UpdateSettings{EmailNotifs: &off},
			want: Settings{Timezone: "UTC", Notifications: NotificationSettings{Email: false, Push: true}},
		},
		{
			name: "disable push notifications",
			us:   UpdateSettings{PushNotifs: &off},
			want: Settings{Timezone: "UTC", Notifications: NotificationSettings{Email: true, Push: false}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.us.Merge(DefaultSettings()); got != tt.want {
				t.Errorf("Merge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
