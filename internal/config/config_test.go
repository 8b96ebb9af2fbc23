package config

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

// withMockKeyring installs a shared in-memory keyring for the test.
func withMockKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	original := openKeyring
	openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}
	t.Cleanup(func() { openKeyring = original })
}

func withFailingKeyring(t *testing.T, err error) {
	t.Helper()
	original := openKeyring
	openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
		return nil, err
	}
	t.Cleanup(func() { openKeyring = original })
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	t.Setenv("CHATSPHERE_BASE_URL", "")
	t.Setenv("CHATSPHERE_TOKEN", "")
	t.Setenv("CHATSPHERE_USER_ID", "")
	t.Setenv("CHATSPHERE_PROFILE", "")
}

func TestSaveAndLoadAccount(t *testing.T) {
	withMockKeyring(t)
	clearEnvOverrides(t)

	account := Account{
		BaseURL:      "https://chat.example.com",
		Token:        "tok-access",
		RefreshToken: "tok-refresh",
		UserID:       "u1",
		Username:     "me",
		Email:        "me@example.com",
	}
	if err := SaveAccount(account); err != nil {
		t.Fatalf("SaveAccount failed: %v", err)
	}

	got, err := LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount failed: %v", err)
	}
	if got != account {
		t.Fatalf("LoadAccount = %+v, want %+v", got, account)
	}
}

func TestLoadAccount_NotConfigured(t *testing.T) {
	withMockKeyring(t)
	clearEnvOverrides(t)

	_, err := LoadAccount()
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoadAccount_EnvOverride(t *testing.T) {
	withFailingKeyring(t, errors.New("keyring should not be opened"))
	t.Setenv("CHATSPHERE_BASE_URL", "https://env.example.com/")
	t.Setenv("CHATSPHERE_TOKEN", "env-token")
	t.Setenv("CHATSPHERE_USER_ID", "u9")

	got, err := LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount failed: %v", err)
	}
	if got.BaseURL != "https://env.example.com" {
		t.Fatalf("BaseURL = %q, want trailing slash stripped", got.BaseURL)
	}
	if got.Token != "env-token" || got.UserID != "u9" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestLoadAccount_EnvRequiresBoth(t *testing.T) {
	withFailingKeyring(t, errors.New("keyring should not be opened"))
	t.Setenv("CHATSPHERE_BASE_URL", "https://env.example.com")
	t.Setenv("CHATSPHERE_TOKEN", "")

	_, err := LoadAccount()
	if err == nil {
		t.Fatal("expected error when only CHATSPHERE_BASE_URL is set")
	}
}

func TestProfiles_SaveLoadDelete(t *testing.T) {
	withMockKeyring(t)
	clearEnvOverrides(t)

	if err := SaveProfile("work", Account{BaseURL: "https://work.example.com", Token: "t1", UserID: "u1"}); err != nil {
		t.Fatalf("SaveProfile work failed: %v", err)
	}
	if err := SaveProfile("home", Account{BaseURL: "https://home.example.com", Token: "t2", UserID: "u2"}); err != nil {
		t.Fatalf("SaveProfile home failed: %v", err)
	}

	// Saving switches the current profile.
	current, err := CurrentProfile()
	if err != nil {
		t.Fatalf("CurrentProfile failed: %v", err)
	}
	if current != "home" {
		t.Fatalf("current profile = %q, want home", current)
	}

	profiles, err := ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("profiles = %v, want 2 entries", profiles)
	}

	work, err := LoadProfile("work")
	if err != nil {
		t.Fatalf("LoadProfile work failed: %v", err)
	}
	if work.BaseURL != "https://work.example.com" {
		t.Fatalf("unexpected work profile: %+v", work)
	}

	if err := DeleteProfile("home"); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}
	if _, err := LoadProfile("home"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured after delete, got %v", err)
	}

	// Deleting the current profile falls back to a remaining one.
	current, err = CurrentProfile()
	if err != nil {
		t.Fatalf("CurrentProfile failed: %v", err)
	}
	if current != "work" {
		t.Fatalf("current profile = %q, want work", current)
	}
}

func TestLoadAccount_ProfileEnvSelectsProfile(t *testing.T) {
	withMockKeyring(t)
	clearEnvOverrides(t)

	if err := SaveProfile("staging", Account{BaseURL: "https://staging.example.com", Token: "t", UserID: "u"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := SaveProfile("default", Account{BaseURL: "https://prod.example.com", Token: "t", UserID: "u"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	t.Setenv("CHATSPHERE_PROFILE", "staging")
	got, err := LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount failed: %v", err)
	}
	if got.BaseURL != "https://staging.example.com" {
		t.Fatalf("BaseURL = %q, want staging", got.BaseURL)
	}
}

func TestProfileKey(t *testing.T) {
	tests := []struct {
		profile  string
		expected string
	}{
		{"", accountKey},
		{"default", accountKey},
		{"work", profilePrefix + "work"},
	}
	for _, tt := range tests {
		if got := profileKey(tt.profile); got != tt.expected {
			t.Errorf("profileKey(%q) = %q, want %q", tt.profile, got, tt.expected)
		}
	}
}

func TestNormalizeProfiles(t *testing.T) {
	got := normalizeProfiles([]string{" work ", "", "work", "home"})
	if len(got) != 2 || got[0] != "work" || got[1] != "home" {
		t.Fatalf("normalizeProfiles = %v", got)
	}
}

func TestKeyringBackendMode(t *testing.T) {
	tests := []struct {
		env      string
		expected string
	}{
		{"", keyringBackendAuto},
		{"auto", keyringBackendAuto},
		{"file", keyringBackendFile},
		{"system", keyringBackendSystem},
		{"os", keyringBackendSystem},
		{"native", keyringBackendSystem},
		{"bogus", keyringBackendAuto},
	}
	for _, tt := range tests {
		t.Setenv(envKeyringBackend, tt.env)
		if got := keyringBackendMode(); got != tt.expected {
			t.Errorf("keyringBackendMode(%q) = %q, want %q", tt.env, got, tt.expected)
		}
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	tests := []struct {
		goos     string
		backend  string
		dbusAddr string
		expected bool
	}{
		{"linux", keyringBackendAuto, "", true},
		{"linux", keyringBackendAuto, "unix:path=/run/user/1000/bus", false},
		{"darwin", keyringBackendAuto, "", false},
		{"darwin", keyringBackendFile, "", true},
		{"linux", keyringBackendSystem, "", false},
	}
	for _, tt := range tests {
		if got := shouldForceFileBackend(tt.goos, tt.backend, tt.dbusAddr); got != tt.expected {
			t.Errorf("shouldForceFileBackend(%q, %q, %q) = %v, want %v",
				tt.goos, tt.backend, tt.dbusAddr, got, tt.expected)
		}
	}
}

func TestHasAccount(t *testing.T) {
	withMockKeyring(t)
	clearEnvOverrides(t)

	if HasAccount() {
		t.Fatal("HasAccount should be false before save")
	}
	if err := SaveAccount(Account{BaseURL: "https://chat.example.com", Token: "t", UserID: "u"}); err != nil {
		t.Fatalf("SaveAccount failed: %v", err)
	}
	if !HasAccount() {
		t.Fatal("HasAccount should be true after save")
	}
}
