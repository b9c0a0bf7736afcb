package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

// isolate moves the test into an empty working directory and home so no
// .env file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", tmpDir)
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "data", "adt.db"))
	return tmpDir
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_ENV_STRING"
	t.Setenv(key, "test_value")

	if got := getEnvString(key, "default"); got != "test_value" {
		t.Errorf("getEnvString() = %q, want %q", got, "test_value")
	}

	if got := getEnvString("NON_EXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %q, want %q", got, "default")
	}
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_ENV_DURATION"

	tests := []struct {
		name       string
		envVal     string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"ValidDuration", "1m", time.Second, time.Minute},
		{"ValidSeconds", "60", time.Second, 60 * time.Second},
		{"Invalid", "invalid", time.Second, time.Second},
		{"Empty", "", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.envVal)
			if got := getEnvDuration(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_ENV_INT"

	t.Setenv(key, " 42 ")
	if got := getEnvInt(key, 7); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}

	t.Setenv(key, "many")
	if got := getEnvInt(key, 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want default 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_ENV_BOOL"

	t.Setenv(key, "false")
	if getEnvBool(key, true) {
		t.Error("getEnvBool() = true, want false")
	}

	t.Setenv(key, "nope")
	if !getEnvBool(key, true) {
		t.Error("getEnvBool() should fall back to default on garbage")
	}
}

func TestGetEnvList(t *testing.T) {
	key := "TEST_ENV_LIST"

	t.Setenv(key, "User.Read, Sites.Read.All  offline_access")
	want := []string{"User.Read", "Sites.Read.All", "offline_access"}
	if got := getEnvList(key, nil); !reflect.DeepEqual(got, want) {
		t.Errorf("getEnvList() = %v, want %v", got, want)
	}

	t.Setenv(key, "   ")
	def := []string{"a"}
	got := getEnvList(key, def)
	if !reflect.DeepEqual(got, def) {
		t.Errorf("getEnvList() = %v, want %v", got, def)
	}
	got[0] = "changed"
	if def[0] != "a" {
		t.Error("getEnvList() must not alias the default slice")
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir")

	if err := ensureDir(path); err != nil {
		t.Fatalf("ensureDir() failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("directory was not created")
	}

	if err := ensureDir(""); err != nil {
		t.Error("ensureDir(\"\") should not error")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Skipping test because user home dir cannot be found")
	}

	want := filepath.Join(home, ".config", "adt", "adt.db")
	if got := getDefaultConfigPath("adt.db"); got != want {
		t.Errorf("getDefaultConfigPath() = %q, want %q", got, want)
	}
}

func TestGetEnvPaths(t *testing.T) {
	paths := getEnvPaths()
	if len(paths) == 0 {
		t.Fatal("getEnvPaths() returned empty list")
	}

	cwd, _ := os.Getwd()
	found := false
	for _, p := range paths {
		if p == filepath.Join(cwd, ".env") {
			found = true
			break
		}
	}
	if !found {
		t.Error("getEnvPaths() missing current directory .env")
	}
}

func TestLoad(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("ADT_CLIENT_ID", "client-123")
	t.Setenv("ADT_PAGE_SIZE", "50")
	unsetEnv(t, "ADT_REDIRECT_URI")
	unsetEnv(t, "ADT_POST_LOGOUT_REDIRECT_URI")
	unsetEnv(t, "ADT_LIST_ID")
	unsetEnv(t, "REFRESH_INTERVAL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ClientID != "client-123" {
		t.Errorf("ClientID = %q, want client-123", cfg.ClientID)
	}
	if cfg.RedirectURI != defaultRedirectURI || cfg.PostLogoutRedirectURI != defaultRedirectURI {
		t.Errorf("redirect URIs = %q / %q, want %q", cfg.RedirectURI, cfg.PostLogoutRedirectURI, defaultRedirectURI)
	}
	if cfg.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.PageSize)
	}
	if cfg.ListID != DefaultListID || !cfg.ListConfigured() {
		t.Errorf("ListID = %q, want default list", cfg.ListID)
	}
	if cfg.RefreshInterval != 0 {
		t.Errorf("RefreshInterval = %v, want disabled", cfg.RefreshInterval)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "data")); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestLoad_MissingClientID(t *testing.T) {
	isolate(t)
	unsetEnv(t, "ADT_CLIENT_ID")

	if _, err := Load(); err != ErrMissingClientID {
		t.Errorf("Load() error = %v, want ErrMissingClientID", err)
	}
}

func TestLoad_WithEnvFile(t *testing.T) {
	tmpDir := isolate(t)
	unsetEnv(t, "ADT_CLIENT_ID")
	unsetEnv(t, "ADT_NOTIFY")

	content := "ADT_CLIENT_ID=env-id\nADT_NOTIFY=false\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ClientID != "env-id" {
		t.Errorf("ClientID = %q, want env-id", cfg.ClientID)
	}
	if cfg.Notify {
		t.Error("Notify should be false from .env")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Valid", Config{ClientID: "id", PageSize: 200, MaxPages: 1}, false},
		{"BlankClient", Config{ClientID: "  ", PageSize: 200, MaxPages: 1}, true},
		{"PageTooLarge", Config{ClientID: "id", PageSize: 1000, MaxPages: 1}, true},
		{"NoPages", Config{ClientID: "id", PageSize: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultFieldMap(t *testing.T) {
	m := DefaultFieldMap()

	if got := m[models.FieldAuditScore]; !reflect.DeepEqual(got, []string{"field_7"}) {
		t.Errorf("Audit Score = %v", got)
	}
	if got := m[models.FieldAuditRemark]; !reflect.DeepEqual(got, []string{"field_7"}) {
		t.Errorf("Audit Remark = %v, want the shared field_7 key", got)
	}

	m[models.FieldSubArea][0] = "changed"
	if DefaultFieldMap()[models.FieldSubArea][0] != "field_1" {
		t.Error("DefaultFieldMap() must return a fresh copy")
	}
}

func TestParseFieldMap(t *testing.T) {
	got, err := ParseFieldMap([]byte(`{"Audit Remark": "field_8", "Area": ["Area", " ", "Zone"], "Empty": ""}`))
	if err != nil {
		t.Fatalf("ParseFieldMap() failed: %v", err)
	}

	want := models.FieldMap{
		models.FieldAuditRemark: {"field_8"},
		models.FieldArea:        {"Area", "Zone"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFieldMap() = %v, want %v", got, want)
	}
}

func TestParseFieldMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Empty", ""},
		{"NotObject", `["field_1"]`},
		{"NumberValue", `{"Area": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFieldMap([]byte(tt.content)); err == nil {
				t.Errorf("ParseFieldMap() should fail for %s", tt.name)
			}
		})
	}
}

func TestLoadFieldMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldmap.json")
	if err := os.WriteFile(path, []byte(`{"Audit Remark": "field_8"}`), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m, err := LoadFieldMap(path)
	if err != nil {
		t.Fatalf("LoadFieldMap() failed: %v", err)
	}
	if got := m[models.FieldAuditRemark]; !reflect.DeepEqual(got, []string{"field_8"}) {
		t.Errorf("Audit Remark = %v, want override", got)
	}
	if got := m[models.FieldSubArea]; !reflect.DeepEqual(got, []string{"field_1"}) {
		t.Errorf("Sub Area = %v, want default", got)
	}

	if _, err := LoadFieldMap(filepath.Join(t.TempDir(), "missing.json")); !os.IsNotExist(err) {
		t.Errorf("LoadFieldMap() error = %v, want not-exist", err)
	}
}

func TestMarshalFieldMap_RoundTrip(t *testing.T) {
	in := models.FieldMap{models.FieldArea: {"Area"}, models.FieldAuditScore: {"field_7", "Score"}}
	data, err := MarshalFieldMap(in)
	if err != nil {
		t.Fatalf("MarshalFieldMap() failed: %v", err)
	}
	out, err := ParseFieldMap(data)
	if err != nil {
		t.Fatalf("ParseFieldMap() failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}
