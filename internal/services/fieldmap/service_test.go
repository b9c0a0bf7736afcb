package fieldmap

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/config"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

func newTestService(t *testing.T, content string) (*Service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fieldmap.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	svc, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Logf("Close() failed: %v", err)
		}
	})
	return svc, path
}

// waitFor drains events until one of type want arrives.
func waitFor(t *testing.T, svc *Service, want EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-svc.Events():
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %d", want)
			return Event{}
		}
	}
}

func TestNew_WritesDefaults(t *testing.T) {
	svc, path := newTestService(t, "")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("field map file was not created: %v", err)
	}
	waitFor(t, svc, EventLoaded)

	if !reflect.DeepEqual(svc.Current(), config.DefaultFieldMap()) {
		t.Errorf("Current() = %v, want defaults", svc.Current())
	}

	loaded, err := config.LoadFieldMap(path)
	if err != nil {
		t.Fatalf("written file does not parse: %v", err)
	}
	if !reflect.DeepEqual(loaded, config.DefaultFieldMap()) {
		t.Error("written file should hold the defaults")
	}
}

func TestNew_LoadsOverride(t *testing.T) {
	svc, _ := newTestService(t, `{"Audit Remark": "field_8"}`)

	if got := svc.Current()[models.FieldAuditRemark]; !reflect.DeepEqual(got, []string{"field_8"}) {
		t.Errorf("Audit Remark = %v, want field_8", got)
	}
}

func TestNew_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldmap.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := New(path); err == nil {
		t.Error("New() should fail on a malformed field map")
	}
}

func TestNew_EmptyPath(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") failed: %v", err)
	}
	defer func() { _ = svc.Close() }()

	if len(svc.Current()) == 0 {
		t.Error("Current() should return the defaults without a file")
	}
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t, "")

	m := svc.Current()
	m[models.FieldSubArea][0] = "changed"
	delete(m, models.Field5S)

	again := svc.Current()
	if again[models.FieldSubArea][0] != "field_1" {
		t.Error("Current() aliases internal slices")
	}
	if _, ok := again[models.Field5S]; !ok {
		t.Error("Current() aliases internal map")
	}
}

func TestReloadOnChange(t *testing.T) {
	svc, path := newTestService(t, "")
	waitFor(t, svc, EventLoaded)

	if err := os.WriteFile(path, []byte(`{"Sub Area": ["SubArea", "field_1"]}`), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	waitFor(t, svc, EventChanged)

	want := []string{"SubArea", "field_1"}
	if got := svc.Current()[models.FieldSubArea]; !reflect.DeepEqual(got, want) {
		t.Errorf("Sub Area = %v, want %v", got, want)
	}
}

func TestReload_BrokenFileKeepsPrevious(t *testing.T) {
	svc, path := newTestService(t, `{"Area": "Zone"}`)
	waitFor(t, svc, EventLoaded)

	if err := os.WriteFile(path, []byte(`{"Area": 1}`), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	evt := waitFor(t, svc, EventError)
	if evt.Error == nil {
		t.Error("error event should carry the parse error")
	}
	if got := svc.Current()[models.FieldArea]; !reflect.DeepEqual(got, []string{"Zone"}) {
		t.Errorf("Area = %v, want previous map kept", got)
	}
}

func TestSendEvent_DropsOldest(t *testing.T) {
	svc := &Service{eventChan: make(chan Event, 1)}

	svc.sendEvent(Event{Type: EventLoaded})
	svc.sendEvent(Event{Type: EventChanged})

	if evt := <-svc.eventChan; evt.Type != EventChanged {
		t.Errorf("event = %d, want newest", evt.Type)
	}
}

func TestClose_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, "")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
