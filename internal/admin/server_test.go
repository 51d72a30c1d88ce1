package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vjlink/internal/config"
	"vjlink/internal/receiver"
	"vjlink/internal/transport"
)

func newTestServer(t *testing.T) (*httptest.Server, *receiver.Receiver) {
	t.Helper()
	bus := transport.NewBus()
	rx := receiver.New(config.Default(), bus.Endpoint(), nil, nil, nil, nil, nil)
	srv := httptest.NewServer(NewServer(rx, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, rx
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	var st receiver.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Level != 0 || st.LevelName != "S0" || st.Connected {
		t.Fatalf("unexpected initial status: %+v", st)
	}
	if len(st.Effects) == 0 {
		t.Fatal("status missing effect registry")
	}
}

func TestForceLevelEndpoint(t *testing.T) {
	srv, rx := newTestServer(t)

	resp, err := http.Get(srv.URL + "/force-level?level=3")
	if err != nil {
		t.Fatalf("force level: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status code %d", resp.StatusCode)
	}
	if st := rx.Status(); st.Level != 3 || !st.Pinned {
		t.Fatalf("force-level not applied: %+v", st)
	}

	resp, err = http.Get(srv.URL + "/resume-auto")
	if err != nil {
		t.Fatalf("resume auto: %v", err)
	}
	resp.Body.Close()
	if rx.Status().Pinned {
		t.Fatal("resume-auto left the ladder pinned")
	}
}

func TestForceLevelRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, q := range []string{"", "level=9", "level=abc"} {
		resp, err := http.Get(srv.URL + "/force-level?" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: status %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestEmergencyStopEndpoint(t *testing.T) {
	srv, rx := newTestServer(t)
	resp, err := http.Get(srv.URL + "/emergency-stop")
	if err != nil {
		t.Fatalf("emergency stop: %v", err)
	}
	resp.Body.Close()
	st := rx.Status()
	if st.Level != 5 || !st.Pinned {
		t.Fatalf("emergency stop not applied: %+v", st)
	}
	for name, e := range st.Effects {
		if e.Enabled {
			t.Fatalf("effect %s enabled after stop", name)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, rx := newTestServer(t)
	rx.ForceLevel(2)

	resp, err := http.Get(srv.URL + "/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer resp.Body.Close()
	var hist []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist) != 1 || hist[0]["cause"] != "forced" {
		t.Fatalf("unexpected history: %+v", hist)
	}
}
