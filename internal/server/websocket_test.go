package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialStream(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, response, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if response != nil {
		response.Body.Close()
	}
	return conn
}

func TestStreamSendsSnapshotThenPushesIngestedReadings(t *testing.T) {
	store := &fakeStore{}
	api := NewAPI(store, nil)
	httpServer := httptest.NewServer(api.Handler())
	defer httpServer.Close()

	conn := dialStream(t, httpServer)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot Reading
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Timestamp.IsZero() {
		t.Fatal("expected snapshot with startup timestamp")
	}

	response, err := http.Post(httpServer.URL+"/data", "application/json", strings.NewReader(`{"heartRate": 72}`))
	if err != nil {
		t.Fatalf("post reading: %v", err)
	}
	response.Body.Close()

	var pushed Reading
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("read pushed reading: %v", err)
	}
	if pushed.HeartRate != 72 || pushed.Temperature != 0 || pushed.SugarLevel != 0 {
		t.Fatalf("unexpected pushed reading: %+v", pushed)
	}
}

func TestStreamDisconnectRemovesSubscriber(t *testing.T) {
	store := &fakeStore{}
	api := NewAPI(store, nil)
	httpServer := httptest.NewServer(api.Handler())
	defer httpServer.Close()

	conn := dialStream(t, httpServer)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot Reading
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if count := api.hub.Count(); count != 1 {
		t.Fatalf("expected one subscriber, got %d", count)
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for api.hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamSurvivorKeepsReceivingAfterPeerDrops(t *testing.T) {
	store := &fakeStore{}
	api := NewAPI(store, nil)
	httpServer := httptest.NewServer(api.Handler())
	defer httpServer.Close()

	dropped := dialStream(t, httpServer)
	survivor := dialStream(t, httpServer)
	defer survivor.Close()

	_ = dropped.SetReadDeadline(time.Now().Add(2 * time.Second))
	_ = survivor.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot Reading
	if err := dropped.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read dropped snapshot: %v", err)
	}
	if err := survivor.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read survivor snapshot: %v", err)
	}

	dropped.Close()
	deadline := time.Now().Add(2 * time.Second)
	for api.hub.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected dropped subscriber to be removed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	response, err := http.Post(httpServer.URL+"/data", "application/json", strings.NewReader(`{"heartRate": 80}`))
	if err != nil {
		t.Fatalf("post reading: %v", err)
	}
	response.Body.Close()

	var pushed Reading
	if err := survivor.ReadJSON(&pushed); err != nil {
		t.Fatalf("read survivor reading: %v", err)
	}
	if pushed.HeartRate != 80 {
		t.Fatalf("expected heartRate 80, got %v", pushed.HeartRate)
	}
}
