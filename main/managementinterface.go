package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

var statusBroadcaster *uibroadcaster

// statusSender pushes the JSON status to every /status socket once per
// second.
func statusSender(done <-chan struct{}) {
	timer := time.NewTicker(1 * time.Second)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
		case <-done:
			return
		}
		if statusBroadcaster.NumSockets() == 0 {
			continue
		}
		update, err := json.Marshal(snapshotStatus())
		if err != nil {
			log.Errorf("FC Error: marshal status: %s", err)
			continue
		}
		statusBroadcaster.Send(update)
	}
}

func handleStatusConnection(conn *websocket.Conn) {
	logDbg("status client connected: %s", conn.Request().RemoteAddr)
	statusBroadcaster.AddSocket(conn)
	// Keep the handler alive until the client goes away; anything it sends
	// is ignored.
	_, _ = io.Copy(io.Discard, conn)
}

// AJAX call - /getStatus. Responds with the current status.
func handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	statusJSON, _ := json.Marshal(snapshotStatus())
	fmt.Fprintf(w, "%s\n", statusJSON)
}

// AJAX call - /getSettings. Responds with the effective configuration.
func handleSettingsGetRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	settingsJSON, _ := json.Marshal(&globalSettings)
	fmt.Fprintf(w, "%s\n", settingsJSON)
}

// /status.txt. Plain text dump.
func handleStatusText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	dumpStatus(w, snapshotStatus(), hoverClock.Uptime())
}

func newManagementMux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status",
		func(w http.ResponseWriter, req *http.Request) {
			s := websocket.Server{
				Handler: websocket.Handler(handleStatusConnection)}
			s.ServeHTTP(w, req)
		})
	mux.HandleFunc("/getStatus", handleStatusRequest)
	mux.HandleFunc("/getSettings", handleSettingsGetRequest)
	mux.HandleFunc("/status.txt", handleStatusText)
	return mux
}

func managementInterface(addr string, gatherer prometheus.Gatherer) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newManagementMux(gatherer)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("managementInterface ListenAndServe: %s", err.Error())
			addSingleSystemErrorf("http", "Management interface: %s", err.Error())
		}
	}()
	return srv
}
