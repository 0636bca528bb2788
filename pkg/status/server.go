// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package status

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/dtn7/srtla-go/pkg/discovery"
	"github.com/dtn7/srtla-go/pkg/history"
	"github.com/dtn7/srtla-go/pkg/receiver"
)

// peerTimeout is the age after which a discovered peer is no longer listed.
const peerTimeout = 5 * time.Minute

// Source of the receiver's state, e.g., a *receiver.Receiver.
type Source interface {
	Snapshot() *receiver.Snapshot
}

// History of removed groups, e.g., a *history.Store.
type History interface {
	Since(t time.Time) ([]history.Record, error)
}

// Peers found by discovery, e.g., a *discovery.Manager.
type Peers interface {
	Peers(within time.Duration) []discovery.Peer
}

// Options for the Server. Both History and Peers are optional.
type Options struct {
	Source  Source
	History History
	Peers   Peers
	Hub     *Hub
}

// Server of the status API.
type Server struct {
	router *mux.Router
	opts   Options
}

// NewServer binds the status API to the router.
func NewServer(router *mux.Router, opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}

	s := &Server{
		router: router,
		opts:   opts,
	}

	s.router.HandleFunc("/groups", s.handleGroups).Methods(http.MethodGet)
	s.router.HandleFunc("/groups/{seq:[0-9]+}", s.handleGroup).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)
	s.router.Handle("/events", opts.Hub).Methods(http.MethodGet)

	return s
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub of the /events endpoint.
func (s *Server) Hub() *Hub {
	return s.opts.Hub
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write status response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Source.Snapshot().Groups)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(mux.Vars(r)["seq"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if g, ok := s.opts.Source.Snapshot().Group(seq); ok {
		writeJSON(w, http.StatusOK, g)
	} else {
		writeError(w, http.StatusNotFound, "unknown group")
	}
}

type statsResponse struct {
	Time   time.Time `json:"time"`
	Groups int       `json:"groups"`
	Links  int       `json:"links"`

	Created   uint64 `json:"created"`
	Destroyed uint64 `json:"destroyed"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.opts.Source.Snapshot()
	writeJSON(w, http.StatusOK, statsResponse{
		Time:      snapshot.Time,
		Groups:    snapshot.Stats.Groups,
		Links:     snapshot.Stats.Links,
		Created:   snapshot.Stats.Created,
		Destroyed: snapshot.Stats.Destroyed,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		since = t
	}

	records, err := s.opts.History.Since(since)
	if err != nil {
		log.WithError(err).Warn("Failed to query group history")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	peers := []discovery.Peer{}
	if s.opts.Peers != nil {
		peers = append(peers, s.opts.Peers.Peers(peerTimeout)...)
	}
	writeJSON(w, http.StatusOK, peers)
}
