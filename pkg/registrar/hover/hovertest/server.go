// Package hovertest provides an in-memory Hover API for tests.
package hovertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/larivierec/hover-cli/pkg/registrar"
)

const (
	Username = "alice"
	Password = "s3cret-pw"

	authCookie   = "hoverauth"
	sessionToken = "session-token"
)

// Server serves the subset of the Hover API used by the registrar, backed
// by an in-memory domain list. It records every request it receives.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	domains  []registrar.Domain
	calls    []string
	failures map[string]rejection
	nextID   int
}

type rejection struct {
	status  int
	code    string
	message string
}

func NewServer(t testing.TB, domains ...registrar.Domain) *Server {
	t.Helper()
	s := &Server{domains: domains, failures: map[string]rejection{}, nextID: 100}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/domains", s.authed(s.listDomains))
	mux.HandleFunc("GET /api/domains/{domain}/dns", s.authed(s.listEntries))
	mux.HandleFunc("POST /api/domains/{domain}/dns", s.authed(s.addEntry))
	mux.HandleFunc("PUT /api/dns/{id}", s.authed(s.updateEntry))
	mux.HandleFunc("DELETE /api/dns/{id}", s.authed(s.deleteEntry))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls = append(s.calls, call)
		rej, failing := s.failures[call]
		s.mu.Unlock()
		if failing {
			writeJSON(w, rej.status, map[string]any{"succeeded": false, "error_code": rej.code, "error": rej.message})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the API base URL to configure the registrar with.
func (s *Server) Endpoint() string {
	return s.URL + "/api"
}

// Fail makes every later request matching call, written as in Requests,
// answer with status and a succeeded=false body carrying code and message.
// A 2xx status models Hover's habit of reporting failures in the body only.
func (s *Server) Fail(call string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[call] = rejection{status: status, code: code, message: message}
}

func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) Domains() []registrar.Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]registrar.Domain, len(s.domains))
	for i, d := range s.domains {
		d.Entries = append([]registrar.DNSEntry(nil), d.Entries...)
		out[i] = d
	}
	return out
}

// SampleDomain has one default A record and one CNAME.
func SampleDomain() registrar.Domain {
	return registrar.Domain{
		ID:     "dom1",
		Name:   "example.com",
		Active: true,
		Entries: []registrar.DNSEntry{
			{ID: "dns1", Name: "@", Type: "A", Content: "192.0.2.10", TTL: 900, IsDefault: true},
			{ID: "dns2", Name: "www", Type: "CNAME", Content: "example.net", TTL: 900},
		},
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"succeeded": false, "error": "bad request"})
		return
	}
	if creds["username"] != Username || creds["password"] != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"succeeded": false, "error_code": "login_failed", "error": "Invalid username or password"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: authCookie, Value: sessionToken, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": true})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(authCookie); err != nil || c.Value != sessionToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"succeeded": false, "error": "not logged in"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		next(w, r)
	}
}

func (s *Server) listDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": true, "domains": s.domains})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	d := s.find(r.PathValue("domain"))
	if d == nil {
		domainNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": true, "domains": []registrar.Domain{*d}})
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	d := s.find(r.PathValue("domain"))
	if d == nil {
		domainNotFound(w)
		return
	}
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	for _, e := range d.Entries {
		if e.Name == body["name"] && e.Type == body["type"] {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"succeeded":  false,
				"error_code": "duplicate_record",
				"error":      "You may not have more than one CNAME record for a given name",
			})
			return
		}
	}
	s.nextID++
	d.Entries = append(d.Entries, registrar.DNSEntry{
		ID:      fmt.Sprintf("dns%d", s.nextID),
		Name:    body["name"],
		Type:    body["type"],
		Content: body["content"],
		TTL:     900,
	})
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": true})
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if e := s.entry(r.PathValue("id")); e != nil {
		e.Content = body["content"]
		writeJSON(w, http.StatusOK, map[string]any{"succeeded": true})
		return
	}
	recordNotFound(w)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for i := range s.domains {
		d := &s.domains[i]
		for j, e := range d.Entries {
			if e.ID == id {
				d.Entries = append(d.Entries[:j], d.Entries[j+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"succeeded": true})
				return
			}
		}
	}
	recordNotFound(w)
}

func (s *Server) find(name string) *registrar.Domain {
	for i := range s.domains {
		if s.domains[i].Name == name {
			return &s.domains[i]
		}
	}
	return nil
}

func (s *Server) entry(id string) *registrar.DNSEntry {
	for i := range s.domains {
		for j := range s.domains[i].Entries {
			if s.domains[i].Entries[j].ID == id {
				return &s.domains[i].Entries[j]
			}
		}
	}
	return nil
}

func domainNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"succeeded": false, "error_code": "domain_not_found", "error": "Domain not found"})
}

func recordNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"succeeded": false, "error_code": "dns_record_not_found", "error": "DNS record not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
