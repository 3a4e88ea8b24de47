// Package qasetest serves an in-memory Qase backend over httptest for tests.
//
// It implements the subset of the v1 API the sync uses (cases, suites, runs,
// search) and exposes knobs to reproduce backend quirks: partial list records,
// offset pagination being refused, updates silently dropping steps, and
// rejected writes.
package qasetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Run is a run created through the fake.
type Run struct {
	ID    int
	Title string
	Cases []int
}

// Server is an in-memory Qase project served over HTTP.
type Server struct {
	*httptest.Server

	// HideExternalIDOnList strips external_id from list responses, forcing a
	// detail fetch per case.
	HideExternalIDOnList bool
	// RefuseOffset answers offset-addressed list requests with 404.
	RefuseOffset bool
	// DropStepsOnUpdate makes PATCH ignore the steps field.
	DropStepsOnUpdate bool
	// IgnoreExternalID makes create/update discard external_id, as some
	// workspaces do.
	IgnoreExternalID bool
	// FailWrite, when set, is consulted for every create/update/delete; a
	// non-zero status fails the request with that status.
	FailWrite func(method, path string, body map[string]any) int

	mu       sync.Mutex
	project  string
	nextID   int
	cases    map[int]map[string]any
	suites   map[int]map[string]any
	runs     []Run
	requests []string
}

// NewServer starts a fake backend for the project with the given code.
// The caller must Close it.
func NewServer(project string) *Server {
	s := &Server{
		project: project,
		nextID:  1,
		cases:   map[int]map[string]any{},
		suites:  map[int]map[string]any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /case/{project}", s.listCases)
	mux.HandleFunc("GET /case/{project}/{id}", s.getCase)
	mux.HandleFunc("POST /case/{project}", s.createCase)
	mux.HandleFunc("PATCH /case/{project}/{id}", s.updateCase)
	mux.HandleFunc("DELETE /case/{project}/{id}", s.deleteCase)
	mux.HandleFunc("GET /suite/{project}", s.listSuites)
	mux.HandleFunc("POST /suite/{project}", s.createSuite)
	mux.HandleFunc("POST /run/{project}", s.createRun)
	mux.HandleFunc("GET /search", s.search)

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// SeedSuite stores a suite directly and returns its id.
func (s *Server) SeedSuite(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	s.suites[id] = map[string]any{"id": id, "title": title}
	return id
}

// SeedCase stores a case record directly and returns its id. fields may use
// any keys; "id" is assigned by the fake.
func (s *Server) SeedCase(fields map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	rec := map[string]any{}
	for k, v := range fields {
		rec[k] = v
	}
	rec["id"] = id
	s.cases[id] = rec
	return id
}

// Case returns a copy of the stored case, or nil.
func (s *Server) Case(id int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cases[id]
	if !ok {
		return nil
	}
	return clone(rec)
}

// Cases returns copies of every stored case ordered by id.
func (s *Server) Cases() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.cases))
	for _, id := range sortedIDs(s.cases) {
		out = append(out, clone(s.cases[id]))
	}
	return out
}

// Suites returns the stored suite titles keyed by id.
func (s *Server) Suites() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.suites))
	for id, rec := range s.suites {
		out[id], _ = rec["title"].(string)
	}
	return out
}

// Runs returns the runs created so far.
func (s *Server) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Run(nil), s.runs...)
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests returns how many requests matched method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		m, p, _ := strings.Cut(r, " ")
		if m == method && strings.HasPrefix(p, pathPrefix) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		if r.Header.Get("Token") == "" {
			writeError(w, http.StatusUnauthorized, "API token is required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var entities []any
	for _, id := range sortedIDs(s.cases) {
		rec := clone(s.cases[id])
		if s.HideExternalIDOnList {
			delete(rec, "external_id")
			delete(rec, "steps")
		}
		entities = append(entities, rec)
	}
	s.writePage(w, r, entities)
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	rec, ok := s.cases[id]
	if ok {
		rec = clone(rec)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Test case not found", nil)
		return
	}
	writeResult(w, rec)
}

func (s *Server) createCase(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	body, ok := decodeBody(w, r)
	if !ok || s.failWrite(w, r, body) {
		return
	}
	title, _ := body["title"].(string)
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Data is invalid.", []map[string]string{{"field": "title", "error": "The title field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IgnoreExternalID {
		delete(body, "external_id")
	}
	if ext, _ := body["external_id"].(string); ext != "" {
		for _, rec := range s.cases {
			if rec["external_id"] == ext {
				writeError(w, http.StatusUnprocessableEntity, "Data is invalid.", []map[string]string{{"field": "external_id", "error": "The external id has already been taken."}})
				return
			}
		}
	}
	id := s.allocID()
	body["id"] = id
	s.cases[id] = body
	writeResult(w, map[string]any{"id": id})
}

func (s *Server) updateCase(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	id, _ := strconv.Atoi(r.PathValue("id"))
	body, ok := decodeBody(w, r)
	if !ok || s.failWrite(w, r, body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.cases[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Test case not found", nil)
		return
	}
	if s.IgnoreExternalID {
		delete(body, "external_id")
	}
	if s.DropStepsOnUpdate {
		delete(body, "steps")
	}
	for k, v := range body {
		rec[k] = v
	}
	writeResult(w, map[string]any{"id": id})
}

func (s *Server) deleteCase(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	id, _ := strconv.Atoi(r.PathValue("id"))
	if s.failWrite(w, r, nil) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[id]; !ok {
		writeError(w, http.StatusNotFound, "Test case not found", nil)
		return
	}
	delete(s.cases, id)
	writeResult(w, map[string]any{"id": id})
}

func (s *Server) listSuites(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var entities []any
	for _, id := range sortedIDs(s.suites) {
		entities = append(entities, clone(s.suites[id]))
	}
	s.writePage(w, r, entities)
}

func (s *Server) createSuite(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	body, ok := decodeBody(w, r)
	if !ok || s.failWrite(w, r, body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	body["id"] = id
	s.suites[id] = body
	writeResult(w, map[string]any{"id": id})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	if !s.checkProject(w, r) {
		return
	}
	var body struct {
		Title string `json:"title"`
		Cases []int  `json:"cases"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	s.runs = append(s.runs, Run{ID: id, Title: body.Title, Cases: body.Cases})
	writeResult(w, map[string]any{"id": id})
}

var (
	qqlProject     = regexp.MustCompile(`project\s*=\s*"((?:[^"\\]|\\.)*)"`)
	qqlDescription = regexp.MustCompile(`description\s*~\s*"((?:[^"\\]|\\.)*)"`)
	qqlUnescape    = strings.NewReplacer(`\"`, `"`, `\\`, `\`)
)

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	pm := qqlProject.FindStringSubmatch(query)
	dm := qqlDescription.FindStringSubmatch(query)
	if pm == nil || dm == nil {
		writeError(w, http.StatusBadRequest, "unsupported query", nil)
		return
	}
	if qqlUnescape.Replace(pm[1]) != s.project {
		writeResult(w, map[string]any{"total": 0, "entities": []any{}})
		return
	}
	term := qqlUnescape.Replace(dm[1])

	s.mu.Lock()
	defer s.mu.Unlock()
	entities := []any{}
	for _, id := range sortedIDs(s.cases) {
		rec := s.cases[id]
		desc, _ := rec["description"].(string)
		if strings.Contains(desc, term) {
			entities = append(entities, map[string]any{"id": id, "title": rec["title"]})
		}
	}
	writeResult(w, map[string]any{"total": len(entities), "entities": entities})
}

// writePage serves the slice of entities addressed by limit and offset/page.
// Must be called with s.mu held.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, entities []any) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	start := 0
	switch {
	case q.Has("offset"):
		if s.RefuseOffset {
			writeError(w, http.StatusNotFound, "Not found", nil)
			return
		}
		start, _ = strconv.Atoi(q.Get("offset"))
	case q.Has("page"):
		page, _ := strconv.Atoi(q.Get("page"))
		if page < 1 {
			page = 1
		}
		start = (page - 1) * limit
	}
	end := start + limit
	if start > len(entities) {
		start = len(entities)
	}
	if end > len(entities) {
		end = len(entities)
	}
	out := entities[start:end]
	if out == nil {
		out = []any{}
	}
	writeResult(w, map[string]any{
		"total":    len(entities),
		"filtered": len(entities),
		"count":    len(out),
		"entities": out,
	})
}

func (s *Server) checkProject(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("project") != s.project {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return false
	}
	return true
}

func (s *Server) failWrite(w http.ResponseWriter, r *http.Request, body map[string]any) bool {
	if s.FailWrite == nil {
		return false
	}
	if status := s.FailWrite(r.Method, r.URL.Path, body); status != 0 {
		writeError(w, status, fmt.Sprintf("injected failure %d", status), nil)
		return true
	}
	return false
}

// allocID must be called with s.mu held.
func (s *Server) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, true
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "result": result})
}

func writeError(w http.ResponseWriter, status int, msg string, fields []map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"status": false, "errorMessage": msg}
	if fields != nil {
		body["errorFields"] = fields
	}
	_ = json.NewEncoder(w).Encode(body)
}

func clone(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func sortedIDs(m map[int]map[string]any) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
