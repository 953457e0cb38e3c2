// Package omekatest provides an in-memory Omeka S API for tests.
package omekatest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/teranos/omekalink/am"
)

// Test credentials expected on every request
const (
	KeyIdentity   = "test-identity"
	KeyCredential = "test-credential"
)

// Server is a fake Omeka S instance backed by httptest.Server.
// Items are stored as generic JSON objects; PUT replaces the stored body
// but keeps o:id and o:media, as Omeka S does for server-managed keys.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	items     map[int64]map[string]interface{}
	itemSets  map[int64]bool
	media     map[int64]map[string]interface{}
	nextMedia int64

	// Fault injection keyed by page number or item id
	listFailures map[int]int
	getFailures  map[int64]int
	putFailures  map[int64]int
	createFail   int

	// Recorded traffic
	listPages   []int
	listQueries []string
	gets        map[int64]int
	puts        map[int64][]map[string]interface{}
	probes      map[int64]int
	created     []map[string]interface{}
	authMissing int
}

// New starts a fake instance and registers its shutdown with t.Cleanup
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		items:        map[int64]map[string]interface{}{},
		itemSets:     map[int64]bool{},
		media:        map[int64]map[string]interface{}{},
		nextMedia:    1000,
		listFailures: map[int]int{},
		getFailures:  map[int64]int{},
		putFailures:  map[int64]int{},
		gets:         map[int64]int{},
		puts:         map[int64][]map[string]interface{}{},
		probes:       map[int64]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// APIURL returns the API root, e.g. http://127.0.0.1:1234/api
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// OmekaConfig returns a config section pointing at this instance
func (s *Server) OmekaConfig(perPage int) am.OmekaConfig {
	return am.OmekaConfig{
		APIURL:        s.APIURL(),
		KeyIdentity:   KeyIdentity,
		KeyCredential: KeyCredential,
		PerPage:       perPage,
	}
}

// AddItemSet registers an existing item set
func (s *Server) AddItemSet(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemSets[id] = true
}

// AddItem stores an item. doc is a JSON object; o:id is set to id.
func (s *Server) AddItem(id int64, doc string) {
	var item map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &item); err != nil {
		panic("omekatest: invalid item JSON: " + err.Error())
	}
	item["o:id"] = id
	item["@id"] = s.APIURL() + "/items/" + strconv.FormatInt(id, 10)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = item
}

// AddMedia stores a media resource. doc is a JSON object; o:id is set to id.
func (s *Server) AddMedia(id int64, doc string) {
	var media map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &media); err != nil {
		panic("omekatest: invalid media JSON: " + err.Error())
	}
	media["o:id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[id] = media
}

// FailList makes the listing of page respond with status
func (s *Server) FailList(page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFailures[page] = status
}

// FailGet makes fetching item id respond with status
func (s *Server) FailGet(id int64, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getFailures[id] = status
}

// FailPut makes replacing item id respond with status
func (s *Server) FailPut(id int64, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putFailures[id] = status
}

// FailCreateMedia makes every media creation respond with status
func (s *Server) FailCreateMedia(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createFail = status
}

// Item returns the stored item body
func (s *Server) Item(id int64) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// ItemSetIDs returns the o:id values in the stored item's o:item_set
func (s *Server) ItemSetIDs(id int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	list, _ := s.items[id]["o:item_set"].([]interface{})
	for _, entry := range list {
		ref, _ := entry.(map[string]interface{})
		if n, ok := ref["o:id"].(float64); ok {
			ids = append(ids, int64(n))
		}
	}
	return ids
}

// ListedPages returns the page numbers requested, in order
func (s *Server) ListedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.listPages...)
}

// ListQueries returns the raw query strings of list requests, credentials removed
func (s *Server) ListQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.listQueries...)
}

// Gets returns how many times item id was fetched
func (s *Server) Gets(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[id]
}

// Puts returns every body PUT for item id
func (s *Server) Puts(id int64) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.puts[id]...)
}

// TotalPuts returns the number of PUT requests across all items
func (s *Server) TotalPuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, bodies := range s.puts {
		n += len(bodies)
	}
	return n
}

// Probes returns how many times item set id was probed
func (s *Server) Probes(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes[id]
}

// CreatedMedia returns the bodies POSTed to /api/media
func (s *Server) CreatedMedia() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.created...)
}

// Unauthenticated returns the number of requests that lacked credentials
func (s *Server) Unauthenticated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authMissing
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("key_identity") != KeyIdentity || q.Get("key_credential") != KeyCredential {
		s.mu.Lock()
		s.authMissing++
		s.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"errors": map[string]string{"error": "Permission denied"}})
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "items" && r.Method == http.MethodGet:
		s.listItems(w, r)
	case len(parts) == 2 && parts[0] == "items":
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, nil)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.getItem(w, id)
		case http.MethodPut:
			s.putItem(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[0] == "item_sets" && r.Method == http.MethodGet:
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		s.probeItemSet(w, id)
	case len(parts) == 2 && parts[0] == "media" && r.Method == http.MethodGet:
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		s.getMedia(w, id)
	case len(parts) == 1 && parts[0] == "media" && r.Method == http.MethodPost:
		s.createMedia(w, r)
	default:
		writeJSON(w, http.StatusNotFound, nil)
	}
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	q.Del("key_identity")
	q.Del("key_credential")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listPages = append(s.listPages, page)
	s.listQueries = append(s.listQueries, q.Encode())

	if status, ok := s.listFailures[page]; ok {
		writeJSON(w, status, map[string]interface{}{"errors": map[string]string{"error": "listing failed"}})
		return
	}

	var filter int64
	if raw := q.Get("item_set_id"); raw != "" {
		filter, _ = strconv.ParseInt(raw, 10, 64)
	}

	ids := make([]int64, 0, len(s.items))
	for id, item := range s.items {
		if filter != 0 && !inItemSet(item, filter) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []interface{}{}
	start := (page - 1) * perPage
	for i := start; i < len(ids) && i < start+perPage; i++ {
		out = append(out, s.items[ids[i]])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getItem(w http.ResponseWriter, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets[id]++

	if status, ok := s.getFailures[id]; ok {
		writeJSON(w, status, map[string]interface{}{"errors": map[string]string{"error": "fetch failed"}})
		return
	}
	item, ok := s.items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"errors": map[string]string{"error": "Not found"}})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) putItem(w http.ResponseWriter, r *http.Request, id int64) {
	body, _ := io.ReadAll(r.Body)
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": map[string]string{"error": "invalid JSON"}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[id] = append(s.puts[id], doc)

	if status, ok := s.putFailures[id]; ok {
		writeJSON(w, status, map[string]interface{}{"errors": map[string]string{"error": "update failed"}})
		return
	}
	existing, ok := s.items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, nil)
		return
	}

	stored := map[string]interface{}{}
	for k, v := range doc {
		stored[k] = v
	}
	for _, key := range []string{"o:id", "@id", "o:media"} {
		if v, ok := existing[key]; ok {
			stored[key] = v
		}
	}
	s.items[id] = stored
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) probeItemSet(w http.ResponseWriter, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[id]++
	if !s.itemSets[id] {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"errors": map[string]string{"error": "Not found"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"o:id": id})
}

func (s *Server) getMedia(w http.ResponseWriter, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	media, ok := s.media[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, media)
}

func (s *Server) createMedia(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, doc)

	if s.createFail != 0 {
		writeJSON(w, s.createFail, map[string]interface{}{"errors": map[string]string{"error": "ingest failed"}})
		return
	}

	ref, _ := doc["o:item"].(map[string]interface{})
	itemID, _ := ref["o:id"].(float64)
	item, ok := s.items[int64(itemID)]
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"errors": map[string]string{"o:item": "item required"}})
		return
	}

	s.nextMedia++
	id := s.nextMedia
	doc["o:id"] = id
	s.media[id] = doc

	list, _ := item["o:media"].([]interface{})
	item["o:media"] = append(list, map[string]interface{}{"o:id": id})
	writeJSON(w, http.StatusOK, doc)
}

func inItemSet(item map[string]interface{}, setID int64) bool {
	list, _ := item["o:item_set"].([]interface{})
	for _, entry := range list {
		ref, _ := entry.(map[string]interface{})
		if n, ok := ref["o:id"].(float64); ok && int64(n) == setID {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
