package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// SchemaRegistry is an in-process schema registry speaking both the Confluent
// REST API and the subset of the Apicurio v2 API the serdes use. Identical
// schema text always maps to the same id.
type SchemaRegistry struct {
	server *httptest.Server

	mu       sync.Mutex
	byID     map[uint32]string
	ids      map[string]uint32
	subjects map[string][]uint32
	lookups  int
}

// NewSchemaRegistry starts a registry. Callers must Close it.
func NewSchemaRegistry() *SchemaRegistry {
	r := &SchemaRegistry{
		byID:     map[uint32]string{},
		ids:      map[string]uint32{},
		subjects: map[string][]uint32{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /schemas/ids/{id}", r.confluentSchema)
	mux.HandleFunc("POST /subjects/{subject}/versions", r.confluentRegister)
	mux.HandleFunc("GET /ids/contentIds/{id}", r.apicurioContent)
	mux.HandleFunc("POST /groups/{group}/artifacts", r.apicurioCreate)

	r.server = httptest.NewServer(mux)
	return r
}

// URL returns the base URL of the registry.
func (r *SchemaRegistry) URL() string {
	return r.server.URL
}

// Close shuts the server down.
func (r *SchemaRegistry) Close() {
	r.server.Close()
}

// Add registers schema text directly and returns its id.
func (r *SchemaRegistry) Add(schema string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(schema)
}

func (r *SchemaRegistry) add(schema string) uint32 {
	if id, ok := r.ids[schema]; ok {
		return id
	}
	id := uint32(len(r.byID) + 1)
	r.byID[id] = schema
	r.ids[schema] = id
	return id
}

// Schema returns the schema text stored under id.
func (r *SchemaRegistry) Schema(id uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// Subject returns the ids registered under a subject (or Apicurio artifact id), in order.
func (r *SchemaRegistry) Subject(subject string) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.subjects[subject]...)
}

// Lookups returns how many schema-by-id requests were served.
func (r *SchemaRegistry) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

func (r *SchemaRegistry) lookup(w http.ResponseWriter, req *http.Request) (string, bool) {
	id, err := strconv.ParseUint(req.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	s, ok := r.byID[uint32(id)]
	if !ok {
		http.Error(w, `{"error_code":40403,"message":"Schema not found"}`, http.StatusNotFound)
		return "", false
	}
	return s, true
}

func (r *SchemaRegistry) register(subject, schema string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.add(schema)
	for _, existing := range r.subjects[subject] {
		if existing == id {
			return id
		}
	}
	r.subjects[subject] = append(r.subjects[subject], id)
	return id
}

func (r *SchemaRegistry) confluentSchema(w http.ResponseWriter, req *http.Request) {
	s, ok := r.lookup(w, req)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{"schema": s})
}

func (r *SchemaRegistry) confluentRegister(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Schema string `json:"schema"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Schema == "" {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}
	id := r.register(req.PathValue("subject"), body.Schema)
	writeJSON(w, map[string]any{"id": id})
}

func (r *SchemaRegistry) apicurioContent(w http.ResponseWriter, req *http.Request) {
	s, ok := r.lookup(w, req)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, s)
}

func (r *SchemaRegistry) apicurioCreate(w http.ResponseWriter, req *http.Request) {
	artifactID := req.Header.Get("X-Registry-ArtifactId")
	if artifactID == "" || req.Header.Get("X-Registry-ArtifactType") != "AVRO" {
		http.Error(w, "missing artifact headers", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil || len(body) == 0 {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	id := r.register(artifactID, string(body))
	writeJSON(w, map[string]any{
		"groupId":   req.PathValue("group"),
		"id":        artifactID,
		"contentId": id,
		"globalId":  id,
		"type":      "AVRO",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
