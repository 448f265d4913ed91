// Package apitest provides an in-memory implementation of the equipment
// analytics HTTP API for tests.
package apitest

import (
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/chemora/internal/certgen"
	"github.com/atinyakov/chemora/internal/models"
)

// RequiredColumns are the CSV headers the upload endpoint insists on.
var RequiredColumns = []string{"Equipment Name", "Type", "Flowrate", "Pressure", "Temperature"}

type user struct {
	password string
	email    string
}

type dataset struct {
	meta      models.Dataset
	owner     string
	equipment []models.Equipment
}

// Server is a fake API. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]user
	datasets []*dataset // most recent first
	nextID   int64
	holds    map[string]chan struct{}
	fail     map[string]int
	now      func() time.Time
	caPEM    []byte
}

func newServer() *Server {
	return &Server{
		users:  map[string]user{"admin": {password: "admin", email: "admin@example.com"}},
		nextID: 1,
		holds:  map[string]chan struct{}{},
		fail:   map[string]int{},
		now:    time.Now,
	}
}

// New starts a server seeded with the demo user admin/admin.
func New() *Server {
	s := newServer()
	s.Server = httptest.NewServer(NewRouter(s))
	return s
}

// NewTLS starts an https server whose certificate is signed by a fresh
// private CA. CAPEM returns that CA for the client's bundle.
func NewTLS() (*Server, error) {
	ca, err := certgen.NewCA("apitest CA", time.Hour)
	if err != nil {
		return nil, err
	}
	cert, err := ca.TLSServerCertificate(time.Hour, "127.0.0.1", "localhost")
	if err != nil {
		return nil, err
	}

	s := newServer()
	s.caPEM = ca.CertPEM()
	s.Server = httptest.NewUnstartedServer(NewRouter(s))
	s.Server.TLS = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	s.Server.StartTLS()
	return s, nil
}

// CAPEM returns the PEM of the CA that signed a NewTLS server certificate.
func (s *Server) CAPEM() []byte { return s.caPEM }

// Hold makes requests to path block until the returned release is called.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// FailWith makes every request to path answer with status.
func (s *Server) FailWith(path string, status int) {
	s.mu.Lock()
	s.fail[path] = status
	s.mu.Unlock()
}

// Heal undoes FailWith for path.
func (s *Server) Heal(path string) {
	s.mu.Lock()
	delete(s.fail, path)
	s.mu.Unlock()
}

// AddUser registers a user directly.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	s.users[username] = user{password: password}
	s.mu.Unlock()
}

// Seed stores a dataset for owner and returns its id.
func (s *Server) Seed(owner, name string, rows []models.Equipment) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDataset(owner, name, rows)
}

func (s *Server) addDataset(owner, name string, rows []models.Equipment) int64 {
	// Keep only the last MaxDatasets per user.
	var owned []*dataset
	for _, d := range s.datasets {
		if d.owner == owner {
			owned = append(owned, d)
		}
	}
	if len(owned) >= models.MaxDatasets {
		oldest := owned[len(owned)-1]
		s.datasets = slices.DeleteFunc(s.datasets, func(d *dataset) bool { return d == oldest })
	}

	id := s.nextID
	s.nextID++
	eq := make([]models.Equipment, len(rows))
	for i, r := range rows {
		r.ID = int64(i + 1)
		r.Dataset = id
		eq[i] = r
	}
	d := &dataset{
		meta: models.Dataset{
			ID:             id,
			Name:           name,
			EquipmentCount: len(eq),
			UploadedAt:     s.now().UTC().Add(time.Duration(id) * time.Millisecond),
		},
		owner:     owner,
		equipment: eq,
	}
	s.datasets = append([]*dataset{d}, s.datasets...)
	return id
}

func (s *Server) gate(path string) (int, bool) {
	s.mu.Lock()
	ch := s.holds[path]
	status, failing := s.fail[path]
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return status, failing
}

func (s *Server) find(owner string, id int64) *dataset {
	for _, d := range s.datasets {
		if d.owner == owner && d.meta.ID == id {
			return d
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.Credential
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": req.Username})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Username, password, and email are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[req.Username]; ok {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	for _, u := range s.users {
		if u.email == req.Email {
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
	}
	s.users[req.Username] = user{password: req.Password, email: req.Email}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User created successfully", "username": req.Username})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	owner := userFromContext(r.Context())
	s.mu.Lock()
	out := []models.Dataset{}
	for _, d := range s.datasets {
		if d.owner == owner {
			out = append(out, d.meta)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner := userFromContext(r.Context())
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	if !strings.HasSuffix(header.Filename, ".csv") {
		writeError(w, http.StatusBadRequest, "File must be CSV")
		return
	}

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil || len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "could not parse CSV")
		return
	}
	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[h] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("CSV must contain columns: %v", RequiredColumns))
			return
		}
	}

	var eq []models.Equipment
	for _, row := range rows[1:] {
		var vals [3]float64
		for i, col := range RequiredColumns[2:] {
			v, err := strconv.ParseFloat(row[idx[col]], 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("could not convert string to float: '%s'", row[idx[col]]))
				return
			}
			vals[i] = v
		}
		eq = append(eq, models.Equipment{
			Name:        row[idx["Equipment Name"]],
			Type:        row[idx["Type"]],
			Flowrate:    vals[0],
			Pressure:    vals[1],
			Temperature: vals[2],
		})
	}

	s.mu.Lock()
	id := s.addDataset(owner, header.Filename, eq)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.UploadResponse{Message: "File uploaded successfully", DatasetID: id})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*dataset, bool) {
	id, err := strconv.ParseInt(datasetIDParam(r), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return nil, false
	}
	s.mu.Lock()
	d := s.find(userFromContext(r.Context()), id)
	s.mu.Unlock()
	if d == nil {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return nil, false
	}
	return d, true
}

func (s *Server) handleEquipment(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.equipment)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if len(d.equipment) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"error": "No equipment data found"})
		return
	}
	var sum models.Summary
	var f, p, t float64
	for _, e := range d.equipment {
		f += e.Flowrate
		p += e.Pressure
		t += e.Temperature
		n, _ := sum.TypeDistribution.Count(e.Type)
		sum.TypeDistribution.Add(e.Type, n+1)
	}
	n := float64(len(d.equipment))
	sum.TotalCount = len(d.equipment)
	sum.AvgFlowrate = f / n
	sum.AvgPressure = p / n
	sum.AvgTemperature = t / n
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%s.pdf"`, d.meta.Name))
	fmt.Fprintf(w, "%%PDF-1.4\n%% report for %s with %d items\n%%%%EOF\n", d.meta.Name, len(d.equipment))
}
