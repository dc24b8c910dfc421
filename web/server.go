package web

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/config"
	"github.com/mogaika/scene_importer/importer"
	"github.com/mogaika/scene_importer/source/gltfsource"
	"github.com/mogaika/scene_importer/status"
)

// Server keeps the settings and the last import result. Imports are
// serialized, the stored result is never modified afterwards.
type Server struct {
	lock     sync.Mutex
	settings config.ImportSettings
	result   *importer.Result
}

func NewServer(settings config.ImportSettings) *Server {
	return &Server{settings: settings}
}

func (s *Server) Settings() config.ImportSettings {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.settings
}

func (s *Server) SetSettings(settings config.ImportSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.settings = settings
	return nil
}

func (s *Server) Result() *importer.Result {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.result
}

// Import decodes a glTF or glb stream and imports it with the current
// settings. The previous result is kept when the import fails.
func (s *Server) Import(r io.Reader, name string) (*importer.Result, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	status.Progress(0, "Loading %q", name)
	doc, err := gltfsource.Decode(r, name)
	if err != nil {
		status.Error("Failed to load %q: %v", name, err)
		return nil, err
	}

	status.Progress(0.5, "Importing %q", name)
	report := status.NewReport("web", s.settings.EnableLog)
	result, err := importer.New(doc, s.settings, report).Run()
	if err != nil {
		status.Error("Failed to import %q: %v", name, err)
		return nil, err
	}
	s.result = result
	status.Progress(1, "Imported %q", name)
	return result, nil
}

func (s *Server) ImportFile(path string) (*importer.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	return s.Import(bytes.NewReader(data), path)
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/json/scene", s.HandlerScene).Methods("GET")
	r.HandleFunc("/json/report", s.HandlerReport).Methods("GET")
	r.HandleFunc("/json/settings", s.HandlerSettings).Methods("GET")
	r.HandleFunc("/upload/settings", s.HandlerUploadSettings).Methods("POST")
	r.HandleFunc("/upload/scene", s.HandlerUploadScene).Methods("POST")
	r.HandleFunc("/export/{format}", s.HandlerExport).Methods("GET")
	r.HandleFunc("/ws/status", HandlerStatus)
	return r
}

// StartServer serves the inspection api on addr. When path is set the file
// is imported before the server starts.
func StartServer(addr string, path string, settings config.ImportSettings) error {
	s := NewServer(settings)
	if path != "" {
		if _, err := s.ImportFile(path); err != nil {
			return err
		}
	}

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router())
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
