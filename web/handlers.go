package web

import (
	"bytes"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/config"
	"github.com/mogaika/scene_importer/status"
	"github.com/mogaika/scene_importer/utils/fbxbuilder"
	"github.com/mogaika/scene_importer/utils/gltfutils"
	"github.com/mogaika/scene_importer/webutils"
)

var errNoScene = errors.New("No scene imported")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type jDiagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type jReport struct {
	Diagnostics []jDiagnostic `json:"diagnostics"`
	Errors      []string      `json:"errors"`
}

func (s *Server) HandlerScene(w http.ResponseWriter, r *http.Request) {
	result := s.Result()
	if result == nil {
		webutils.WriteErrorStatus(w, http.StatusNotFound, errNoScene)
		return
	}
	webutils.WriteJson(w, result.Scene.Summary())
}

func (s *Server) HandlerReport(w http.ResponseWriter, r *http.Request) {
	result := s.Result()
	if result == nil {
		webutils.WriteErrorStatus(w, http.StatusNotFound, errNoScene)
		return
	}
	rep := jReport{
		Diagnostics: make([]jDiagnostic, 0),
		Errors:      make([]string, 0, len(result.Errors)),
	}
	for _, d := range result.Report.Diagnostics() {
		rep.Diagnostics = append(rep.Diagnostics, jDiagnostic{
			Severity: status.SeverityName(d.Severity),
			Message:  d.Message,
		})
	}
	for _, e := range result.Errors {
		rep.Errors = append(rep.Errors, e.Error())
	}
	webutils.WriteJson(w, rep)
}

func (s *Server) HandlerSettings(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.Settings())
}

func (s *Server) HandlerUploadSettings(w http.ResponseWriter, r *http.Request) {
	data, _, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	settings, err := config.DecodeSettings(bytes.NewReader(data))
	if err == nil {
		err = s.SetSettings(settings)
	}
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	webutils.WriteJson(w, settings)
}

func (s *Server) HandlerUploadScene(w http.ResponseWriter, r *http.Request) {
	data, name, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.Import(bytes.NewReader(data), name)
	if err != nil {
		webutils.WriteErrorStatus(w, http.StatusUnprocessableEntity, err)
		return
	}
	webutils.WriteJson(w, result.Scene.Summary())
}

func (s *Server) HandlerExport(w http.ResponseWriter, r *http.Request) {
	result := s.Result()
	if result == nil {
		webutils.WriteErrorStatus(w, http.StatusNotFound, errNoScene)
		return
	}
	scene := result.Scene
	name := strings.TrimSuffix(filepath.Base(scene.Name), filepath.Ext(scene.Name))

	switch format := mux.Vars(r)["format"]; format {
	case "gltf":
		doc, err := gltfutils.ExportScene(scene)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := gltfutils.ExportBinary(&buf, doc); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to encode gltf"))
			return
		}
		webutils.WriteFile(w, &buf, name+".glb")
	case "fbx":
		fb := fbxbuilder.ExportScene(scene, name+".fbx")
		var summary bytes.Buffer
		if err := scene.Summary().WriteYAML(&summary); err != nil {
			webutils.WriteError(w, err)
			return
		}
		fb.AddExportFile(name+".yaml", summary.Bytes())

		var buf bytes.Buffer
		if err := fb.WriteZip(&buf, name+".fbx"); err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteFile(w, &buf, name+".zip")
	case "yaml":
		webutils.WriteYaml(w, scene.Summary(), name)
	default:
		webutils.WriteErrorStatus(w, http.StatusNotFound, errors.Errorf("Unknown export format %q", format))
	}
}

func HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	status.NewClient(conn)
}
