package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/scene_importer/config"
	"github.com/mogaika/scene_importer/importer"
	"github.com/mogaika/scene_importer/source/gltfsource"
	"github.com/mogaika/scene_importer/status"
	"github.com/mogaika/scene_importer/target"
	"github.com/mogaika/scene_importer/utils"
	"github.com/mogaika/scene_importer/utils/fbxbuilder"
	"github.com/mogaika/scene_importer/utils/gltfutils"
	"github.com/mogaika/scene_importer/web"
)

func export(scene *target.Scene, out, format string) error {
	if format == "gltf" {
		doc, err := gltfutils.ExportScene(scene)
		if err != nil {
			return err
		}
		return gltfutils.ExportFile(out, doc)
	}

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", out)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	switch format {
	case "glb":
		var doc *gltf.Document
		if doc, err = gltfutils.ExportScene(scene); err == nil {
			err = gltfutils.ExportBinary(w, doc)
		}
	case "fbx":
		err = fbxbuilder.ExportScene(scene, filepath.Base(out)).Write(w)
	case "yaml":
		err = scene.Summary().WriteYAML(w)
	default:
		return errors.Errorf("Unknown output format %q", format)
	}
	if err != nil {
		return errors.Wrapf(err, "Failed to export %q", out)
	}
	return w.Flush()
}

func main() {
	var addr, in, out, format, settingsPath, encoding string
	var dump, verbose bool
	flag.StringVar(&addr, "i", "", "Address of inspection server, for example :8000")
	flag.StringVar(&in, "in", "", "Path to .gltf or .glb scene")
	flag.StringVar(&out, "out", "", "Output path, format guessed from extension unless -format is set")
	flag.StringVar(&format, "format", "", "gltf, glb, fbx or yaml")
	flag.StringVar(&settingsPath, "settings", "", "Path to yaml import settings")
	flag.StringVar(&encoding, "encoding", "", "Charmap of legacy node names, one of: "+strings.Join(config.ListEncodings(), ", "))
	flag.BoolVar(&dump, "dump", false, "Dump the imported scene to stdout")
	flag.BoolVar(&verbose, "v", false, "Verbose diagnostics")
	flag.Parse()

	settings := config.DefaultImportSettings()
	if settingsPath != "" {
		var err error
		if settings, err = config.LoadSettings(settingsPath); err != nil {
			log.Fatal(err)
		}
	}
	if encoding != "" {
		settings.NameEncoding = encoding
	}
	if verbose {
		settings.EnableLog = true
	}

	if addr != "" {
		if err := web.StartServer(addr, in, settings); err != nil {
			log.Fatal(err)
		}
		return
	}

	if in == "" {
		flag.PrintDefaults()
		return
	}

	doc, err := gltfsource.Load(in)
	if err != nil {
		log.Fatal(err)
	}
	report := status.NewReport("import", settings.EnableLog)
	result, err := importer.New(doc, settings, report).Run()
	if err != nil {
		log.Fatal(err)
	}

	if dump {
		utils.Dump(os.Stdout, result.Scene.Summary())
	}

	if out != "" {
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
		}
		if err := export(result.Scene, out, format); err != nil {
			log.Fatal(err)
		}
		log.Printf("[main] Written %q", out)
	}

	if n := report.Count(status.ERROR); n != 0 {
		log.Printf("[main] %d elements failed to import", n)
		os.Exit(1)
	}
}
