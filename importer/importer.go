package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/config"
	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/status"
	"github.com/mogaika/scene_importer/target"
	"github.com/mogaika/scene_importer/utils"
)

var ErrEmptyRoot = errors.New("Document root node is empty")

// ElementError is a failure limited to one converted element. Import goes
// on with its siblings.
type ElementError struct {
	Kind string
	Name string
	Err  error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("Failed to convert %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// NodeObjectMap links a source node to the object carrying its transform.
type NodeObjectMap map[source.NodeID]*target.Object

type Result struct {
	Scene    *target.Scene
	Objects  NodeObjectMap
	Armature *target.Object
	Report   *status.Report
	Errors   []*ElementError
}

type Importer struct {
	doc      *source.Document
	settings config.ImportSettings
	report   *status.Report

	scene   *target.Scene
	objects NodeObjectMap
	errors  []*ElementError

	// computed once per run
	hasBones        bool
	collapsedRoot   source.NodeID
	meshDescendants []bool
	boneNodes       map[source.NodeID]bool

	materials   []*target.Material
	meshes      []*target.Mesh
	meshObjects map[int][]*target.Object

	armatureObject *target.Object
	bones          map[source.NodeID]*boneBinding
}

func New(doc *source.Document, settings config.ImportSettings, report *status.Report) *Importer {
	if report == nil {
		report = status.NewReport("import", settings.EnableLog)
	}
	return &Importer{
		doc:           doc,
		settings:      settings,
		report:        report,
		objects:       make(NodeObjectMap),
		collapsedRoot: source.NoNode,
		meshObjects:   make(map[int][]*target.Object),
		bones:         make(map[source.NodeID]*boneBinding),
	}
}

// Import converts doc into a new target scene. The document is normalized
// in place. On error no scene is returned.
func Import(doc *source.Document, settings config.ImportSettings) (*Result, error) {
	return New(doc, settings, nil).Run()
}

func (imp *Importer) Run() (*Result, error) {
	if err := imp.settings.Validate(); err != nil {
		return nil, errors.Wrapf(err, "Invalid import settings")
	}
	if err := imp.doc.Validate(); err != nil {
		return nil, errors.Wrapf(err, "Failed to import %q", imp.doc.Path)
	}
	if imp.settings.NameEncoding != "" {
		if err := config.SetEncoding(imp.settings.NameEncoding); err != nil {
			imp.report.Warnf("%v, keeping %v", err, config.GetEncoding())
		}
	}
	root := imp.doc.Node(imp.doc.Root)
	if len(root.Children) == 0 && root.ContentCount() == 0 {
		return nil, ErrEmptyRoot
	}

	imp.scene = target.NewScene(sceneName(imp.doc.Path))
	imp.prepareNames()
	imp.normalize()
	imp.collapseRoot()

	imp.hasBones = imp.doc.HasBones()
	if imp.hasBones {
		imp.boneNodes = imp.findBoneNodes()
	}
	imp.computeMeshDescendants()

	if imp.settings.ReadMaterials {
		imp.convertMaterials()
	}
	imp.convertMeshes()

	imp.convertNode(imp.doc.Root, nil)

	if imp.hasBones && imp.settings.ReadArmature {
		imp.importArmature()
		imp.importSkins()
	}

	if imp.settings.ReadAnimations {
		imp.importAnimations()
	}

	imp.report.Infof("Imported %d objects, %d materials, %d actions from %q",
		len(imp.scene.Objects), len(imp.scene.Materials), len(imp.scene.Actions), imp.doc.Path)

	return &Result{
		Scene:    imp.scene,
		Objects:  imp.objects,
		Armature: imp.armatureObject,
		Report:   imp.report,
		Errors:   imp.errors,
	}, nil
}

func (imp *Importer) elementError(kind, name string, err error) {
	e := &ElementError{Kind: kind, Name: name, Err: err}
	imp.errors = append(imp.errors, e)
	imp.report.Errorf("%v", e)
}

func sceneName(path string) string {
	if path == "" {
		return "Scene"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// prepareNames decodes legacy names and names anonymous nodes, which
// would otherwise be unreachable by channels and bones.
func (imp *Importer) prepareNames() {
	var names utils.RandomNameGenerator
	for i := range imp.doc.Nodes {
		n := &imp.doc.Nodes[i]
		n.Name = utils.DecodeName(n.Name)
		names.Reserve(n.Name)
	}
	for i := range imp.doc.Nodes {
		n := &imp.doc.Nodes[i]
		if n.Name == "" {
			n.Name = names.RandomName()
			imp.report.Debugf("Unnamed node %d named %q", i, n.Name)
		}
	}
}

func (imp *Importer) normalize() {
	if imp.settings.CoordinateSystem == config.CoordinateSystemZUp {
		imp.doc.RotateToZUp()
		imp.scene.ZUp = true
		imp.report.Debugf("Rotated document to Z up")
	}
	if imp.settings.UnitScaling {
		if s := imp.doc.FitScale(imp.settings.MaximumSize); s != 1 {
			imp.doc.Scale(s)
			imp.report.Infof("Scaled document by %v to fit into %v", s, imp.settings.MaximumSize)
		}
	}
}

// collapseRoot folds the root transform into its children when the root is
// a plain group. Folding is permanent for the rest of the run.
func (imp *Importer) collapseRoot() {
	doc := imp.doc
	rootID := doc.Root
	root := doc.Node(rootID)

	if root.ContentCount() != 0 || len(root.Children) == 0 {
		return
	}
	if doc.IsAnimated(root.Name) || imp.isMeshBone(root.Name) {
		return
	}
	for _, c := range root.Children {
		child := doc.Node(c)
		if doc.IsAnimated(child.Name) || len(child.Lights) != 0 || len(child.Cameras) != 0 {
			imp.report.Debugf("Root %q kept: child %q is animated or carries a light or camera", root.Name, child.Name)
			return
		}
	}

	for _, c := range root.Children {
		child := doc.Node(c)
		child.Transform = root.Transform.Mul4(child.Transform)
	}
	root.Transform = mgl32.Ident4()
	imp.collapsedRoot = rootID
	imp.report.Debugf("Collapsed root node %q", root.Name)
}

func (imp *Importer) isMeshBone(name string) bool {
	for i := range imp.doc.Meshes {
		for j := range imp.doc.Meshes[i].Bones {
			if imp.doc.Meshes[i].Bones[j].Name == name {
				return true
			}
		}
	}
	return false
}

func (imp *Importer) enabledContent(n *source.Node) int {
	count := len(n.Meshes)
	if imp.settings.ReadLights {
		count += len(n.Lights)
	}
	if imp.settings.ReadCameras {
		count += len(n.Cameras)
	}
	return count
}

func (imp *Importer) computeMeshDescendants() {
	imp.meshDescendants = make([]bool, len(imp.doc.Nodes))
	var visit func(id source.NodeID) bool
	visit = func(id source.NodeID) bool {
		n := imp.doc.Node(id)
		has := false
		for _, c := range n.Children {
			if visit(c) {
				has = true
			}
		}
		imp.meshDescendants[id] = has
		return has || imp.enabledContent(n) != 0
	}
	visit(imp.doc.Root)
}
