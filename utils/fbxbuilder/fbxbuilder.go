package fbxbuilder

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const (
	fbxVersion         = 7400
	creator            = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
	applicationVendor  = "mogaika"
	applicationName    = "scene_importer"
	applicationVersion = "1.0"
)

var fileId = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Axes is the orientation stored in GlobalSettings: axis index and sign of
// up, front and coord.
type Axes struct {
	Up, UpSign       int32
	Front, FrontSign int32
	Coord, CoordSign int32
}

var (
	// z up, -y forward
	AxesZUp = Axes{Up: 2, UpSign: 1, Front: 1, FrontSign: -1, Coord: 0, CoordSign: 1}
	AxesYUp = Axes{Up: 1, UpSign: 1, Front: 2, FrontSign: 1, Coord: 0, CoordSign: 1}
)

type Options struct {
	Axes      Axes
	UnitScale float64
	// zero time keeps the output reproducible
	Created time.Time
}

type FBXBuilder struct {
	f      *fbx.FBX
	c      map[interface{}]int64
	lastId int64
	files  map[string][]byte

	objects     *fbx.Node
	connections *fbx.Node
}

func NewFBXBuilder(filename string, opts Options) *FBXBuilder {
	if opts.UnitScale == 0 {
		opts.UnitScale = 1
	}
	if opts.Created.IsZero() {
		opts.Created = time.Unix(0, 0)
	}
	f := &FBXBuilder{
		c:           make(map[interface{}]int64),
		files:       make(map[string][]byte),
		lastId:      1000000,
		f:           fbx.NewFBX(fbxVersion),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
	f.createHeaders(filename, opts)
	return f
}

func (f *FBXBuilder) createHeaders(filename string, opts Options) {
	created := opts.Created.UTC()
	f.Root().AddNodes(
		bfbx73.FBXHeaderExtension().AddNodes(
			bfbx73.FBXHeaderVersion(1003),
			bfbx73.FBXVersion(fbxVersion),
			bfbx73.EncryptionType(0),
			bfbx73.CreationTimeStamp().AddNodes(
				bfbx73.Version(1000),
				bfbx73.Year(int32(created.Year())),
				bfbx73.Month(int32(created.Month())),
				bfbx73.Day(int32(created.Day())),
				bfbx73.Hour(int32(created.Hour())),
				bfbx73.Minute(int32(created.Minute())),
				bfbx73.Second(int32(created.Second())),
				bfbx73.Millisecond(int32(created.Nanosecond()/int(time.Millisecond))),
			),
			bfbx73.Creator(creator),
			sceneInfo(filename, created),
		),
		bfbx73.FileId(fileId),
		bfbx73.CreationTime(created.Format("2006-01-02 15:04:05:000")),
		bfbx73.Creator(creator),
		globalSettings(opts),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(f.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		definitions(),
		f.objects,
		f.connections,
		bfbx73.Takes().AddNodes(
			bfbx73.Current(""),
		),
	)
}

func sceneInfo(filename string, created time.Time) *fbx.Node {
	original := [][2]string{
		{"ApplicationVendor", applicationVendor},
		{"ApplicationName", applicationName},
		{"ApplicationVersion", applicationVersion},
		{"FileName", filepath.Base(filename)},
	}
	props := bfbx73.Properties70().AddNodes(
		bfbx73.P("DocumentUrl", "KString", "Url", "", filename),
		bfbx73.P("SrcDocumentUrl", "KString", "Url", "", filename),
		bfbx73.P("Original", "Compound", "", ""),
		bfbx73.P("Original|DateTime_GMT", "DateTime", "", "", created.Format("02/01/2006 15:04:05.000")),
	)
	for _, kv := range original {
		props.AddNode(bfbx73.P("Original|"+kv[0], "KString", "", "", kv[1]))
	}
	return bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
		bfbx73.Type("UserData"),
		bfbx73.Version(100),
		props,
	)
}

func globalSettings(opts Options) *fbx.Node {
	axes := []struct {
		name  string
		value int32
	}{
		{"UpAxis", opts.Axes.Up},
		{"UpAxisSign", opts.Axes.UpSign},
		{"FrontAxis", opts.Axes.Front},
		{"FrontAxisSign", opts.Axes.FrontSign},
		{"CoordAxis", opts.Axes.Coord},
		{"CoordAxisSign", opts.Axes.CoordSign},
		{"OriginalUpAxis", opts.Axes.Up},
		{"OriginalUpAxisSign", opts.Axes.UpSign},
	}
	props := bfbx73.Properties70()
	for _, a := range axes {
		props.AddNode(bfbx73.P(a.name, "int", "Integer", "", a.value))
	}
	props.AddNodes(
		bfbx73.P("UnitScaleFactor", "double", "Number", "", opts.UnitScale),
		bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", opts.UnitScale),
		bfbx73.P("AmbientColor", "ColorRGB", "Color", "", float64(0), float64(0), float64(0)),
	)
	return bfbx73.GlobalSettings().AddNodes(bfbx73.Version(1000), props)
}

// property templates per object type, counts are filled by countDefinitions
var templates = []struct {
	objectType string
	template   string
	props      func() []*fbx.Node
}{
	{"Model", "FbxNode", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("QuaternionInterpolate", "enum", "", "", int32(0)),
			bfbx73.P("Show", "bool", "", "", int32(1)),
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
			bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
			bfbx73.P("Visibility Inheritance", "Visibility Inheritance", "", "", int32(1)),
		}
	}},
	{"Material", "FbxSurfaceLambert", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("ShadingModel", "KString", "", "", "Lambert"),
			bfbx73.P("MultiLayer", "bool", "", "", int32(0)),
			bfbx73.P("EmissiveColor", "Color", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("AmbientColor", "Color", "", "A", float64(0.2), float64(0.2), float64(0.2)),
			bfbx73.P("DiffuseColor", "Color", "", "A", float64(0.8), float64(0.8), float64(0.8)),
			bfbx73.P("DiffuseFactor", "Number", "", "A", float64(1)),
			bfbx73.P("Opacity", "double", "Number", "", float64(1)),
		}
	}},
	{"Geometry", "FbxMesh", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
			bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
			bfbx73.P("Casts Shadows", "bool", "", "", int32(1)),
			bfbx73.P("Receive Shadows", "bool", "", "", int32(1)),
		}
	}},
	{"NodeAttribute", "FbxNull", func() []*fbx.Node {
		return []*fbx.Node{
			bfbx73.P("Size", "double", "Number", "", float64(100)),
			bfbx73.P("Look", "enum", "", "", int32(1)),
		}
	}},
}

func definitions() *fbx.Node {
	defs := bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
	)
	for _, t := range templates {
		defs.AddNode(bfbx73.ObjectType(t.objectType).AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate(t.template).AddNodes(
				bfbx73.Properties70().AddNodes(t.props()...),
			),
		))
	}
	return defs
}

func (f *FBXBuilder) countDefinitions() {
	counts := make(map[string]int32)
	for _, object := range f.objects.Nodes {
		counts[object.Name]++
	}

	definitions := f.Root().GetNode("Definitions")
	totalCount := int32(1) // 1 for GlobalSettings

	for name, count := range counts {
		totalCount += count

		var objectType *fbx.Node
		for _, ot := range definitions.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			definitions.AddNode(objectType)
		}

		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}

	definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = totalCount
}

func (f *FBXBuilder) Root() *fbx.Node {
	return &f.f.Root
}

// AddCache remembers the fbx id made for a scene element.
func (f *FBXBuilder) AddCache(key interface{}, id int64) {
	f.c[key] = id
}

func (f *FBXBuilder) GetCached(key interface{}) (int64, bool) {
	id, ok := f.c[key]
	return id, ok
}

func (f *FBXBuilder) GenerateId() int64 {
	f.lastId++
	return f.lastId
}

// Objects returns the object nodes added so far.
func (f *FBXBuilder) Objects() []*fbx.Node { return f.objects.Nodes }

func (f *FBXBuilder) Connections() []*fbx.Node { return f.connections.Nodes }

// TODO: encode into memory instead of going through a temp file
func (f *FBXBuilder) Write(w io.Writer) error {
	f.countDefinitions()

	tempFile, err := ioutil.TempFile("", "fbxexport.*.fbx")
	if err != nil {
		return err
	}
	defer tempFile.Close()
	defer os.Remove(tempFile.Name())

	if err := fbx.Write(tempFile, f.f); err != nil {
		return err
	}

	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	_, err = io.Copy(w, tempFile)
	return err
}

func (f *FBXBuilder) AddExportFile(name string, data []byte) {
	f.files[name] = data
}

func (f *FBXBuilder) WriteZip(w io.Writer, name string) error {
	zw := zip.NewWriter(w)

	fbxW, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "Can't create zip fbx for %q", name)
	}
	if err := f.Write(fbxW); err != nil {
		return errors.Wrapf(err, "Fbx exporting failed")
	}

	for name, file := range f.files {
		fw, err := zw.Create(name)
		if err != nil {
			return errors.Wrapf(err, "Can't create zip for %q", name)
		}
		if _, err := fw.Write(file); err != nil {
			return errors.Wrapf(err, "Can't write zip for %q", name)
		}
	}

	log.Printf("[fbx] Written %q with %d extra files", name, len(f.files))
	return zw.Close()
}

func (f *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { f.objects.AddNodes(nodes...) }
func (f *FBXBuilder) AddConnections(nodes ...*fbx.Node) { f.connections.AddNodes(nodes...) }
