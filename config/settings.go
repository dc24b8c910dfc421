package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	CoordinateSystemZUp = "z_up"
	CoordinateSystemYUp = "y_up"
)

type ImportSettings struct {
	// verbose diagnostics
	EnableLog bool `yaml:"enable_log" json:"enable_log"`

	Triangulate bool `yaml:"triangulate" json:"triangulate"`
	NoLines     bool `yaml:"no_lines" json:"no_lines"`

	UnitScaling bool    `yaml:"unit_scaling" json:"unit_scaling"`
	MaximumSize float32 `yaml:"maximum_size" json:"maximum_size"`

	CoordinateSystem string `yaml:"coordinate_system" json:"coordinate_system"`
	NameEncoding     string `yaml:"name_encoding" json:"name_encoding"`

	ReadAnimations bool `yaml:"read_animations" json:"read_animations"`
	ReadArmature   bool `yaml:"read_armature" json:"read_armature"`
	ReadLights     bool `yaml:"read_lights" json:"read_lights"`
	ReadCameras    bool `yaml:"read_cameras" json:"read_cameras"`
	ReadMaterials  bool `yaml:"read_materials" json:"read_materials"`
}

func DefaultImportSettings() ImportSettings {
	return ImportSettings{
		EnableLog:        false,
		Triangulate:      false,
		NoLines:          false,
		UnitScaling:      false,
		MaximumSize:      10.0,
		CoordinateSystem: CoordinateSystemZUp,
		NameEncoding:     GetEncoding().String(),
		ReadAnimations:   true,
		ReadArmature:     true,
		ReadLights:       true,
		ReadCameras:      true,
		ReadMaterials:    true,
	}
}

func (s *ImportSettings) Validate() error {
	switch s.CoordinateSystem {
	case CoordinateSystemZUp, CoordinateSystemYUp:
	default:
		return errors.Errorf("Unknown coordinate system %q", s.CoordinateSystem)
	}
	if s.UnitScaling && s.MaximumSize <= 0 {
		return errors.Errorf("Maximum size must be positive, got %v", s.MaximumSize)
	}
	return nil
}

// DecodeSettings reads yaml over the defaults, so missing keys keep their
// default values.
func DecodeSettings(r io.Reader) (ImportSettings, error) {
	s := DefaultImportSettings()
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
		return s, errors.Wrapf(err, "Failed to decode settings")
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func LoadSettings(path string) (ImportSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return DefaultImportSettings(), errors.Wrapf(err, "Failed to open settings file %q", path)
	}
	defer f.Close()

	s, err := DecodeSettings(f)
	if err != nil {
		return s, errors.Wrapf(err, "Settings file %q", path)
	}
	return s, nil
}

func EncodeSettings(w io.Writer, s ImportSettings) error {
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(s); err != nil {
		return errors.Wrapf(err, "Failed to encode settings")
	}
	return e.Close()
}
