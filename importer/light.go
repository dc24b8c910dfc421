package importer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
)

func (imp *Importer) convertLight(src *source.Light) *target.Light {
	l := &target.Light{
		Name:   src.Name,
		Color:  src.ColorDiffuse,
		Energy: 1,
	}

	switch src.Type {
	case source.LightPoint:
		l.Type = target.LightLocal
	case source.LightSpot:
		l.Type = target.LightSpot
		l.SpotSize = mgl32.RadToDeg(src.OuterCone * 2)
		if src.OuterCone > 0 && src.InnerCone < src.OuterCone {
			l.SpotBlend = (src.OuterCone - src.InnerCone) / src.OuterCone
		}
	default:
		// undefined and directional
		l.Type = target.LightSun
	}

	spec := src.ColorSpecular
	if spec[0] < 1e-4 && spec[1] < 1e-4 && spec[2] < 1e-4 {
		l.NoSpecular = true
	}

	switch {
	case src.AttenuationQuadratic > 0:
		l.Falloff = target.FalloffInverseSquare
	case src.AttenuationLinear > 0:
		l.Falloff = target.FalloffInverseLinear
	default:
		l.Falloff = target.FalloffConstant
	}
	return l
}
