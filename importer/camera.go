package importer

import (
	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
)

func (imp *Importer) convertCamera(src *source.Camera) *target.Camera {
	return &target.Camera{
		Name:        src.Name,
		Perspective: src.Perspective,
		FovY:        src.FovY,
		Aspect:      src.Aspect,
		OrthoScale:  src.OrthoHeight * 2,
		ClipStart:   src.ClipNear,
		ClipEnd:     src.ClipFar,
	}
}
