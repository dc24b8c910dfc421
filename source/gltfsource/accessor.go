package gltfsource

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

func componentsOf(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4
	}
	return 0
}

// readFloats returns accessor data flattened to float32. Integer components
// are normalized when the accessor says so.
func readFloats(doc *gltf.Document, index uint32) ([]float32, int, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, 0, errors.Errorf("Accessor %d out of range", index)
	}
	acr := doc.Accessors[index]
	comps := componentsOf(acr.Type)
	size := componentSize(acr.ComponentType)
	if comps == 0 || size == 0 {
		return nil, 0, errors.Errorf("Accessor %d has unsupported layout", index)
	}

	out := make([]float32, int(acr.Count)*comps)
	if acr.BufferView == nil {
		// all zeros, sparse data is not supported
		return out, comps, nil
	}

	view := doc.BufferViews[*acr.BufferView]
	data := doc.Buffers[view.Buffer].Data
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = comps * size
	}
	start := int(view.ByteOffset) + int(acr.ByteOffset)

	for i := 0; i < int(acr.Count); i++ {
		base := start + i*stride
		if base+comps*size > len(data) {
			return nil, 0, errors.Errorf("Accessor %d reads past buffer end", index)
		}
		for c := 0; c < comps; c++ {
			raw := data[base+c*size:]
			var v float32
			switch acr.ComponentType {
			case gltf.ComponentFloat:
				v = math.Float32frombits(binary.LittleEndian.Uint32(raw))
			case gltf.ComponentUbyte:
				v = float32(raw[0])
				if acr.Normalized {
					v /= 255
				}
			case gltf.ComponentByte:
				v = float32(int8(raw[0]))
				if acr.Normalized {
					v = float32(math.Max(float64(v)/127, -1))
				}
			case gltf.ComponentUshort:
				v = float32(binary.LittleEndian.Uint16(raw))
				if acr.Normalized {
					v /= 65535
				}
			case gltf.ComponentShort:
				v = float32(int16(binary.LittleEndian.Uint16(raw)))
				if acr.Normalized {
					v = float32(math.Max(float64(v)/32767, -1))
				}
			case gltf.ComponentUint:
				v = float32(binary.LittleEndian.Uint32(raw))
			}
			out[i*comps+c] = v
		}
	}
	return out, comps, nil
}
