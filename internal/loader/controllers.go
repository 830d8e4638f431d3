package loader

import (
	"fmt"

	"github.com/Faultbox/midgard-scene/internal/anim"
	"github.com/Faultbox/midgard-scene/internal/document"
	"github.com/Faultbox/midgard-scene/internal/scene"
	"github.com/Faultbox/midgard-scene/pkg/math"
)

// controllers binds keyframe controller records in document order.
// Controllers aimed at nodes that were skipped are dropped.
func (bs *build) controllers() error {
	for _, i := range bs.doc.Controllers() {
		rec := bs.doc.Records[i].(*document.KeyframeController)

		var (
			c   anim.Controller
			err error
		)
		if rec.Property.TargetsMaterial() {
			c, err = bindMaterial(bs.material(i, rec.Target), rec)
		} else {
			node, ok := bs.res.Nodes[rec.Target]
			if !ok {
				bs.skip(i, fmt.Errorf("%w: %s controller targets skipped record %d",
					ErrUnsupportedRecord, rec.Property, rec.Target))
				continue
			}
			c, err = bindNode(node, rec)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: controller %d: %w", ErrMalformedDocument, bs.doc.Name, i, err)
		}
		bs.res.Controllers = append(bs.res.Controllers, c)
	}
	return nil
}

func bindNode(n *scene.Node, rec *document.KeyframeController) (anim.Controller, error) {
	switch rec.Property {
	case document.PropTranslation:
		t, err := track(rec, vec3Value, anim.LerpVec3)
		if err != nil {
			return nil, err
		}
		return anim.NewNodeTranslation(n, t), nil
	case document.PropRotation:
		t, err := track(rec, quatValue, anim.SlerpQuat)
		if err != nil {
			return nil, err
		}
		return anim.NewNodeRotation(n, t), nil
	case document.PropScale:
		t, err := track(rec, vec3Value, anim.LerpVec3)
		if err != nil {
			return nil, err
		}
		return anim.NewNodeScale(n, t), nil
	case document.PropVisibility:
		t, err := track(rec, boolValue, nil)
		if err != nil {
			return nil, err
		}
		return anim.NewNodeVisibility(n, t), nil
	default:
		return nil, fmt.Errorf("property %s does not apply to nodes", rec.Property)
	}
}

func bindMaterial(m *scene.Material, rec *document.KeyframeController) (anim.Controller, error) {
	switch rec.Property {
	case document.PropAlpha:
		t, err := track(rec, floatValue, anim.LerpFloat)
		if err != nil {
			return nil, err
		}
		return anim.NewMaterialAlpha(m, t), nil
	case document.PropDiffuse:
		t, err := track(rec, vec3Value, anim.LerpVec3)
		if err != nil {
			return nil, err
		}
		return anim.NewMaterialDiffuse(m, t), nil
	default:
		return nil, fmt.Errorf("property %s does not apply to materials", rec.Property)
	}
}

// track converts document keys. Value types without a blend function are
// always held; Slerp on non-rotations falls back to Linear.
func track[T any](rec *document.KeyframeController, value func([4]float32) T, lerp anim.LerpFunc[T]) (*anim.Track[T], error) {
	keys := make([]anim.Key[T], len(rec.Keys))
	for i, k := range rec.Keys {
		keys[i] = anim.Key[T]{Time: k.Time, Value: value(k.Value)}
	}

	interp := rec.Interp
	if lerp == nil {
		interp = anim.Hold
	}
	t, err := anim.NewTrack(keys, interp, rec.Cycle, lerp)
	if err != nil {
		return nil, err
	}
	if rec.Stop > rec.Start {
		t.Start, t.Stop = rec.Start, rec.Stop
	}
	if rec.Frequency > 0 {
		t.Frequency = rec.Frequency
	}
	t.Phase = rec.Phase
	return t, nil
}

func floatValue(v [4]float32) float32 { return v[0] }
func boolValue(v [4]float32) bool     { return v[0] != 0 }
func vec3Value(v [4]float32) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
func quatValue(v [4]float32) math.Quat {
	return math.Q4(v).Normalize()
}
