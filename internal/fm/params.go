package fm

import (
	"strings"

	"github.com/cbegin/tonecore/internal/paramspec"
)

var roleByPrefix = map[string]Role{
	"opA_":  RoleA,
	"opB1_": RoleB1,
	"opB2_": RoleB2,
	"opC_":  RoleC,
}

// parseOperatorParam splits a parameter id like "opB1_env_attack" into its
// operator role and field name ("env_attack").
func parseOperatorParam(id string) (Role, string, bool) {
	for prefix, role := range roleByPrefix {
		if strings.HasPrefix(id, prefix) {
			return role, strings.TrimPrefix(id, prefix), true
		}
	}
	return 0, "", false
}

func applyOperatorField(op *Operator, field string, native float64) {
	switch field {
	case "ratio":
		op.FreqRatio = native
	case "detune_cents":
		op.DetuneCents = native
	case "output_level":
		op.OutputLevel = native
	case "mod_index":
		op.ModIndex = native
	case "feedback":
		op.Feedback = native
	case "key_tracking":
		op.KeyTracking = native
	case "env_attack":
		op.Envelope.AttackSec = native
	case "env_decay":
		op.Envelope.DecaySec = native
	case "env_sustain":
		op.Envelope.SustainLvl = native
	case "env_release":
		op.Envelope.ReleaseSec = native
	}
}

// ParamSpecs returns the full ParameterSpec table for one FM TONE voice
// machine: the algorithm selector, global options, and every operator's
// pitch/level/envelope/feedback parameters, in the stable id form the
// persisted state layout (§6) expects (e.g. "opA_ratio", "opA_env_attack").
func ParamSpecs() []paramspec.Spec {
	specs := []paramspec.Spec{
		{ID: "algorithm", Min: 1, Max: 8, Default: 1, Curve: paramspec.CurveDiscrete, Steps: 7, Unit: "algorithm"},
		{ID: "phase_reset", Min: 0, Max: 1, Default: 1, Curve: paramspec.CurveDiscrete, Steps: 1, Unit: "bool"},
		{ID: "master_gain", Min: 0, Max: 2, Default: 1, Curve: paramspec.CurveLinear, Unit: "gain"},
	}
	for prefix := range roleByPrefix {
		specs = append(specs,
			paramspec.Spec{ID: prefix + "ratio", Min: 0.25, Max: 16, Default: 1, Curve: paramspec.CurveExponential, Unit: "ratio"},
			paramspec.Spec{ID: prefix + "detune_cents", Min: -50, Max: 50, Default: 0, Curve: paramspec.CurveLinear, Unit: "cents"},
			paramspec.Spec{ID: prefix + "output_level", Min: 0, Max: 1, Default: 1, Curve: paramspec.CurveLinear, Unit: "level"},
			paramspec.Spec{ID: prefix + "mod_index", Min: 0, Max: 10, Default: 1, Curve: paramspec.CurveExponential, Unit: "index"},
			paramspec.Spec{ID: prefix + "feedback", Min: 0, Max: 1, Default: 0, Curve: paramspec.CurveLinear, Unit: "feedback"},
			paramspec.Spec{ID: prefix + "key_tracking", Min: 0, Max: 1, Default: 1, Curve: paramspec.CurveLinear, Unit: "tracking"},
			paramspec.Spec{ID: prefix + "env_attack", Min: 0.001, Max: 5, Default: 0.01, Curve: paramspec.CurveExponential, Unit: "seconds"},
			paramspec.Spec{ID: prefix + "env_decay", Min: 0.001, Max: 5, Default: 0.2, Curve: paramspec.CurveExponential, Unit: "seconds"},
			paramspec.Spec{ID: prefix + "env_sustain", Min: 0, Max: 1, Default: 0.7, Curve: paramspec.CurveLinear, Unit: "level"},
			paramspec.Spec{ID: prefix + "env_release", Min: 0.001, Max: 5, Default: 0.3, Curve: paramspec.CurveExponential, Unit: "seconds"},
		)
	}
	return specs
}
