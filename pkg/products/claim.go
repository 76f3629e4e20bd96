package products

import (
	"encoding/json"
	"fmt"

	"github.com/cellgrid/strata/pkg/types"
)

// Platform label keys stamped on every claim.
const (
	LabelCell        = "platform.example.org/cell"
	LabelEnvironment = "platform.example.org/environment"
	LabelTier        = "platform.example.org/tier"
	LabelProduct     = "platform.example.org/product"

	// AnnotationPlacementReason carries the compact reason JSON so the
	// decision survives on the provisioned resource itself.
	AnnotationPlacementReason = "platform.example.org/placement-reason"
)

// BuildClaim assembles the declarative claim document for a product from the
// request and the scheduler's decision. The decided fields (provider,
// region, network) are folded into spec.parameters; the reason record rides
// along as an annotation.
func BuildClaim(def *Definition, req *types.CreateRequest, decision *types.Decision) (types.Claim, error) {
	reason, err := json.Marshal(decision.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to encode placement reason: %w", err)
	}

	params := map[string]interface{}{
		"cell":        req.Cell,
		"environment": req.Environment,
		"tier":        req.Tier,
		"provider":    decision.Provider,
		"region":      decision.Region,
		"network":     decision.Network,
	}
	// Only declared parameters cross into the claim; undeclared request
	// keys stay out of spec.parameters.
	for _, spec := range def.Parameters {
		switch spec.Name {
		case "name", "namespace", "cell", "tier", "environment":
			continue
		}
		if value, ok := req.Parameters[spec.Name]; ok && value != nil {
			params[spec.Name] = value
		} else if spec.Default != nil {
			params[spec.Name] = spec.Default
		}
	}

	return types.Claim{
		"apiVersion": def.APIVersion,
		"kind":       def.Kind,
		"metadata": map[string]interface{}{
			"name":      req.Name,
			"namespace": req.Namespace,
			"labels": map[string]interface{}{
				LabelCell:        req.Cell,
				LabelEnvironment: req.Environment,
				LabelTier:        req.Tier,
				LabelProduct:     def.Name,
			},
			"annotations": map[string]interface{}{
				AnnotationPlacementReason: string(reason),
			},
		},
		"spec": map[string]interface{}{
			"parameters": params,
			"compositionSelector": map[string]interface{}{
				"matchLabels": map[string]interface{}{
					def.CompositionGroup + "/provider": decision.Provider,
					def.CompositionGroup + "/class":    def.CompositionClass,
				},
			},
			"writeConnectionSecretToRef": map[string]interface{}{
				"name": req.Name + def.ConnectionSecretSuffix,
			},
		},
	}, nil
}

// PlacementFromClaim recovers the placement summary recorded on an applied
// claim: the decided provider/region plus the reason annotation. Used for
// sticky responses.
func PlacementFromClaim(claim types.Claim) (provider, region string, reason *types.Reason) {
	if spec, ok := claim["spec"].(map[string]interface{}); ok {
		if params, ok := spec["parameters"].(map[string]interface{}); ok {
			provider, _ = params["provider"].(string)
			region, _ = params["region"].(string)
		}
	}
	if meta, ok := claim["metadata"].(map[string]interface{}); ok {
		if annotations, ok := meta["annotations"].(map[string]interface{}); ok {
			if raw, ok := annotations[AnnotationPlacementReason].(string); ok && raw != "" {
				var r types.Reason
				if err := json.Unmarshal([]byte(raw), &r); err == nil {
					reason = &r
				}
			}
		}
	}
	return provider, region, reason
}

// SpecParameters returns the claim's spec.parameters map, or nil.
func SpecParameters(claim types.Claim) map[string]interface{} {
	spec, ok := claim["spec"].(map[string]interface{})
	if !ok {
		return nil
	}
	params, _ := spec["parameters"].(map[string]interface{})
	return params
}
