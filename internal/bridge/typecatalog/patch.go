package typecatalog

import (
	"github.com/conduit-lang/metabridge/internal/cohort"
)

// applyPatch mutates def in place according to the patch action. inherited names the
// attributes def already receives from its supertypes.
func applyPatch(op string, def cohort.TypeDef, patch *cohort.TypeDefPatch, inherited map[string]bool) error {
	base := def.Base()
	name := base.Name

	switch patch.Action {
	case cohort.AddOptions:
		if base.Options == nil {
			base.Options = make(map[string]string, len(patch.TypeDefOptions))
		}
		for k, v := range patch.TypeDefOptions {
			base.Options[k] = v
		}

	case cohort.UpdateOptions:
		base.Options = make(map[string]string, len(patch.TypeDefOptions))
		for k, v := range patch.TypeDefOptions {
			base.Options[k] = v
		}

	case cohort.DeleteOptions:
		for k := range patch.TypeDefOptions {
			delete(base.Options, k)
		}
		if len(base.Options) == 0 {
			base.Options = nil
		}

	case cohort.AddAttributes:
		if len(patch.PropertyDefinitions) == 0 {
			return cohort.Errorf(cohort.ErrInvalidParameter, op, name, "no attributes to add")
		}
		for _, attr := range patch.PropertyDefinitions {
			if attr.Name == "" || attr.Type == nil {
				return cohort.Errorf(cohort.ErrInvalidParameter, op, name, "attribute definitions need a name and a type")
			}
			if _, ok := base.Property(attr.Name); ok || inherited[attr.Name] {
				return cohort.Errorf(cohort.ErrInvalidParameter, op, name, "attribute %s is already defined", attr.Name)
			}
			base.Properties = append(base.Properties, attr)
		}

	case cohort.UpdateDescription:
		base.Description = patch.Description
		base.DescriptionGUID = patch.DescriptionGUID

	case cohort.AddExternalStandards:
		base.ExternalStandardMappings = append(base.ExternalStandardMappings, patch.ExternalStandardMappings...)

	case cohort.UpdateExternalStandards:
		base.ExternalStandardMappings = append([]cohort.ExternalStandardMapping(nil), patch.ExternalStandardMappings...)

	case cohort.DeleteExternalStandards:
		kept := base.ExternalStandardMappings[:0]
		for _, m := range base.ExternalStandardMappings {
			if !containsMapping(patch.ExternalStandardMappings, m) {
				kept = append(kept, m)
			}
		}
		base.ExternalStandardMappings = kept
		if len(kept) == 0 {
			base.ExternalStandardMappings = nil
		}

	default:
		return cohort.Errorf(cohort.ErrInvalidParameter, op, name, "unsupported patch action %s", patch.Action)
	}
	return nil
}

func containsMapping(list []cohort.ExternalStandardMapping, m cohort.ExternalStandardMapping) bool {
	for _, x := range list {
		if x.StandardName == m.StandardName && x.StandardOrganization == m.StandardOrganization &&
			x.StandardTypeName == m.StandardTypeName {
			return true
		}
	}
	return false
}
