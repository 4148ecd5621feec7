package typecatalog

import (
	"context"

	"github.com/conduit-lang/metabridge/internal/bridge/attributes"
	"github.com/conduit-lang/metabridge/internal/bridge/names"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// toNative converts a cohort definition to its native form. Referenced types must
// already exist in the native store and enums must already be published.
func (b *Bridge) toNative(ctx context.Context, def cohort.TypeDef) (native.TypeDef, error) {
	base := def.Base()
	header := nativeHeader(base)

	attrs, err := attributes.ToNativeAttributes(ctx, b.registry, base.Properties)
	if err != nil {
		return nil, err
	}

	switch d := def.(type) {
	case *cohort.EntityDef:
		supers, err := b.nativeLinks(ctx, base.Name, superLinks(base))
		if err != nil {
			return nil, err
		}
		return &native.EntityTypeDef{TypeHeader: header, SuperTypes: supers, Attributes: attrs}, nil

	case *cohort.ClassificationDef:
		supers, err := b.nativeLinks(ctx, base.Name, superLinks(base))
		if err != nil {
			return nil, err
		}
		entityTypes, err := b.nativeLinks(ctx, base.Name, d.ValidEntityDefs)
		if err != nil {
			return nil, err
		}
		return &native.ClassificationTypeDef{
			TypeHeader:  header,
			SuperTypes:  supers,
			EntityTypes: entityTypes,
			Attributes:  attrs,
		}, nil

	case *cohort.RelationshipDef:
		ends, err := b.nativeLinks(ctx, base.Name, []cohort.TypeDefLink{d.EndDef1.EntityType, d.EndDef2.EntityType})
		if err != nil {
			return nil, err
		}
		card1, err := attributes.ToNativeEndCardinality(d.EndDef1.Cardinality)
		if err != nil {
			return nil, err
		}
		card2, err := attributes.ToNativeEndCardinality(d.EndDef2.Cardinality)
		if err != nil {
			return nil, err
		}
		// each native end carries the attribute its own type uses to reach the other end
		return &native.RelationshipTypeDef{
			TypeHeader: header,
			Attributes: attrs,
			End1: native.RelationshipEndDef{
				Type:        ends[0],
				Name:        d.EndDef2.AttributeName,
				Description: d.EndDef2.AttributeDescription,
				Cardinality: card2,
			},
			End2: native.RelationshipEndDef{
				Type:        ends[1],
				Name:        d.EndDef1.AttributeName,
				Description: d.EndDef1.AttributeDescription,
				Cardinality: card1,
			},
			PropagateTags: attributes.ToNativePropagation(d.Propagation),
		}, nil

	default:
		return nil, cohort.Errorf(cohort.ErrTypeNotSupported, "typecatalog.toNative", base.Name,
			"unsupported category %s", def.Category())
	}
}

func nativeHeader(base *cohort.TypeDefBase) native.TypeHeader {
	h := native.TypeHeader{
		GUID:            base.GUID,
		Name:            names.ToLocalName(base.Name, base.GUID),
		Description:     base.Description,
		DescriptionGUID: base.DescriptionGUID,
		Version:         base.Version,
		TypeVersion:     base.VersionName,
		CreatedBy:       base.CreatedBy,
		UpdatedBy:       base.UpdatedBy,
	}
	if len(base.Options) > 0 {
		h.Options = make(map[string]string, len(base.Options))
		for k, v := range base.Options {
			h.Options[k] = v
		}
	}
	for _, m := range base.ExternalStandardMappings {
		h.ExternalStandards = append(h.ExternalStandards, native.StandardMapping{
			Standard:     m.StandardName,
			Organization: m.StandardOrganization,
			TypeName:     m.StandardTypeName,
		})
	}
	return h
}

func superLinks(base *cohort.TypeDefBase) []cohort.TypeDefLink {
	if base.SuperType == nil {
		return nil
	}
	return []cohort.TypeDefLink{*base.SuperType}
}

// nativeLinks maps type links to native names, checking each exists natively
func (b *Bridge) nativeLinks(ctx context.Context, owner string, links []cohort.TypeDefLink) ([]string, error) {
	const op = "typecatalog.toNative"
	if len(links) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(links))
	for _, link := range links {
		if link.Name == "" {
			return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, owner, "type link has no name")
		}
		local := names.ToLocalName(link.Name, link.GUID)
		if _, err := b.store.GetTypeDefByName(ctx, local); err != nil {
			if native.IsNotFound(err) {
				return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, owner, "referenced type %s is not defined", link.Name)
			}
			return nil, cohort.Wrap(op, owner, err)
		}
		out = append(out, local)
	}
	return out, nil
}

func singleTypesDef(def native.TypeDef) *native.TypesDef {
	defs := &native.TypesDef{}
	defs.Add(def)
	return defs
}
