package memstore

import "github.com/conduit-lang/metabridge/internal/native"

// copyTypeDef copies a definition so callers never share the stored value
func copyTypeDef(def native.TypeDef) native.TypeDef {
	switch d := def.(type) {
	case *native.EntityTypeDef:
		c := *d
		c.TypeHeader = copyHeader(d.TypeHeader)
		c.SuperTypes = append([]string(nil), d.SuperTypes...)
		c.Attributes = append([]native.AttributeDef(nil), d.Attributes...)
		return &c
	case *native.RelationshipTypeDef:
		c := *d
		c.TypeHeader = copyHeader(d.TypeHeader)
		c.Attributes = append([]native.AttributeDef(nil), d.Attributes...)
		return &c
	case *native.ClassificationTypeDef:
		c := *d
		c.TypeHeader = copyHeader(d.TypeHeader)
		c.SuperTypes = append([]string(nil), d.SuperTypes...)
		c.EntityTypes = append([]string(nil), d.EntityTypes...)
		c.Attributes = append([]native.AttributeDef(nil), d.Attributes...)
		return &c
	case *native.EnumTypeDef:
		c := *d
		c.TypeHeader = copyHeader(d.TypeHeader)
		c.Elements = append([]native.EnumElementDef(nil), d.Elements...)
		return &c
	case *native.StructTypeDef:
		c := *d
		c.TypeHeader = copyHeader(d.TypeHeader)
		c.Attributes = append([]native.AttributeDef(nil), d.Attributes...)
		return &c
	default:
		return def
	}
}

func copyHeader(h native.TypeHeader) native.TypeHeader {
	if h.Options != nil {
		opts := make(map[string]string, len(h.Options))
		for k, v := range h.Options {
			opts[k] = v
		}
		h.Options = opts
	}
	h.ExternalStandards = append([]native.StandardMapping(nil), h.ExternalStandards...)
	return h
}
