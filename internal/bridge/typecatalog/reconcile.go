package typecatalog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/attributes"
	"github.com/conduit-lang/metabridge/internal/bridge/names"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
	"github.com/conduit-lang/metabridge/internal/registry"
)

type result struct {
	def  cohort.TypeDef
	enum *cohort.EnumDef
	err  error
}

// reconciler converts native types to cohort form and reconciles them against the
// registry. It memoizes per native name and is discarded when the call returns.
type reconciler struct {
	b       *Bridge
	catalog *Catalog
	natives map[string]native.TypeDef
	loaded  bool
	results map[string]result
	active  map[string]bool
}

func (b *Bridge) newReconciler() *reconciler {
	return &reconciler{
		b:       b,
		catalog: &Catalog{},
		natives: make(map[string]native.TypeDef),
		results: make(map[string]result),
		active:  make(map[string]bool),
	}
}

// preload reads every native type in one search so later lookups hit the cache
func (r *reconciler) preload(ctx context.Context) ([]native.TypeDef, error) {
	all, err := r.b.store.SearchTypeDefs(ctx, native.SearchFilter{})
	if err != nil {
		return nil, cohort.Wrap("typecatalog.LoadAll", "", err)
	}
	defs := all.All()
	for _, def := range defs {
		r.natives[def.Header().Name] = def
	}
	r.loaded = true
	return defs, nil
}

func (r *reconciler) nativeType(ctx context.Context, localName string) (native.TypeDef, error) {
	const op = "typecatalog.nativeType"
	if def, ok := r.natives[localName]; ok {
		if def == nil {
			return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, localName, "no such native type")
		}
		return def, nil
	}
	if r.loaded {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, localName, "no such native type")
	}

	def, err := r.b.store.GetTypeDefByName(ctx, localName)
	if err != nil {
		if native.IsNotFound(err) {
			r.natives[localName] = nil
			return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, localName, "no such native type")
		}
		return nil, cohort.Wrap(op, localName, err)
	}
	r.natives[localName] = def
	return def, nil
}

// resolve converts and reconciles the named native type and everything it depends on
func (r *reconciler) resolve(ctx context.Context, localName string) result {
	if res, ok := r.results[localName]; ok {
		return res
	}
	if r.active[localName] {
		return result{err: cohort.Errorf(cohort.ErrTypeNotSupported, "typecatalog.resolve", localName,
			"cyclic type dependency")}
	}

	nt, err := r.nativeType(ctx, localName)
	if err != nil {
		return result{err: err}
	}

	r.active[localName] = true
	res, status := r.convert(ctx, nt)
	delete(r.active, localName)

	r.results[localName] = res
	r.record(nt, res, status)
	return res
}

func (r *reconciler) resolveTypeDef(ctx context.Context, localName string) (cohort.TypeDef, error) {
	res := r.resolve(ctx, localName)
	if res.err != nil {
		return nil, res.err
	}
	if res.def == nil {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, "typecatalog.resolve", localName, "not a type definition")
	}
	return res.def, nil
}

func (r *reconciler) resolveEnum(ctx context.Context, name string) (*cohort.EnumDef, error) {
	res := r.resolve(ctx, name)
	if res.err != nil {
		return nil, res.err
	}
	if res.enum == nil {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, "typecatalog.resolveEnum", name, "not an enum")
	}
	return res.enum, nil
}

func (r *reconciler) record(nt native.TypeDef, res result, status Status) {
	h := nt.Header()
	o := Outcome{
		NativeName: h.Name,
		Name:       names.ToProtocolName(h.Name),
		Category:   nt.Category().String(),
		Status:     status,
	}
	switch {
	case res.err != nil:
		o.Reason = res.err.Error()
	case res.def != nil:
		o.GUID = res.def.Base().GUID
		r.catalog.addTypeDef(res.def)
	case res.enum != nil:
		o.GUID = res.enum.GUID
		r.catalog.Enums = append(r.catalog.Enums, res.enum)
	}
	r.catalog.addOutcome(o)

	switch status {
	case StatusConflict:
		r.b.logger.Error("type conflicts with registry definition",
			zap.String("type", o.Name), zap.String("category", o.Category), zap.Error(res.err))
	case StatusSkipped:
		r.b.logger.Debug("skipping native type", zap.String("type", h.Name), zap.Error(res.err))
	case StatusAbandoned:
		r.b.logger.Warn("abandoning type with unpublished dependency", zap.String("type", o.Name), zap.Error(res.err))
	}
}

func (r *reconciler) convert(ctx context.Context, nt native.TypeDef) (result, Status) {
	const op = "typecatalog.convert"
	h := nt.Header()

	if names.RequiresSubstitution(h.Name) {
		return result{err: cohort.Errorf(cohort.ErrTypeNotSupported, op, h.Name,
			"name is reserved by the native store")}, StatusSkipped
	}

	switch d := nt.(type) {
	case *native.EnumTypeDef:
		enum, status, err := r.reconcileEnum(ctx, attributes.ToProtocolEnum(d))
		return result{enum: enum, err: err}, status
	case *native.StructTypeDef:
		return result{err: cohort.Errorf(cohort.ErrTypeNotSupported, op, h.Name,
			"struct types have no cohort counterpart")}, StatusSkipped
	case *native.EntityTypeDef:
		return r.convertEntity(ctx, d)
	case *native.ClassificationTypeDef:
		return r.convertClassification(ctx, d)
	case *native.RelationshipTypeDef:
		return r.convertRelationship(ctx, d)
	default:
		return result{err: cohort.Errorf(cohort.ErrTypeNotSupported, op, h.Name,
			"unsupported native category %s", nt.Category())}, StatusSkipped
	}
}

func (r *reconciler) convertEntity(ctx context.Context, d *native.EntityTypeDef) (result, Status) {
	base, status, err := r.base(ctx, &d.TypeHeader, d.Attributes)
	if err != nil {
		return result{err: err}, status
	}
	link, status, err := r.superTypeLink(ctx, d.Name, d.SuperTypes, cohort.EntityDefCategory)
	if err != nil {
		return result{err: err}, status
	}
	base.SuperType = link

	def, status, err := r.reconcileTypeDef(ctx, &cohort.EntityDef{TypeDefBase: base})
	return result{def: def, err: err}, status
}

func (r *reconciler) convertClassification(ctx context.Context, d *native.ClassificationTypeDef) (result, Status) {
	base, status, err := r.base(ctx, &d.TypeHeader, d.Attributes)
	if err != nil {
		return result{err: err}, status
	}
	link, status, err := r.superTypeLink(ctx, d.Name, d.SuperTypes, cohort.ClassificationDefCategory)
	if err != nil {
		return result{err: err}, status
	}
	base.SuperType = link

	cand := &cohort.ClassificationDef{TypeDefBase: base}
	for _, entityType := range d.EntityTypes {
		target, err := r.resolveTypeDef(ctx, entityType)
		if err != nil {
			return result{err: dependencyError(d.Name, entityType, err)}, StatusAbandoned
		}
		if target.Category() != cohort.EntityDefCategory {
			return result{err: cohort.Errorf(cohort.ErrTypeNotSupported, "typecatalog.convert", d.Name,
				"eligible type %s is not an entity type", entityType)}, StatusSkipped
		}
		cand.ValidEntityDefs = append(cand.ValidEntityDefs, target.Base().Link())
	}

	def, status, err := r.reconcileTypeDef(ctx, cand)
	return result{def: def, err: err}, status
}

func (r *reconciler) convertRelationship(ctx context.Context, d *native.RelationshipTypeDef) (result, Status) {
	base, status, err := r.base(ctx, &d.TypeHeader, d.Attributes)
	if err != nil {
		return result{err: err}, status
	}

	cand := &cohort.RelationshipDef{
		TypeDefBase: base,
		Propagation: attributes.ToProtocolPropagation(d.PropagateTags),
	}
	ends := []struct {
		own, other native.RelationshipEndDef
		out        *cohort.RelationshipEndDef
	}{
		{d.End1, d.End2, &cand.EndDef1},
		{d.End2, d.End1, &cand.EndDef2},
	}
	for _, end := range ends {
		target, err := r.resolveTypeDef(ctx, end.own.Type)
		if err != nil {
			return result{err: dependencyError(d.Name, end.own.Type, err)}, StatusAbandoned
		}
		if target.Category() != cohort.EntityDefCategory {
			return result{err: cohort.Errorf(cohort.ErrTypeNotSupported, "typecatalog.convert", d.Name,
				"end type %s is not an entity type", end.own.Type)}, StatusSkipped
		}
		// the cohort names an end by how the other end refers to it
		*end.out = cohort.RelationshipEndDef{
			EntityType:           target.Base().Link(),
			AttributeName:        end.other.Name,
			AttributeDescription: end.other.Description,
			Cardinality:          attributes.ToProtocolEndCardinality(end.other.Cardinality),
		}
	}

	def, status, err := r.reconcileTypeDef(ctx, cand)
	return result{def: def, err: err}, status
}

// base builds the shared fields of a candidate definition
func (r *reconciler) base(ctx context.Context, h *native.TypeHeader, attrs []native.AttributeDef) (cohort.TypeDefBase, Status, error) {
	name := names.ToProtocolName(h.Name)
	guid := h.GUID
	if names.IsLocalSubstitute(h.Name) {
		guid, _ = names.GUID(name)
	}

	props, err := attributes.ToProtocolAttributes(ctx, enumLookup{r}, attrs)
	if err != nil {
		if errors.Is(err, cohort.ErrTypeNotSupported) {
			return cohort.TypeDefBase{}, StatusSkipped, err
		}
		if cohort.KindOf(err) == cohort.ErrRepository {
			return cohort.TypeDefBase{}, StatusAbandoned, err
		}
		return cohort.TypeDefBase{}, StatusAbandoned, dependencyError(h.Name, "attribute enum", err)
	}

	base := cohort.TypeDefBase{
		GUID:            guid,
		Name:            name,
		Version:         h.Version,
		VersionName:     h.TypeVersion,
		Description:     h.Description,
		DescriptionGUID: h.DescriptionGUID,
		Properties:      props,
		Origin:          r.b.collectionID,
		CreatedBy:       h.CreatedBy,
		UpdatedBy:       h.UpdatedBy,
		CreateTime:      h.CreateTime,
		UpdateTime:      h.UpdateTime,
	}
	if len(h.Options) > 0 {
		base.Options = make(map[string]string, len(h.Options))
		for k, v := range h.Options {
			base.Options[k] = v
		}
	}
	for _, m := range h.ExternalStandards {
		base.ExternalStandardMappings = append(base.ExternalStandardMappings, cohort.ExternalStandardMapping{
			StandardName:         m.Standard,
			StandardOrganization: m.Organization,
			StandardTypeName:     m.TypeName,
		})
	}
	return base, StatusNew, nil
}

func (r *reconciler) superTypeLink(ctx context.Context, name string, supers []string, category cohort.TypeDefCategory) (*cohort.TypeDefLink, Status, error) {
	switch len(supers) {
	case 0:
		return nil, StatusNew, nil
	case 1:
	default:
		return nil, StatusSkipped, cohort.Errorf(cohort.ErrTypeNotSupported, "typecatalog.convert", name,
			"%d supertypes; the cohort allows one", len(supers))
	}

	super, err := r.resolveTypeDef(ctx, supers[0])
	if err != nil {
		return nil, StatusAbandoned, dependencyError(name, supers[0], err)
	}
	if super.Category() != category {
		return nil, StatusSkipped, cohort.Errorf(cohort.ErrTypeNotSupported, "typecatalog.convert", name,
			"supertype %s is a %s", supers[0], super.Category())
	}
	link := super.Base().Link()
	return &link, StatusNew, nil
}

// reconcileTypeDef publishes a new candidate or swaps in the registry's equivalent copy
func (r *reconciler) reconcileTypeDef(ctx context.Context, cand cohort.TypeDef) (cohort.TypeDef, Status, error) {
	const op = "typecatalog.reconcile"
	name := cand.Base().Name

	existing, err := r.b.registry.GetTypeDefByName(ctx, name)
	switch {
	case err == nil:
		if registry.Equivalent(existing, cand) {
			return existing, StatusMatched, nil
		}
		return nil, StatusConflict, cohort.Errorf(cohort.ErrTypeConflict, op, name,
			"native definition differs from the registry's (guid %s)", existing.Base().GUID)
	case cohort.IsTypeNotKnown(err):
		cand.Base().DescriptionGUID = ""
		if err := r.b.registry.RegisterTypeDef(ctx, cand); err != nil {
			if cohort.IsTypeConflict(err) {
				return nil, StatusConflict, err
			}
			return nil, StatusAbandoned, cohort.Wrap(op, name, err)
		}
		return cand, StatusNew, nil
	default:
		return nil, StatusAbandoned, cohort.Wrap(op, name, err)
	}
}

func (r *reconciler) reconcileEnum(ctx context.Context, cand *cohort.EnumDef) (*cohort.EnumDef, Status, error) {
	const op = "typecatalog.reconcile"

	existing, err := r.b.registry.GetAttributeTypeDefByName(ctx, cand.Name)
	switch {
	case err == nil:
		if enum, ok := existing.(*cohort.EnumDef); ok && cohort.EquivalentAttributeTypeDefs(enum, cand) {
			return enum, StatusMatched, nil
		}
		return nil, StatusConflict, cohort.Errorf(cohort.ErrTypeConflict, op, cand.Name,
			"native enum differs from the registry's")
	case cohort.IsTypeNotKnown(err):
		if err := r.b.registry.RegisterAttributeTypeDef(ctx, cand); err != nil {
			if cohort.IsTypeConflict(err) {
				return nil, StatusConflict, err
			}
			return nil, StatusAbandoned, cohort.Wrap(op, cand.Name, err)
		}
		return cand, StatusNew, nil
	default:
		return nil, StatusAbandoned, cohort.Wrap(op, cand.Name, err)
	}
}

// enumLookup resolves attribute enums through the reconciler so they are published
// before the types that use them
type enumLookup struct {
	r *reconciler
}

func (l enumLookup) GetAttributeTypeDefByName(ctx context.Context, name string) (cohort.AttributeTypeDef, error) {
	enum, err := l.r.resolveEnum(ctx, name)
	if err != nil {
		return nil, err
	}
	return enum, nil
}

// dependencyError carries the dependency's kind so callers see why the type was dropped
func dependencyError(name, dependency string, err error) error {
	const op = "typecatalog.convert"
	switch kind := cohort.KindOf(err); kind {
	case cohort.ErrRepository:
		return err
	case cohort.ErrTypeConflict, cohort.ErrTypeNotSupported:
		return &cohort.Error{Kind: kind, Op: op, ID: name, Msg: "depends on " + dependency, Err: err}
	default:
		return cohort.Errorf(cohort.ErrTypeNotSupported, op, name, "depends on %s: %v", dependency, err)
	}
}

// ancestors returns the supertype chain of def, nearest first
func (r *reconciler) ancestors(ctx context.Context, def cohort.TypeDef) ([]cohort.TypeDef, error) {
	var out []cohort.TypeDef
	seen := map[string]bool{def.Base().Name: true}
	for link := def.Base().SuperType; link != nil && !seen[link.Name]; {
		super, err := r.resolveTypeDef(ctx, names.ToLocalName(link.Name, link.GUID))
		if err != nil {
			return nil, err
		}
		seen[link.Name] = true
		out = append(out, super)
		link = super.Base().SuperType
	}
	return out, nil
}
