// Package typecatalog loads native type definitions, converts them to cohort form and
// reconciles them against the shared type registry. It also creates, patches and
// deletes native types on behalf of cohort callers.
package typecatalog

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/names"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
	"github.com/conduit-lang/metabridge/internal/registry"
)

// Store is the part of the native store the catalog needs. Discovery is used to
// check whether a type still has instances before it is deleted.
type Store interface {
	native.TypeDefStore
	native.DiscoveryService
}

// Bridge translates type definitions between the native store and the cohort
type Bridge struct {
	store        Store
	registry     registry.Registry
	collectionID string
	logger       *zap.Logger
}

// New creates a type catalog bridge
func New(store Store, reg registry.Registry, collectionID string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		store:        store,
		registry:     reg,
		collectionID: collectionID,
		logger:       logger,
	}
}

// Registry returns the shared type registry the bridge reconciles against
func (b *Bridge) Registry() registry.Registry {
	return b.registry
}

// Reconcile converts every native type and reconciles it against the registry,
// returning the per-call catalog with an outcome for each native type
func (b *Bridge) Reconcile(ctx context.Context, userID string) (*Catalog, error) {
	if err := validateUser("typecatalog.Reconcile", userID); err != nil {
		return nil, err
	}

	r := b.newReconciler()
	defs, err := r.preload(ctx)
	if err != nil {
		return nil, err
	}

	// enums first so attribute lookups never trigger out-of-order publication
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Category() == native.CategoryEnum && defs[j].Category() != native.CategoryEnum
	})
	for _, def := range defs {
		res := r.resolve(ctx, def.Header().Name)
		if res.err != nil && cohort.KindOf(res.err) == cohort.ErrRepository {
			return nil, res.err
		}
	}

	b.logger.Debug("type catalog reconciled",
		zap.Int("published", r.catalog.Count(StatusNew)+r.catalog.Count(StatusMatched)),
		zap.Int("conflicts", r.catalog.Count(StatusConflict)),
		zap.Int("skipped", r.catalog.Count(StatusSkipped)),
		zap.Int("abandoned", r.catalog.Count(StatusAbandoned)))
	return r.catalog, nil
}

// LoadAll returns every native type that could be published to the cohort
func (b *Bridge) LoadAll(ctx context.Context, userID string) (*cohort.TypeDefGallery, error) {
	catalog, err := b.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return catalog.Gallery(), nil
}

// FindTypeDefsByName returns the published types whose name matches the regular
// expression pattern
func (b *Bridge) FindTypeDefsByName(ctx context.Context, userID, pattern string) (*cohort.TypeDefGallery, error) {
	const op = "typecatalog.FindTypeDefsByName"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "name pattern is empty")
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, cohort.WrapKind(cohort.ErrInvalidParameter, op, pattern, err)
	}

	catalog, err := b.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	gallery := &cohort.TypeDefGallery{}
	for _, def := range catalog.TypeDefs() {
		if re.MatchString(def.Base().Name) {
			gallery.TypeDefs = append(gallery.TypeDefs, def)
		}
	}
	for _, enum := range catalog.Enums {
		if re.MatchString(enum.Name) {
			gallery.AttributeTypeDefs = append(gallery.AttributeTypeDefs, enum)
		}
	}
	return gallery, nil
}

// FindTypeDefsByCategory returns the published types of one category
func (b *Bridge) FindTypeDefsByCategory(ctx context.Context, userID string, category cohort.TypeDefCategory) ([]cohort.TypeDef, error) {
	const op = "typecatalog.FindTypeDefsByCategory"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if category == cohort.UnknownTypeDefCategory {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "type category is not set")
	}

	catalog, err := b.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterTypeDefs(catalog.TypeDefs(), func(def cohort.TypeDef) bool {
		return def.Category() == category
	}), nil
}

// FindAttributeTypeDefsByCategory returns the attribute types of one category.
// Primitives are always available; collections are those used by published types.
func (b *Bridge) FindAttributeTypeDefsByCategory(ctx context.Context, userID string, category cohort.AttributeTypeDefCategory) ([]cohort.AttributeTypeDef, error) {
	const op = "typecatalog.FindAttributeTypeDefsByCategory"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}

	switch category {
	case cohort.PrimitiveCategory:
		out := make([]cohort.AttributeTypeDef, 0)
		for _, kind := range cohort.PrimitiveKinds() {
			out = append(out, cohort.NewPrimitiveDef(kind))
		}
		return out, nil
	case cohort.CollectionCategory, cohort.EnumCategory:
	default:
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "attribute type category is not set")
	}

	catalog, err := b.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if category == cohort.EnumCategory {
		return catalog.AttributeTypeDefs(), nil
	}

	seen := make(map[string]bool)
	out := make([]cohort.AttributeTypeDef, 0)
	for _, def := range catalog.TypeDefs() {
		for _, p := range def.Base().Properties {
			if p.Type == nil || p.Type.AttributeCategory() != cohort.CollectionCategory || seen[p.Type.TypeName()] {
				continue
			}
			seen[p.Type.TypeName()] = true
			out = append(out, p.Type)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName() < out[j].TypeName() })
	return out, nil
}

// FindTypeDefsByProperty returns the published types that declare every named property
func (b *Bridge) FindTypeDefsByProperty(ctx context.Context, userID string, propertyNames []string) ([]cohort.TypeDef, error) {
	const op = "typecatalog.FindTypeDefsByProperty"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if len(propertyNames) == 0 {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "no property names supplied")
	}

	catalog, err := b.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterTypeDefs(catalog.TypeDefs(), func(def cohort.TypeDef) bool {
		for _, name := range propertyNames {
			if _, ok := def.Base().Property(name); !ok {
				return false
			}
		}
		return true
	}), nil
}

// FindTypesByExternalID returns the published types mapped to an external standard.
// Empty arguments match anything but at least one must be set.
func (b *Bridge) FindTypesByExternalID(ctx context.Context, userID, standard, organization, identifier string) ([]cohort.TypeDef, error) {
	const op = "typecatalog.FindTypesByExternalID"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if standard == "" && organization == "" && identifier == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "no external standard criteria supplied")
	}

	catalog, err := b.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterTypeDefs(catalog.TypeDefs(), func(def cohort.TypeDef) bool {
		for _, m := range def.Base().ExternalStandardMappings {
			if (standard == "" || m.StandardName == standard) &&
				(organization == "" || m.StandardOrganization == organization) &&
				(identifier == "" || m.StandardTypeName == identifier) {
				return true
			}
		}
		return false
	}), nil
}

// GetTypeDefByName returns the reconciled definition of the named cohort type
func (b *Bridge) GetTypeDefByName(ctx context.Context, userID, name string) (cohort.TypeDef, error) {
	const op = "typecatalog.GetTypeDefByName"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "type name is empty")
	}
	return b.newReconciler().resolveTypeDef(ctx, names.ToLocalName(name, ""))
}

// GetTypeDefByGUID returns the reconciled definition with the given cohort guid
func (b *Bridge) GetTypeDefByGUID(ctx context.Context, userID, guid string) (cohort.TypeDef, error) {
	const op = "typecatalog.GetTypeDefByGUID"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if guid == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "type guid is empty")
	}

	localName, err := b.localNameForGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	def, err := b.newReconciler().resolveTypeDef(ctx, localName)
	if err != nil {
		return nil, err
	}
	if def.Base().GUID != guid {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, guid, "type %s is published under guid %s",
			def.Base().Name, def.Base().GUID)
	}
	return def, nil
}

// localNameForGUID finds the native type behind a cohort guid: a built-in
// substitute, a native type stored under that guid, or a registry entry whose name
// exists natively
func (b *Bridge) localNameForGUID(ctx context.Context, guid string) (string, error) {
	const op = "typecatalog.GetTypeDefByGUID"
	for _, name := range names.Names() {
		if builtin, _ := names.GUID(name); builtin == guid {
			return names.ToLocalName(name, guid), nil
		}
	}

	def, err := b.store.GetTypeDefByGUID(ctx, guid)
	if err == nil {
		return def.Header().Name, nil
	}
	if !native.IsNotFound(err) {
		return "", cohort.Wrap(op, guid, err)
	}

	published, err := b.registry.GetTypeDefByGUID(ctx, guid)
	if err != nil {
		if cohort.IsTypeNotKnown(err) {
			return "", cohort.Errorf(cohort.ErrTypeNotKnown, op, guid, "no type with this guid")
		}
		return "", cohort.Wrap(op, guid, err)
	}
	return names.ToLocalName(published.Base().Name, guid), nil
}

// GetAttributeTypeDefByName returns a primitive, collection or published enum by name
func (b *Bridge) GetAttributeTypeDefByName(ctx context.Context, userID, name string) (cohort.AttributeTypeDef, error) {
	const op = "typecatalog.GetAttributeTypeDefByName"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "attribute type name is empty")
	}

	if kind, err := cohort.ParsePrimitiveKind(name); err == nil {
		return cohort.NewPrimitiveDef(kind), nil
	}
	if def, ok, err := cohort.ParseCollectionName(name); ok {
		if err != nil {
			return nil, cohort.WrapKind(cohort.ErrTypeNotSupported, op, name, err)
		}
		return def, nil
	}
	return b.newReconciler().resolveEnum(ctx, name)
}

// GetAttributeTypeDefByGUID returns a primitive, collection or published enum by guid
func (b *Bridge) GetAttributeTypeDefByGUID(ctx context.Context, userID, guid string) (cohort.AttributeTypeDef, error) {
	const op = "typecatalog.GetAttributeTypeDefByGUID"
	if err := validateUser(op, userID); err != nil {
		return nil, err
	}
	if guid == "" {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "attribute type guid is empty")
	}

	for _, kind := range cohort.PrimitiveKinds() {
		if kind.GUID() == guid {
			return cohort.NewPrimitiveDef(kind), nil
		}
	}
	if strings.HasPrefix(guid, "collection:") {
		return b.GetAttributeTypeDefByName(ctx, userID, strings.TrimPrefix(guid, "collection:"))
	}

	def, err := b.store.GetTypeDefByGUID(ctx, guid)
	if err != nil {
		if native.IsNotFound(err) {
			published, rerr := b.registry.GetAttributeTypeDefByGUID(ctx, guid)
			if rerr != nil {
				return nil, cohort.Errorf(cohort.ErrTypeNotKnown, op, guid, "no attribute type with this guid")
			}
			return b.newReconciler().resolveEnum(ctx, published.TypeName())
		}
		return nil, cohort.Wrap(op, guid, err)
	}
	return b.newReconciler().resolveEnum(ctx, def.Header().Name)
}

func filterTypeDefs(defs []cohort.TypeDef, keep func(cohort.TypeDef) bool) []cohort.TypeDef {
	out := make([]cohort.TypeDef, 0)
	for _, def := range defs {
		if keep(def) {
			out = append(out, def)
		}
	}
	return out
}

func validateUser(op, userID string) error {
	if userID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "user id is empty")
	}
	return nil
}
