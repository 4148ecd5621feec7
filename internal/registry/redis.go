package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix namespaces every key the registry writes
	Prefix string
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "metabridge:",
	}
}

// Redis is a Registry shared between adapter processes through Redis. Definitions
// are stored as tagged JSON under a name key, with a guid key pointing at the name.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Registry = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection
func NewRedis(config RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return NewRedisWithClient(client, config.Prefix), nil
}

// NewRedisWithClient creates a registry over an existing client
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) typeKey(name string) string     { return r.prefix + "typedef:name:" + name }
func (r *Redis) typeGUIDKey(guid string) string { return r.prefix + "typedef:guid:" + guid }
func (r *Redis) attrKey(name string) string     { return r.prefix + "attrdef:name:" + name }
func (r *Redis) attrGUIDKey(guid string) string { return r.prefix + "attrdef:guid:" + guid }

// GetTypeDefByName returns the named definition
func (r *Redis) GetTypeDefByName(ctx context.Context, name string) (cohort.TypeDef, error) {
	const op = "registry.GetTypeDefByName"
	data, err := r.client.Get(ctx, r.typeKey(name)).Bytes()
	if err != nil {
		return nil, r.lookupError(op, name, err)
	}
	def, err := cohort.UnmarshalTypeDef(data)
	if err != nil {
		return nil, cohort.Wrap(op, name, err)
	}
	return def, nil
}

// GetTypeDefByGUID returns the definition with the given guid
func (r *Redis) GetTypeDefByGUID(ctx context.Context, guid string) (cohort.TypeDef, error) {
	name, err := r.client.Get(ctx, r.typeGUIDKey(guid)).Result()
	if err != nil {
		return nil, r.lookupError("registry.GetTypeDefByGUID", guid, err)
	}
	return r.GetTypeDefByName(ctx, name)
}

// GetAttributeTypeDefByName returns the named attribute type
func (r *Redis) GetAttributeTypeDefByName(ctx context.Context, name string) (cohort.AttributeTypeDef, error) {
	const op = "registry.GetAttributeTypeDefByName"
	data, err := r.client.Get(ctx, r.attrKey(name)).Bytes()
	if err != nil {
		return nil, r.lookupError(op, name, err)
	}
	def, err := cohort.UnmarshalAttributeTypeDef(data)
	if err != nil {
		return nil, cohort.Wrap(op, name, err)
	}
	return def, nil
}

// GetAttributeTypeDefByGUID returns the attribute type with the given guid
func (r *Redis) GetAttributeTypeDefByGUID(ctx context.Context, guid string) (cohort.AttributeTypeDef, error) {
	name, err := r.client.Get(ctx, r.attrGUIDKey(guid)).Result()
	if err != nil {
		return nil, r.lookupError("registry.GetAttributeTypeDefByGUID", guid, err)
	}
	return r.GetAttributeTypeDefByName(ctx, name)
}

// RegisterTypeDef publishes a definition. The name key is claimed with SETNX so two
// processes registering the same name cannot both win; the loser is compared for
// equivalence against the winner.
func (r *Redis) RegisterTypeDef(ctx context.Context, def cohort.TypeDef) error {
	const op = "registry.RegisterTypeDef"
	name := def.Base().Name
	data, err := cohort.MarshalTypeDef(def)
	if err != nil {
		return cohort.Wrap(op, name, err)
	}

	claimed, err := r.client.SetNX(ctx, r.typeKey(name), data, 0).Result()
	if err != nil {
		return cohort.Wrap(op, name, err)
	}
	if !claimed {
		existing, err := r.GetTypeDefByName(ctx, name)
		if err != nil {
			return err
		}
		if Equivalent(existing, def) {
			return nil
		}
		return cohort.Errorf(cohort.ErrTypeConflict, op, name, "a different definition is already registered")
	}

	if err := r.client.Set(ctx, r.typeGUIDKey(def.Base().GUID), name, 0).Err(); err != nil {
		return cohort.Wrap(op, name, err)
	}
	return nil
}

// RegisterAttributeTypeDef publishes an attribute type
func (r *Redis) RegisterAttributeTypeDef(ctx context.Context, def cohort.AttributeTypeDef) error {
	const op = "registry.RegisterAttributeTypeDef"
	name := def.TypeName()
	data, err := cohort.MarshalAttributeTypeDef(def)
	if err != nil {
		return cohort.Wrap(op, name, err)
	}

	claimed, err := r.client.SetNX(ctx, r.attrKey(name), data, 0).Result()
	if err != nil {
		return cohort.Wrap(op, name, err)
	}
	if !claimed {
		existing, err := r.GetAttributeTypeDefByName(ctx, name)
		if err != nil {
			return err
		}
		if cohort.EquivalentAttributeTypeDefs(existing, def) {
			return nil
		}
		return cohort.Errorf(cohort.ErrTypeConflict, op, name, "a different attribute type is already registered")
	}

	if err := r.client.Set(ctx, r.attrGUIDKey(def.TypeGUID()), name, 0).Err(); err != nil {
		return cohort.Wrap(op, name, err)
	}
	return nil
}

// UpdateTypeDef replaces a registered definition
func (r *Redis) UpdateTypeDef(ctx context.Context, def cohort.TypeDef) error {
	const op = "registry.UpdateTypeDef"
	name := def.Base().Name
	existing, err := r.GetTypeDefByName(ctx, name)
	if err != nil {
		return err
	}
	data, err := cohort.MarshalTypeDef(def)
	if err != nil {
		return cohort.Wrap(op, name, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.typeGUIDKey(existing.Base().GUID))
	pipe.Set(ctx, r.typeKey(name), data, 0)
	pipe.Set(ctx, r.typeGUIDKey(def.Base().GUID), name, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return cohort.Wrap(op, name, err)
	}
	return nil
}

// RemoveTypeDef removes a definition by guid and name
func (r *Redis) RemoveTypeDef(ctx context.Context, guid, name string) error {
	return r.remove(ctx, "registry.RemoveTypeDef", r.typeKey(name), r.typeGUIDKey(guid), name)
}

// RemoveAttributeTypeDef removes an attribute type by guid and name
func (r *Redis) RemoveAttributeTypeDef(ctx context.Context, guid, name string) error {
	return r.remove(ctx, "registry.RemoveAttributeTypeDef", r.attrKey(name), r.attrGUIDKey(guid), name)
}

func (r *Redis) remove(ctx context.Context, op, nameKey, guidKey, name string) error {
	removed, err := r.client.Del(ctx, nameKey).Result()
	if err != nil {
		return cohort.Wrap(op, name, err)
	}
	if removed == 0 {
		return cohort.Errorf(cohort.ErrTypeNotKnown, op, name, "not registered")
	}
	if err := r.client.Del(ctx, guidKey).Err(); err != nil {
		return cohort.Wrap(op, name, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) lookupError(op, id string, err error) error {
	if errors.Is(err, redis.Nil) {
		return cohort.Errorf(cohort.ErrTypeNotKnown, op, id, "not registered")
	}
	return cohort.Wrap(op, id, fmt.Errorf("redis: %w", err))
}
