package native

import "time"

// Status is the native instance state
type Status int

const (
	StatusActive Status = iota
	StatusDeleted
)

// String returns the string representation of the status
func (s Status) String() string {
	if s == StatusDeleted {
		return "DELETED"
	}
	return "ACTIVE"
}

// Classification is a native classification attached to an entity
type Classification struct {
	TypeName   string                 `json:"typeName"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	EntityGUID string                 `json:"entityGuid,omitempty"`
	Propagated bool                   `json:"propagated"`
	Propagate  bool                   `json:"propagate"`
	Version    int64                  `json:"version"`
	CreatedBy  string                 `json:"createdBy,omitempty"`
	UpdatedBy  string                 `json:"updatedBy,omitempty"`
	CreateTime time.Time              `json:"createTime"`
	UpdateTime time.Time              `json:"updateTime"`
}

// Entity is a native entity. Attribute values are JSON-compatible: string, bool,
// int64, float64, epoch milliseconds for dates, []interface{} and
// map[string]interface{} for collections.
type Entity struct {
	GUID            string                 `json:"guid"`
	TypeName        string                 `json:"typeName"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
	Classifications []Classification       `json:"classifications,omitempty"`
	Status          Status                 `json:"status"`
	Version         int64                  `json:"version"`
	HomeID          string                 `json:"homeId,omitempty"`
	ReplicatedBy    string                 `json:"replicatedBy,omitempty"`
	Provenance      int                    `json:"provenance"`
	IsProxy         bool                   `json:"isProxy"`
	CreatedBy       string                 `json:"createdBy,omitempty"`
	UpdatedBy       string                 `json:"updatedBy,omitempty"`
	CreateTime      time.Time              `json:"createTime"`
	UpdateTime      time.Time              `json:"updateTime"`
}

// Classification returns the named classification
func (e *Entity) Classification(name string) (Classification, bool) {
	for _, c := range e.Classifications {
		if c.TypeName == name {
			return c, true
		}
	}
	return Classification{}, false
}

// Clone returns a deep-enough copy for read-modify-write
func (e *Entity) Clone() *Entity {
	c := *e
	c.Attributes = cloneAttributes(e.Attributes)
	if e.Classifications != nil {
		c.Classifications = make([]Classification, len(e.Classifications))
		for i, cl := range e.Classifications {
			cl.Attributes = cloneAttributes(cl.Attributes)
			c.Classifications[i] = cl
		}
	}
	return &c
}

// ObjectID identifies an entity by guid, type and unique attributes
type ObjectID struct {
	GUID             string                 `json:"guid"`
	TypeName         string                 `json:"typeName"`
	UniqueAttributes map[string]interface{} `json:"uniqueAttributes,omitempty"`
}

// Relationship is a native relationship between two entities
type Relationship struct {
	GUID         string                 `json:"guid"`
	TypeName     string                 `json:"typeName"`
	End1         ObjectID               `json:"end1"`
	End2         ObjectID               `json:"end2"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	Status       Status                 `json:"status"`
	Version      int64                  `json:"version"`
	HomeID       string                 `json:"homeId,omitempty"`
	ReplicatedBy string                 `json:"replicatedBy,omitempty"`
	Provenance   int                    `json:"provenance"`
	CreatedBy    string                 `json:"createdBy,omitempty"`
	UpdatedBy    string                 `json:"updatedBy,omitempty"`
	CreateTime   time.Time              `json:"createTime"`
	UpdateTime   time.Time              `json:"updateTime"`
}

// Clone returns a deep-enough copy for read-modify-write
func (r *Relationship) Clone() *Relationship {
	c := *r
	c.Attributes = cloneAttributes(r.Attributes)
	c.End1.UniqueAttributes = cloneAttributes(r.End1.UniqueAttributes)
	c.End2.UniqueAttributes = cloneAttributes(r.End2.UniqueAttributes)
	return &c
}

func cloneAttributes(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
