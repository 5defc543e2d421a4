package kv

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// StringSet is an unordered set of strings. It marshals to a DynamoDB SS.
type StringSet []string

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (s StringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberSS{Value: append([]string(nil), s...)}, nil
}

// Record is one row of the table. Optional attributes are pointers or
// empty values; empty values are not stored.
type Record struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	Type       string   `dynamodbav:"Type,omitempty"`
	ListName   string   `dynamodbav:"ListName,omitempty"`
	ListOrder  *int     `dynamodbav:"ListOrder,omitempty"`
	IsShared   *bool    `dynamodbav:"IsShared,omitempty"`
	SharedWith []string `dynamodbav:"SharedWith,stringset,omitempty"`
	RefUserID  string   `dynamodbav:"RefUserId,omitempty"`
	RefListID  string   `dynamodbav:"RefListId,omitempty"`
	Text       string   `dynamodbav:"Text,omitempty"`
	IsChecked  *bool    `dynamodbav:"IsChecked,omitempty"`
	UpdatedAt  string   `dynamodbav:"UpdatedAt,omitempty"`
}

// Key returns the record's primary key.
func (r Record) Key() Key {
	return Key{PK: r.PK, SK: r.SK}
}

// Attributes flattens the record into the attribute map stored as a JSON
// document by the SQLite backend.
func (r Record) Attributes() map[string]any {
	attrs := map[string]any{AttrPK: r.PK, AttrSK: r.SK}
	putString(attrs, AttrType, r.Type)
	putString(attrs, AttrListName, r.ListName)
	putString(attrs, AttrRefUserID, r.RefUserID)
	putString(attrs, AttrRefListID, r.RefListID)
	putString(attrs, AttrText, r.Text)
	putString(attrs, AttrUpdatedAt, r.UpdatedAt)
	if r.ListOrder != nil {
		attrs[AttrListOrder] = *r.ListOrder
	}
	if r.IsShared != nil {
		attrs[AttrIsShared] = *r.IsShared
	}
	if r.IsChecked != nil {
		attrs[AttrIsChecked] = *r.IsChecked
	}
	if len(r.SharedWith) > 0 {
		attrs[AttrSharedWith] = StringSet(r.SharedWith)
	}
	return attrs
}

// RecordFromAttributes is the inverse of Record.Attributes for decoded
// JSON documents. Values of an unexpected type are ignored.
func RecordFromAttributes(attrs map[string]any) Record {
	r := Record{
		PK:        stringAttr(attrs[AttrPK]),
		SK:        stringAttr(attrs[AttrSK]),
		Type:      stringAttr(attrs[AttrType]),
		ListName:  stringAttr(attrs[AttrListName]),
		RefUserID: stringAttr(attrs[AttrRefUserID]),
		RefListID: stringAttr(attrs[AttrRefListID]),
		Text:      stringAttr(attrs[AttrText]),
		UpdatedAt: stringAttr(attrs[AttrUpdatedAt]),
	}
	if n, ok := intAttr(attrs[AttrListOrder]); ok {
		r.ListOrder = &n
	}
	if b, ok := attrs[AttrIsShared].(bool); ok {
		r.IsShared = &b
	}
	if b, ok := attrs[AttrIsChecked].(bool); ok {
		r.IsChecked = &b
	}
	r.SharedWith = setAttr(attrs[AttrSharedWith])
	return r
}

// project keeps only the named attributes. An empty projection keeps all.
func project(attrs map[string]any, projection []string) map[string]any {
	if len(projection) == 0 {
		return attrs
	}
	out := make(map[string]any, len(projection))
	for _, name := range projection {
		if v, ok := attrs[name]; ok {
			out[name] = v
		}
	}
	return out
}

func putString(attrs map[string]any, name, v string) {
	if v != "" {
		attrs[name] = v
	}
}

func stringAttr(v any) string {
	s, _ := v.(string)
	return s
}

func intAttr(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

func setAttr(v any) []string {
	switch set := v.(type) {
	case StringSet:
		return append([]string(nil), set...)
	case []string:
		return append([]string(nil), set...)
	case []any:
		out := make([]string, 0, len(set))
		for _, e := range set {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
