package appwrite

import json "github.com/goccy/go-json"

// Query builders producing the JSON query strings Appwrite 1.5+ accepts in
// queries[].

type query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func (q query) String() string {
	raw, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return string(raw)
}

func Equal(attribute string, value any) string {
	return query{Method: "equal", Attribute: attribute, Values: []any{value}}.String()
}

func OrderDesc(attribute string) string {
	return query{Method: "orderDesc", Attribute: attribute}.String()
}

func Limit(n int) string {
	return query{Method: "limit", Values: []any{n}}.String()
}
