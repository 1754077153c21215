package repository

import jsoniter "github.com/json-iterator/go"

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// toJSONMap serializes a metadata map for storage in a jsonb column, using
// the faster json-iterator codec the rest of the pipeline standardizes on.
func toJSONMap(m map[string]interface{}) []byte {
	if m == nil {
		return []byte("{}")
	}
	b, err := jsonCodec.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// fromJSONMap deserializes a jsonb metadata column back into a map. A nil or
// malformed column yields an empty map rather than an error: metadata is
// advisory, never load-bearing for graph correctness.
func fromJSONMap(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := jsonCodec.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
