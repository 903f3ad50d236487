package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/atomicfu/internal/ir"
)

// marshalCounts converts per-kind rewrite counts to canonical JSON TEXT,
// so identical runs store byte-identical rows.
func marshalCounts(counts map[string]int64) (string, error) {
	obj := make(ir.IRObject, len(counts))
	for k, v := range counts {
		obj[k] = ir.IRInt(v)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal counts: %w", err)
	}
	return string(data), nil
}

// unmarshalCounts parses stored counts. Empty input yields an empty map.
func unmarshalCounts(data string) (map[string]int64, error) {
	counts := map[string]int64{}
	if data == "" || data == "{}" {
		return counts, nil
	}
	if err := json.Unmarshal([]byte(data), &counts); err != nil {
		return nil, fmt.Errorf("unmarshal counts: %w", err)
	}
	return counts, nil
}
