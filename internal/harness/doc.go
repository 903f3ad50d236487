// Package harness runs conformance scenarios against the wrapper-erasure
// pass.
//
// A scenario is a YAML file naming a unit document and a list of
// assertions over the transformed unit:
//
//	name: counter_increment_safe
//	description: incrementAndGet on a field becomes a helper call
//	unit: ../units/counter.yaml
//	assertions:
//	  - type: no_wrappers
//	  - type: helper_called
//	    helper: incrementAndGet
//	    count: 1
//	  - type: field_type
//	    field: Counter.a
//	    expect: Int
//
// Supported assertion types are no_wrappers, helper_called, param_count,
// field_type and accessor_order. A scenario expecting the pass to reject
// its unit uses fails_with alone.
//
// Every run is recorded in a fresh in-memory journal with a fixed run id
// and a clock starting at zero, so Result.Run is reproducible.
package harness
