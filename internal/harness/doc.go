// Package harness runs synchronizer scenarios described in YAML.
//
// A scenario pins the clock, seeds the store, scripts each source's fetch
// responses pass by pass, optionally injects store faults, and asserts on
// watermarks, branch statuses, and the merged view. Every pass is recorded
// in a trace that can be compared against a golden file.
//
// # Scenario Format
//
//	name: fetch_failure_keeps_history
//	description: "A failed fetch keeps the watermark and stored window"
//	now: 2025-01-06T12:00:00Z
//	passes: 2
//	watermarks:
//	  mac: 2025-01-06T08:00:00Z
//	seed:
//	  - { source: mac, time: 2025-01-06T08:00:00Z, name: boot }
//	sources:
//	  - name: mac
//	    responses:
//	      - events:
//	          - { time: 2025-01-06T09:00:00Z, name: logon }
//	      - error: "log: timed out"
//	faults:
//	  - { pass: 2, op: insert, source: os, error: "disk full" }
//	assertions:
//	  - { type: watermark, source: mac, equals: 2025-01-06T09:00:00Z }
//	  - { type: status, pass: 2, source: mac, status: fetch_failed }
//	  - { type: merged_count, pass: 2, source: mac, count: 2 }
//	  - { type: no_duplicates }
//
// Times accept RFC 3339 or epoch milliseconds. Each source's last response
// repeats once its script runs out. The clock advances by step (default one
// minute) between passes.
//
// # Assertion Types
//
//   - watermark: final watermark of source equals a time, or is absent
//   - status: branch status of source in a pass
//   - merged_count: events in a pass's merged view, optionally per source
//   - stored_count: rows in the store at the end, optionally per source
//   - no_duplicates: no two stored rows share (time, name, source)
//   - merged_sorted: a pass's merged view is ascending and key-unique
//
// Pass numbers are 1-based; zero means the last pass.
package harness
