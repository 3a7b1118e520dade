// Package harness runs conformance scenarios against the compiler.
//
// A scenario is a pipeline configuration, the files its includes may
// reach, a pipeline context, and the outcome the compile must produce.
//
// # Scenario Format
//
// Scenarios are YAML files. Unknown keys are rejected so that typos fail
// loudly:
//
//	name: needs_cycle
//	description: "Two jobs needing each other is one graph error"
//	source: .gitlab-ci.yml
//	config: |
//	  jobs:
//	    a: {script: [x], needs: [b]}
//	    b: {script: [x], needs: [a]}
//	files:
//	  templates/common.yml: |
//	    variables: {SHARED: "1"}
//	context:
//	  ref: main
//	  variables: {DEPLOY: "true"}
//	expect:
//	  valid: false
//	  errors:
//	    - code: E503
//	      location: jobs.a.needs
//	assertions:
//	  - type: job_field
//	    job: deploy
//	    field: when
//	    equals: manual
//
// # Expectations
//
// expect.valid, expect.jobs (exact output order) and the expect.errors and
// expect.warnings lists are checked first. Each listed diagnostic must be
// present; code is required, the other fields narrow the match. When a
// diagnostics list is given, its length must equal the actual count.
//
// # Assertion Types
//
//   - job_present: the job is in the output
//   - job_absent: the job is not in the output
//   - job_order: the listed jobs appear in this relative order
//   - job_field: a dotted field of the job's JSON form equals a value
//     (subset match for mappings)
//   - include_order: the listed include locations were merged in this order
//
// # Golden Files
//
// The canonical JSON of the compile result can be compared against a
// golden file with RunWithGolden (tests) or CompareGolden (the CLI).
// Results are deterministic: the same scenario always compiles to the
// same bytes.
package harness
