// Package harness provides conformance testing for convergence runs.
//
// The harness executes a playbook against an in-memory filesystem with a
// recording dispatcher and deterministic run IDs, then checks assertions
// over the recorded runs and the final filesystem state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	playbook:
//	  name: web
//	  tasks:
//	    - name: render config
//	      path: /etc/web/web.conf
//	      state: template
//	      template: web.conf.tmpl
//	      notify: [reload web]
//	  handlers:
//	    - name: reload web
//	      command: [systemctl, reload, web]
//	templates:
//	  web.conf.tmpl: "port = {{ .port }}\n"
//	filesystem:
//	  /etc/web/legacy.conf:
//	    content: "old\n"
//	runs: 2
//	assertions:
//	  - type: changed
//	    run: 2
//	    path: /etc/web/web.conf
//	    changed: false
//	  - type: dispatch_count
//	    handler: reload web
//	    count: 1
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - changed: Verifies one run's change record for a path
//   - dispatch_order: Verifies a run's full dispatch sequence (may be empty)
//   - dispatch_count: Verifies total dispatches of a handler across all runs
//   - file_content: Verifies final file content byte for byte
//   - file_absent: Verifies nothing exists at a path
//   - run_error: Verifies a run failed with the given error code
//
// # Deterministic Testing
//
// All scenarios execute with a sequential run ID source (run-0001,
// run-0002, ...) and an in-memory filesystem isolated per scenario, so the
// rendered trace is identical across executions and can be compared against
// golden files.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/convergence.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
