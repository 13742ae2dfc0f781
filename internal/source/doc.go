// Package source defines the event source contract and ships the built-in
// adapters.
//
// Adapters:
//   - MacOS: queries the unified log with `log show --style json`
//   - Windows: queries the System event log through PowerShell Get-WinEvent
//   - Jira: searches issues updated since the watermark over the REST API
//   - Replay: reads events from a YAML file (demos and scenario tests)
//
// OS adapters run one subprocess per event kind through a Runner, so a
// failing predicate does not hide the kinds that succeeded.
package source
