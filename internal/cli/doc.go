// Package cli implements the pstop command-line interface.
//
// Each command is built by a constructor (newWatchCmd, newAgentCmd, ...) so
// tests can execute a fresh command tree through run with their own output
// buffers.
//
//	pstop [watch]            - Live dashboard (--url, --ssh or --local)
//	pstop agent serve        - Serve snapshots over HTTP
//	pstop agent dump <name>  - Print one snapshot as JSON
//	pstop init               - Create .pstop.yaml
//	pstop version            - Build information
//	pstop completion <shell> - Shell completion script
//
// The persistent --config flag picks the config file; --log-file sends logs
// to a file, which is the only way to see dashboard logs while the TUI owns
// the terminal. Flags given on the command line override config values.
package cli
