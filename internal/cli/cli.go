// Package cli implements the subcommand surface described for this
// client: decode, info, peers, handshake, download_piece, download, and
// the magnet_* variants. This layer is glue, not the protocol core: it
// reads files, prints human-readable output, and exits with an error
// code, but it owns none of the wire logic in internal/peer, internal/
// piece, or internal/metadatawire.
package cli

import (
	"fmt"
	"os"

	"github.com/mitchellh/colorstring"

	"github.com/lvbealr/minitorrent/internal/session"
)

// Run dispatches args[0] (conventionally os.Args[1:]) to a subcommand
// handler and returns the process exit code.
func Run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}

	command := args[0]
	rest := args[1:]

	handler, ok := commands[command]
	if !ok {
		printError("unknown command: " + command)
		usage()
		return 1
	}

	sess := session.New(command)
	err := handler(rest)
	sess.Done(err)

	if err != nil {
		if _, isUsage := err.(usageError); isUsage {
			printError(err.Error())
			return 1
		}
		printError("error: " + err.Error())
		return 1
	}
	return 0
}

// printError writes msg to stderr colorized red, via colorstring's
// Color primitive (the one function every version of the library
// exposes) rather than any Fprint helper whose signature may have
// drifted across versions.
func printError(msg string) {
	fmt.Fprintln(os.Stderr, colorstring.Color("[red]"+msg))
}

type usageError string

func (e usageError) Error() string { return string(e) }

var commands = map[string]func([]string) error{
	"decode":                cmdDecode,
	"info":                  cmdInfo,
	"peers":                 cmdPeers,
	"handshake":             cmdHandshake,
	"download_piece":        cmdDownloadPiece,
	"download":              cmdDownload,
	"magnet_parse":          cmdMagnetParse,
	"magnet_handshake":      cmdMagnetHandshake,
	"magnet_info":           cmdMagnetInfo,
	"magnet_download_piece": cmdMagnetDownloadPiece,
	"magnet_download":       cmdMagnetDownload,
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: minitorrent <command> [arguments]")
	fmt.Fprintln(os.Stderr, "commands: decode info peers handshake download_piece download magnet_parse magnet_handshake magnet_info magnet_download_piece magnet_download")
}
