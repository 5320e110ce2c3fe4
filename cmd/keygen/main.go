// Command keygen manages the Ed25519 identity keystore each login/shard
// process loads at startup to authenticate the login↔shard control link
// (§4.9). Adapted from the file-transfer daemon's keygen tool: same
// generate/show subcommands and keystore path convention, re-pointed at
// internal/identity and a role name ("login" or a shard id) instead of a
// single fixed identity file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/originfall/core/internal/identity"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd(os.Args[2:])
	case "show":
		showCmd(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("keygen - originfall identity key management")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  keygen generate -role <name> [-passphrase <p>] [-keystore <path>]")
	fmt.Println("  keygen show -role <name> [-passphrase <p>] [-keystore <path>]")
}

func generateCmd(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	role := fs.String("role", "shard", "identity role (\"login\" or a shard id)")
	passphrase := fs.String("passphrase", "", "keystore passphrase (empty = unencrypted, dev only)")
	keystorePath := fs.String("keystore", "", "keystore file path (default: XDG data dir)")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	fs.Parse(args)

	path := *keystorePath
	if path == "" {
		path = identity.DefaultKeystorePath(*role)
	}
	written := path
	if *passphrase == "" {
		written += ".insecure"
	}
	if !*force {
		if _, err := os.Stat(written); err == nil {
			fmt.Fprintf(os.Stderr, "keystore already exists at %s (use -force to overwrite)\n", written)
			os.Exit(1)
		}
	}

	k, err := identity.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate identity: %v\n", err)
		os.Exit(1)
	}
	if err := identity.SaveKeystore(path, k, *passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "save keystore: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("generated identity for role %q\n", *role)
	fmt.Printf("fingerprint: %s\n", k.Fingerprint())
	fmt.Printf("keystore:    %s\n", written)
	if *passphrase == "" {
		fmt.Println("WARNING: keystore written unencrypted (.insecure) — development use only")
	}
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	role := fs.String("role", "shard", "identity role")
	passphrase := fs.String("passphrase", "", "keystore passphrase")
	keystorePath := fs.String("keystore", "", "keystore file path (default: XDG data dir)")
	fs.Parse(args)

	path := *keystorePath
	if path == "" {
		path = identity.DefaultKeystorePath(*role)
	}
	if *passphrase == "" {
		path += ".insecure"
	}
	k, err := identity.LoadKeystore(path, *passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load keystore: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("role:        %s\n", *role)
	fmt.Printf("fingerprint: %s\n", k.Fingerprint())
}
