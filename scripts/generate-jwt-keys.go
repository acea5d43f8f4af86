package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// Generates the ES256 signing key the API reads from JWT_SECRET.
func main() {
	var out string
	var envOnly bool

	flagSet := pflag.NewFlagSet("generate-jwt-keys", pflag.ContinueOnError)
	flagSet.StringVarP(&out, "out", "o", "jwt-private-key.pem", "file to write the PEM encoded private key to")
	flagSet.BoolVar(&envOnly, "env-only", false, "only print the JWT_SECRET line, do not write a file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal private key: %v\n", err)
		os.Exit(1)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	// .env values are single lines; the API unescapes \n when loading the key
	singleLine := strings.ReplaceAll(strings.TrimSpace(string(privateKeyPEM)), "\n", `\n`)

	if envOnly {
		fmt.Printf("JWT_SECRET=%s\n", singleLine)
		return
	}

	fmt.Println("Generated ECDSA P-256 key for idea-portal token signing.")
	fmt.Println("\nAdd this to your .env file:")
	fmt.Println("----------------------------------------")
	fmt.Printf("JWT_SECRET=%s\n", singleLine)

	if err := os.WriteFile(out, privateKeyPEM, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write private key file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nPrivate key saved to: %s\n", out)
}
