// Command keygen mints gateway API keys. With no arguments it generates
// a fresh key and prints both the key and its hash; given an existing
// key it prints the hash only, for importing keys minted elsewhere.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/HeiSir2014/OpenAIRouter/internal/auth"
)

func main() {
	var apiKey string
	switch len(os.Args) {
	case 1:
		generated, err := auth.GenerateAPIKey()
		if err != nil {
			log.Fatalf("failed to generate key: %v", err)
		}
		apiKey = generated
		fmt.Printf("API key:  %s\n", apiKey)
	case 2:
		apiKey = os.Args[1]
	default:
		fmt.Fprintln(os.Stderr, "Usage: keygen [api-key]")
		os.Exit(2)
	}

	hash := auth.HashAPIKey(apiKey)
	fmt.Printf("Key hash: %s\n", hash)
	fmt.Println()
	fmt.Println("Add to config.yaml (the raw key is never stored):")
	fmt.Println("  keys:")
	fmt.Printf("    - key_hash: %q\n", hash)
	fmt.Println("      name: \"my-caller\"")
}
