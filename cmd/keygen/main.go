package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/railcore/railcore/internal/middleware"
)

func main() {
	env := flag.String("env", "test", "Environment: test or live")
	flag.Parse()

	if *env != "test" && *env != "live" {
		fmt.Println("Error: env must be 'test' or 'live'")
		os.Exit(1)
	}

	key, hash, prefix, err := middleware.GenerateKey(*env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("═══════════════════════════════════════════════════")
	fmt.Println("Admin API Key Generated")
	fmt.Println("═══════════════════════════════════════════════════")
	fmt.Printf("Environment:  %s\n", *env)
	fmt.Printf("\nAPI Key (shown ONLY ONCE):\n%s\n", key)
	fmt.Printf("\nPrefix (for display):\n%s\n", prefix)
	fmt.Println("\nConfigure the server with:")
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
	fmt.Println("═══════════════════════════════════════════════════")
}
