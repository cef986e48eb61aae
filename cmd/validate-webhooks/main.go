package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/chat-webhooks/catalog"
)

/* validate-webhooks - Standalone CLI tool to validate webhooks.yaml
 * Usage: go run cmd/validate-webhooks/main.go [webhooks.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	// Get webhooks file path from args or use default
	webhooksFile := "webhooks.yaml"
	if len(os.Args) > 1 {
		webhooksFile = os.Args[1]
	}

	fmt.Printf("Validating webhooks file: %s\n", webhooksFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := catalog.NewLoader()
	if err := loader.Load(webhooksFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	definitions := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d webhook(s):\n", len(definitions))

	for i, d := range definitions {
		method := d.Method
		if method == "" {
			method = "POST"
		}
		fmt.Printf("\n%d. Webhook: %s\n", i+1, d.Name)
		fmt.Printf("   URL:         %s\n", d.URL)
		fmt.Printf("   Method:      %s\n", strings.ToUpper(method))
		fmt.Printf("   Headers:     %d\n", len(d.Headers))
		if d.Active != nil && !*d.Active {
			fmt.Printf("   Active:      no\n")
		}
		if d.TimeoutMS != nil {
			fmt.Printf("   Timeout:     %d ms\n", *d.TimeoutMS)
		}
		if d.Retries != nil {
			fmt.Printf("   Retries:     %d\n", *d.Retries)
		}
		if d.RetryDelayMS != nil {
			fmt.Printf("   Retry Delay: %d ms\n", *d.RetryDelayMS)
		}
		if d.SigningSecret != "" {
			fmt.Printf("   Signed:      yes\n")
		}
	}

	fmt.Printf("\n✓ All webhooks are valid!\n")
	os.Exit(0)
}
