// Command sign computes the X-Signature value for a webhook payload so
// the API can be exercised by hand:
//
//	echo -n '{"message_id":"m1",...}' | sign -secret s3cret
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Cypherspark/webhook-ingest/internal/core"
)

func main() {
	secret := flag.String("secret", os.Getenv("WEBHOOK_SECRET"), "shared webhook secret (defaults to WEBHOOK_SECRET)")
	file := flag.String("file", "", "payload file (defaults to stdin)")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "sign: no secret given (use -secret or WEBHOOK_SECRET)")
		os.Exit(2)
	}

	in := io.Reader(os.Stdin)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(core.SignBody(body, *secret))
}
