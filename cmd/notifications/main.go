package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rettinghaus/sentry/notifications"
)

func main() {
	if err := notifications.RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
