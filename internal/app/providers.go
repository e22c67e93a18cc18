package app

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Providers lists the registered provider adapters and their declared support.
func (a *App) Providers() error {
	registry, err := a.newRegistry()
	if err != nil {
		return err
	}

	entries := registry.List()
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no providers configured")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tName\tActive\tChains\tTokens")
	for _, entry := range entries {
		d := entry.Descriptor
		tokens := "*"
		if len(d.Tokens) > 0 {
			tokens = strings.Join(d.Tokens, ",")
		}
		fmt.Fprintf(writer, "%s\t%s\t%t\t%s\t%s\n",
			d.ID, d.Name, d.Active, strings.Join(d.Chains, ","), tokens)
	}
	writer.Flush()
	return nil
}
