// Package output renders reply bodies for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/mikey-austin/heosq/pkg/hq"
)

// Printer renders one reply body to stdout.
type Printer interface {
	Print(v any) error
}

// ForFormat selects a printer by name. Anything other than "json" gets the
// human renderer.
func ForFormat(format string) Printer {
	if format == "json" {
		return JSONPrinter{}
	}
	return HumanPrinter{}
}

// JSONPrinter prints the body as indented JSON.
type JSONPrinter struct{}

// Print renders JSON output.
func (JSONPrinter) Print(v any) error {
	if v == nil {
		v = map[string]string{"result": "ok"}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case hq.GetQueueReply:
		return printQueues(data)
	case hq.RemoveReply:
		return printRemove(data)
	case hq.GetPlayersReply:
		return printPlayers(data)
	case []hq.Presence:
		return printPresence(data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printQueues(reply hq.GetQueueReply) error {
	devices := make([]string, 0, len(reply.Queues))
	for device := range reply.Queues {
		devices = append(devices, device)
	}
	sort.Strings(devices)

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "DEVICE\tQID\tTITLE\tARTIST\tALBUM"); err != nil {
		return err
	}
	for _, device := range devices {
		entries := reply.Queues[device]
		if len(entries) == 0 {
			if _, err := fmt.Fprintf(tw, "%s\t-\t(empty)\t\t\n", device); err != nil {
				return err
			}
			continue
		}
		for _, entry := range entries {
			if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", device, entry.QID, entry.Song, entry.Artist, entry.Album); err != nil {
				return err
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, device := range reply.Errors {
		if _, err := fmt.Fprintf(os.Stdout, "error: %s unreachable\n", device); err != nil {
			return err
		}
	}
	return nil
}

func printRemove(reply hq.RemoveReply) error {
	if len(reply.Errors) == 0 {
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
	for _, device := range reply.Errors {
		if _, err := fmt.Fprintf(os.Stdout, "error: %s failed\n", device); err != nil {
			return err
		}
	}
	return nil
}

func printPlayers(reply hq.GetPlayersReply) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "DEVICE\tNAME\tPID"); err != nil {
		return err
	}
	for _, player := range reply.Players {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\n", player.DeviceID, player.Name, player.PID); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printPresence(services []hq.Presence) error {
	sort.Slice(services, func(i, j int) bool { return services[i].ServiceID < services[j].ServiceID })

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "SERVICE\tKIND\tNAME\tOPS\tSEEN"); err != nil {
		return err
	}
	for _, presence := range services {
		seen := time.Unix(presence.TS, 0).Format(time.RFC3339)
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", presence.ServiceID, presence.Kind, presence.Name, len(presence.Ops), seen); err != nil {
			return err
		}
	}
	return tw.Flush()
}
