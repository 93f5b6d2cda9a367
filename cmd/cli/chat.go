package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/conversation"
	"github.com/dvloznov/voice-ledger/internal/dashboard"
	"github.com/dvloznov/voice-ledger/internal/dialogue"
)

// chat runs one session against lines read from in until EOF or /quit.
func chat(ctx context.Context, mgr *conversation.Manager, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		var (
			reply conversation.Reply
			err   error
		)
		switch {
		case line == "":
			fmt.Fprint(out, "> ")
			continue
		case line == "/quit":
			return nil
		case line == "/state":
			info, err := mgr.Snapshot(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, describeState(info.State))
			fmt.Fprint(out, "> ")
			continue
		case strings.HasPrefix(line, "@"):
			reply, err = sendAudio(ctx, mgr, sessionID, strings.TrimSpace(line[1:]))
		default:
			reply, err = mgr.HandleUtterance(ctx, sessionID, line)
		}
		if err != nil {
			return err
		}

		if reply.Transcript != "" {
			fmt.Fprintf(out, "(heard: %s)\n", reply.Transcript)
		}
		fmt.Fprintln(out, reply.Text)
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func sendAudio(ctx context.Context, mgr *conversation.Manager, sessionID, path string) (conversation.Reply, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return conversation.Reply{}, fmt.Errorf("reading recording: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	return mgr.HandleAudio(ctx, sessionID, audio, mimeType)
}

func describeState(p dialogue.PartialExpense) string {
	var parts []string
	add := func(name string, v *string) {
		if v != nil {
			parts = append(parts, name+"="+*v)
		}
	}
	add("item", p.Item)
	if p.Amount != nil {
		parts = append(parts, "amount="+p.Amount.StringFixed(2))
	}
	add("category", p.Category)
	add("payment", p.PaymentMethod)
	add("location", p.PurchaseLocation)
	add("recurrence", p.Recurrence)

	if len(parts) == 0 {
		return "(nothing collected yet)"
	}
	return strings.Join(parts, ", ")
}

func printSummary(out io.Writer, s dashboard.Summary) {
	fmt.Fprintf(out, "\n=== Total: %s (%d expenses) ===\n", s.Total.StringFixed(2), s.Count)

	if len(s.ByCategory) > 0 {
		fmt.Fprintln(out, "\nBy category:")
		for _, c := range s.ByCategory {
			fmt.Fprintf(out, "  %-18s %10s  (%d)\n", c.Category, c.Total.StringFixed(2), c.Count)
		}
	}

	if len(s.Recent) > 0 {
		fmt.Fprintln(out, "\nLatest:")
		for _, e := range s.Recent {
			fmt.Fprintf(out, "  %s  %-24s %10s  %s\n",
				e.Timestamp.Format("02/01/2006 15:04"), e.Item, e.Amount.StringFixed(2), e.PaymentMethod)
		}
	}
	fmt.Fprintln(out)
}
